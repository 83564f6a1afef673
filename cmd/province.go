package cmd

import (
	"context"

	"github.com/Daskott/relief/models"
	"github.com/spf13/cobra"
)

func createProvinceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "province",
		Short: "List and add provinces",
	}

	cmd.AddCommand(createProvinceListCmd(), createProvinceCreateCmd())
	return cmd
}

func createProvinceListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List provinces in display order",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			provinces, err := app.backend.Records.Provinces.List(context.Background(), !all)
			if err != nil {
				return err
			}

			if len(provinces) == 0 {
				cmd.Println("No provinces found, run 'relief seed' to add the default ones")
				return nil
			}

			for _, p := range provinces {
				cmd.Printf("%v  %-4v %v\n", yellow(p.ID), p.Code, p.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include inactive provinces")
	return cmd
}

func createProvinceCreateCmd() *cobra.Command {
	var (
		dto   models.CreateProvinceDto
		order int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a province",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			if _, err := app.signedInPhone(); err != nil {
				return err
			}

			if cmd.Flags().Changed("order") {
				dto.DisplayOrder = &order
			}

			province, err := app.backend.Records.Provinces.Create(context.Background(), dto)
			if err != nil {
				return err
			}

			cmd.Printf("%v province %v created with id %v\n", green("✔"), province.Name, province.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&dto.Name, "name", "", "province name")
	cmd.Flags().StringVar(&dto.Code, "code", "", "short code, e.g. PY")
	cmd.Flags().IntVar(&order, "order", 0, "display order")

	return cmd
}
