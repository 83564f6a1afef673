package cmd

import (
	"context"
	"strings"

	"github.com/Daskott/relief/models"
	"github.com/spf13/cobra"
)

func createRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"help-records"},
		Short:   "List, create and remove help requests",
	}

	cmd.AddCommand(
		createRequestListCmd(),
		createRequestCreateCmd(),
		createRequestGetCmd(),
		createRequestDeleteCmd(),
	)
	return cmd
}

func createRequestListCmd() *cobra.Command {
	var (
		page, limit       int
		provinceID, phone string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List help requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			ctx := context.Background()
			if phone != "" {
				found, err := app.backend.Records.HelpRecords.ListByPhone(ctx, phone)
				if err != nil {
					return err
				}
				printHelpRecords(cmd, found)
				return nil
			}

			result, err := app.backend.Records.HelpRecords.ListPage(ctx, page, limit, provinceID)
			if err != nil {
				return err
			}

			printHelpRecords(cmd, result.Records)
			cmd.Printf("page %v, %v of %v requests", result.Page, len(result.Records), result.Total)
			if result.HasMore {
				cmd.Printf(", more with --page %v", result.Page+1)
			}
			cmd.Println()
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "page to show, starting at 0")
	cmd.Flags().IntVar(&limit, "limit", 10, "requests per page")
	cmd.Flags().StringVar(&provinceID, "province", "", "only requests in this province (id)")
	cmd.Flags().StringVar(&phone, "phone", "", "only requests made with this phone number")

	return cmd
}

func createRequestCreateCmd() *cobra.Command {
	var (
		dto                 models.CreateHelpRecordDto
		items               []string
		latitude, longitude float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a help request",
		Example: `  relief request create --self --location "Thôn 12, Phú Yên" --adults 2 --items Food,Medical --lat 13.08 --lng 109.29
  relief request create --location "Xã Hòa Quang" --adults 1 --items Food --address "Xã Hòa Quang, huyện Phú Hòa"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			if dto.PhoneNumber == "" {
				phone, err := app.signedInPhone()
				if err != nil {
					return formattedError("\"phone\" not set and you are not signed in")
				}
				dto.PhoneNumber = phone
			}

			dto.EssentialItems, err = models.ParseEssentialItems(items)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("lat") {
				dto.Latitude = &latitude
			}
			if cmd.Flags().Changed("lng") {
				dto.Longitude = &longitude
			}

			record, err := app.backend.Records.HelpRecords.Create(context.Background(), dto)
			if err != nil {
				return err
			}

			cmd.Printf("%v help request %v created\n", green("✔"), record.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dto.IsForSelf, "self", false, "the request is for yourself, --lat and --lng are required")
	cmd.Flags().StringVar(&dto.LocationName, "location", "", "short name of the location")
	cmd.Flags().IntVar(&dto.AdultCount, "adults", 0, "number of adults")
	cmd.Flags().IntVar(&dto.ChildCount, "children", 0, "number of children")
	cmd.Flags().StringVar(&dto.PhoneNumber, "phone", "", "contact phone number (default is the signed in user's)")
	cmd.Flags().StringSliceVar(&items, "items", nil, "needed items: Medical, Food, Clothes, Tools")
	cmd.Flags().Float64Var(&latitude, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&longitude, "lng", 0, "longitude")
	cmd.Flags().StringVar(&dto.Address, "address", "", "address, when the request is for someone else")
	cmd.Flags().StringVar(&dto.MapLink, "map-link", "", "map link, when the request is for someone else")
	cmd.Flags().StringVar(&dto.ProvinceID, "province", "", "province id")

	return cmd
}

func createRequestGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a help request and the teams supporting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			ctx := context.Background()
			record, err := app.backend.Records.HelpRecords.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if record == nil {
				return formattedError("no help request with id '%v'", args[0])
			}

			printHelpRecord(cmd, *record)

			supports, err := app.backend.Supports.ListByHelpRecord(ctx, record.ID)
			if err != nil {
				return err
			}

			if len(supports) == 0 {
				cmd.Printf("  support:  %v\n", models.StatusInfo[models.NONE_SUPPORT].Label)
			}
			for _, s := range supports {
				cmd.Printf("  support:  %v by team %v\n", models.StatusInfo[s.Status].Label, s.TeamID)
			}
			return nil
		},
	}
}

func createRequestDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove one of your help requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			phone, err := app.signedInPhone()
			if err != nil {
				return err
			}

			ctx := context.Background()
			record, err := app.backend.Records.HelpRecords.Get(ctx, args[0])
			if err != nil {
				return err
			}

			if record == nil {
				return formattedError("no help request with id '%v'", args[0])
			}

			if record.PhoneNumber != phone {
				return formattedError("help request '%v' was not made with your phone number", args[0])
			}

			if err := app.backend.Records.HelpRecords.Delete(ctx, record.ID); err != nil {
				return err
			}

			cmd.Printf("help request %v deleted\n", record.ID)
			return nil
		},
	}
}

func printHelpRecords(cmd *cobra.Command, found []models.HelpRecord) {
	if len(found) == 0 {
		cmd.Println("No help requests found")
		return
	}

	for _, record := range found {
		printHelpRecord(cmd, record)
	}
}

func printHelpRecord(cmd *cobra.Command, record models.HelpRecord) {
	items := make([]string, 0, len(record.EssentialItems))
	for _, item := range record.EssentialItems {
		items = append(items, string(item))
	}

	cmd.Printf("%v  %v\n", yellow(record.ID), record.LocationName)
	cmd.Printf("  people:   %v adults, %v children\n", record.AdultCount, record.ChildCount)
	cmd.Printf("  needs:    %v\n", strings.Join(items, ", "))
	cmd.Printf("  phone:    %v\n", record.PhoneNumber)

	switch {
	case record.Latitude != nil && record.Longitude != nil:
		cmd.Printf("  location: %v, %v\n", *record.Latitude, *record.Longitude)
	case record.Address != "":
		cmd.Printf("  location: %v\n", record.Address)
	case record.MapLink != "":
		cmd.Printf("  location: %v\n", record.MapLink)
	}
}
