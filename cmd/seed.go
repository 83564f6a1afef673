package cmd

import (
	"context"

	"github.com/Daskott/relief/records"
	"github.com/spf13/cobra"
)

func createSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add the default provinces and sample help requests",
		Long: `Add the provinces Phú Yên, Bình Định, Khánh Hòa and Quảng Nam with a few
sample help requests each. Running it again only adds what is missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			result, err := records.Seed(context.Background(), app.backend.Records)
			if err != nil {
				return err
			}

			cmd.Printf("%v added %v provinces and %v help requests\n", green("✔"), result.Provinces, result.HelpRecords)
			return nil
		},
	}
}
