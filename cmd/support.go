package cmd

import (
	"context"

	"github.com/Daskott/relief/models"
	"github.com/spf13/cobra"
)

func createSupportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "support",
		Short: "Track the help requests your team supports",
		Long: `Track the help requests your team supports.

Each request your team takes on moves through
none -> pending -> active -> completed, and back to pending if you
start supporting it again.`,
	}

	cmd.AddCommand(
		createSupportStatusCmd(),
		createSupportAdvanceCmd(),
		createSupportListCmd(),
	)
	return cmd
}

func createSupportStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <help-request-id>",
		Short: "Show your team's support status for a help request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, teamID, err := supportingTeam(args[0])
			if err != nil {
				return err
			}

			status, err := app.backend.Supports.Status(context.Background(), args[0], teamID)
			if err != nil {
				return err
			}

			printSupportStatus(cmd, status)
			return nil
		},
	}
}

func createSupportAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <help-request-id>",
		Short: "Move your team's support for a help request to its next status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, teamID, err := supportingTeam(args[0])
			if err != nil {
				return err
			}

			support, err := app.backend.Supports.Advance(context.Background(), args[0], teamID)
			if err != nil {
				return err
			}

			printSupportStatus(cmd, support.Status)
			return nil
		},
	}
}

func createSupportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the help requests your team supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			teamID, err := app.signedInPhone()
			if err != nil {
				return err
			}

			supports, err := app.backend.Supports.ListByTeam(context.Background(), teamID)
			if err != nil {
				return err
			}

			if len(supports) == 0 {
				cmd.Println("Your team isn't supporting any help requests")
				return nil
			}

			for _, s := range supports {
				cmd.Printf("%v  %v\n", yellow(s.HelpRecordID), models.StatusInfo[s.Status].Label)
			}
			return nil
		},
	}
}

// supportingTeam resolves the signed in user's team and checks the help request
// exists. Supports are always recorded for the caller's own team.
func supportingTeam(helpRecordID string) (*cliApp, string, error) {
	app, err := currentApp()
	if err != nil {
		return nil, "", err
	}

	teamID, err := app.signedInPhone()
	if err != nil {
		return nil, "", err
	}

	ctx := context.Background()
	team, err := app.backend.Records.Teams.Get(ctx, teamID)
	if err != nil {
		return nil, "", err
	}

	if team == nil {
		return nil, "", formattedError("register your team first with 'relief team register'")
	}

	record, err := app.backend.Records.HelpRecords.Get(ctx, helpRecordID)
	if err != nil {
		return nil, "", err
	}

	if record == nil {
		return nil, "", formattedError("no help request with id '%v'", helpRecordID)
	}

	return app, teamID, nil
}

func printSupportStatus(cmd *cobra.Command, status models.SupportStatus) {
	info := models.StatusInfo[status]
	cmd.Printf("%v (%v): %v\n", info.Label, info.Status, info.Description)
}
