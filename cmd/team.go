package cmd

import (
	"context"
	"strings"

	"github.com/Daskott/relief/models"
	"github.com/spf13/cobra"
)

func createTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Register and look up volunteer teams",
	}

	cmd.AddCommand(
		createTeamRegisterCmd(),
		createTeamGetCmd(),
		createTeamListCmd(),
	)
	return cmd
}

func createTeamRegisterCmd() *cobra.Command {
	var (
		dto   models.CreateTeamDto
		items []string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register your team, or update it if it's already registered",
		Long: `Register your team under the phone number you signed in with.
Registering again updates the team.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			phone, err := app.signedInPhone()
			if err != nil {
				return err
			}
			dto.PhoneNumber = phone

			dto.EssentialItems, err = models.ParseEssentialItems(items)
			if err != nil {
				return err
			}

			team, err := app.backend.Records.Teams.Register(context.Background(), dto)
			if err != nil {
				return err
			}

			cmd.Printf("%v team %v registered\n", green("✔"), team.PhoneNumber)
			return nil
		},
	}

	cmd.Flags().StringVar(&dto.TeamLeaderName, "leader", "", "name of the team leader")
	cmd.Flags().StringVar(&dto.Email, "email", "", "team contact email")
	cmd.Flags().IntVar(&dto.MemberCount, "members", 1, "number of team members")
	cmd.Flags().StringSliceVar(&items, "items", nil, "items the team can bring: Medical, Food, Clothes, Tools")

	return cmd
}

func createTeamGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [phone]",
		Short: "Show a team, yours by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			var phone string
			if len(args) > 0 {
				phone = args[0]
			} else if phone, err = app.signedInPhone(); err != nil {
				return err
			}

			team, err := app.backend.Records.Teams.Get(context.Background(), phone)
			if err != nil {
				return err
			}

			if team == nil {
				return formattedError("no team registered with '%v'", app.backend.Phone.Normalize(phone))
			}

			printTeam(cmd, *team)
			return nil
		},
	}
}

func createTeamListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			teams, err := app.backend.Records.Teams.List(context.Background())
			if err != nil {
				return err
			}

			if len(teams) == 0 {
				cmd.Println("No teams registered")
				return nil
			}

			for _, team := range teams {
				printTeam(cmd, team)
			}
			return nil
		},
	}
}

func printTeam(cmd *cobra.Command, team models.Team) {
	items := make([]string, 0, len(team.EssentialItems))
	for _, item := range team.EssentialItems {
		items = append(items, string(item))
	}

	cmd.Printf("%v  led by %v\n", yellow(team.PhoneNumber), team.TeamLeaderName)
	cmd.Printf("  members: %v\n", team.MemberCount)
	cmd.Printf("  email:   %v\n", team.Email)
	cmd.Printf("  brings:  %v\n", strings.Join(items, ", "))
}
