package cmd

import (
	"bufio"
	"context"
	"strings"

	"github.com/Daskott/relief/server/twilio"
	"github.com/spf13/cobra"
)

func createLoginCmd() *cobra.Command {
	var phone, code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a one time code sent to your phone",
		Long: `Sign in with a one time code sent to your phone.

Without --code a code is texted to --phone and you're prompted for it.
With --code the code you already received is checked.`,
		Example: "  relief login --phone 0912345678\n  relief login --phone 0912345678 --code 123456",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			ctx := context.Background()
			if code == "" {
				if err := app.session.SendOTP(ctx, phone); err != nil {
					return err
				}
				cmd.Printf("A verification code was sent to %v\n", app.backend.Phone.Normalize(phone))
				if lm, ok := app.messenger.(*twilio.LogMessenger); ok {
					printLoggedMessage(cmd, lm)
				}

				code = promptCode(cmd)
				if code == "" {
					return formattedError("no code entered, run 'relief login --phone %v --code <code>'", phone)
				}
			}

			if err := app.session.Login(ctx, phone, code); err != nil {
				return err
			}

			user := app.session.State().User
			cmd.Printf("%v signed in as %v\n", green("✔"), user.PhoneNumber)
			return nil
		},
	}

	cmd.Flags().StringVarP(&phone, "phone", "p", "", "phone number to sign in with")
	cmd.Flags().StringVarP(&code, "code", "c", "", "verification code you received")
	cmd.MarkFlagRequired("phone")

	return cmd
}

func createLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			app.session.Logout(context.Background())
			cmd.Println("You have been signed out")
			return nil
		},
	}
}

func createWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user and their team",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := currentApp()
			if err != nil {
				return err
			}

			state := app.session.State()
			if !state.IsAuthenticated || state.User == nil {
				cmd.Println("You are not signed in")
				return nil
			}

			cmd.Printf("Name:  %v\nPhone: %v\nEmail: %v\n", state.User.Name, state.User.PhoneNumber, state.User.Email)

			team, err := app.backend.Records.Teams.Get(context.Background(), state.User.PhoneNumber)
			if err != nil {
				return err
			}

			if team == nil {
				cmd.Println("Team:  not registered, see 'relief team register'")
				return nil
			}

			cmd.Printf("Team:  led by %v, %v members\n", team.TeamLeaderName, team.MemberCount)
			return nil
		},
	}
}

// printLoggedMessage shows the last text message when no SMS provider is
// configured, otherwise the code would only end up in the debug log.
func printLoggedMessage(cmd *cobra.Command, messenger *twilio.LogMessenger) {
	sent := messenger.Sent()
	if len(sent) == 0 {
		return
	}
	cmd.Printf("%v twilio is not configured, the message was: %q\n", warningLabel, sent[len(sent)-1].Body)
}

func promptCode(cmd *cobra.Command) string {
	cmd.Print("Enter code: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		cmd.Println()
		return ""
	}
	return strings.TrimSpace(line)
}
