package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alfredjeanlab/lowcode/internal/client"
	"github.com/alfredjeanlab/lowcode/internal/ui"
	"github.com/spf13/cobra"
)

// readPassword is replaced in tests.
var readPassword = func(prompt string) (string, error) {
	return ui.ReadPassword(prompt, os.Stdin, os.Stderr)
}

func passwordFlag(cmd *cobra.Command, confirm bool) (string, error) {
	if pw, _ := cmd.Flags().GetString("password"); pw != "" {
		return pw, nil
	}
	if pw := os.Getenv("LOWCODE_PASSWORD"); pw != "" {
		return pw, nil
	}
	pw, err := readPassword("Password: ")
	if err != nil {
		return "", err
	}
	if confirm {
		again, err := readPassword("Confirm password: ")
		if err != nil {
			return "", err
		}
		if again != pw {
			return "", errors.New("passwords do not match")
		}
	}
	return pw, nil
}

// finishSession stores a new session on the active remote and reports it.
func finishSession(cmd *cobra.Command, sess *client.Session) error {
	email := ""
	if sess.User != nil {
		email = sess.User.Email
	}
	name, err := saveSession(serverURL, sess.Token, email)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), sess)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (remote %s)\n", ui.RenderAccent(email), name)
	return nil
}

var registerCmd = &cobra.Command{
	Use:     "register <email>",
	Short:   "Create an account and log in",
	GroupID: "account",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		pw, err := passwordFlag(cmd, true)
		if err != nil {
			return err
		}
		sess, err := apiClient.Register(context.Background(), args[0], pw, name)
		if err != nil {
			return fmt.Errorf("registering: %w", err)
		}
		return finishSession(cmd, sess)
	},
}

var loginCmd = &cobra.Command{
	Use:     "login <email>",
	Short:   "Log in and save the token on the active remote",
	GroupID: "account",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := passwordFlag(cmd, false)
		if err != nil {
			return err
		}
		sess, err := apiClient.Login(context.Background(), args[0], pw)
		if err != nil {
			return fmt.Errorf("logging in: %w", err)
		}
		return finishSession(cmd, sess)
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the logged-in user",
	GroupID: "account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := apiClient.Me(context.Background())
		if err != nil {
			return fmt.Errorf("getting current user: %w", err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, u)
		}
		fmt.Fprintf(out, "ID:    %s\n", u.ID)
		fmt.Fprintf(out, "Email: %s\n", u.Email)
		if u.Name != "" {
			fmt.Fprintf(out, "Name:  %s\n", u.Name)
		}
		fmt.Fprintf(out, "URL:   %s\n", serverURL)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the lowcode server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := apiClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", ui.RenderStatus(status))
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	registerCmd.Flags().String("name", "", "display name")
	registerCmd.Flags().String("password", "", "password (prompted when omitted; env LOWCODE_PASSWORD)")
	loginCmd.Flags().String("password", "", "password (prompted when omitted; env LOWCODE_PASSWORD)")
}
