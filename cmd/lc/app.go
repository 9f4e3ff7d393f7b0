package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/lowcode/internal/client"
	"github.com/spf13/cobra"
)

var appCmd = &cobra.Command{
	Use:     "app",
	Aliases: []string{"apps"},
	Short:   "Manage applications",
	GroupID: "build",
}

var appListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your applications",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := listOptionsFromFlags(cmd)
		list, err := apiClient.ListApplications(context.Background(), opts)
		if err != nil {
			return fmt.Errorf("listing applications: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printApplicationList(cmd.OutOrStdout(), list.Applications, list.Total)
		return nil
	},
}

var appCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("description")
		app, err := apiClient.CreateApplication(context.Background(), &client.ApplicationRequest{
			Name:        args[0],
			Description: desc,
		})
		if err != nil {
			return fmt.Errorf("creating application: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), app)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created application %s\n", app.ID)
		return nil
	},
}

var appShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := apiClient.GetApplication(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting application: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), app)
		}
		printApplicationTable(cmd.OutOrStdout(), app)
		return nil
	},
}

var appDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an application and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.DeleteApplication(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting application: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted application %s\n", args[0])
		return nil
	},
}

// addListFlags registers the paging flags read by listOptionsFromFlags.
func addListFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "filter by name or content")
	cmd.Flags().Int("limit", 50, "maximum number of results")
	cmd.Flags().Int("offset", 0, "number of results to skip")
}

func listOptionsFromFlags(cmd *cobra.Command) *client.ListOptions {
	opts := &client.ListOptions{}
	opts.Search, _ = cmd.Flags().GetString("search")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.Offset, _ = cmd.Flags().GetInt("offset")
	if f := cmd.Flags().Lookup("app"); f != nil {
		opts.ApplicationID = f.Value.String()
	}
	if f := cmd.Flags().Lookup("schema"); f != nil {
		opts.SchemaID = f.Value.String()
	}
	return opts
}

func init() {
	addListFlags(appListCmd)
	appCreateCmd.Flags().String("description", "", "application description")

	appCmd.AddCommand(appListCmd)
	appCmd.AddCommand(appCreateCmd)
	appCmd.AddCommand(appShowCmd)
	appCmd.AddCommand(appDeleteCmd)
}
