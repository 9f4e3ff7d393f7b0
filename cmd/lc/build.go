package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"builds"},
	Short:   "Request and inspect application builds",
	GroupID: "build",
}

var buildRequestCmd = &cobra.Command{
	Use:   "request <app-id>",
	Short: "Queue a bundle export of an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		b, err := apiClient.RequestBuild(ctx, args[0])
		if err != nil {
			return fmt.Errorf("requesting build: %w", err)
		}
		if wait, _ := cmd.Flags().GetBool("wait"); wait {
			interval, _ := cmd.Flags().GetDuration("interval")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if b, err = waitForBuild(ctx, b, interval, timeout); err != nil {
				return err
			}
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), b)
		}
		printBuildTable(cmd.OutOrStdout(), b)
		if b.Status == model.BuildFailed {
			return fmt.Errorf("build %s failed", b.ID)
		}
		return nil
	},
}

// waitForBuild polls until b finishes or timeout passes.
func waitForBuild(ctx context.Context, b *model.Build, interval, timeout time.Duration) (*model.Build, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for !b.Status.IsDone() {
		select {
		case <-ctx.Done():
			return b, fmt.Errorf("build %s still %s after %s", b.ID, b.Status, timeout)
		case <-ticker.C:
		}
		next, err := apiClient.GetBuild(ctx, b.ID)
		if err != nil {
			return b, fmt.Errorf("polling build: %w", err)
		}
		b = next
	}
	return b, nil
}

var buildListCmd = &cobra.Command{
	Use:   "list <app-id>",
	Short: "List builds of an application, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient.ListBuilds(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("listing builds: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printBuildList(cmd.OutOrStdout(), list.Builds, list.Total)
		return nil
	},
}

var buildShowCmd = &cobra.Command{
	Use:   "show <build-id>",
	Short: "Show a build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := apiClient.GetBuild(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting build: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), b)
		}
		printBuildTable(cmd.OutOrStdout(), b)
		return nil
	},
}

func init() {
	buildRequestCmd.Flags().Bool("wait", false, "wait for the build to finish")
	buildRequestCmd.Flags().Duration("interval", 2*time.Second, "poll interval with --wait")
	buildRequestCmd.Flags().Duration("timeout", 10*time.Minute, "give up waiting after this long")

	buildCmd.AddCommand(buildRequestCmd)
	buildCmd.AddCommand(buildListCmd)
	buildCmd.AddCommand(buildShowCmd)
}
