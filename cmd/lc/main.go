package main

import (
	"fmt"
	"os"

	"github.com/alfredjeanlab/lowcode/internal/client"
	"github.com/alfredjeanlab/lowcode/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool
	noColor    bool

	apiClient client.Client
)

// newClient is replaced in tests.
var newClient = func(url, token string) client.Client {
	return client.NewHTTPClient(url, token)
}

func defaultServerURL() string {
	if s := os.Getenv("LOWCODE_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("LOWCODE_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

// skipClient is used as PersistentPreRunE by commands that run locally.
func skipClient(*cobra.Command, []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "lc <command>",
	Short:         "CLI for the lowcode platform",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		apiClient = newClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if apiClient != nil {
			apiClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "server URL (env LOWCODE_URL)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token (env LOWCODE_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "account", Title: "Account:"},
		&cobra.Group{ID: "build", Title: "Applications:"},
		&cobra.Group{ID: "bots", Title: "Bots:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.OnInitialize(func() {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
	})
	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)

	rootCmd.AddCommand(appCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(buildCmd)

	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(toolCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: "+err.Error()))
		os.Exit(1)
	}
}
