package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/lowcode/internal/client"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/ui"
	"github.com/spf13/cobra"
)

var toolCmd = &cobra.Command{
	Use:     "tool",
	Aliases: []string{"tools"},
	Short:   "Manage and run bot tools",
	GroupID: "bots",
}

var toolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient.ListTools(context.Background(), listOptionsFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("listing tools: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printToolList(cmd.OutOrStdout(), list.Tools, list.Total)
		return nil
	},
}

var toolCreateCmd = &cobra.Command{
	Use:   "create <name> --type <http|shell|file> --config <json>",
	Short: "Create a tool",
	Long: `Create a tool. The config depends on the type:

  http   {"method":"GET","url":"https://api.example.com/{{q}}","headers":{...},"body":"..."}
  shell  {"command":"echo \"$TOOL_MSG\"","timeout":10,"dir":"/tmp","env":{...}}
  file   {"path":"notes/{{name}}.txt","mode":"read"}

{{name}} placeholders in http and file configs are filled from the call
arguments. Shell commands receive each argument as a TOOL_<NAME> variable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, _ := cmd.Flags().GetString("type")
		if !model.ToolType(typ).IsValid() {
			return fmt.Errorf("invalid --type %q (must be http, shell or file)", typ)
		}
		desc, _ := cmd.Flags().GetString("description")
		rawCfg, _ := cmd.Flags().GetString("config")
		if rawCfg == "" {
			return errors.New("--config is required")
		}
		cfg, err := jsonObject([]byte(rawCfg), "--config")
		if err != nil {
			return err
		}

		t, err := apiClient.CreateTool(context.Background(), &client.ToolRequest{
			Name:        args[0],
			Description: desc,
			Type:        typ,
			Config:      cfg,
		})
		if err != nil {
			return fmt.Errorf("creating tool: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created tool %s\n", t.ID)
		return nil
	},
}

var toolDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.DeleteTool(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting tool: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted tool %s\n", args[0])
		return nil
	},
}

var toolExecCmd = &cobra.Command{
	Use:     "exec <id>",
	Aliases: []string{"run"},
	Short:   "Run a tool directly with --input arguments",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("input")
		input := json.RawMessage(`{}`)
		if raw != "" {
			var err error
			if input, err = jsonObject([]byte(raw), "--input"); err != nil {
				return err
			}
		}
		res, err := apiClient.ExecuteTool(context.Background(), args[0], input)
		if err != nil {
			return fmt.Errorf("executing tool: %w", err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(out, res); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(out, res.Output)
			if res.Truncated {
				fmt.Fprintln(out, ui.RenderMuted("(output truncated)"))
			}
			fmt.Fprintln(out, ui.RenderMuted(fmt.Sprintf("took %s", res.Duration)))
		}
		if res.Error != "" {
			return fmt.Errorf("tool failed: %s", res.Error)
		}
		return nil
	},
}

func init() {
	addListFlags(toolListCmd)

	toolCreateCmd.Flags().String("type", "", "tool type: http, shell or file")
	toolCreateCmd.Flags().String("config", "", "tool config as a JSON object")
	toolCreateCmd.Flags().String("description", "", "what the tool does (shown to the model)")

	toolExecCmd.Flags().String("input", "", "call arguments as a JSON object")

	toolCmd.AddCommand(toolListCmd)
	toolCmd.AddCommand(toolCreateCmd)
	toolCmd.AddCommand(toolDeleteCmd)
	toolCmd.AddCommand(toolExecCmd)
}
