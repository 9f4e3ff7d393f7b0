package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var entityCmd = &cobra.Command{
	Use:     "entity",
	Aliases: []string{"entities"},
	Short:   "Manage entity records",
	GroupID: "build",
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient.ListEntities(context.Background(), listOptionsFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("listing entities: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printEntityList(cmd.OutOrStdout(), list.Entities, list.Total)
		return nil
	},
}

var entityCreateCmd = &cobra.Command{
	Use:   "create --schema <id> --data <json>",
	Short: "Create an entity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaID, _ := cmd.Flags().GetString("schema")
		if schemaID == "" {
			return errors.New("--schema is required")
		}
		data, err := dataFlag(cmd)
		if err != nil {
			return err
		}
		e, err := apiClient.CreateEntity(context.Background(), schemaID, data)
		if err != nil {
			return fmt.Errorf("creating entity: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), e)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created entity %s\n", e.ID)
		return nil
	},
}

var entityShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := apiClient.GetEntity(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting entity: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), e)
		}
		return printEntityTable(cmd.OutOrStdout(), e)
	},
}

var entityUpdateCmd = &cobra.Command{
	Use:   "update <id> --data <json>",
	Short: "Merge fields into an entity (null removes a field)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := dataFlag(cmd)
		if err != nil {
			return err
		}
		e, err := apiClient.UpdateEntity(context.Background(), args[0], data)
		if err != nil {
			return fmt.Errorf("updating entity: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), e)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated entity %s\n", e.ID)
		return nil
	},
}

var entityDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.DeleteEntity(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting entity: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted entity %s\n", args[0])
		return nil
	},
}

// dataFlag reads --data as inline JSON, @path, or - for stdin, and checks
// that it is a JSON object.
func dataFlag(cmd *cobra.Command) (json.RawMessage, error) {
	raw, _ := cmd.Flags().GetString("data")
	var data []byte
	var err error
	switch {
	case raw == "":
		return nil, errors.New("--data is required")
	case raw == "-":
		data, err = io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(raw, "@"):
		data, err = os.ReadFile(raw[1:])
	default:
		data = []byte(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}
	return jsonObject(data, "--data")
}

func jsonObject(data []byte, what string) (json.RawMessage, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%s must be a JSON object", what)
	}
	return json.RawMessage(data), nil
}

func init() {
	addListFlags(entityListCmd)
	entityListCmd.Flags().String("schema", "", "only entities of this schema")

	entityCreateCmd.Flags().String("schema", "", "schema id")
	entityCreateCmd.Flags().String("data", "", "entity data: JSON, @file, or - for stdin")
	entityUpdateCmd.Flags().String("data", "", "fields to merge: JSON, @file, or - for stdin")

	entityCmd.AddCommand(entityListCmd)
	entityCmd.AddCommand(entityCreateCmd)
	entityCmd.AddCommand(entityShowCmd)
	entityCmd.AddCommand(entityUpdateCmd)
	entityCmd.AddCommand(entityDeleteCmd)
}
