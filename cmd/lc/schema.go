package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/client"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:     "schema",
	Aliases: []string{"schemas", "model"},
	Short:   "Manage schemas (entity types)",
	GroupID: "build",
}

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schemas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := apiClient.ListSchemas(context.Background(), listOptionsFromFlags(cmd))
		if err != nil {
			return fmt.Errorf("listing schemas: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printSchemaList(cmd.OutOrStdout(), list.Schemas, list.Total)
		return nil
	},
}

var schemaShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a schema and its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := apiClient.GetSchema(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting schema: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), s)
		}
		printSchemaTable(cmd.OutOrStdout(), s)
		return nil
	},
}

var schemaCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a schema from --field flags",
	Long: `Create a schema. Each --field is name:type followed by optional
colon-separated modifiers:

  required          the field must be present
  values=a|b|c      allowed values for enum and enum[] fields
  target=<schema>   target schema id for reference fields

Example:
  lc schema create contact --app app-1 \
    --field email:string:required --field stage:enum:values=lead|customer`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appID, _ := cmd.Flags().GetString("app")
		desc, _ := cmd.Flags().GetString("description")
		specs, _ := cmd.Flags().GetStringArray("field")

		fields := make([]model.FieldDef, 0, len(specs))
		for _, spec := range specs {
			f, err := parseFieldSpec(spec)
			if err != nil {
				return err
			}
			fields = append(fields, f)
		}

		s, err := apiClient.CreateSchema(context.Background(), &client.SchemaRequest{
			ApplicationID: appID,
			Name:          args[0],
			Description:   desc,
			Fields:        fields,
		})
		if err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), s)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created schema %s\n", s.ID)
		return nil
	},
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply -f <file>",
	Short: "Create or update schemas from a YAML or JSON file",
	Long: `Apply schema definitions from a file. The file holds either one schema
(name, description, fields) or a list under "schemas", and may name the
application with "application". Existing schemas with the same name in that
application have their fields replaced; others are created in file order.
Reference fields may give another schema's name as their target.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return fmt.Errorf("--file is required")
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		var data []byte
		var err error
		if path == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		fileApp, docs, err := parseSchemaFile(data)
		if err != nil {
			return err
		}
		appID, _ := cmd.Flags().GetString("app")
		if appID == "" {
			appID = fileApp
		}

		results, err := applySchemas(context.Background(), apiClient, appID, docs, dryRun)
		if jsonOutput {
			if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
				return perr
			}
		} else {
			printApplyResults(cmd.OutOrStdout(), results)
		}
		return err
	},
}

var schemaDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a schema and its entities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.DeleteSchema(context.Background(), args[0]); err != nil {
			return fmt.Errorf("deleting schema: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted schema %s\n", args[0])
		return nil
	},
}

// parseFieldSpec parses name:type[:modifier...].
func parseFieldSpec(spec string) (model.FieldDef, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || parts[0] == "" {
		return model.FieldDef{}, fmt.Errorf("invalid field %q: want name:type[:modifiers]", spec)
	}
	f := model.FieldDef{Name: parts[0], Type: model.FieldType(parts[1])}
	if !f.Type.IsValid() {
		return model.FieldDef{}, fmt.Errorf("invalid field %q: unknown type %q", spec, parts[1])
	}
	for _, mod := range parts[2:] {
		key, val, _ := strings.Cut(mod, "=")
		switch key {
		case "required":
			f.Required = true
		case "values":
			f.Values = strings.Split(val, "|")
		case "target":
			f.Target = val
		default:
			return model.FieldDef{}, fmt.Errorf("invalid field %q: unknown modifier %q", spec, mod)
		}
	}
	return f, nil
}

func init() {
	addListFlags(schemaListCmd)
	schemaListCmd.Flags().String("app", "", "only schemas of this application")

	schemaCreateCmd.Flags().String("app", "", "application the schema belongs to")
	schemaCreateCmd.Flags().String("description", "", "schema description")
	schemaCreateCmd.Flags().StringArray("field", nil, "field definition name:type[:modifiers] (repeatable)")

	schemaApplyCmd.Flags().StringP("file", "f", "", "schema file (YAML or JSON, - for stdin)")
	schemaApplyCmd.Flags().String("app", "", "application id (overrides the file's application)")
	schemaApplyCmd.Flags().Bool("dry-run", false, "show what would change without writing")

	schemaCmd.AddCommand(schemaListCmd)
	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaCreateCmd)
	schemaCmd.AddCommand(schemaApplyCmd)
	schemaCmd.AddCommand(schemaDeleteCmd)
}
