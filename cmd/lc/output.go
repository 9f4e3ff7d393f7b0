package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printApplicationTable(w io.Writer, a *model.Application) {
	fmt.Fprintf(w, "ID:          %s\n", a.ID)
	fmt.Fprintf(w, "Name:        %s\n", a.Name)
	if a.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", a.Description)
	}
	fmt.Fprintf(w, "Owner:       %s\n", a.OwnerID)
	fmt.Fprintf(w, "Created At:  %s\n", formatTime(a.CreatedAt))
	fmt.Fprintf(w, "Updated At:  %s\n", formatTime(a.UpdatedAt))
}

func printApplicationList(w io.Writer, apps []*model.Application, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION\tUPDATED")
	for _, a := range apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Name, truncate(a.Description, 40), formatTime(a.UpdatedAt))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d applications (%d total)\n", len(apps), total)
}

func printSchemaTable(w io.Writer, s *model.Schema) {
	fmt.Fprintf(w, "ID:          %s\n", s.ID)
	fmt.Fprintf(w, "Name:        %s\n", s.Name)
	if s.ApplicationID != "" {
		fmt.Fprintf(w, "Application: %s\n", s.ApplicationID)
	}
	if s.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", s.Description)
	}
	fmt.Fprintf(w, "Updated At:  %s\n", formatTime(s.UpdatedAt))
	if len(s.Fields) == 0 {
		return
	}
	fmt.Fprintln(w, "\nFields:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, f := range s.Fields {
		req := ""
		if f.Required {
			req = "required"
		}
		detail := ""
		switch {
		case len(f.Values) > 0:
			detail = strings.Join(f.Values, "|")
		case f.Target != "":
			detail = "-> " + f.Target
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", f.Name, ui.RenderMuted(string(f.Type)), req, detail)
	}
	tw.Flush()
}

func printSchemaList(w io.Writer, schemas []*model.Schema, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAPPLICATION\tFIELDS")
	for _, s := range schemas {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.ApplicationID, len(s.Fields))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d schemas (%d total)\n", len(schemas), total)
}

func printEntityTable(w io.Writer, e *model.Entity) error {
	fmt.Fprintf(w, "ID:         %s\n", e.ID)
	fmt.Fprintf(w, "Schema:     %s\n", e.SchemaID)
	fmt.Fprintf(w, "Created At: %s\n", formatTime(e.CreatedAt))
	fmt.Fprintf(w, "Updated At: %s\n", formatTime(e.UpdatedAt))
	fmt.Fprintln(w, "Data:")
	var data any
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return fmt.Errorf("decoding entity data: %w", err)
	}
	return printJSON(w, data)
}

func printEntityList(w io.Writer, entities []*model.Entity, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCHEMA\tDATA")
	for _, e := range entities {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.SchemaID, truncate(string(e.Data), 60))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d entities (%d total)\n", len(entities), total)
}

func printBotTable(w io.Writer, b *model.Bot) {
	fmt.Fprintf(w, "ID:          %s\n", b.ID)
	fmt.Fprintf(w, "Name:        %s\n", b.Name)
	if b.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", b.Description)
	}
	if b.Model != "" {
		fmt.Fprintf(w, "Model:       %s\n", b.Model)
	}
	fmt.Fprintf(w, "Temperature: %g\n", b.Temperature)
	if b.PromptID != "" {
		fmt.Fprintf(w, "Prompt:      %s\n", b.PromptID)
	}
	if b.SystemPrompt != "" {
		fmt.Fprintf(w, "System:      %s\n", truncate(b.SystemPrompt, 70))
	}
	if len(b.ToolIDs) > 0 {
		fmt.Fprintf(w, "Tools:       %s\n", strings.Join(b.ToolIDs, ", "))
	}
	fmt.Fprintf(w, "Created At:  %s\n", formatTime(b.CreatedAt))
}

func printBotList(w io.Writer, bots []*model.Bot, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMODEL\tTOOLS")
	for _, b := range bots {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", b.ID, b.Name, b.Model, len(b.ToolIDs))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d bots (%d total)\n", len(bots), total)
}

func printInstance(w io.Writer, inst *model.BotInstance) {
	fmt.Fprintf(w, "Bot:     %s\n", inst.BotID)
	fmt.Fprintf(w, "Status:  %s\n", ui.RenderStatus(string(inst.Status)))
	if inst.LastError != "" {
		fmt.Fprintf(w, "Error:   %s\n", ui.RenderError(inst.LastError))
	}
	if inst.StartedAt != nil {
		fmt.Fprintf(w, "Started: %s\n", formatTimePtr(inst.StartedAt))
	}
	if inst.StoppedAt != nil {
		fmt.Fprintf(w, "Stopped: %s\n", formatTimePtr(inst.StoppedAt))
	}
	if inst.LastHealthAt != nil {
		fmt.Fprintf(w, "Healthy: %s\n", formatTimePtr(inst.LastHealthAt))
	}
}

func printMessage(w io.Writer, m *model.ChatMessage) {
	label := string(m.Role)
	switch m.Role {
	case model.RoleAssistant:
		label = ui.RenderAccent("bot")
	case model.RoleTool:
		label = ui.RenderMuted("tool:" + m.ToolName)
	case model.RoleUser:
		label = ui.RenderCommand("you")
	}
	fmt.Fprintf(w, "%s %s> %s\n", ui.RenderMuted(m.CreatedAt.Local().Format("15:04:05")), label, m.Content)
}

func printToolList(w io.Writer, tools []*model.BotTool, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Type, truncate(t.Description, 50))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d tools (%d total)\n", len(tools), total)
}

func printBuildTable(w io.Writer, b *model.Build) {
	fmt.Fprintf(w, "ID:          %s\n", b.ID)
	fmt.Fprintf(w, "Application: %s\n", b.ApplicationID)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(string(b.Status)))
	if b.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", ui.RenderError(b.Error))
	}
	if b.Bytes > 0 {
		fmt.Fprintf(w, "Bytes:       %d\n", b.Bytes)
	}
	for _, a := range b.Artifacts {
		fmt.Fprintf(w, "Artifact:    %s\n", a)
	}
	fmt.Fprintf(w, "Created At:  %s\n", formatTime(b.CreatedAt))
	if b.FinishedAt != nil {
		fmt.Fprintf(w, "Finished At: %s\n", formatTimePtr(b.FinishedAt))
	}
}

func printBuildList(w io.Writer, builds []*model.Build, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tBYTES\tCREATED")
	for _, b := range builds {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.ID, b.Status, b.Bytes, formatTime(b.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d builds (%d total)\n", len(builds), total)
}
