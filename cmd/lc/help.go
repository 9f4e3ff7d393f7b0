package main

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/ui"
	"github.com/spf13/cobra"
)

// helpRule rewrites every match of re in cobra's help text.
type helpRule struct {
	re      *regexp.Regexp
	replace func(groups []string) string
}

var helpRules = []helpRule{
	// Section headers such as "Bots:" or "Flags:".
	{
		re:      regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`),
		replace: func(g []string) string { return ui.RenderAccent(strings.TrimSpace(g[0])) },
	},
	// Subcommand names in a command list: indent, name, gap.
	{
		re:      regexp.MustCompile(`(?m)^(  )(\S+)(  )`),
		replace: func(g []string) string { return g[1] + ui.RenderCommand(g[2]) + g[3] },
	},
	// Flag value types, e.g. "--limit int".
	{
		re:      regexp.MustCompile(`(--?\S+\s+)(string|int|float|duration|strings|stringArray|stringToString)\b`),
		replace: func(g []string) string { return g[1] + ui.RenderMuted(g[2]) },
	},
	{
		re:      regexp.MustCompile(`\(default [^)]*\)`),
		replace: func(g []string) string { return ui.RenderMuted(g[0]) },
	},
}

// colorizedHelpFunc renders cobra's usage text and colors it when stdout
// supports ANSI colors.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			cmd.SetOut(out)
			_ = cmd.Usage()
			return
		}
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			return rule.replace(rule.re.FindStringSubmatch(match))
		})
	}
	return s
}
