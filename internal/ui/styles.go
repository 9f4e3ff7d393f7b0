package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 215 // orange
	colorFail   = 203 // red
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderError returns s in the failure (red) color.
func RenderError(s string) string { return paint(colorFail, s) }

// RenderStatus colors a bot instance or build status: green when running or
// succeeded, orange while in flight, red on failure, gray otherwise.
func RenderStatus(status string) string {
	switch status {
	case "running", "succeeded", "ok":
		return paint(colorOK, status)
	case "starting", "stopping", "queued":
		return paint(colorWarn, status)
	case "error", "failed":
		return paint(colorFail, status)
	}
	return paint(colorMuted, status)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
