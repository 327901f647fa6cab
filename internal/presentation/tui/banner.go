package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the weave banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{" __      _____  __ ___   _____ ", "#34d399"},
		{" \\ \\ /\\ / / _ \\/ _` \\ \\ / / _ \\", "#2dd4bf"},
		{"  \\ V  V /  __/ (_| |\\ V /  __/", "#22d3ee"},
		{"   \\_/\\_/ \\___|\\__,_| \\_/ \\___|", "#38bdf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}

// Status colours an instance status for terminal output.
func Status(status string) string {
	p := termenv.ColorProfile()
	s := termenv.String(status)
	switch status {
	case "running":
		return s.Foreground(p.Color("#22c55e")).Bold().String()
	case "idle":
		return s.Faint().String()
	case "invalid":
		return s.Foreground(p.Color("#ef4444")).Bold().String()
	default:
		return s.String()
	}
}
