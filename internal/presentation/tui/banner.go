package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the forge banner and version to w.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()
	lines := []struct {
		text, color string
	}{
		{"   __                       ", "#fbbf24"},
		{"  / _|___  _ _ __ _ ___     ", "#f59e0b"},
		{" |  _/ _ \\| '_/ _` / -_)    ", "#f97316"},
		{" |_| \\___/|_| \\__, \\___|    ", "#ef4444"},
		{"              |___/         ", "#dc2626"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String(" crafting requests · "+version).Faint())
	fmt.Fprintln(w)
}
