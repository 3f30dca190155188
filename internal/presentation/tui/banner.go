package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the holdfast banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{" _           _     _  __           _   ", "#34d399"},
		{"| |__   ___ | | __| |/ _| __ _ ___| |_ ", "#2dd4bf"},
		{"| '_ \\ / _ \\| |/ _` | |_ / _` / __| __|", "#22d3ee"},
		{"| | | | (_) | | (_| |  _| (_| \\__ \\ |_ ", "#38bdf8"},
		{"|_| |_|\\___/|_|\\__,_|_|  \\__,_|___/\\__|", "#60a5fa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  version "+version).Faint())
	fmt.Fprintln(w)
}

// LockBadge renders a colored lock status.
func LockBadge(locked bool) string {
	p := termenv.ColorProfile()
	if locked {
		return termenv.String("locked").Foreground(p.Color("#f87171")).Bold().String()
	}
	return termenv.String("free").Foreground(p.Color("#34d399")).String()
}
