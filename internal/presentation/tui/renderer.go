package tui

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)

	return func(markdown string) (string, error) {
		if err != nil {
			return "", err
		}
		return r.Render(markdown)
	}
}

// SessionTable renders sessions as a markdown table.
func SessionTable(sessions []domain.Session, now time.Time) string {
	var b strings.Builder
	b.WriteString("| ID | Name | Lock | Idle | Created |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, s := range sessions {
		lock := "free"
		if s.Locked {
			lock = "**locked**"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			escapeCell(s.ID), escapeCell(s.Name), lock,
			s.IdleSince(now).Truncate(time.Second), s.CreatedAt.Format(time.RFC3339))
	}
	return b.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// PrintSessions writes sessions to w. Rich output goes through glamour with
// colored lock badges; plain output is a tab-aligned table.
func PrintSessions(w io.Writer, sessions []domain.Session, now time.Time, rich bool) error {
	if rich {
		out, err := NewRenderer()(SessionTable(sessions, now))
		if err == nil {
			_, err = io.WriteString(w, out)
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLOCK\tIDLE\tCREATED")
	for _, s := range sessions {
		lock := "free"
		if s.Locked {
			lock = "locked"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, lock, s.IdleSince(now).Truncate(time.Second), s.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
