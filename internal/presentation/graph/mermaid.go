package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
)

// Overlay contains runtime data to visualize on the pool diagram.
type Overlay struct {
	Now         time.Time
	IdleTimeout time.Duration
}

// GenerateMermaid produces a Mermaid flowchart of the session pool.
// The lock is drawn as a circle; the holder is linked to it with a solid arrow
// and every other session hangs off the pool with a dotted one. With an
// overlay, sessions idle past the timeout are marked as stale.
func GenerateMermaid(sessions []domain.Session, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")
	sb.WriteString("    lock((\"lock\"))\n")
	sb.WriteString("    pool[\"pool\"]\n")

	var holders, stale []string
	for _, s := range sessions {
		safeID := "s_" + sanitizeMermaidID(s.ID)
		label := strings.ReplaceAll(s.Name, "\"", "'")
		if label == "" {
			label = s.ID
		}

		if s.Locked {
			since := ""
			if s.LockedAt != nil {
				since = " <br/> since " + s.LockedAt.Format(time.RFC3339)
			}
			sb.WriteString(fmt.Sprintf("    %s[\"%s%s\"]\n", safeID, label, since))
			sb.WriteString(fmt.Sprintf("    %s ==> lock\n", safeID))
			holders = append(holders, safeID)
			continue
		}

		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", safeID, label))
		sb.WriteString(fmt.Sprintf("    pool -.- %s\n", safeID))
		if overlay != nil && s.IdleSince(overlay.Now) > overlay.IdleTimeout {
			stale = append(stale, safeID)
		}
	}

	sb.WriteString("\n    %% Styles\n")
	// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
	sb.WriteString("    classDef holder fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
	sb.WriteString("    classDef stale fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray: 5 5,color:#000;\n")
	for _, id := range holders {
		sb.WriteString(fmt.Sprintf("    class %s holder;\n", id))
	}
	for _, id := range stale {
		sb.WriteString(fmt.Sprintf("    class %s stale;\n", id))
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
