package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/holdfast/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSessions(now time.Time) []domain.Session {
	a := domain.NewSession("a", "printer|left", now.Add(-2*time.Hour))
	b := domain.NewSession("b", "scanner", now.Add(-time.Minute))
	b.Locked = true
	return []domain.Session{*a, *b}
}

func TestSessionTable(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	table := SessionTable(sampleSessions(now), now)

	lines := strings.Split(strings.TrimSpace(table), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], `printer\|left`)
	assert.Contains(t, lines[2], "2h0m0s")
	assert.Contains(t, lines[3], "**locked**")
}

func TestPrintSessions_Plain(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, PrintSessions(&buf, sampleSessions(now), now, false))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "scanner")
	assert.Contains(t, out, "locked")
	assert.Contains(t, out, "1m0s")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "version 1.2.3")
}
