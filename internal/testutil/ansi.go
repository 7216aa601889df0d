// Package testutil provides helpers shared by the package tests.
package testutil

import (
	"regexp"
	"strings"
	"testing"

	"github.com/agbru/fibsquares/internal/ui"
)

// ansiRegex matches CSI escape sequences (ESC [ ... letter).
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripAnsiCodes removes ANSI escape codes from s.
func StripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// UseTheme activates theme for the duration of the test and restores the
// previous one afterwards.
func UseTheme(t testing.TB, theme ui.Theme) {
	t.Helper()
	previous := ui.GetCurrentTheme()
	ui.SetCurrentTheme(theme)
	t.Cleanup(func() { ui.SetCurrentTheme(previous) })
}

// Lines splits output into lines with ANSI codes removed, dropping the
// trailing empty line.
func Lines(s string) []string {
	s = strings.TrimSuffix(StripAnsiCodes(s), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
