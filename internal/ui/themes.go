// Package ui holds the colour themes shared by the CLI output and the error
// reporter. Colours are only emitted when the output is a terminal.
package ui

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// ThemeEnv selects a theme by name ("dark", "light", "none").
const ThemeEnv = "FIBSQ_THEME"

// Theme defines a color scheme for UI output. Each field holds an ANSI
// escape sequence.
type Theme struct {
	Name      string
	Primary   string
	Secondary string
	Success   string
	Warning   string
	Error     string
	Info      string
	Bold      string
	Underline string
	Reset     string
}

var (
	// DarkTheme is optimized for dark terminal backgrounds.
	DarkTheme = Theme{
		Name:      "dark",
		Primary:   "\033[38;5;39m",
		Secondary: "\033[38;5;245m",
		Success:   "\033[38;5;82m",
		Warning:   "\033[38;5;220m",
		Error:     "\033[38;5;196m",
		Info:      "\033[38;5;141m",
		Bold:      "\033[1m",
		Underline: "\033[4m",
		Reset:     "\033[0m",
	}

	// LightTheme is optimized for light terminal backgrounds.
	LightTheme = Theme{
		Name:      "light",
		Primary:   "\033[38;5;27m",
		Secondary: "\033[38;5;240m",
		Success:   "\033[38;5;28m",
		Warning:   "\033[38;5;130m",
		Error:     "\033[38;5;124m",
		Info:      "\033[38;5;54m",
		Bold:      "\033[1m",
		Underline: "\033[4m",
		Reset:     "\033[0m",
	}

	// NoColorTheme disables all color output.
	NoColorTheme = Theme{Name: "none"}

	currentTheme = DarkTheme
	themeMutex   sync.RWMutex
)

// GetCurrentTheme returns the active theme.
func GetCurrentTheme() Theme {
	themeMutex.RLock()
	defer themeMutex.RUnlock()
	return currentTheme
}

// SetCurrentTheme replaces the active theme. Tests use it to restore state.
func SetCurrentTheme(t Theme) {
	themeMutex.Lock()
	defer themeMutex.Unlock()
	currentTheme = t
}

// ThemeByName returns the theme with the given name; unknown names map to
// DarkTheme.
func ThemeByName(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return LightTheme
	case "none", "off":
		return NoColorTheme
	default:
		return DarkTheme
	}
}

// SetTheme changes the active theme by name.
func SetTheme(name string) {
	SetCurrentTheme(ThemeByName(name))
}

// InitTheme picks the theme for output written to out. Colours are disabled
// when noColor is set, when NO_COLOR is present in the environment
// (https://no-color.org/), or when out is not a terminal. Otherwise
// FIBSQ_THEME chooses between the dark (default) and light themes.
func InitTheme(noColor bool, out io.Writer) {
	t := ThemeByName(os.Getenv(ThemeEnv))
	if noColor || !IsTerminal(out) {
		t = NoColorTheme
	}
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		t = NoColorTheme
	}
	SetCurrentTheme(t)
}

// IsTerminal reports whether w is a terminal, including Cygwin/MSYS ptys.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
