// Package cli renders the command-line surface: reading the index, printing
// the execution header, the result and the JSON report.
package cli

import (
	"fmt"
	"time"

	"github.com/agbru/fibsquares/internal/ui"
)

// FormatExecutionDuration formats a duration for display: microseconds under
// a millisecond, milliseconds under a second, the default representation
// otherwise. Zero reads "< 1µs".
func FormatExecutionDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "< 1µs"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// ColorReset returns the reset escape code from the current theme.
func ColorReset() string { return ui.ColorReset() }

// ColorRed returns the error color from the current theme.
func ColorRed() string { return ui.ColorRed() }

// ColorGreen returns the success color from the current theme.
func ColorGreen() string { return ui.ColorGreen() }

// ColorYellow returns the warning color from the current theme.
func ColorYellow() string { return ui.ColorYellow() }

// ColorBlue returns the primary color from the current theme.
func ColorBlue() string { return ui.ColorBlue() }

// ColorMagenta returns the info color from the current theme.
func ColorMagenta() string { return ui.ColorMagenta() }

// ColorCyan returns the secondary color from the current theme.
func ColorCyan() string { return ui.ColorCyan() }

// ColorBold returns the bold escape code from the current theme.
func ColorBold() string { return ui.ColorBold() }

// ColorUnderline returns the underline escape code from the current theme.
func ColorUnderline() string { return ui.ColorUnderline() }

// CLIColorProvider implements apperrors.ColorProvider with the current theme.
type CLIColorProvider struct{}

// Yellow returns the warning color.
func (CLIColorProvider) Yellow() string { return ColorYellow() }

// Reset returns the reset code.
func (CLIColorProvider) Reset() string { return ColorReset() }
