package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// DisplayResult prints the bare result on a single line. This is the whole
// default output of the program.
func DisplayResult(out io.Writer, result uint64) {
	fmt.Fprintln(out, result)
}

// DisplayDetailedResult prints the result block shown with -d.
//
// Parameters:
//   - out: The output writer.
//   - n: The index as given by the user.
//   - m: The modulus.
//   - result: S(n) mod m.
//   - algo: The name of the strategy that produced the result.
//   - duration: The calculation time of that strategy.
func DisplayDetailedResult(out io.Writer, n string, m, result uint64, algo string, duration time.Duration) {
	fmt.Fprintf(out, "\n%s--- Result ---%s\n", ColorBold(), ColorReset())
	fmt.Fprintf(out, "Algorithm          : %s%s%s\n", ColorBlue(), algo, ColorReset())
	fmt.Fprintf(out, "Calculation time   : %s%s%s\n", ColorGreen(), FormatExecutionDuration(duration), ColorReset())
	fmt.Fprintf(out, "S(%s%s%s) mod %d = %s%d%s\n",
		ColorMagenta(), n, ColorReset(), m, ColorGreen(), result, ColorReset())
}

// JSONResult is one strategy outcome in the -json report.
type JSONResult struct {
	N         string  `json:"n"`
	Modulus   uint64  `json:"modulus"`
	Algorithm string  `json:"algorithm"`
	Result    *uint64 `json:"result,omitempty"`
	Duration  string  `json:"duration"`
	Error     string  `json:"error,omitempty"`
}

// WriteJSON writes the results as an indented JSON array.
func WriteJSON(out io.Writer, results []JSONResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
