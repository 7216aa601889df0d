package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/agbru/fibsquares/internal/config"
	"github.com/agbru/fibsquares/internal/fibonacci"
)

// GetCalculatorsToRun resolves the algorithm selection. "all" returns every
// registered calculator in name order; an unknown name returns nil.
func GetCalculatorsToRun(algo string, factory fibonacci.CalculatorFactory) []fibonacci.Calculator {
	if algo == config.AlgoAll {
		keys := factory.List()
		calculators := make([]fibonacci.Calculator, 0, len(keys))
		for _, k := range keys {
			if calc, err := factory.Get(k); err == nil {
				calculators = append(calculators, calc)
			}
		}
		return calculators
	}
	if calc, err := factory.Get(algo); err == nil {
		return []fibonacci.Calculator{calc}
	}
	return nil
}

// PrintExecutionConfig displays the execution configuration.
//
// Parameters:
//   - cfg: The application configuration.
//   - n: The index as given by the user.
//   - reduced: The index actually evaluated (n mod π(m) when n exceeds uint64).
//   - out: The writer for standard output.
func PrintExecutionConfig(cfg config.AppConfig, n string, reduced uint64, out io.Writer) {
	fmt.Fprintf(out, "--- Execution Configuration ---\n")
	fmt.Fprintf(out, "Calculating %sS(%s) mod %d%s with a timeout of %s%s%s.\n",
		ColorMagenta(), n, cfg.Modulus, ColorReset(), ColorYellow(), cfg.Timeout, ColorReset())
	if n != fmt.Sprint(reduced) {
		fmt.Fprintf(out, "Index reduced modulo the Pisano period to %s%d%s.\n", ColorCyan(), reduced, ColorReset())
	}
	fmt.Fprintf(out, "Environment: %s%d%s logical processors, Go %s%s%s.\n",
		ColorCyan(), runtime.NumCPU(), ColorReset(), ColorCyan(), runtime.Version(), ColorReset())
	fmt.Fprintf(out, "Period table cache: %s%d%s entries.\n", ColorCyan(), cfg.CacheSize, ColorReset())
}

// PrintCacheStats displays period table cache activity after a run.
func PrintCacheStats(stats fibonacci.CacheStats, out io.Writer) {
	fmt.Fprintf(out, "Period table cache: %s%d%s hits, %s%d%s misses, %d evictions, %d stored (hit rate %.0f%%).\n",
		ColorGreen(), stats.Hits, ColorReset(), ColorYellow(), stats.Misses, ColorReset(),
		stats.Evictions, stats.Size, stats.HitRate*100)
}

// PrintExecutionMode displays whether one strategy runs or all of them are
// compared.
func PrintExecutionMode(calculators []fibonacci.Calculator, out io.Writer) {
	var modeDesc string
	switch len(calculators) {
	case 0:
		modeDesc = "No algorithm selected"
	case 1:
		modeDesc = fmt.Sprintf("Single calculation with the %s%s%s algorithm",
			ColorGreen(), calculators[0].Name(), ColorReset())
	default:
		modeDesc = "Parallel comparison of all algorithms"
	}
	fmt.Fprintf(out, "Execution mode: %s.\n", modeDesc)
	fmt.Fprintf(out, "\n--- Starting Execution ---\n")
}
