// Package orchestration runs several calculators on the same input and
// compares their outcomes.
package orchestration

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agbru/fibsquares/internal/cli"
	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
	"github.com/agbru/fibsquares/internal/ui"
)

// CalculationResult is the outcome of one strategy run.
type CalculationResult struct {
	// Name is the display name of the strategy (e.g., "Pisano Scan").
	Name string
	// Result is S(n) mod m. It is meaningless when Err is set.
	Result uint64
	// Duration is the time taken by the calculation.
	Duration time.Duration
	// Err is the failure, if any.
	Err error
}

// ExecuteCalculations runs SumSquaresMod(n, m) on every calculator
// concurrently and returns one result per calculator, in input order.
// A failing calculator does not cancel the others.
//
// Parameters:
//   - ctx: The context for managing cancellation and deadlines.
//   - calculators: The calculators to execute.
//   - n: The (already reduced) index of the last squared term.
//   - m: The modulus.
//
// Returns:
//   - []CalculationResult: The results of each calculation.
func ExecuteCalculations(ctx context.Context, calculators []fibonacci.Calculator, n, m uint64) []CalculationResult {
	var g errgroup.Group
	results := make([]CalculationResult, len(calculators))

	for i, calc := range calculators {
		g.Go(func() error {
			startTime := time.Now()
			res, err := calc.SumSquaresMod(ctx, n, m)
			results[i] = CalculationResult{
				Name:     calc.Name(),
				Result:   res,
				Duration: time.Since(startTime),
				Err:      apperrors.NewCalculationError(calc.Name(), err),
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// BestResult returns the fastest successful result, or nil when every
// calculation failed.
func BestResult(results []CalculationResult) *CalculationResult {
	var best *CalculationResult
	for i := range results {
		if results[i].Err != nil {
			continue
		}
		if best == nil || results[i].Duration < best.Duration {
			best = &results[i]
		}
	}
	return best
}

// AnalyzeComparisonResults sorts the results (successes first, then by
// duration), checks that every successful strategy agrees, and returns the
// exit code. When details is set the comparison table and the global status
// are printed to out; failures are always reported.
//
// Parameters:
//   - results: The results to analyze. The slice is sorted in place.
//   - out: The io.Writer for the report.
//   - details: Whether to print the comparison table.
//
// Returns:
//   - int: ExitSuccess, ExitErrorMismatch, or the exit code of the first
//     failure when no strategy succeeded.
func AnalyzeComparisonResults(results []CalculationResult, out io.Writer, details bool) int {
	sort.SliceStable(results, func(i, j int) bool {
		if (results[i].Err == nil) != (results[j].Err == nil) {
			return results[i].Err == nil
		}
		return results[i].Duration < results[j].Duration
	})

	var firstValid *CalculationResult
	var firstError error
	successCount := 0
	for i := range results {
		if results[i].Err != nil {
			if firstError == nil {
				firstError = results[i].Err
			}
			continue
		}
		successCount++
		if firstValid == nil {
			firstValid = &results[i]
		}
	}

	if details {
		printComparisonTable(results, out)
	}

	if successCount == 0 {
		if firstError == nil {
			fmt.Fprintf(out, "Global Status: Failure. No algorithm was run.\n")
			return apperrors.ExitErrorGeneric
		}
		fmt.Fprintf(out, "\nGlobal Status: Failure. No algorithm could complete the calculation.\n")
		return apperrors.HandleCalculationError(firstError, 0, out, cli.CLIColorProvider{})
	}

	for _, res := range results {
		if res.Err == nil && res.Result != firstValid.Result {
			fmt.Fprintf(out, "\n%sGlobal Status: CRITICAL ERROR! An inconsistency was detected between the results of the algorithms.%s\n",
				ui.ColorRed(), ui.ColorReset())
			return apperrors.ExitErrorMismatch
		}
	}

	if details {
		fmt.Fprintf(out, "\nGlobal Status: Success. All valid results are consistent.\n")
	}
	return apperrors.ExitSuccess
}

func printComparisonTable(results []CalculationResult, out io.Writer) {
	fmt.Fprintf(out, "\n--- Comparison Summary ---\n")
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "%sAlgorithm%s\t%sDuration%s\t%sResult%s\t%sStatus%s\n",
		ui.ColorUnderline(), ui.ColorReset(), ui.ColorUnderline(), ui.ColorReset(),
		ui.ColorUnderline(), ui.ColorReset(), ui.ColorUnderline(), ui.ColorReset())

	for _, res := range results {
		status := fmt.Sprintf("%s✅ Success%s", ui.ColorGreen(), ui.ColorReset())
		value := fmt.Sprint(res.Result)
		if res.Err != nil {
			status = fmt.Sprintf("%s❌ Failure (%v)%s", ui.ColorRed(), res.Err, ui.ColorReset())
			value = "-"
		}
		fmt.Fprintf(tw, "%s%s%s\t%s%s%s\t%s\t%s\n",
			ui.ColorBlue(), res.Name, ui.ColorReset(),
			ui.ColorYellow(), cli.FormatExecutionDuration(res.Duration), ui.ColorReset(),
			value, status)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(out, "Warning: failed to flush tabwriter: %v\n", err)
	}
}
