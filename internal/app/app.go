package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/samber/lo"

	"github.com/agbru/fibsquares/internal/cli"
	"github.com/agbru/fibsquares/internal/config"
	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
	"github.com/agbru/fibsquares/internal/logging"
	"github.com/agbru/fibsquares/internal/orchestration"
	"github.com/agbru/fibsquares/internal/server"
	"github.com/agbru/fibsquares/internal/service"
	"github.com/agbru/fibsquares/internal/ui"
)

// Application represents the fibsquares application instance.
// It encapsulates the configuration and runs either a one-shot calculation
// or the HTTP server.
type Application struct {
	// Config holds the parsed application configuration.
	Config config.AppConfig
	// Factory provides access to the registered calculators.
	Factory fibonacci.CalculatorFactory
	// Service validates indices and serves the HTTP API.
	Service service.Service
	// ErrWriter receives logs and failure reports (typically os.Stderr).
	ErrWriter io.Writer
	// In supplies the index when -n is not given (typically os.Stdin).
	In io.Reader

	logger logging.Logger
}

// New creates a new Application instance by parsing command-line arguments.
// It validates the configuration and returns an error if parsing or validation fails.
//
// Parameters:
//   - args: The command-line arguments (typically os.Args).
//   - errWriter: The writer for error output.
//
// Returns:
//   - *Application: A new application instance.
//   - error: An error if configuration parsing or validation fails.
func New(args []string, errWriter io.Writer) (*Application, error) {
	factory := fibonacci.GlobalFactory()

	programName := "fibsquares"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter, factory.List())
	if err != nil {
		return nil, err
	}

	return &Application{
		Config:    cfg,
		Factory:   factory,
		Service:   service.NewCalculatorService(factory, cfg.MaxModulus),
		ErrWriter: errWriter,
		In:        os.Stdin,
	}, nil
}

// Run executes the application based on the configured mode.
//
// Parameters:
//   - ctx: The context for managing cancellation.
//   - out: The writer for standard output.
//
// Returns:
//   - int: An exit code (0 for success, non-zero for errors).
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	a.logger = logging.NewZerologAdapter(logging.Setup(a.ErrWriter, a.Config.Verbose))
	fibonacci.SetTableCacheConfig(a.Config.TableCacheConfig())
	ui.InitTheme(a.Config.NoColor, out)

	if a.Config.ServerMode {
		return a.runServer(ctx)
	}
	return a.runCalculate(ctx, out)
}

// runServer serves the HTTP API until a termination signal arrives.
func (a *Application) runServer(ctx context.Context) int {
	ctx, stop := SetupSignals(ctx)
	defer stop()

	srv := server.NewServer(a.Factory, a.Config,
		server.WithService(a.Service),
		server.WithLogger(a.logger),
	)
	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(a.ErrWriter, "Server error: %v\n", err)
		return apperrors.ExitErrorGeneric
	}
	return apperrors.ExitSuccess
}

// runCalculate reads n, reduces it, runs the selected strategies and prints
// the result. By default the only output is the residue on one line;
// failures go to ErrWriter.
func (a *Application) runCalculate(ctx context.Context, out io.Writer) int {
	ctx, lifecycle := SetupLifecycle(ctx, a.Config.Timeout)
	defer lifecycle.Cleanup()

	n, err := a.readIndex()
	if err != nil {
		return apperrors.HandleCalculationError(err, 0, a.ErrWriter, cli.CLIColorProvider{})
	}

	m := a.Config.Modulus
	reduced, err := a.Service.ReduceIndex(ctx, "n", n, m)
	if err != nil {
		return apperrors.HandleCalculationError(err, 0, a.ErrWriter, cli.CLIColorProvider{})
	}
	a.logger.Debug("index ready",
		logging.String("n", n.String()),
		logging.Uint64("reduced", reduced),
		logging.Uint64("modulus", m),
		logging.String("algo", a.Config.Algo))

	calculators := cli.GetCalculatorsToRun(a.Config.Algo, a.Factory)
	showDetails := a.Config.Details && !a.Config.JSONOutput
	if showDetails {
		cli.PrintExecutionConfig(a.Config, n.String(), reduced, out)
		cli.PrintExecutionMode(calculators, out)
	}

	results := orchestration.ExecuteCalculations(ctx, calculators, reduced, m)

	report := a.ErrWriter
	if showDetails {
		report = out
	}
	exitCode := orchestration.AnalyzeComparisonResults(results, report, showDetails)
	if showDetails {
		cli.PrintCacheStats(fibonacci.DefaultTableCache().Stats(), out)
	}

	if a.Config.JSONOutput {
		if err := cli.WriteJSON(out, toJSONResults(n.String(), m, results)); err != nil {
			a.logger.Error("failed to write JSON output", err)
			return apperrors.ExitErrorGeneric
		}
		return exitCode
	}

	if exitCode != apperrors.ExitSuccess {
		return exitCode
	}
	best := orchestration.BestResult(results)
	if showDetails {
		cli.DisplayDetailedResult(out, n.String(), m, best.Result, best.Name, best.Duration)
	} else {
		cli.DisplayResult(out, best.Result)
	}
	return apperrors.ExitSuccess
}

// readIndex takes n from -n when given, otherwise from the first line of In.
func (a *Application) readIndex() (*big.Int, error) {
	if a.Config.N != "" {
		return cli.ParseIndexArg(a.Config.N)
	}
	in := a.In
	if in == nil {
		in = os.Stdin
	}
	return cli.ReadIndex(in)
}

func toJSONResults(n string, m uint64, results []orchestration.CalculationResult) []cli.JSONResult {
	return lo.Map(results, func(res orchestration.CalculationResult, _ int) cli.JSONResult {
		jr := cli.JSONResult{
			N:         n,
			Modulus:   m,
			Algorithm: res.Name,
			Duration:  res.Duration.String(),
		}
		if res.Err != nil {
			jr.Error = res.Err.Error()
		} else {
			jr.Result = lo.ToPtr(res.Result)
		}
		return jr
	})
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
