package fibonacci

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Operation labels used by metrics and spans.
const (
	OperationFibonacciMod  = "fibmod"
	OperationSumSquaresMod = "sumsquares"
)

var (
	calculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fibsquares_calculations_total",
			Help: "The total number of calculations processed",
		},
		[]string{"algorithm", "operation", "status"},
	)
	calculationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fibsquares_calculation_duration_seconds",
			Help:    "The duration of calculations in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-7, 10, 8),
		},
		[]string{"algorithm", "operation"},
	)
)

// Calculator defines the public interface of a residue calculator. It is the
// abstraction used by the service and orchestration layers to run the
// registered strategies interchangeably.
type Calculator interface {
	// FibonacciMod returns F(k) mod m.
	//
	// Parameters:
	//   - ctx: The context for managing cancellation and deadlines.
	//   - k: The Fibonacci index.
	//   - m: The modulus (must be positive).
	//
	// Returns:
	//   - uint64: F(k) mod m.
	//   - error: ErrInvalidModulus, or the context error if canceled.
	FibonacciMod(ctx context.Context, k, m uint64) (uint64, error)

	// SumSquaresMod returns (F(0)² + F(1)² + ... + F(n)²) mod m, computed as
	// F(n)·F(n+1) mod m.
	//
	// Parameters:
	//   - ctx: The context for managing cancellation and deadlines.
	//   - n: The index of the last squared term.
	//   - m: The modulus (must be positive).
	//
	// Returns:
	//   - uint64: The sum of squares modulo m.
	//   - error: ErrInvalidModulus, or the context error if canceled.
	SumSquaresMod(ctx context.Context, n, m uint64) (uint64, error)

	// Name returns the display name of the strategy (e.g., "Pisano Scan").
	Name() string
}

// coreCalculator defines the internal interface for a pure residue
// algorithm.
type coreCalculator interface {
	FibModCore(ctx context.Context, k, m uint64) (uint64, error)
	Name() string
}

// FibCalculator implements Calculator by decorating a coreCalculator with
// metrics, tracing and logging, and by deriving the sum of squares from the
// core residue function.
type FibCalculator struct {
	core coreCalculator
}

// NewCalculator wraps a coreCalculator. It panics if core is nil.
//
// Parameters:
//   - core: The core calculator to be wrapped.
//
// Returns:
//   - Calculator: A new FibCalculator instance implementing the Calculator interface.
func NewCalculator(core coreCalculator) Calculator {
	if core == nil {
		panic("fibonacci: the `coreCalculator` implementation cannot be nil")
	}
	return &FibCalculator{core: core}
}

// Name returns the name of the encapsulated coreCalculator.
func (c *FibCalculator) Name() string {
	return c.core.Name()
}

// FibonacciMod returns F(k) mod m through the wrapped core.
func (c *FibCalculator) FibonacciMod(ctx context.Context, k, m uint64) (result uint64, err error) {
	ctx, done := c.observe(ctx, OperationFibonacciMod, k, m)
	defer func() { done(result, err) }()

	if m == 0 {
		return 0, ErrInvalidModulus
	}
	return c.core.FibModCore(ctx, k, m)
}

// SumSquaresMod returns S(n) mod m through the wrapped core.
func (c *FibCalculator) SumSquaresMod(ctx context.Context, n, m uint64) (result uint64, err error) {
	ctx, done := c.observe(ctx, OperationSumSquaresMod, n, m)
	defer func() { done(result, err) }()

	return sumSquaresWith(ctx, c.core.FibModCore, n, m)
}

// observe starts a span for one operation and returns the function that
// records its outcome.
func (c *FibCalculator) observe(ctx context.Context, operation string, index, m uint64) (context.Context, func(uint64, error)) {
	algoName := c.core.Name()
	ctx, span := otel.Tracer("fibonacci").Start(ctx, operation)
	span.SetAttributes(
		attribute.String("algorithm", algoName),
		attribute.String("index", strconv.FormatUint(index, 10)),
		attribute.String("modulus", strconv.FormatUint(m, 10)),
	)
	start := time.Now()

	return ctx, func(result uint64, err error) {
		duration := time.Since(start)
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		calculationsTotal.WithLabelValues(algoName, operation, status).Inc()
		calculationDuration.WithLabelValues(algoName, operation).Observe(duration.Seconds())

		log.Debug().
			Str("algo", algoName).
			Str("operation", operation).
			Uint64("index", index).
			Uint64("modulus", m).
			Uint64("result", result).
			Dur("duration", duration).
			Str("status", status).
			Msg("calculation completed")
	}
}
