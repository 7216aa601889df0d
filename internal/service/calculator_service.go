// Package service validates requests and dispatches them to the registered
// calculators. The CLI and the HTTP server both go through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
)

// Service defines the calculations exposed to the outer layers.
type Service interface {
	// SumSquares returns (F(0)² + ... + F(n)²) mod m with the named strategy.
	SumSquares(ctx context.Context, algo string, n *big.Int, m uint64) (uint64, error)
	// FibonacciMod returns F(k) mod m with the named strategy.
	FibonacciMod(ctx context.Context, algo string, k *big.Int, m uint64) (uint64, error)
	// Period returns the Pisano period π(m).
	Period(ctx context.Context, m uint64) (uint64, error)
	// ReduceIndex validates an index and modulus and reduces the index
	// modulo π(m) when it does not fit in a uint64.
	ReduceIndex(ctx context.Context, field string, index *big.Int, m uint64) (uint64, error)
}

// CalculatorService implements Service on top of a CalculatorFactory.
type CalculatorService struct {
	factory    fibonacci.CalculatorFactory
	cache      *fibonacci.TableCache
	maxModulus uint64
}

var _ Service = (*CalculatorService)(nil)

// NewCalculatorService creates a service. A zero maxModulus means no upper
// bound. Period tables are taken from the shared cache.
func NewCalculatorService(factory fibonacci.CalculatorFactory, maxModulus uint64) *CalculatorService {
	return &CalculatorService{
		factory:    factory,
		cache:      fibonacci.DefaultTableCache(),
		maxModulus: maxModulus,
	}
}

// SumSquares validates the request, reduces n if it does not fit in a
// uint64 and runs the strategy.
func (s *CalculatorService) SumSquares(ctx context.Context, algo string, n *big.Int, m uint64) (result uint64, err error) {
	ctx, done := s.trace(ctx, "SumSquares", algo, n, m)
	defer func() { done(err) }()

	calc, idx, err := s.prepare(ctx, algo, "n", n, m)
	if err != nil {
		return 0, err
	}
	result, err = calc.SumSquaresMod(ctx, idx, m)
	return result, apperrors.NewCalculationError(calc.Name(), err)
}

// FibonacciMod validates the request, reduces k if needed and runs the
// strategy.
func (s *CalculatorService) FibonacciMod(ctx context.Context, algo string, k *big.Int, m uint64) (result uint64, err error) {
	ctx, done := s.trace(ctx, "FibonacciMod", algo, k, m)
	defer func() { done(err) }()

	calc, idx, err := s.prepare(ctx, algo, "k", k, m)
	if err != nil {
		return 0, err
	}
	result, err = calc.FibonacciMod(ctx, idx, m)
	return result, apperrors.NewCalculationError(calc.Name(), err)
}

// Period returns π(m) from the period table cache.
func (s *CalculatorService) Period(ctx context.Context, m uint64) (period uint64, err error) {
	ctx, done := s.trace(ctx, "Period", "", nil, m)
	defer func() { done(err) }()

	if err := s.validateModulus(m); err != nil {
		return 0, err
	}
	table, err := s.cache.Get(ctx, m)
	if err != nil {
		return 0, err
	}
	return table.Period(), nil
}

// ReduceIndex validates the modulus and index and maps the index to a
// uint64 with the same residue modulo π(m). The CLI uses it before running
// several calculators on the same input; field names the index in
// validation errors.
func (s *CalculatorService) ReduceIndex(ctx context.Context, field string, index *big.Int, m uint64) (uint64, error) {
	if err := s.validateModulus(m); err != nil {
		return 0, err
	}
	if index == nil {
		return 0, apperrors.NewValidationError(field, "index is required", nil)
	}
	if index.Sign() < 0 {
		return 0, apperrors.NewValidationError(field, "index must be non-negative", index.String())
	}
	return fibonacci.NormalizeIndex(ctx, index, m)
}

func (s *CalculatorService) prepare(ctx context.Context, algo, field string, index *big.Int, m uint64) (fibonacci.Calculator, uint64, error) {
	idx, err := s.ReduceIndex(ctx, field, index, m)
	if err != nil {
		return nil, 0, err
	}

	calc, err := s.factory.Get(algo)
	if err != nil {
		var unknown *fibonacci.UnknownCalculatorError
		if errors.As(err, &unknown) {
			return nil, 0, apperrors.NewValidationError("algo", err.Error(), algo)
		}
		return nil, 0, err
	}
	return calc, idx, nil
}

func (s *CalculatorService) validateModulus(m uint64) error {
	if m == 0 {
		return apperrors.NewValidationError("modulus", "modulus must be a positive integer", m)
	}
	if s.maxModulus > 0 && m > s.maxModulus {
		return apperrors.NewValidationError("modulus",
			fmt.Sprintf("modulus exceeds the maximum of %d", s.maxModulus), m)
	}
	return nil
}

func (s *CalculatorService) trace(ctx context.Context, op, algo string, index *big.Int, m uint64) (context.Context, func(error)) {
	ctx, span := otel.Tracer("service").Start(ctx, op)
	attrs := []attribute.KeyValue{attribute.String("modulus", strconv.FormatUint(m, 10))}
	if algo != "" {
		attrs = append(attrs, attribute.String("algorithm", algo))
	}
	if index != nil {
		attrs = append(attrs, attribute.String("index", index.String()))
	}
	span.SetAttributes(attrs...)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
