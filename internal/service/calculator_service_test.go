package service

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
)

func bigIndex(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad test index %q", s)
	}
	return n
}

// TestNewCalculatorService tests the constructor.
func TestNewCalculatorService(t *testing.T) {
	t.Parallel()
	svc := NewCalculatorService(fibonacci.NewDefaultFactory(), 1000)
	if svc.factory == nil || svc.cache == nil {
		t.Fatal("service dependencies should be set")
	}
	if svc.maxModulus != 1000 {
		t.Errorf("expected maxModulus 1000, got %d", svc.maxModulus)
	}
}

func TestSumSquares(t *testing.T) {
	t.Parallel()
	svc := NewCalculatorService(fibonacci.NewDefaultFactory(), 1000)

	tests := []struct {
		name   string
		algo   string
		n      string
		m      uint64
		expect uint64
	}{
		{"base zero", fibonacci.AlgoPisano, "0", 10, 0},
		{"base one", fibonacci.AlgoPisano, "1", 10, 1},
		{"six", fibonacci.AlgoPisano, "6", 10, 4},
		{"seven", fibonacci.AlgoCached, "7", 10, 3},
		{"max uint64", fibonacci.AlgoDoubling, "18446744073709551615", 10, 0},
		{"2^64", fibonacci.AlgoPisano, "18446744073709551616", 10, 9},
		{"10^30", fibonacci.AlgoCached, "1000000000000000000000000000000", 10, 5},
		{"other modulus", fibonacci.AlgoDoubling, "7", 100, 73},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := svc.SumSquares(context.Background(), tc.algo, bigIndex(t, tc.n), tc.m)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expect {
				t.Errorf("SumSquares(%s, %s, %d) = %d, want %d", tc.algo, tc.n, tc.m, got, tc.expect)
			}
		})
	}
}

func TestFibonacciModAndPeriod(t *testing.T) {
	t.Parallel()
	svc := NewCalculatorService(fibonacci.NewDefaultFactory(), 0)
	ctx := context.Background()

	got, err := svc.FibonacciMod(ctx, fibonacci.AlgoDoubling, big.NewInt(100), 10)
	if err != nil || got != 5 {
		t.Errorf("FibonacciMod(100, 10) = %d, %v; want 5", got, err)
	}

	periods := map[uint64]uint64{}
	for _, m := range []uint64{2, 3, 10, 100} {
		p, err := svc.Period(ctx, m)
		if err != nil {
			t.Fatalf("Period(%d): %v", m, err)
		}
		periods[m] = p
	}
	want := map[uint64]uint64{2: 3, 3: 8, 10: 60, 100: 300}
	if diff := cmp.Diff(want, periods); diff != "" {
		t.Errorf("periods mismatch (-want +got):\n%s", diff)
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()
	svc := NewCalculatorService(fibonacci.NewDefaultFactory(), 1000)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"zero modulus", func() error {
			_, err := svc.SumSquares(ctx, fibonacci.AlgoPisano, big.NewInt(5), 0)
			return err
		}, "modulus"},
		{"modulus above max", func() error {
			_, err := svc.SumSquares(ctx, fibonacci.AlgoPisano, big.NewInt(5), 1001)
			return err
		}, "modulus"},
		{"negative n", func() error {
			_, err := svc.SumSquares(ctx, fibonacci.AlgoPisano, big.NewInt(-1), 10)
			return err
		}, "n"},
		{"missing k", func() error {
			_, err := svc.FibonacciMod(ctx, fibonacci.AlgoPisano, nil, 10)
			return err
		}, "k"},
		{"unknown algo", func() error {
			_, err := svc.FibonacciMod(ctx, "matrix", big.NewInt(5), 10)
			return err
		}, "algo"},
		{"period modulus", func() error {
			_, err := svc.Period(ctx, 0)
			return err
		}, "modulus"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.call()
			var vErr apperrors.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Errorf("field = %q, want %q", vErr.Field, tc.field)
			}
		})
	}
}

func TestCalculationErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("calculation failed")
	factory := fibonacci.NewTestFactory(map[string]fibonacci.Calculator{
		"broken": &fibonacci.MockCalculator{NameValue: "Broken", Err: boom},
		"fixed":  &fibonacci.MockCalculator{Result: 7},
	})
	svc := NewCalculatorService(factory, 0)
	ctx := context.Background()

	_, err := svc.SumSquares(ctx, "broken", big.NewInt(10), 10)
	var calcErr apperrors.CalculationError
	if !errors.As(err, &calcErr) || calcErr.Algorithm != "Broken" {
		t.Fatalf("expected CalculationError from Broken, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("the cause should be preserved")
	}

	got, err := svc.FibonacciMod(ctx, "fixed", big.NewInt(10), 10)
	if err != nil || got != 7 {
		t.Errorf("FibonacciMod = %d, %v; want 7, nil", got, err)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()
	svc := NewCalculatorService(fibonacci.NewDefaultFactory(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.SumSquares(ctx, fibonacci.AlgoDoubling, big.NewInt(1000), 10)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReduceIndex(t *testing.T) {
	t.Parallel()
	svc := NewCalculatorService(fibonacci.NewDefaultFactory(), 1000)
	ctx := context.Background()

	got, err := svc.ReduceIndex(ctx, "n", bigIndex(t, "1000000000000000000000000000000"), 10)
	if err != nil || got != 40 {
		t.Errorf("ReduceIndex(10^30, 10) = %d, %v; want 40", got, err)
	}
	if got, err := svc.ReduceIndex(ctx, "n", big.NewInt(77), 10); err != nil || got != 77 {
		t.Errorf("ReduceIndex(77, 10) = %d, %v; want 77", got, err)
	}
	if _, err := svc.ReduceIndex(ctx, "n", big.NewInt(1), 5000); !apperrors.IsValidationError(err) {
		t.Errorf("expected a ValidationError for a modulus above the limit, got %v", err)
	}
}
