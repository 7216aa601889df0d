package fibonacci

import (
	"context"
	"errors"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

// failingCore always returns err.
type failingCore struct{ err error }

func (f failingCore) Name() string { return "failing" }
func (f failingCore) FibModCore(ctx context.Context, k, m uint64) (uint64, error) {
	return 0, f.err
}

func counterValue(t *testing.T, algo, operation, status string) float64 {
	t.Helper()
	var metric dto.Metric
	if err := calculationsTotal.WithLabelValues(algo, operation, status).Write(&metric); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestNewCalculator_NilCore(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("NewCalculator(nil) should panic")
		}
	}()
	NewCalculator(nil)
}

func TestFibCalculator_Operations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, calc := range NewDefaultFactory().GetAll() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got, err := calc.FibonacciMod(ctx, 10, 10); err != nil || got != 5 {
				t.Errorf("FibonacciMod(10, 10) = %d, %v; want 5", got, err)
			}
			if got, err := calc.SumSquaresMod(ctx, 7, 10); err != nil || got != 3 {
				t.Errorf("SumSquaresMod(7, 10) = %d, %v; want 3", got, err)
			}
			if _, err := calc.FibonacciMod(ctx, 10, 0); !errors.Is(err, ErrInvalidModulus) {
				t.Errorf("FibonacciMod with m=0: %v", err)
			}
			if _, err := calc.SumSquaresMod(ctx, 10, 0); !errors.Is(err, ErrInvalidModulus) {
				t.Errorf("SumSquaresMod with m=0: %v", err)
			}
		})
	}
}

func TestFibCalculator_PropagatesCoreErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	calc := NewCalculator(failingCore{err: boom})
	ctx := context.Background()

	if calc.Name() != "failing" {
		t.Errorf("Name() = %q", calc.Name())
	}
	if _, err := calc.FibonacciMod(ctx, 5, 10); !errors.Is(err, boom) {
		t.Errorf("FibonacciMod error = %v, want boom", err)
	}
	if _, err := calc.SumSquaresMod(ctx, 5, 10); !errors.Is(err, boom) {
		t.Errorf("SumSquaresMod error = %v, want boom", err)
	}
	// Base cases never reach the core.
	if got, err := calc.SumSquaresMod(ctx, 1, 10); err != nil || got != 1 {
		t.Errorf("SumSquaresMod(1, 10) = %d, %v; want 1, nil", got, err)
	}
}

func TestFibCalculator_RecordsMetrics(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(constCore{value: 2})
	ctx := context.Background()

	// Other tests may share the "const" label, so only deltas are compared.
	beforeOK := counterValue(t, "const", OperationSumSquaresMod, "success")
	beforeErr := counterValue(t, "const", OperationFibonacciMod, "error")

	if _, err := calc.SumSquaresMod(ctx, 9, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := calc.FibonacciMod(ctx, 9, 0); err == nil {
		t.Fatal("expected an error for m=0")
	}

	if delta := counterValue(t, "const", OperationSumSquaresMod, "success") - beforeOK; delta < 1 {
		t.Errorf("success counter grew by %v, want at least 1", delta)
	}
	if delta := counterValue(t, "const", OperationFibonacciMod, "error") - beforeErr; delta < 1 {
		t.Errorf("error counter grew by %v, want at least 1", delta)
	}
}

func TestFibCalculator_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calc := NewCalculator(FastDoubling{})
	if _, err := calc.SumSquaresMod(ctx, 1000, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
