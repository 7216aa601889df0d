package fibonacci

import (
	"context"
	"sort"
)

// MockCalculator is a mock implementation of the Calculator interface.
// It is exported so that tests in other packages can inject fixed results.
type MockCalculator struct {
	// NameValue overrides the value returned by Name; "mock" when empty.
	NameValue string
	Result    uint64
	Err       error
	// Fn, when set, replaces Result/Err for both operations.
	Fn func(ctx context.Context, index, m uint64) (uint64, error)
}

// Name returns the calculator name.
func (m *MockCalculator) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

// FibonacciMod returns the pre-configured Result and Err, or calls Fn if provided.
func (m *MockCalculator) FibonacciMod(ctx context.Context, k, mod uint64) (uint64, error) {
	if m.Fn != nil {
		return m.Fn(ctx, k, mod)
	}
	return m.Result, m.Err
}

// SumSquaresMod returns the pre-configured Result and Err, or calls Fn if provided.
func (m *MockCalculator) SumSquaresMod(ctx context.Context, n, mod uint64) (uint64, error) {
	if m.Fn != nil {
		return m.Fn(ctx, n, mod)
	}
	return m.Result, m.Err
}

// TestFactory is a CalculatorFactory implementation designed for testing.
type TestFactory struct {
	calculators map[string]Calculator
}

// NewTestFactory creates a factory pre-populated with the given calculators.
func NewTestFactory(calculators map[string]Calculator) *TestFactory {
	if calculators == nil {
		calculators = make(map[string]Calculator)
	}
	return &TestFactory{calculators: calculators}
}

// Create returns the calculator by name.
func (f *TestFactory) Create(name string) (Calculator, error) {
	return f.Get(name)
}

// Get returns the calculator by name.
func (f *TestFactory) Get(name string) (Calculator, error) {
	calc, ok := f.calculators[name]
	if !ok {
		return nil, &UnknownCalculatorError{Name: name}
	}
	return calc, nil
}

// List returns all registered calculator names, sorted.
func (f *TestFactory) List() []string {
	names := make([]string, 0, len(f.calculators))
	for name := range f.calculators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register is a no-op for TestFactory as calculators are provided at construction.
func (f *TestFactory) Register(name string, creator func() coreCalculator) error {
	return nil
}

// GetAll returns all calculators.
func (f *TestFactory) GetAll() map[string]Calculator {
	result := make(map[string]Calculator, len(f.calculators))
	for k, v := range f.calculators {
		result[k] = v
	}
	return result
}
