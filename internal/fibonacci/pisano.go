// Package fibonacci computes Fibonacci residues and the sum of squares of
// Fibonacci numbers modulo m without ever materialising F(n).
//
// The reference path relies on the Pisano period π(m): the sequence F(k) mod m
// is periodic, so F(k) mod m = F(k mod π(m)) mod m. For m = 10 the period is
// 60, which bounds the work independently of k. The sum of squares uses the
// identity
//
//	F(0)² + F(1)² + ... + F(n)² = F(n) · F(n+1)
//
// so S(n) mod m only needs two residues.
package fibonacci

import (
	"context"
	"errors"
	"math"
)

const (
	// LastDigitModulus is the modulus that yields the last decimal digit.
	LastDigitModulus uint64 = 10
	// PisanoPeriodTen is π(10).
	PisanoPeriodTen = 60

	// cancelCheckInterval is the number of generated terms between two
	// context checks while scanning a period.
	cancelCheckInterval = 4096
)

// ErrInvalidModulus is returned when the modulus is zero.
var ErrInvalidModulus = errors.New("modulus must be a positive integer")

// FibonacciMod returns F(k) mod m using the Pisano period scan.
//
// The scan generates F(i) mod m from the literal pair [0, 1] until the last
// two generated values are 0, 1 again, which closes one full period of
// length L, and then returns the value at index k mod L. The period check
// runs before anything else on every step; right after it, if the table
// already reaches index k, that value is returned without completing the
// period.
//
// m = 1 always yields 0. m = 0 returns ErrInvalidModulus.
func FibonacciMod(k, m uint64) (uint64, error) {
	return scanFibonacciMod(context.Background(), k, m)
}

// scanFibonacciMod is FibonacciMod with cancellation.
func scanFibonacciMod(ctx context.Context, k, m uint64) (uint64, error) {
	if m == 0 {
		return 0, ErrInvalidModulus
	}
	if m == 1 {
		return 0, nil
	}
	if k <= 1 {
		return k, nil
	}

	seq := []uint64{0, 1}
	for i := uint64(2); ; i++ {
		last := len(seq)
		if last > 2 && seq[last-2] == 0 && seq[last-1] == 1 {
			seq = seq[:last-2]
			break
		}
		if i-1 == k {
			return seq[last-1], nil
		}
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		seq = append(seq, addMod(seq[last-1], seq[last-2], m))
	}

	return seq[k%uint64(len(seq))], nil
}

// Period returns the Pisano period π(m).
func Period(m uint64) (uint64, error) {
	table, err := NewTable(context.Background(), m)
	if err != nil {
		return 0, err
	}
	return table.Period(), nil
}

// SumSquaresLastDigit returns the last digit of F(0)² + F(1)² + ... + F(n)².
func SumSquaresLastDigit(n uint64) uint64 {
	// LastDigitModulus is non-zero, so the reference scan cannot fail.
	d, _ := SumSquaresMod(n, LastDigitModulus)
	return d
}

// SumSquaresMod returns (F(0)² + ... + F(n)²) mod m through the reference
// Pisano scan.
func SumSquaresMod(n, m uint64) (uint64, error) {
	return sumSquaresWith(context.Background(), scanFibonacciMod, n, m)
}

// fibModFunc computes F(k) mod m.
type fibModFunc func(ctx context.Context, k, m uint64) (uint64, error)

// sumSquaresWith evaluates S(n) = F(n)·F(n+1) mod m with the given residue
// function. For n = MaxUint64, F(n+1) is derived as F(n) + F(n-1).
func sumSquaresWith(ctx context.Context, fib fibModFunc, n, m uint64) (uint64, error) {
	if m == 0 {
		return 0, ErrInvalidModulus
	}
	if n <= 1 {
		return n % m, nil
	}

	a, err := fib(ctx, n, m)
	if err != nil {
		return 0, err
	}

	var b uint64
	if n == math.MaxUint64 {
		prev, err := fib(ctx, n-1, m)
		if err != nil {
			return 0, err
		}
		b = addMod(a, prev, m)
	} else {
		b, err = fib(ctx, n+1, m)
		if err != nil {
			return 0, err
		}
	}

	return mulMod(a, b, m), nil
}
