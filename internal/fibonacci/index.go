package fibonacci

import (
	"context"
	"errors"
	"math/big"
	"strings"
)

var (
	// ErrInvalidIndex is returned when an index is not a decimal integer.
	ErrInvalidIndex = errors.New("index must be a decimal integer")
	// ErrNegativeIndex is returned for an index below zero.
	ErrNegativeIndex = errors.New("index must be non-negative")
)

// ParseIndex parses a non-negative decimal integer of any size. Surrounding
// whitespace and a leading '+' are accepted.
func ParseIndex(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidIndex
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrInvalidIndex
	}
	if n.Sign() < 0 {
		return nil, ErrNegativeIndex
	}
	return n, nil
}

// NormalizeIndex maps n to a uint64 index with the same residue modulo π(m).
// Indices that already fit in a uint64 are returned unchanged; larger ones are
// reduced through the shared period table cache.
func NormalizeIndex(ctx context.Context, n *big.Int, m uint64) (uint64, error) {
	if n.Sign() < 0 {
		return 0, ErrNegativeIndex
	}
	if n.IsUint64() {
		return n.Uint64(), nil
	}
	table, err := DefaultTableCache().Get(ctx, m)
	if err != nil {
		return 0, err
	}
	period := new(big.Int).SetUint64(table.Period())
	return new(big.Int).Mod(n, period).Uint64(), nil
}
