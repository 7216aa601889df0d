package fibonacci

import (
	"context"
	"fmt"
)

// Table holds one complete Pisano period of F(k) mod Modulus.
// Values[i] is F(i) mod Modulus for 0 <= i < π(Modulus).
type Table struct {
	Modulus uint64
	Values  []uint64
}

// NewTable generates the full Pisano period for m. Unlike the reference
// scan it never stops early, so the result can be reused for any index.
//
// Parameters:
//   - ctx: The context for managing cancellation; checked periodically.
//   - m: The modulus (must be positive).
//
// Returns:
//   - *Table: The period table.
//   - error: ErrInvalidModulus for m = 0, or the context error.
func NewTable(ctx context.Context, m uint64) (*Table, error) {
	if m == 0 {
		return nil, ErrInvalidModulus
	}
	if m == 1 {
		return &Table{Modulus: 1, Values: []uint64{0}}, nil
	}

	seq := []uint64{0, 1}
	for {
		last := len(seq)
		if last > 2 && seq[last-2] == 0 && seq[last-1] == 1 {
			seq = seq[:last-2]
			break
		}
		if last%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		seq = append(seq, addMod(seq[last-1], seq[last-2], m))
	}

	// Shrink to the period so cached tables do not keep append headroom.
	values := make([]uint64, len(seq))
	copy(values, seq)
	return &Table{Modulus: m, Values: values}, nil
}

// Period returns π(Modulus).
func (t *Table) Period() uint64 {
	return uint64(len(t.Values))
}

// At returns F(k) mod Modulus.
func (t *Table) At(k uint64) uint64 {
	return t.Values[k%uint64(len(t.Values))]
}

// String summarises the table without dumping its values.
func (t *Table) String() string {
	return fmt.Sprintf("pisano(%d) period=%d", t.Modulus, len(t.Values))
}
