package fibonacci

import (
	"context"
	"math/bits"
)

// fastDoublingMod computes the pair (F(k) mod m, F(k+1) mod m) with the fast
// doubling identities:
//
//	F(2j)   = F(j) * (2*F(j+1) - F(j))  mod m
//	F(2j+1) = F(j+1)² + F(j)²           mod m
//
// It walks the bits of k from the most significant one, so the cost is
// O(log k) regardless of the modulus. Products are formed on 128 bits, which
// keeps every uint64 modulus exact.
func fastDoublingMod(ctx context.Context, k, m uint64) (fk, fk1 uint64, err error) {
	if m == 0 {
		return 0, 0, ErrInvalidModulus
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if m == 1 {
		return 0, 0, nil
	}

	fk, fk1 = 0, 1
	for i := bits.Len64(k) - 1; i >= 0; i-- {
		t := subMod(addMod(fk1, fk1, m), fk, m)
		f2j := mulMod(fk, t, m)
		f2j1 := addMod(mulMod(fk1, fk1, m), mulMod(fk, fk, m), m)
		fk, fk1 = f2j, f2j1

		if (k>>uint(i))&1 == 1 {
			fk, fk1 = fk1, addMod(fk, fk1, m)
		}
	}
	return fk, fk1, nil
}
