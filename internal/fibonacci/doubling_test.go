package fibonacci

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"
)

func TestFastDoublingMod(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for _, m := range []uint64{2, 10, 97, 1 << 32, math.MaxUint64} {
		for k := uint64(0); k <= 300; k++ {
			fk, fk1, err := fastDoublingMod(ctx, k, m)
			if err != nil {
				t.Fatalf("fastDoublingMod(%d, %d): %v", k, m, err)
			}
			if want := fibModOracle(k, m); fk != want {
				t.Errorf("F(%d) mod %d = %d, want %d", k, m, fk, want)
			}
			if want := fibModOracle(k+1, m); fk1 != want {
				t.Errorf("F(%d) mod %d = %d, want %d", k+1, m, fk1, want)
			}
		}
	}
}

func TestFastDoublingMod_LargeIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// F(k) mod m for a large k is checked against a big.Int matrix power.
	k := uint64(1_000_000_007)
	m := uint64(1_000_000_009)
	got, _, err := fastDoublingMod(ctx, k, m)
	if err != nil {
		t.Fatal(err)
	}
	if want := matrixFibMod(k, m); got != want {
		t.Errorf("F(%d) mod %d = %d, want %d", k, m, got, want)
	}
}

func TestFastDoublingMod_Errors(t *testing.T) {
	t.Parallel()

	if _, _, err := fastDoublingMod(context.Background(), 3, 0); !errors.Is(err, ErrInvalidModulus) {
		t.Errorf("expected ErrInvalidModulus, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := fastDoublingMod(ctx, 3, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	fk, fk1, err := fastDoublingMod(context.Background(), math.MaxUint64, 1)
	if err != nil || fk != 0 || fk1 != 0 {
		t.Errorf("modulus 1 = (%d, %d, %v), want (0, 0, nil)", fk, fk1, err)
	}
}

// matrixFibMod raises [[1,1],[1,0]] to the k-th power with math/big.
func matrixFibMod(k, m uint64) uint64 {
	mod := new(big.Int).SetUint64(m)
	mul := func(a, b [4]*big.Int) [4]*big.Int {
		var r [4]*big.Int
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				x := new(big.Int).Mul(a[2*i], b[j])
				x.Add(x, new(big.Int).Mul(a[2*i+1], b[2+j]))
				r[2*i+j] = x.Mod(x, mod)
			}
		}
		return r
	}
	result := [4]*big.Int{big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(1)}
	base := [4]*big.Int{big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(0)}
	for ; k > 0; k >>= 1 {
		if k&1 == 1 {
			result = mul(result, base)
		}
		base = mul(base, base)
	}
	return result[1].Uint64()
}
