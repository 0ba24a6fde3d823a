// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package frame

import (
	"fmt"
	"math"
	"math/big"
)

// Rational is a time base: one tick lasts Num/Den seconds.
type Rational struct {
	Num, Den int64
}

// Common time bases.
var (
	// Microseconds is the 1/1000000 time base.
	Microseconds = Rational{1, 1_000_000}

	// MPEG is the 90 kHz clock used by MPEG transport streams.
	MPEG = Rational{1, 90_000}
)

// Valid reports whether r can be used as a time base.
func (r Rational) Valid() bool { return r.Num > 0 && r.Den > 0 }

func (r Rational) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// Rescale converts pts from time base from to time base to, rounding to
// the nearest tick with halves away from zero. NoPTS is passed through.
// Results that do not fit in int64 saturate. Invalid time bases yield
// NoPTS.
func Rescale(pts int64, from, to Rational) int64 {
	if pts == NoPTS || !from.Valid() || !to.Valid() {
		return NoPTS
	}
	if from == to {
		return pts
	}
	// pts * from.Num * to.Den / (from.Den * to.Num)
	num := new(big.Int).Mul(big.NewInt(pts), big.NewInt(from.Num))
	num.Mul(num, big.NewInt(to.Den))
	den := new(big.Int).Mul(big.NewInt(from.Den), big.NewInt(to.Num))

	q, m := new(big.Int).QuoRem(num, den, new(big.Int))
	m.Abs(m).Lsh(m, 1)
	if m.Cmp(den) >= 0 {
		if num.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	if !q.IsInt64() {
		if q.Sign() < 0 {
			return math.MinInt64 + 1
		}
		return math.MaxInt64
	}
	return q.Int64()
}
