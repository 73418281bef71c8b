// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coord

import (
	"errors"
	"fmt"
	"math"
)

type bndHint int

const (
	bndNo bndHint = iota
	bndLow
	bndBoth
	bndUp
)

// bounds holds the box constraints l ≤ x ≤ u classified against the infinite bound threshold.
// When no coordinate carries a finite bound the problem is unconstrained and hint is dropped.
// lower and upper alias the caller vectors and are never written.
type bounds struct {
	constrained  bool
	hint         []bndHint
	lower, upper []float64
}

// newBounds validates the bound vectors (each of length 0 or n) and classifies every coordinate.
// Bounds with |value| ≥ inf or NaN are treated as absent.
func newBounds(n int, l, u []float64, inf float64) (b bounds, err error) {

	if (len(l) != 0 && len(l) != n) || (len(u) != 0 && len(u) != n) {
		err = fmt.Errorf("bound constraint vectors need to be of size either 0 or %d", n)
		return
	}
	if len(l) == 0 && len(u) == 0 {
		return
	}

	hint := make([]bndHint, n)
	free := 0

	for i := 0; i < n; i++ {
		lo, up := math.Inf(-1), math.Inf(1)
		if len(l) > 0 {
			lo = l[i]
			if lo >= inf {
				return b, errors.New(fmt.Sprintf("lower bound at %d cannot be +Infinity", i))
			}
		}
		if len(u) > 0 {
			up = u[i]
			if up <= -inf {
				return b, errors.New(fmt.Sprintf("upper bound at %d cannot be -Infinity", i))
			}
		}
		hasL := !math.IsNaN(lo) && lo > -inf
		hasU := !math.IsNaN(up) && up < inf
		if hasL && hasU && lo > up {
			return b, errors.New(fmt.Sprintf("bound range at %d has no feasible solution", i))
		}
		switch {
		case hasL && hasU:
			hint[i] = bndBoth
		case hasL:
			hint[i] = bndLow
		case hasU:
			hint[i] = bndUp
		default:
			hint[i] = bndNo
			free++
		}
	}

	if free == n {
		return
	}

	b.constrained = true
	b.hint = hint
	b.lower, b.upper = l, u
	return
}

// projectAt clamps v into the feasible range of coordinate i.
func (b *bounds) projectAt(i int, v float64) float64 {
	if !b.constrained {
		return v
	}
	switch b.hint[i] {
	case bndBoth:
		v = math.Max(math.Min(v, b.upper[i]), b.lower[i])
	case bndLow:
		v = math.Max(b.lower[i], v)
	case bndUp:
		v = math.Min(v, b.upper[i])
	}
	return v
}

// project clamps every coordinate of x into the feasible region.
// It reports whether any coordinate was moved.
func (b *bounds) project(x []float64) (projected bool) {
	if !b.constrained {
		return
	}
	if len(x) > len(b.hint) {
		panic("bound check error")
	}
	for i, xi := range x {
		if p := b.projectAt(i, xi); p != xi {
			x[i] = p
			projected = true
		}
	}
	return
}

// count returns the number of coordinates with at least one finite bound.
func (b *bounds) count() (num int) {
	for _, h := range b.hint {
		if h != bndNo {
			num++
		}
	}
	return
}
