package numdiff

import (
	"errors"
	"fmt"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)
var quartEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/4)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

type Bound [2]float64

// Partial estimates the derivatives of a scalar function along a single coordinate by finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
//
// # License
//
//   - https://github.com/scipy/scipy/blob/main/LICENSE.txt
type Partial struct {
	// Function of which to estimate the derivatives.
	// The argument x passed to this function is an n-vector.
	Object func(x []float64) float64
	// Finite difference method to use.
	Method Method
	// Lower and upper bounds on independent variables.
	// Use it to limit the range of function evaluation.
	Bounds []Bound
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = RelStep * sign(x0) * max(1, abs(x0)) with RelStep being selected automatically.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x0) * abs(x0) when RelStep is provided.
	RelStep float64
	// Absolute step size to use, possibly adjusted to fit into the bounds.
	// The RelStep is used when AbsStep is not provide.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
	// Don't check if x0 is out of bounds.
	NotChkBnd bool
}

// Check the parameters and returns the bounds of coordinate k.
func (p *Partial) Check(x0 []float64, k int) (lb, ub float64, err error) {

	lb, ub = math.Inf(-1), math.Inf(1)

	switch {
	case p.Method != Forward && p.Method != Central:
		err = errors.New("unknown method")
	case p.Object == nil:
		err = errors.New("object function is required")
	case k < 0 || k >= len(x0):
		err = fmt.Errorf("coordinate %d out of range", k)
	case p.Bounds != nil && len(p.Bounds) != len(x0):
		err = errors.New("invalid bound dimension")
	}
	if err != nil || p.Bounds == nil {
		return
	}

	if l := p.Bounds[k][0]; !math.IsNaN(l) {
		lb = l
	}
	if u := p.Bounds[k][1]; !math.IsNaN(u) {
		ub = u
	}
	switch {
	case lb > ub:
		err = errors.New("invalid bound range")
	case !p.NotChkBnd && (x0[k] < lb || x0[k] > ub):
		err = errors.New("x0 violates bound constraints")
	}
	return
}

// Slope approximates the first partial derivative ∂f/∂xₖ at x0.
// x0 is modified during the evaluation and restored before returning.
func (p *Partial) Slope(x0 []float64, k int) (d1 float64, err error) {

	lb, ub, err := p.Check(x0, k)
	if err != nil {
		return
	}

	x := x0[k]
	defer func() { x0[k] = x }()

	if p.Method == Central {
		h, oneSide := centralStep(x, math.Abs(p.absoluteStep(x, cubeEps)), lb, ub)
		if h == 0 {
			return 0, errors.New("bounds leave no room for a step")
		}
		if oneSide {
			f0 := p.Object(x0)
			d1, _ = p.oneSided(x0, k, x, h, f0)
		} else {
			d1, _ = p.central(x0, k, x, h, math.NaN())
		}
		return
	}

	h := forwardStep(x, p.absoluteStep(x, sqrtEps), 1, lb, ub)
	if h == 0 {
		return 0, errors.New("bounds leave no room for a step")
	}
	f0 := p.Object(x0)
	x0[k] = x + h
	d1 = (p.Object(x0) - f0) / (x0[k] - x)
	return
}

// Diff approximates the first and second partial derivatives ∂f/∂xₖ and ∂²f/∂xₖ² at x0.
// The second derivative is computed with a larger step than the first one to balance truncation and rounding errors.
// x0 is modified during the evaluation and restored before returning.
func (p *Partial) Diff(x0 []float64, k int) (d1, d2 float64, err error) {

	lb, ub, err := p.Check(x0, k)
	if err != nil {
		return
	}

	x := x0[k]
	defer func() { x0[k] = x }()

	f0 := p.Object(x0)

	if p.Method == Central {
		h1, o1 := centralStep(x, math.Abs(p.absoluteStep(x, cubeEps)), lb, ub)
		h2, o2 := centralStep(x, math.Abs(p.absoluteStep(x, quartEps)), lb, ub)
		if h1 == 0 || h2 == 0 {
			return 0, 0, errors.New("bounds leave no room for a step")
		}
		if o1 {
			d1, _ = p.oneSided(x0, k, x, h1, f0)
		} else {
			d1, _ = p.central(x0, k, x, h1, f0)
		}
		if o2 {
			_, d2 = p.oneSided(x0, k, x, h2, f0)
		} else {
			_, d2 = p.central(x0, k, x, h2, f0)
		}
		return
	}

	h1 := forwardStep(x, p.absoluteStep(x, sqrtEps), 1, lb, ub)
	h2 := forwardStep(x, p.absoluteStep(x, cubeEps), 2, lb, ub)
	if h1 == 0 || h2 == 0 {
		return 0, 0, errors.New("bounds leave no room for a step")
	}

	x0[k] = x + h1
	d1 = (p.Object(x0) - f0) / (x0[k] - x)

	x0[k] = x + h2
	f1 := p.Object(x0)
	x0[k] = x + 2*h2
	f2 := p.Object(x0)
	d2 = (f2 - 2*f1 + f0) / (h2 * h2)
	return
}

// central evaluates the symmetric differences around x with step h.
// f0 is only required by the second derivative.
// The first derivative divides by the exactly representable span.
func (p *Partial) central(x0 []float64, k int, x, h, f0 float64) (d1, d2 float64) {
	x0[k] = x - h
	fm := p.Object(x0)
	x0[k] = x + h
	fp := p.Object(x0)
	d1 = (fp - fm) / (x0[k] - (x - h))
	d2 = (fp - 2*f0 + fm) / (h * h)
	return
}

// oneSided evaluates the second order differences from x toward the sign of h.
func (p *Partial) oneSided(x0 []float64, k int, x, h, f0 float64) (d1, d2 float64) {
	x0[k] = x + h
	f1 := p.Object(x0)
	x0[k] = x + 2*h
	f2 := p.Object(x0)
	d1 = (4*f1 - 3*f0 - f2) / (x0[k] - x)
	d2 = (f2 - 2*f1 + f0) / (h * h)
	return
}

func (p *Partial) absoluteStep(v, eps float64) float64 {
	abs := p.AbsStep
	rel := p.RelStep
	if abs == 0 && rel == 0 {
		return math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
	}
	s := abs
	if s == 0 {
		s = math.Copysign(rel, v) * math.Abs(v)
	}
	if d := (v + s) - v; d == 0 {
		s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
	}
	return s
}

// forwardStep adjusts h so that x + span×h stays within [lb, ub],
// flipping the direction when only the opposite side has room.
func forwardStep(x, h, span, lb, ub float64) float64 {
	ld, ud := x-lb, ub-x
	reach := span * h
	violated := x+reach < lb || x+reach > ub
	fitting := math.Abs(reach) < math.Max(ld, ud)
	if violated && fitting {
		return -h
	} else if !fitting {
		if ud >= ld {
			return ud / span
		}
		return -ld / span
	}
	return h
}

// centralStep adjusts the positive step h so that x ± h stays within [lb, ub].
// When the range is too tight on one side, a one-sided step toward the wider side is used instead.
func centralStep(x, h, lb, ub float64) (step float64, oneSide bool) {
	ld, ud := x-lb, ub-x
	if ld >= h && ud >= h {
		return h, false
	}
	if ud >= ld {
		h = math.Min(h, 0.5*ud)
	} else {
		h = -math.Min(h, 0.5*ld)
	}
	if minDist := math.Min(ud, ld); math.Abs(h) <= minDist {
		return minDist, false
	}
	return h, true
}
