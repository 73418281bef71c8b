// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elastic

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/coordinate/coord"
)

// LeastSquares provides the coordinate step of the elastic-net penalized least squares
//
//	min (1/2m) ‖y - Xβ‖² + penalty(β)
//
// The residual r = y - Xβ is cached between steps and refreshed according to the action signal:
// rebuilt with a matrix-vector product on full requests and patched with a single column otherwise.
// A LeastSquares value must not be shared between concurrent fits.
type LeastSquares struct {
	design
	Penalty Penalty
	resid   []float64
	scratch []float64
}

// NewLeastSquares creates the least squares step on design matrix x and response y.
func NewLeastSquares(x *mat.Dense, y []float64, pen Penalty) (*LeastSquares, error) {
	d, err := newDesign(x, y)
	if err != nil {
		return nil, err
	}
	m, n := d.dims()
	if err = pen.check(n); err != nil {
		return nil, err
	}
	return &LeastSquares{
		design:  d,
		Penalty: pen,
		resid:   make([]float64, m),
		scratch: make([]float64, m),
	}, nil
}

func (s *LeastSquares) sync(beta []float64, act coord.Action, delta float64) {
	if act.Full() {
		s.predict(s.resid, beta)
		floats.SubTo(s.resid, s.y, s.resid)
	} else if j, ok := act.LowRank(); ok {
		floats.AddScaled(s.resid, delta, s.cols[j])
	}
}

// Step implements coord.StepFunc with the naive update
//
//	zₖ = (1/m) xₖᵀ r + (1/m) ‖xₖ‖² βₖ
//	βₖ = S(zₖ, λα pfₖ) / ( (1/m) ‖xₖ‖² + λ(1-α) pfₖ )
func (s *LeastSquares) Step(beta []float64, k int, act coord.Action, delta float64) (float64, error) {
	s.sync(beta, act, delta)
	if s.colSq[k] == 0 {
		return 0, nil
	}
	m, _ := s.dims()
	z := floats.Dot(s.cols[k], s.resid)/float64(m) + s.colSq[k]*beta[k]
	return s.Penalty.Solve(k, z, s.colSq[k]), nil
}

// Objective implements coord.ObjectiveFunc. The cached residual is left untouched.
func (s *LeastSquares) Objective(beta []float64) (float64, error) {
	s.predict(s.scratch, beta)
	floats.SubTo(s.scratch, s.y, s.scratch)
	m, _ := s.dims()
	rss := floats.Dot(s.scratch, s.scratch)
	return rss/(2*float64(m)) + s.Penalty.Value(beta), nil
}

// Residual returns the cached residual as seen by the last step.
// The returned slice must not be modified.
func (s *LeastSquares) Residual() []float64 {
	return s.resid
}
