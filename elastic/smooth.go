// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elastic

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/coordinate/coord"
	"github.com/curioloop/coordinate/numdiff"
)

// Loss is a per observation loss ℓ(η, y) of the linear predictor η.
type Loss struct {
	Name  string
	Value func(eta, y float64) float64
	// Upper bound of ∂²ℓ/∂η². When positive the coordinate step majorizes the loss with it,
	// otherwise the curvature is estimated by finite differences and must be positive.
	Curvature float64
	// Check reports whether y is a valid response, nil accepts any value.
	Check func(y float64) bool
}

// Logistic is the negative log-likelihood of a Bernoulli response y ∈ {0, 1}.
var Logistic = Loss{
	Name: "logistic",
	Value: func(eta, y float64) float64 {
		return softplus(eta) - y*eta
	},
	Curvature: 0.25,
	Check: func(y float64) bool {
		return y == 0 || y == 1
	},
}

// Quadratic is the squared error ½(y - η)².
var Quadratic = Loss{
	Name: "quadratic",
	Value: func(eta, y float64) float64 {
		r := y - eta
		return r * r / 2
	},
	Curvature: 1,
}

func softplus(v float64) float64 {
	if v > 0 {
		return v + math.Log1p(math.Exp(-v))
	}
	return math.Log1p(math.Exp(v))
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// Smooth provides the proximal coordinate Newton step of
//
//	min (1/m) ∑ᵢ ℓ(ηᵢ, yᵢ) + penalty(β),  η = Xβ
//
// The derivatives of the loss along a coordinate are obtained by finite differences.
// The linear predictor is cached between steps and refreshed according to the action signal.
// A Smooth value must not be shared between concurrent fits.
type Smooth struct {
	design
	Loss    Loss
	Penalty Penalty
	eta     []float64
	scratch []float64
	diff    numdiff.Partial
	k       int
	base    float64
	u       [1]float64
}

// NewSmooth creates the smooth loss step on design matrix x and response y.
func NewSmooth(x *mat.Dense, y []float64, loss Loss, pen Penalty) (*Smooth, error) {
	if loss.Value == nil {
		return nil, errors.New("elastic: loss function is required")
	}
	d, err := newDesign(x, y)
	if err != nil {
		return nil, err
	}
	m, n := d.dims()
	if err = pen.check(n); err != nil {
		return nil, err
	}
	if loss.Check != nil {
		for i, v := range y {
			if !loss.Check(v) {
				return nil, fmt.Errorf("elastic: response %g at %d is invalid for %s loss", v, i, loss.Name)
			}
		}
	}
	s := &Smooth{
		design:  d,
		Loss:    loss,
		Penalty: pen,
		eta:     make([]float64, m),
		scratch: make([]float64, m),
	}
	s.diff = numdiff.Partial{Object: s.along, Method: numdiff.Central}
	return s, nil
}

// along evaluates the mean loss with coordinate k moved from base to u[0].
func (s *Smooth) along(u []float64) float64 {
	col := s.cols[s.k]
	du := u[0] - s.base
	var sum float64
	for i, e := range s.eta {
		sum += s.Loss.Value(e+du*col[i], s.y[i])
	}
	return sum / float64(len(s.eta))
}

func (s *Smooth) sync(beta []float64, act coord.Action, delta float64) {
	if act.Full() {
		s.predict(s.eta, beta)
	} else if j, ok := act.LowRank(); ok {
		floats.AddScaled(s.eta, -delta, s.cols[j])
	}
}

// Step implements coord.StepFunc. With d₁, d₂ the first and second derivatives along coordinate k,
//
//	βₖ = S(d₂ βₖ - d₁, λα pfₖ) / ( d₂ + λ(1-α) pfₖ )
func (s *Smooth) Step(beta []float64, k int, act coord.Action, delta float64) (float64, error) {
	s.sync(beta, act, delta)
	if s.colSq[k] == 0 {
		return 0, nil
	}

	s.k, s.base = k, beta[k]
	s.u[0] = beta[k]

	var d1, d2 float64
	var err error
	if c := s.Loss.Curvature; c > 0 {
		d1, err = s.diff.Slope(s.u[:], 0)
		d2 = c * s.colSq[k]
	} else {
		d1, d2, err = s.diff.Diff(s.u[:], 0)
		if err == nil && !(d2 > 0) {
			err = fmt.Errorf("elastic: curvature %g along coordinate %d is not positive", d2, k)
		}
	}
	if err != nil {
		return 0, err
	}
	return s.Penalty.Solve(k, d2*beta[k]-d1, d2), nil
}

// Objective implements coord.ObjectiveFunc. The cached linear predictor is left untouched.
func (s *Smooth) Objective(beta []float64) (float64, error) {
	s.predict(s.scratch, beta)
	var sum float64
	for i, e := range s.scratch {
		sum += s.Loss.Value(e, s.y[i])
	}
	return sum/float64(len(s.scratch)) + s.Penalty.Value(beta), nil
}

// Predictor returns the cached linear predictor as seen by the last step.
// The returned slice must not be modified.
func (s *Smooth) Predictor() []float64 {
	return s.eta
}
