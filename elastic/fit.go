// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elastic

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/curioloop/coordinate/coord"
)

// Family selects the loss of the generalized linear model.
type Family string

const (
	Gaussian Family = "gaussian"
	Binomial Family = "binomial"
)

// Config specifies an elastic-net generalized linear model.
type Config struct {
	Family      Family  // Defaults to Gaussian
	Lambda      float64 // Overall penalty strength λ
	Alpha       float64 // Mixing between ridge (α = 0) and lasso (α = 1)
	Intercept   bool    // Fit an unpenalized intercept
	Standardize bool    // Scale the features to unit variance before fitting
	// Optional bounds on the coefficients in the original feature scale, each of length 0 or p.
	Lower, Upper []float64
	// Destination of the optimizer log, nil writes to stdout.
	Output io.Writer
}

func (c *Config) family() Family {
	if c.Family == "" {
		return Gaussian
	}
	return c.Family
}

func (c *Config) check(x *mat.Dense, y []float64) error {
	if x == nil || x.IsEmpty() {
		return errors.New("elastic: empty design matrix")
	}
	m, p := x.Dims()
	switch {
	case c.family() != Gaussian && c.family() != Binomial:
		return fmt.Errorf("elastic: unknown family %q", c.Family)
	case len(y) != m:
		return fmt.Errorf("elastic: %d responses for %d observations", len(y), m)
	case c.Lower != nil && len(c.Lower) != p:
		return fmt.Errorf("elastic: lower bound need to be of size either 0 or %d", p)
	case c.Upper != nil && len(c.Upper) != p:
		return fmt.Errorf("elastic: upper bound need to be of size either 0 or %d", p)
	}
	return nil
}

// Model is a fitted elastic-net generalized linear model in the original feature scale.
type Model struct {
	Family    Family
	Intercept float64
	Coef      []float64
	Status    coord.Status
	coord.Info
}

// Predict returns the fitted mean response for each row of x.
func (m *Model) Predict(x *mat.Dense) []float64 {
	r, c := x.Dims()
	eta := mat.NewVecDense(r, nil)
	eta.MulVec(x, mat.NewVecDense(c, m.Coef))
	out := eta.RawVector().Data
	floats.AddConst(m.Intercept, out)
	if m.Family == Binomial {
		for i, v := range out {
			out[i] = sigmoid(v)
		}
	}
	return out
}

// Fit solves the elastic-net problem of cfg on design matrix x and response y with the coordinate
// descent optimizer configured by opts. A nil opts uses the registered defaults.
//
// The returned model carries the final optimizer status. Warnings such as reaching the iteration limit
// are not errors, while a failed coordinate step is reported together with the last valid model.
func Fit(x *mat.Dense, y []float64, cfg *Config, opts coord.Options) (*Model, error) {

	if cfg == nil {
		return nil, errors.New("elastic: config is required")
	}
	if err := cfg.check(x, y); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = coord.NewRegistry()
	}

	m, p := x.Dims()
	off := 0
	if cfg.Intercept {
		off = 1
	}
	n := p + off

	d := mat.NewDense(m, n, nil)
	mean := make([]float64, p)
	scale := make([]float64, p)
	col := make([]float64, m)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		scale[j] = 1
		if cfg.Standardize {
			var sd float64
			if cfg.Intercept {
				mean[j], sd = stat.PopMeanStdDev(col, nil)
			} else {
				sd = floats.Norm(col, 2) / math.Sqrt(float64(m))
			}
			if sd > 0 {
				scale[j] = sd
			}
		}
		for i, v := range col {
			col[i] = (v - mean[j]) / scale[j]
		}
		d.SetCol(j+off, col)
	}

	factor := make([]float64, n)
	for j := range factor {
		factor[j] = 1
	}
	if cfg.Intercept {
		for i := 0; i < m; i++ {
			d.Set(i, 0, 1)
		}
		factor[0] = 0
	}

	var lower, upper []float64
	if cfg.Lower != nil {
		lower = make([]float64, n)
		for j := range lower {
			lower[j] = math.Inf(-1)
		}
		for j, l := range cfg.Lower {
			lower[j+off] = l * scale[j]
		}
	}
	if cfg.Upper != nil {
		upper = make([]float64, n)
		for j := range upper {
			upper[j] = math.Inf(1)
		}
		for j, u := range cfg.Upper {
			upper[j+off] = u * scale[j]
		}
	}

	pen := Penalty{Lambda: cfg.Lambda, Alpha: cfg.Alpha, Factor: factor}

	prob := coord.Problem{N: n, Lower: lower, Upper: upper}
	switch cfg.family() {
	case Gaussian:
		s, err := NewLeastSquares(d, y, pen)
		if err != nil {
			return nil, err
		}
		prob.Step, prob.Objective = s.Step, s.Objective
	case Binomial:
		s, err := NewSmooth(d, y, Logistic, pen)
		if err != nil {
			return nil, err
		}
		prob.Step, prob.Objective = s.Step, s.Objective
	}

	level, err := prob.Configure(opts)
	if err != nil {
		return nil, err
	}
	o, err := prob.New(&coord.Logger{Level: level, Msg: cfg.Output, Out: cfg.Output})
	if err != nil {
		return nil, err
	}

	beta := make([]float64, n)
	res := o.Fit(beta, o.Init())

	model := &Model{
		Family: cfg.family(),
		Coef:   make([]float64, p),
		Status: res.Status,
		Info:   res.Info,
	}
	for j := range model.Coef {
		model.Coef[j] = beta[j+off] / scale[j]
	}
	if cfg.Intercept {
		model.Intercept = beta[0] - floats.Dot(model.Coef, mean)
	}

	if res.Err != nil {
		return model, fmt.Errorf("elastic: %v: %w", res.Status, res.Err)
	}
	return model, nil
}
