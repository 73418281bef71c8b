// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elastic

import (
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/coordinate/coord"
)

// gaussianData draws features with distinct location and scale and a noisy linear response.
func gaussianData(seed uint64, m int, coef []float64, noise float64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	p := len(coef)
	x := mat.NewDense(m, p, nil)
	y := make([]float64, m)
	for i := 0; i < m; i++ {
		for j := 0; j < p; j++ {
			x.Set(i, j, rng.NormFloat64()*float64(j+1)+float64(j))
		}
		y[i] = 1.5 + floats.Dot(x.RawRowView(i), coef) + noise*rng.NormFloat64()
	}
	return x, y
}

// logisticData draws standard normal features and a Bernoulli response.
func logisticData(seed uint64, m int, coef []float64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	p := len(coef)
	x := mat.NewDense(m, p, nil)
	y := make([]float64, m)
	for i := 0; i < m; i++ {
		for j := 0; j < p; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
		if rng.Float64() < sigmoid(0.3+floats.Dot(x.RawRowView(i), coef)) {
			y[i] = 1
		}
	}
	return x, y
}

func quietOptions(t *testing.T, tol float64) *coord.Registry {
	t.Helper()
	r := coord.NewRegistry()
	require.NoError(t, r.SetInt(coord.OptPrintLevel, 0))
	require.NoError(t, r.SetReal(coord.OptTolerance, tol))
	require.NoError(t, r.SetReal(coord.OptSkipTol, tol))
	return r
}

func solve(t *testing.T, n int, step coord.StepFunc, obj coord.ObjectiveFunc, tol float64) *coord.Result {
	t.Helper()
	p := coord.Problem{
		N:         n,
		Step:      step,
		Objective: obj,
		Stop:      coord.Termination{Tolerance: tol, MaxIterations: 100000},
		Skip:      coord.SkipRule{Tol: tol, Min: 5, Max: 8, Restart: 10},
	}
	o, err := p.New(nil)
	require.NoError(t, err)
	return o.Fit(make([]float64, n), o.Init())
}

func residual(x *mat.Dense, y, beta []float64) []float64 {
	m, n := x.Dims()
	var eta mat.VecDense
	eta.MulVec(x, mat.NewVecDense(n, beta))
	r := make([]float64, m)
	floats.SubTo(r, y, eta.RawVector().Data)
	return r
}

func TestPenaltySolve(t *testing.T) {
	lasso := Penalty{Lambda: 0.5, Alpha: 1}
	assert.Equal(t, 0.0, lasso.Solve(0, 0.4, 1))
	assert.Equal(t, 0.0, lasso.Solve(0, -0.5, 1))
	assert.Equal(t, 0.25, lasso.Solve(0, 1, 2))
	assert.Equal(t, -0.25, lasso.Solve(0, -1, 2))

	ridge := Penalty{Lambda: 1, Alpha: 0}
	assert.Equal(t, 0.5, ridge.Solve(0, 1, 1))

	free := Penalty{Lambda: 3, Alpha: 0.5, Factor: []float64{0, 1}}
	assert.Equal(t, 2.0, free.Solve(0, 4, 2))
	assert.Equal(t, 2.5/3.5, free.Solve(1, 4, 2))
	assert.Equal(t, 0.0, free.Solve(0, 4, 0))

	assert.InDelta(t, 3*(0.25*4+0.5*2), free.Value([]float64{7, -2}), 1e-15)
	assert.Zero(t, (&Penalty{Alpha: 1}).Value([]float64{7, -2}))

	assert.Error(t, (&Penalty{Lambda: -1}).check(2))
	assert.Error(t, (&Penalty{Alpha: 1.5}).check(2))
	assert.Error(t, (&Penalty{Alpha: math.NaN()}).check(2))
	assert.Error(t, (&Penalty{Factor: []float64{1}}).check(2))
	assert.Error(t, (&Penalty{Factor: []float64{1, -1}}).check(2))
	assert.NoError(t, free.check(2))
}

func TestLeastSquaresActions(t *testing.T) {
	x, y := gaussianData(3, 20, []float64{1, -1, 2}, 0.1)
	s, err := NewLeastSquares(x, y, Penalty{Lambda: 0.1, Alpha: 0.5})
	require.NoError(t, err)

	beta := []float64{0.3, 0.5, -0.2}
	_, err = s.Step(beta, 0, coord.ActionFull, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, residual(x, y, beta), s.Residual(), 1e-10)

	// coordinate 1 moved from 0.5 to 0.2
	beta[1] = 0.2
	_, err = s.Step(beta, 2, coord.Action(-2), 0.3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, residual(x, y, beta), s.Residual(), 1e-10)

	before := slices.Clone(s.Residual())
	_, err = s.Step(beta, 0, coord.ActionNone, 0)
	require.NoError(t, err)
	assert.Equal(t, before, s.Residual())

	// the step minimizes the objective along the coordinate
	for k := range beta {
		xk, err := s.Step(beta, k, coord.ActionFull, 0)
		require.NoError(t, err)
		at := func(v float64) float64 {
			trial := slices.Clone(beta)
			trial[k] = v
			f, err := s.Objective(trial)
			require.NoError(t, err)
			return f
		}
		f := at(xk)
		assert.LessOrEqual(t, f, at(xk+1e-4))
		assert.LessOrEqual(t, f, at(xk-1e-4))
	}
	assert.InDeltaSlice(t, residual(x, y, beta), s.Residual(), 1e-10)
}

func TestSmoothActions(t *testing.T) {
	x, y := logisticData(5, 30, []float64{1, -1})
	s, err := NewSmooth(x, y, Logistic, Penalty{Lambda: 0.05, Alpha: 1})
	require.NoError(t, err)

	predictor := func(beta []float64) []float64 {
		var eta mat.VecDense
		eta.MulVec(x, mat.NewVecDense(len(beta), beta))
		return eta.RawVector().Data
	}

	beta := []float64{0.4, -0.1}
	_, err = s.Step(beta, 1, coord.ActionFull, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, predictor(beta), s.Predictor(), 1e-12)

	beta[0] = 0.9
	_, err = s.Step(beta, 1, coord.Action(-1), -0.5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, predictor(beta), s.Predictor(), 1e-12)

	for k := range beta {
		xk, err := s.Step(beta, k, coord.ActionFull, 0)
		require.NoError(t, err)
		trial := slices.Clone(beta)
		f0, err := s.Objective(trial)
		require.NoError(t, err)
		trial[k] = xk
		f1, err := s.Objective(trial)
		require.NoError(t, err)
		// a majorized step never increases the objective
		assert.LessOrEqual(t, f1, f0+1e-12)
	}
}

func TestSmoothMatchesLeastSquares(t *testing.T) {
	x, y := gaussianData(11, 60, []float64{0.5, -1, 0, 0.25}, 0.3)
	_, n := x.Dims()
	pen := Penalty{Lambda: 0.05, Alpha: 0.5}

	ls, err := NewLeastSquares(x, y, pen)
	require.NoError(t, err)
	want := solve(t, n, ls.Step, ls.Objective, 1e-8)
	require.Equal(t, coord.Converged, want.Status)

	// curvature estimated by finite differences
	estimated := Quadratic
	estimated.Curvature = 0
	for _, loss := range []Loss{Quadratic, estimated} {
		s, err := NewSmooth(x, y, loss, pen)
		require.NoError(t, err)
		got := solve(t, n, s.Step, s.Objective, 1e-8)
		require.Equal(t, coord.Converged, got.Status)
		assert.InDeltaSlice(t, want.X, got.X, 1e-6)
		assert.InDelta(t, want.F, got.F, 1e-8)
	}
}

func TestSmoothStepFailure(t *testing.T) {
	x, y := logisticData(7, 10, []float64{1})
	concave := Loss{
		Name:  "concave",
		Value: func(eta, y float64) float64 { return -eta * eta },
	}
	s, err := NewSmooth(x, y, concave, Penalty{Lambda: 0.1, Alpha: 1})
	require.NoError(t, err)
	res := solve(t, 1, s.Step, s.Objective, 1e-8)
	assert.Equal(t, coord.StepFailed, res.Status)
	assert.ErrorContains(t, res.Err, "curvature")

	_, err = NewSmooth(x, y, Loss{Name: "none"}, Penalty{})
	assert.Error(t, err)
	_, err = NewSmooth(x, append(slices.Clone(y[1:]), 0.5), Logistic, Penalty{})
	assert.ErrorContains(t, err, "logistic")
}

func TestFitRidge(t *testing.T) {
	x, y := gaussianData(1, 80, []float64{1, -2, 0.5}, 0.5)
	m, p := x.Dims()
	const lambda = 0.5

	model, err := Fit(x, y, &Config{Lambda: lambda, Alpha: 0}, quietOptions(t, 1e-10))
	require.NoError(t, err)
	require.Equal(t, coord.Converged, model.Status)
	assert.Zero(t, model.Intercept)

	var a mat.Dense
	a.Mul(x.T(), x)
	a.Scale(1/float64(m), &a)
	for j := 0; j < p; j++ {
		a.Set(j, j, a.At(j, j)+lambda)
	}
	var b mat.VecDense
	b.MulVec(x.T(), mat.NewVecDense(m, y))
	b.ScaleVec(1/float64(m), &b)
	var want mat.VecDense
	require.NoError(t, want.SolveVec(&a, &b))

	assert.InDeltaSlice(t, want.RawVector().Data, model.Coef, 1e-7)
	assert.Greater(t, model.NumEval, 0)
}

func TestFitLeastSquares(t *testing.T) {
	x, y := gaussianData(2, 50, []float64{1, -1, 0.5, 2}, 0.1)
	m, p := x.Dims()

	model, err := Fit(x, y, &Config{Intercept: true, Standardize: true}, quietOptions(t, 1e-10))
	require.NoError(t, err)
	require.Equal(t, coord.Converged, model.Status)

	a := mat.NewDense(m, p+1, nil)
	for i := 0; i < m; i++ {
		a.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			a.Set(i, j+1, x.At(i, j))
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var want mat.VecDense
	require.NoError(t, qr.SolveVecTo(&want, false, mat.NewVecDense(m, y)))

	assert.InDelta(t, want.AtVec(0), model.Intercept, 1e-6)
	assert.InDeltaSlice(t, want.RawVector().Data[1:], model.Coef, 1e-6)

	var fitted mat.VecDense
	fitted.MulVec(a, &want)
	assert.InDeltaSlice(t, fitted.RawVector().Data, model.Predict(x), 1e-6)
}

func TestFitNullModel(t *testing.T) {
	x, y := gaussianData(4, 40, []float64{0.2, -0.1, 0.3}, 1)
	m, p := x.Dims()

	ybar := floats.Sum(y) / float64(m)
	centered := slices.Clone(y)
	floats.AddConst(-ybar, centered)

	// smallest λ for which every standardized coefficient vanishes
	var lambdaMax float64
	col := make([]float64, m)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		mean := floats.Sum(col) / float64(m)
		floats.AddConst(-mean, col)
		sd := floats.Norm(col, 2) / math.Sqrt(float64(m))
		lambdaMax = max(lambdaMax, math.Abs(floats.Dot(col, centered))/(float64(m)*sd))
	}

	cfg := &Config{Lambda: 1.01 * lambdaMax, Alpha: 1, Intercept: true, Standardize: true}
	model, err := Fit(x, y, cfg, quietOptions(t, 1e-10))
	require.NoError(t, err)
	assert.Equal(t, coord.Converged, model.Status)
	assert.Equal(t, []float64{0, 0, 0}, model.Coef)
	assert.InDelta(t, ybar, model.Intercept, 1e-10)

	cfg.Lambda = 0.9 * lambdaMax
	model, err = Fit(x, y, cfg, quietOptions(t, 1e-10))
	require.NoError(t, err)
	assert.NotEqual(t, []float64{0, 0, 0}, model.Coef)
}

func TestFitLogistic(t *testing.T) {
	x, y := logisticData(9, 200, []float64{1.2, -0.8, 0, 0.4})
	m, p := x.Dims()
	const lambda = 0.02

	cfg := &Config{Family: Binomial, Lambda: lambda, Alpha: 1, Intercept: true}
	model, err := Fit(x, y, cfg, quietOptions(t, 1e-9))
	require.NoError(t, err)
	require.Equal(t, coord.Converged, model.Status)

	prob := model.Predict(x)
	for _, v := range prob {
		require.Greater(t, v, 0.0)
		require.Less(t, v, 1.0)
	}

	// optimality of the penalized likelihood
	diff := make([]float64, m)
	floats.SubTo(diff, prob, y)
	assert.InDelta(t, 0, floats.Sum(diff)/float64(m), 1e-6)
	col := make([]float64, m)
	for j := 0; j < p; j++ {
		g := floats.Dot(mat.Col(col, j, x), diff) / float64(m)
		if b := model.Coef[j]; b != 0 {
			assert.InDelta(t, 0, g+lambda*math.Copysign(1, b), 1e-5, "coef %d", j)
		} else {
			assert.LessOrEqual(t, math.Abs(g), lambda+1e-5, "coef %d", j)
		}
	}
	assert.Greater(t, model.Coef[0], 0.0)
	assert.Less(t, model.Coef[1], 0.0)
}

func TestFitBounds(t *testing.T) {
	x, y := gaussianData(6, 60, []float64{1, -2, 0.5}, 0.1)
	inf := math.Inf(1)

	cfg := &Config{
		Lambda:      0.01,
		Alpha:       1,
		Intercept:   true,
		Standardize: true,
		Lower:       []float64{0, 0, 0},
		Upper:       []float64{0.8, inf, inf},
	}
	model, err := Fit(x, y, cfg, quietOptions(t, 1e-10))
	require.NoError(t, err)
	require.Equal(t, coord.Converged, model.Status)

	assert.InDelta(t, 0.8, model.Coef[0], 1e-12)
	assert.Zero(t, model.Coef[1])
	assert.Greater(t, model.Coef[2], 0.0)
}

type noOptions struct{}

func (noOptions) Real(string) (float64, error) { return 0, coord.ErrMissingOption }
func (noOptions) Int(string) (int, error)      { return 0, coord.ErrMissingOption }

func TestFitInvalid(t *testing.T) {
	x, y := gaussianData(8, 10, []float64{1, 1}, 0.1)

	for name, cfg := range map[string]*Config{
		"nil":      nil,
		"family":   {Family: "poisson"},
		"lambda":   {Lambda: -1},
		"alpha":    {Alpha: 2},
		"lower":    {Lower: []float64{0}},
		"upper":    {Upper: []float64{0, 1, 2}},
		"bounds":   {Lower: []float64{1, 1}, Upper: []float64{0, 2}},
		"binomial": {Family: Binomial},
	} {
		_, err := Fit(x, y, cfg, quietOptions(t, 1e-8))
		assert.Error(t, err, name)
	}

	_, err := Fit(nil, y, &Config{}, nil)
	assert.Error(t, err)
	_, err = Fit(x, y[1:], &Config{}, nil)
	assert.ErrorContains(t, err, "responses")
	_, err = Fit(x, y, &Config{}, noOptions{})
	assert.ErrorIs(t, err, coord.ErrMissingOption)
}

func TestFitLog(t *testing.T) {
	x, y := gaussianData(10, 30, []float64{1, -1}, 0.1)
	r := quietOptions(t, 1e-8)
	require.NoError(t, r.SetInt(coord.OptPrintLevel, 2))

	var sb strings.Builder
	model, err := Fit(x, y, &Config{Lambda: 0.1, Alpha: 1, Intercept: true, Output: &sb}, r)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "RUNNING THE COORDINATE DESCENT CODE")
	assert.Contains(t, sb.String(), model.Status.String())
}
