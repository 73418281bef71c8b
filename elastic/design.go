// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elastic

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// design caches the columns of the design matrix and their mean squares.
type design struct {
	x     *mat.Dense
	y     []float64
	cols  [][]float64
	colSq []float64 // (1/m) ‖xⱼ‖²
}

func newDesign(x *mat.Dense, y []float64) (design, error) {
	if x == nil || x.IsEmpty() {
		return design{}, errors.New("elastic: empty design matrix")
	}
	m, n := x.Dims()
	if len(y) != m {
		return design{}, fmt.Errorf("elastic: %d responses for %d observations", len(y), m)
	}
	d := design{
		x:     x,
		y:     y,
		cols:  make([][]float64, n),
		colSq: make([]float64, n),
	}
	for j := range d.cols {
		d.cols[j] = mat.Col(nil, j, x)
		d.colSq[j] = floats.Dot(d.cols[j], d.cols[j]) / float64(m)
	}
	return d, nil
}

func (d *design) dims() (m, n int) {
	return d.x.Dims()
}

// predict stores the linear predictor X·β into dst.
func (d *design) predict(dst, beta []float64) {
	m, n := d.x.Dims()
	eta := mat.NewVecDense(m, dst)
	eta.MulVec(d.x, mat.NewVecDense(n, beta))
}
