// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elastic

import (
	"errors"
	"fmt"
	"math"
)

// Penalty is the elastic-net regularization
//
//	λ ∑ⱼ pfⱼ ( (1-α)/2 βⱼ² + α |βⱼ| )
//
// Factor holds the per coordinate pfⱼ; a nil Factor weights every coordinate by 1.
type Penalty struct {
	Lambda float64
	Alpha  float64
	Factor []float64
}

func (p *Penalty) check(n int) error {
	switch {
	case math.IsNaN(p.Lambda) || p.Lambda < 0:
		return errors.New("elastic: lambda must not less than 0")
	case math.IsNaN(p.Alpha) || p.Alpha < 0 || p.Alpha > 1:
		return errors.New("elastic: alpha must be in [0, 1]")
	case p.Factor != nil && len(p.Factor) != n:
		return fmt.Errorf("elastic: penalty factor need to be of size either 0 or %d", n)
	}
	for j, f := range p.Factor {
		if math.IsNaN(f) || f < 0 {
			return fmt.Errorf("elastic: penalty factor at %d must not less than 0", j)
		}
	}
	return nil
}

func (p *Penalty) factor(k int) float64 {
	if p.Factor == nil {
		return 1
	}
	return p.Factor[k]
}

// Solve minimizes the one dimensional model
//
//	½ c b² - z b + λ pfₖ ( (1-α)/2 b² + α |b| )
//
// where c is the curvature of the smooth part along coordinate k.
func (p *Penalty) Solve(k int, z, c float64) float64 {
	pf := p.factor(k)
	den := c + p.Lambda*(1-p.Alpha)*pf
	if den <= 0 {
		return 0
	}
	return softThreshold(z, p.Lambda*p.Alpha*pf) / den
}

// Value returns the penalty at beta.
func (p *Penalty) Value(beta []float64) float64 {
	if p.Lambda == 0 {
		return 0
	}
	var sum float64
	for j, b := range beta {
		if pf := p.factor(j); pf != 0 {
			sum += pf * ((1-p.Alpha)/2*b*b + p.Alpha*math.Abs(b))
		}
	}
	return p.Lambda * sum
}

func softThreshold(z, g float64) float64 {
	switch {
	case z > g:
		return z - g
	case z < -g:
		return z + g
	default:
		return 0
	}
}
