// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coord

import "math"

// Comm carries the values exchanged between the driver and the engine on every call of Advance.
type Comm struct {
	Task Task
	// K is the coordinate whose new value is requested when Task is TaskEval.
	K int
	// Xk is the proposed value of x[K]. It must satisfy the stationarity condition of the
	// objective along coordinate K and is set by the caller before resuming an evaluation.
	Xk float64
	// Iter is the number of completed cycles.
	Iter int
	// INorm is the ∞-norm of the coordinate changes over the current cycle.
	INorm float64
	// Action and Delta tell the step function how to refresh its derived quantities, see Action.
	Action Action
	Delta  float64
}

// iterCtx is the suspended state of the engine between two calls of Advance.
type iterCtx struct {
	ledger
	// restart period of full evaluations (0 disables the schedule).
	restart int
	// logical steps since the last full evaluation request.
	sinceFull int
	// the coordinate updated last and its change (old - new).
	kOld  int
	delta float64
	// ledger entries reset in the current cycle and skipped coordinates so far.
	resets  int
	skipped int
}

// Advance resumes the coordinate descent engine.
//
// The caller starts with c.Task = TaskStart and keeps calling Advance until c.Task becomes TaskStop:
//   - TaskEval : compute the proposed value of x[c.K] honoring c.Action and c.Delta, store it
//     into c.Xk and call Advance again.
//   - TaskNewX : a cycle was completed, x may be inspected before calling Advance again.
//
// x is updated in place. The workspace must have been allocated by Init of the same optimizer.
// An undersized workspace stops the engine with ErrBadDimension and an undefined task with ErrBadTask.
func (o *Optimizer) Advance(x []float64, c *Comm, w *Workspace) error {

	spec, ctx := &o.iterSpec, &w.iterCtx
	n := spec.n

	if len(ctx.count) < n || len(ctx.limit) < n || len(x) < n {
		c.Task = TaskStop
		return ErrBadDimension
	}

	switch c.Task {
	case TaskStart:
		ctx.start(spec)
		spec.bounds.project(x[:n])
		c.K, c.Iter = 0, 0
		c.INorm, c.Xk, c.Delta = zero, zero, zero
		c.Action = ActionFull
		c.Task = TaskEval
	case TaskEval:
		if c.K < 0 || c.K >= n {
			c.Task = TaskStop
			return ErrBadTask
		}
		ctx.evaluate(x, spec, c)
	case TaskNewX:
		// the caller did not stop, continue with a fresh cycle
		c.INorm = zero
		ctx.resets = 0
		c.Task = TaskEval
	case TaskStop:
	default:
		c.Task = TaskStop
		return ErrBadTask
	}
	return nil
}

// start resets the scratch state and the ledger.
func (ctx *iterCtx) start(spec *iterSpec) {
	ctx.restart = spec.skip.Restart
	ctx.sinceFull = 0
	ctx.kOld, ctx.delta = 0, zero
	ctx.resets, ctx.skipped = 0, 0
	ctx.ledger.clear()
}

// evaluate accepts the proposed value of x[c.K] and selects the next coordinate.
func (ctx *iterCtx) evaluate(x []float64, spec *iterSpec, c *Comm) {

	n, k := spec.n, c.K

	xk := spec.bounds.projectAt(k, c.Xk)
	delta := x[k] - xk
	change := math.Abs(delta)
	c.INorm = math.Max(c.INorm, change)
	x[k] = xk

	if ctx.ledger.update(k, change) {
		ctx.resets++
	}
	ctx.kOld, ctx.delta = k, delta

	// Move to the next coordinate that cannot be skipped.
	next, skipped := ctx.ledger.scan(k+1, n)
	ctx.sinceFull += 1 + skipped
	ctx.skipped += skipped

	if next == n {
		// A full cycle is completed (possibly forced by skipping past the last coordinate).
		c.Iter++
		if c.INorm <= spec.tol {
			if !ctx.ledger.stale() {
				c.K = 0
				c.Task = TaskStop
				return
			}
			// Some coordinates were only skipped: re-check all of them before accepting convergence.
			ctx.ledger.clear()
		}
		c.Task = TaskNewX

		if ctx.ledger.idle() {
			// The whole cycle would be skipped: re-check every coordinate instead.
			ctx.ledger.clear()
		}
		next, skipped = ctx.ledger.scan(0, n)
		ctx.sinceFull += skipped
		ctx.skipped += skipped
	}

	c.K = next
	c.Action, c.Delta = ctx.nextAction(c.Iter, next, n)
}

// nextAction decides whether the next evaluation is a full or an incremental one.
// A full evaluation is forced whenever the restart period divides the logical step
// iter×n + k, or when a whole period elapsed since the last full evaluation.
func (ctx *iterCtx) nextAction(iter, k, n int) (Action, float64) {
	if r := ctx.restart; r > 0 {
		step := ((iter%r)*(n%r) + k) % r
		if step == 0 || ctx.sinceFull >= r {
			ctx.sinceFull = 0
			return ActionFull, zero
		}
	}
	if ctx.delta == zero {
		return ActionNone, zero
	}
	return lowRank(ctx.kOld), ctx.delta
}
