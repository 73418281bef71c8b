// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coord

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// number of iteration lines printed between two headers
const headerEvery = 30

// iterDriver is the main driver for iterations in an optimization process,
// it answers the requests of the engine and applies the outer stopping policy.
type iterDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	comm      Comm
	x         []float64
	info      *Info
	err       error
}

// nextLocation asks the step function for the proposed value of the active coordinate.
// A failed step leaves x untouched.
func (d *iterDriver) nextLocation() (status Status) {
	o, w, c := d.optimizer, d.workspace, &d.comm
	log := o.logger

	xk, err := func() (xk float64, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("step function panic: %v", r)
			}
		}()
		return o.step(d.x, c.K, c.Action, c.Delta)
	}()

	if c.Action.Full() {
		w.numEval++
	} else {
		w.numCheap++
	}

	if err == nil && math.IsNaN(xk) {
		err = fmt.Errorf("step function returns NaN for coordinate %d", c.K)
	}
	if err != nil {
		d.err = err
		if log.enable(LogLast) {
			log.log("Step evaluation failed at iterate %d: %v\n", c.Iter, err)
		}
		return StepFailed
	}

	if log.enable(LogTrace) {
		log.log("  k= %5d  act= %6d  delta= %12.5e  x= %12.5e  xk= %12.5e\n", c.K, c.Action, c.Delta, d.x[c.K], xk)
	}

	c.Xk = xk
	return running
}

// newIteration reports a completed cycle and checks the limits unknown to the engine.
func (d *iterDriver) newIteration() (status Status) {
	o, w, c, info := d.optimizer, d.workspace, &d.comm, d.info

	f, err := func() (f float64, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("objective function panic: %v", r)
			}
		}()
		return o.obj(d.x)
	}()
	if err != nil {
		d.err = err
		if log := o.logger; log.enable(LogLast) {
			log.log("Objective evaluation failed at iterate %d: %v\n", c.Iter, err)
		}
		return StepFailed
	}

	d.collect(f)
	d.printIter()

	if c.Task == TaskStop {
		return Converged
	}

	if c.Iter >= o.stop.MaxIterations {
		return OverIterLimit
	}
	if o.monitor != nil && o.monFreq > 0 && c.Iter%o.monFreq == 0 {
		if o.monitor(d.x, info) {
			return UserStop
		}
	}
	if o.stop.TimeLimit > zero && w.elapsed() > o.stop.TimeLimit {
		return OverTimeLimit
	}
	return running
}

func (d *iterDriver) collect(f float64) {
	w, c, info := d.workspace, &d.comm, d.info
	info.F = f
	info.Iter = c.Iter
	info.INorm = c.INorm
	info.NumEval = w.numEval
	info.NumCheap = w.numCheap
	info.Time = w.elapsed()
}

// mainLoop keeps resuming the engine until it stops or a limit is reached.
func (d *iterDriver) mainLoop() (status Status) {

	o, w, c := d.optimizer, d.workspace, &d.comm

	w.fitCtx = fitCtx{begin: time.Now()}
	*d.info = Info{}

	c.Task = TaskStart
	if err := o.Advance(d.x, c, w); err != nil {
		d.err = err
		status = failure(err)
	} else {
		d.info.INormInit = floats.Norm(d.x, math.Inf(1))
		d.printInit()
	}

	for status == running {
		if c.Task == TaskEval {
			status = d.nextLocation()
		} else {
			status = d.newIteration()
		}
		if status == running {
			if err := o.Advance(d.x, c, w); err != nil {
				d.err = err
				status = failure(err)
			}
		}
	}

	d.collect(d.info.F)
	d.printExit(status)
	return
}

func failure(err error) Status {
	if errors.Is(err, ErrBadDimension) {
		return BadDimension
	}
	return BadTask
}

// printInit logs the problem dimension and the initial iterate.
func (d *iterDriver) printInit() {

	spec := &d.optimizer.iterSpec
	log := spec.logger

	if log.enable(LogLast) {
		log.log("RUNNING THE COORDINATE DESCENT CODE\n")
		log.log("           * * *\n")
		log.log("N = %d    bounded = %d    restart = %d\n", spec.n, spec.bounds.count(), spec.skip.Restart)
		log.log("Skip tol = %10.3e    min = %d    max = %d\n", spec.skip.Tol, spec.skip.Min, spec.skip.Max)

		if log.enable(LogEval) {
			log.out("RUNNING THE COORDINATE DESCENT CODE\n\n")
			log.out("N = %d    |x0| = %10.3e\n", spec.n, d.info.INormInit)

			if log.enable(LogVerbose) {
				log.log("\nX0 = ")
				for i, x := range d.x {
					log.log("%.2e ", x)
					if (i+1)%6 == 0 {
						log.log("\n     ")
					}
				}
				log.log("\n")
			}
		}
	}
}

// printIter logs the current cycle, repeating the table header every few lines.
func (d *iterDriver) printIter() {

	w, info := d.workspace, d.info
	log := d.optimizer.logger

	if !log.enable(LogEval) {
		return
	}

	if w.header%headerEvery == 0 {
		log.out("\n   it      nf      nc        inorm            f      skipped\n")
	}
	w.header++
	log.out("%5d %7d %7d %12.5e %12.5e %8d\n", info.Iter, info.NumEval, info.NumCheap, info.INorm, info.F, w.skipped)

	if log.enable(LogTrace) {
		log.log("At iterate %5d    f= %12.5e    |dx|= %12.5e    resets= %d\n", info.Iter, info.F, info.INorm, w.resets)
		if log.enable(LogVerbose) {
			log.log("\n X = ")
			for i, x := range d.x {
				log.log("%.2e ", x)
				if (i+1)%6 == 0 {
					log.log("\n     ")
				}
			}
			log.log("\n")
		}
	}
}

// printExit logs the final statistics and exit conditions of the optimization process.
func (d *iterDriver) printExit(status Status) {

	spec := &d.optimizer.iterSpec
	info := d.info

	log := spec.logger
	if !log.enable(LogLast) {
		return
	}

	log.log("\n           * * *\n")
	log.log("Tit   = total number of iterations\n")
	log.log("Tnf   = total number of full evaluations\n")
	log.log("Tnc   = total number of incremental evaluations\n")
	log.log("Dx    = norm of the coordinate changes in the last cycle\n")
	log.log("F     = final function value\n")
	log.log("\n           * * *\n")
	log.log("\n   N      Tit      Tnf      Tnc       Dx         F\n")
	log.log("%5d %6d %8d %8d %9.2e %9.5e\n",
		spec.n, info.Iter, info.NumEval, info.NumCheap, info.INorm, info.F)

	if log.enable(LogTrace) {
		log.log("\n X =")
		for i, x := range d.x {
			log.log(" %.2e", x)
			if (i+1)%6 == 0 {
				log.log("\n     ")
			}
		}
		log.log("\n")
	}

	log.log("\n%s\n", status)
	if d.err != nil {
		log.log(" Cause: %v\n", d.err)
	}

	log.log("\n Total User time: %s\n", formatNs(int64(info.Time*1e9)))
}

func formatNs(nanoseconds int64) string {
	switch {
	case nanoseconds >= 1e9: // Convert to seconds
		return fmt.Sprintf("%.2f s", float64(nanoseconds)/1e9)
	case nanoseconds >= 1e6: // Convert to milliseconds
		return fmt.Sprintf("%.2f ms", float64(nanoseconds)/1e6)
	case nanoseconds >= 1e3: // Convert to microseconds
		return fmt.Sprintf("%.2f µs", float64(nanoseconds)/1e3)
	default: // Keep in nanoseconds
		return fmt.Sprintf("%.2f ns", float64(nanoseconds))
	}
}
