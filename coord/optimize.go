// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coord

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated
	LogNoop LogLevel = 0
	// LogLast print only the summary after the last iteration
	LogLast LogLevel = 1
	// LogEval print also one line per cycle with f and the largest coordinate change
	LogEval LogLevel = 2
	// LogTrace print details of every coordinate update
	LogTrace LogLevel = 4
	// LogVerbose print also the iterates
	LogVerbose LogLevel = 5
)

// Logger handles logging output for the optimizer.
// Note the writers must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
	Out   io.Writer // Writer for output data.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Msg, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Msg, format)
	}
}

func (l *Logger) out(format string, a ...any) {
	if len(a) > 0 {
		_, _ = fmt.Fprintf(l.Out, format, a...)
	} else {
		_, _ = fmt.Fprint(l.Out, format)
	}
}

// StepFunc returns the new value of coordinate k, minimizing the objective along xₖ
// while every other coordinate is held fixed.
//
// Before computing the step, quantities derived from x must be refreshed according to act:
// recomputed from scratch when act > 0, left untouched when act = 0, or updated with the
// change delta = xⱼ(old) - xⱼ(new) of coordinate j when j, ok := act.LowRank(); ok.
// A non-nil error is unrecoverable and stops the fit.
type StepFunc func(x []float64, k int, act Action, delta float64) (xk float64, err error)

// ObjectiveFunc evaluates the objective at x. It is called once per cycle.
type ObjectiveFunc func(x []float64) (f float64, err error)

// MonitorFunc observes the iterate and the metrics at a configured cadence.
// Returning true requests the optimizer to stop. x must not be modified.
type MonitorFunc func(x []float64, info *Info) (stop bool)

// Termination specifies the stopping criteria for the optimization algorithm.
type Termination struct {
	// The iteration stop when the ∞-norm of the coordinate changes over a full cycle satisfied:
	//   ‖ xₖ₊₁ - xₖ ‖∞ ≤ 𝚝𝚘𝚕
	Tolerance float64
	// Reserved relative reduction factor of the objective:
	//   (fₖ - fₖ₊₁)/𝚖𝚊𝚡(|fₖ|,|fₖ₊₁|,1) ≤ 𝚏𝚊𝚌𝚝𝚛 × 𝚎𝚙𝚜𝚖𝚌𝚑
	ProgressFactor float64
	// The iteration stop when the number of cycles reaches limit.
	MaxIterations int
	// The iteration stop when the elapsed seconds exceed limit (disabled when ≤ 0).
	TimeLimit float64
}

// SkipRule configures the active-set ledger and the schedule of full evaluations.
type SkipRule struct {
	// Change under which a coordinate is considered stable.
	Tol float64
	// Stable passes required before a coordinate starts to be skipped.
	Min int
	// Initial number of passes after which a skipped coordinate is checked again.
	Max int
	// Logical steps between two forced full evaluations (0 disables them).
	Restart int
}

// Problem specifies the problem for the coordinate descent optimizer.
type Problem struct {
	N         int           // The problem dimension
	Step      StepFunc      // Coordinate step
	Objective ObjectiveFunc // Objective value, reported once per cycle
	Monitor   MonitorFunc   // Optional monitor
	// Call Monitor every MonitorFrequency cycles (0 disables it).
	MonitorFrequency int
	Stop             Termination // Stop condition
	Skip             SkipRule    // Ledger configuration
	// Optional bounds, each of length 0 or N.
	Lower, Upper []float64
	// Infinity for bounds:
	//  - lower bounds are considered not exist when 𝒍ᵢ ≤ - BndInf
	//  - upper bounds are considered not exist when 𝒖ᵢ ≥ BndInf
	BndInf float64
}

type iterSpec struct {
	n       int
	tol     float64
	stop    Termination
	skip    SkipRule
	bounds  bounds
	step    StepFunc
	obj     ObjectiveFunc
	monitor MonitorFunc
	monFreq int
	logger  Logger
}

// New creates a new coordinate descent optimizer for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}
	if logger.Out == nil {
		logger.Out = os.Stdout
	}

	n, stop, skip := p.N, p.Stop, p.Skip

	inf := math.Abs(p.BndInf)
	if p.BndInf == zero {
		inf = math.MaxFloat64
	}

	switch {
	case n <= 0:
		err = errors.New("problem dimension must greater than 0")
	case p.Step == nil:
		err = errors.New("step function is required")
	case p.Objective == nil:
		err = errors.New("objective function is required")
	case stop.MaxIterations <= 0:
		err = errors.New("max iteration must greater than 0")
	case math.IsNaN(stop.Tolerance) || stop.Tolerance <= zero:
		err = errors.New("convergence tolerance must greater than 0")
	case stop.ProgressFactor < zero:
		err = errors.New("progress factor must not less than 0")
	case math.IsNaN(skip.Tol) || skip.Tol < zero:
		err = errors.New("skip tolerance must not less than 0")
	case skip.Min < 1:
		err = errors.New("skip min must not less than 1")
	case skip.Max < 1:
		err = errors.New("skip max must not less than 1")
	case skip.Restart < 0:
		err = errors.New("restart period must not less than 0")
	case p.MonitorFrequency < 0:
		err = errors.New("monitor frequency must not less than 0")
	}

	if err != nil {
		return
	}

	var bnd bounds
	if bnd, err = newBounds(n, p.Lower, p.Upper, inf); err != nil {
		return
	}

	optimizer = &Optimizer{
		iterSpec{
			n:       n,
			tol:     stop.Tolerance,
			stop:    stop,
			skip:    skip,
			bounds:  bnd,
			step:    p.Step,
			obj:     p.Objective,
			monitor: p.Monitor,
			monFreq: p.MonitorFrequency,
			logger:  *logger,
		},
	}
	return
}

// Optimizer implemented using the coordinate descent algorithm.
type Optimizer struct {
	iterSpec
}

// Workspace contains the state and context of the optimization process.
// Given problem dimension n, total work space is approximately int[2×n].
type Workspace struct {
	n int
	iterCtx
	fitCtx
}

// fitCtx holds the driver counters that the engine does not know about.
type fitCtx struct {
	numEval  int
	numCheap int
	header   int
	begin    time.Time
}

func (c *fitCtx) elapsed() float64 {
	return time.Since(c.begin).Seconds()
}

// Info contains the metrics of the optimization process.
type Info struct {
	F         float64 // Objective value at the last completed cycle.
	Iter      int     // Number of completed cycles.
	Time      float64 // Elapsed seconds.
	NumEval   int     // Number of full evaluations requested.
	NumCheap  int     // Number of incremental evaluations requested.
	INorm     float64 // ∞-norm of the coordinate changes over the last cycle.
	INormInit float64 // ∞-norm of the (projected) initial iterate.
}

// Result contains the final result of the optimization process.
type Result struct {
	OK     bool      // Whether the optimization was converged.
	X      []float64 // Final solution (aliases the x passed to Fit).
	Status Status    // Final status after optimization.
	Err    error     // Cause of a failed step, if any.
	Info             // Optimization metrics.
}

// Init allocate the workspace for coordinate descent optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n = o.n
	skipCap := max(o.stop.MaxIterations, o.skip.Max)
	w.ledger.init(w.n, o.skip.Tol, o.skip.Min, o.skip.Max, skipCap)
	return w
}

// Fit runs the optimization process from the initial guess x using workspace w.
// x is updated in place and holds the last valid iterate whatever the final status.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {

	res := &Result{X: x}
	if len(x) != o.n || w == nil || w.n != o.n {
		res.Status = BadDimension
		return res
	}

	driver := iterDriver{
		optimizer: o,
		workspace: w,
		x:         x,
		info:      &res.Info,
	}

	res.Status = driver.mainLoop()
	res.Err = driver.err
	res.OK = res.Status == Converged
	return res
}
