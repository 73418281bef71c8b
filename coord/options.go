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
	"slices"
	"strconv"
	"text/tabwriter"
)

// Names of the options consumed by Configure and Minimize.
const (
	OptInfBound       = "infinite bound size"
	OptTolerance      = "coord convergence tol"
	OptProgressFactor = "coord progress factor"
	OptTimeLimit      = "time limit"
	OptPrintLevel     = "print level"
	OptIterLimit      = "coord iteration limit"
	OptSkipTol        = "coord skip tol"
	OptSkipMin        = "coord skip min"
	OptSkipMax        = "coord skip max"
	OptRestart        = "coord restart"
	OptMonitorFreq    = "monitoring frequency"
)

var (
	// ErrMissingOption is returned when a required option is not registered.
	ErrMissingOption = errors.New("coord: expected option not found")
	// ErrInvalidOption is returned when a value is outside the registered range or has the wrong type.
	ErrInvalidOption = errors.New("coord: invalid option value")
)

// Options is the read-only view of the configuration consumed by the optimizer.
type Options interface {
	Real(name string) (float64, error)
	Int(name string) (int, error)
}

type optKind int

const (
	optInt optKind = iota
	optReal
)

// option is a named numeric value restricted to a range.
// A bound is open (strict) when the matching flag is set.
type option struct {
	name   string
	desc   string
	kind   optKind
	lo, hi float64
	loOpen bool
	hiOpen bool
	def    float64
	val    float64
	idef   int
	ival   int
}

func (o *option) check(v float64) error {
	if math.IsNaN(v) ||
		(o.loOpen && v <= o.lo) || (!o.loOpen && v < o.lo) ||
		(o.hiOpen && v >= o.hi) || (!o.hiOpen && v > o.hi) {
		return fmt.Errorf("%w: %q = %v not in %s", ErrInvalidOption, o.name, v, o.interval())
	}
	return nil
}

func (o *option) interval() string {
	l, r := "[", "]"
	if o.loOpen {
		l = "("
	}
	if o.hiOpen {
		r = ")"
	}
	return l + o.format(o.lo) + ", " + o.format(o.hi) + r
}

func (o *option) format(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func (o *option) formatInt(v int) string {
	if v == math.MaxInt {
		return "∞"
	}
	return strconv.Itoa(v)
}

// Registry holds the registered options with their defaults and valid ranges.
// It is not safe for concurrent mutation.
type Registry struct {
	opts map[string]*option
}

// NewRegistry returns a registry preloaded with every option of the optimizer set to its default.
func NewRegistry() *Registry {
	r := &Registry{opts: make(map[string]*option)}
	safeEps := math.Sqrt(epsilon)
	inf := math.Inf(1)
	for _, o := range []option{
		{name: OptSkipMin, kind: optInt, lo: 1, hi: inf, idef: 5,
			desc: "Minimum times a coordinate change is smaller than \"coord skip tol\" to start skipping"},
		{name: OptSkipMax, kind: optInt, lo: 4, hi: inf, idef: 8,
			desc: "Initial max times a coordinate can be skipped after this the coordinate is checked"},
		{name: OptRestart, kind: optInt, lo: 0, hi: inf, idef: math.MaxInt,
			desc: "Number of inner iteration to perform before requesting a full evaluation of the step function"},
		{name: OptIterLimit, kind: optInt, lo: 1, hi: inf, idef: 100000,
			desc: "Maximum number of iterations to perform"},
		{name: OptMonitorFreq, kind: optInt, lo: 0, hi: inf, idef: 0,
			desc: "How frequent to call the user-supplied monitor function"},
		{name: OptPrintLevel, kind: optInt, lo: 0, hi: 5, idef: 1,
			desc: "Level of verbosity, 0 indicates no output while 5 is a very verbose printing"},
		{name: OptTimeLimit, kind: optReal, lo: 0, loOpen: true, hi: inf, def: 1e6,
			desc: "Maximum time in seconds allowed to run"},
		{name: OptInfBound, kind: optReal, lo: 1000, loOpen: true, hi: inf, def: 1e20,
			desc: "Threshold value to take for +/- infinity"},
		{name: OptTolerance, kind: optReal, lo: 0, loOpen: true, hi: 1, hiOpen: true, def: safeEps,
			desc: "Tolerance of the coordinate change infinity norm to declare convergence"},
		{name: OptSkipTol, kind: optReal, lo: 0, loOpen: true, hi: inf, def: safeEps,
			desc: "Coordinate skip tolerance"},
		{name: OptProgressFactor, kind: optReal, lo: 0, hi: inf, def: 1e7,
			desc: "Reserved, the iteration stops when (fk - fk+1)/max{|fk|,|fk+1|,1} <= factr*epsmch"},
	} {
		o.val, o.ival = o.def, o.idef
		r.opts[o.name] = &o
	}
	return r
}

func (r *Registry) lookup(name string, kind optKind) (*option, error) {
	o, ok := r.opts[name]
	if !ok {
		return nil, fmt.Errorf("%w: <%s>", ErrMissingOption, name)
	}
	if o.kind != kind {
		return nil, fmt.Errorf("%w: <%s> has a different type", ErrInvalidOption, name)
	}
	return o, nil
}

// Real returns the value of a real option.
func (r *Registry) Real(name string) (float64, error) {
	o, err := r.lookup(name, optReal)
	if err != nil {
		return 0, err
	}
	return o.val, nil
}

// Int returns the value of an integer option.
func (r *Registry) Int(name string) (int, error) {
	o, err := r.lookup(name, optInt)
	if err != nil {
		return 0, err
	}
	return o.ival, nil
}

// SetReal updates a real option after a range check.
func (r *Registry) SetReal(name string, v float64) error {
	o, err := r.lookup(name, optReal)
	if err != nil {
		return err
	}
	if err = o.check(v); err != nil {
		return err
	}
	o.val = v
	return nil
}

// SetInt updates an integer option after a range check.
func (r *Registry) SetInt(name string, v int) error {
	o, err := r.lookup(name, optInt)
	if err != nil {
		return err
	}
	if err = o.check(float64(v)); err != nil {
		return err
	}
	o.ival = v
	return nil
}

// Set parses value according to the type of the option.
func (r *Registry) Set(name, value string) error {
	o, ok := r.opts[name]
	if !ok {
		return fmt.Errorf("%w: <%s>", ErrMissingOption, name)
	}
	if o.kind == optInt {
		v, err := strconv.Atoi(value)
		if err != nil {
			// accept a whole number written as a real, e.g. 1e6
			f, ferr := strconv.ParseFloat(value, 64)
			if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
				return fmt.Errorf("%w: <%s> expects an integer: %v", ErrInvalidOption, name, err)
			}
			v = int(f)
		}
		return r.SetInt(name, v)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: <%s> expects a real: %v", ErrInvalidOption, name, err)
	}
	return r.SetReal(name, v)
}

// Reset restores every option to its default.
func (r *Registry) Reset() {
	for _, o := range r.opts {
		o.val, o.ival = o.def, o.idef
	}
}

// Names returns the registered option names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.opts))
	for name := range r.opts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Describe writes a table of the options with their current value, default and range.
func (r *Registry) Describe(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tVALUE\tDEFAULT\tRANGE\tDESCRIPTION")
	for _, name := range r.Names() {
		o := r.opts[name]
		val, def := o.format(o.val), o.format(o.def)
		if o.kind == optInt {
			val, def = o.formatInt(o.ival), o.formatInt(o.idef)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.name, val, def, o.interval(), o.desc)
	}
	return tw.Flush()
}

// Configure fills the stopping criteria, the skip rule and the bound threshold of the problem
// from opts and returns the print level.
func (p *Problem) Configure(opts Options) (level LogLevel, err error) {

	readReal := func(name string, v *float64) {
		if err == nil {
			*v, err = opts.Real(name)
		}
	}
	readInt := func(name string, v *int) {
		if err == nil {
			*v, err = opts.Int(name)
		}
	}

	var printLevel int
	readReal(OptInfBound, &p.BndInf)
	readReal(OptTolerance, &p.Stop.Tolerance)
	readReal(OptProgressFactor, &p.Stop.ProgressFactor)
	readReal(OptTimeLimit, &p.Stop.TimeLimit)
	readInt(OptPrintLevel, &printLevel)
	readInt(OptIterLimit, &p.Stop.MaxIterations)
	readReal(OptSkipTol, &p.Skip.Tol)
	readInt(OptSkipMin, &p.Skip.Min)
	readInt(OptSkipMax, &p.Skip.Max)
	readInt(OptRestart, &p.Skip.Restart)
	readInt(OptMonitorFreq, &p.MonitorFrequency)

	level = LogLevel(printLevel)
	return
}

// Minimize reads the configuration from opts and minimizes the objective from x subject to l ≤ x ≤ u.
//
// x is updated in place and info receives the metrics of the run. Warnings (limits, user stop,
// failed step) are reported through the status with a nil error, the iterate stays usable.
// A non-nil error is returned when the configuration is rejected or the engine fails.
func Minimize(opts Options, x, l, u []float64, info *Info,
	step StepFunc, objective ObjectiveFunc, monitor MonitorFunc) (Status, error) {

	p := Problem{
		N:         len(x),
		Step:      step,
		Objective: objective,
		Monitor:   monitor,
		Lower:     l,
		Upper:     u,
	}

	level, err := p.Configure(opts)
	if err != nil {
		return InvalidConfig, err
	}

	o, err := p.New(&Logger{Level: level, Msg: os.Stdout, Out: os.Stdout})
	if err != nil {
		return InvalidConfig, err
	}

	res := o.Fit(x, o.Init())
	if info != nil {
		*info = res.Info
	}

	switch res.Status {
	case BadDimension, BadTask:
		return res.Status, res.Err
	}
	return res.Status, nil
}
