// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coord

import "errors"

const (
	zero = 0.0

	// machine precision of float64
	epsilon = 0x1p-52
)

// Task is the handshake signal exchanged between the driver and the engine.
type Task int

const (
	// TaskStart resets the engine and projects the initial iterate.
	TaskStart Task = 1 + iota
	// TaskNewX reports a completed cycle, x can be monitored or printed.
	TaskNewX
	// TaskEval requests a proposed value for coordinate Comm.K.
	TaskEval
	// TaskStop is terminal.
	TaskStop
)

func (t Task) String() string {
	switch t {
	case TaskStart:
		return "START"
	case TaskNewX:
		return "NEWX"
	case TaskEval:
		return "EVAL"
	case TaskStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Action tells the step function how to refresh the quantities it derives from x
// (residuals, matrix-vector products) before proposing a new coordinate value.
//
//   - Action > 0 : recompute everything from x.
//   - Action = 0 : the last evaluated coordinate did not move, nothing is stale.
//   - Action < 0 : only coordinate -(Action+1) moved since the previous request,
//     by the amount passed as delta (old value minus new value).
type Action int

const (
	ActionNone Action = 0
	ActionFull Action = 1
)

func lowRank(k int) Action {
	return Action(-(k + 1))
}

// Full reports whether a full recomputation is requested.
func (a Action) Full() bool {
	return a > 0
}

// LowRank returns the coordinate to use for an incremental update.
func (a Action) LowRank() (k int, ok bool) {
	if a >= 0 {
		return -1, false
	}
	return -int(a) - 1, true
}

// Status is the final outcome of a fit.
type Status int

const (
	running Status = iota
	// Converged the ∞-norm of the last cycle fell within tolerance after every coordinate was checked.
	Converged
	// OverIterLimit the number of cycles reached the iteration limit.
	OverIterLimit
	// OverTimeLimit the wall-clock time limit elapsed.
	OverTimeLimit
	// UserStop the monitor requested to stop.
	UserStop
	// StepFailed the step or objective function could not be evaluated.
	StepFailed
	// BadDimension the workspace or iterate is smaller than the problem dimension.
	BadDimension
	// BadTask the engine was resumed with an undefined task.
	BadTask
	// InvalidConfig an option or the problem definition was rejected before iterating.
	InvalidConfig
)

// Warning reports whether the status leaves a usable iterate behind without having converged.
func (s Status) Warning() bool {
	switch s {
	case OverIterLimit, OverTimeLimit, UserStop, StepFailed:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case running:
		return "RUNNING"
	case Converged:
		return "CONVERGENCE: NORM_OF_COORDINATE_CHANGE_<=_TOL"
	case OverIterLimit:
		return "STOP: TOTAL NO. of ITERATIONS REACHED LIMIT"
	case OverTimeLimit:
		return "STOP: TIME LIMIT REACHED"
	case UserStop:
		return "STOP: MONITOR REQUESTED HALT"
	case StepFailed:
		return "ABNORMAL: STEP COULD NOT BE EVALUATED"
	case BadDimension:
		return "ERROR: INVALID DIMENSION"
	case BadTask:
		return "ERROR: UNEXPECTED TASK"
	case InvalidConfig:
		return "ERROR: INVALID CONFIGURATION"
	default:
		return "UNKNOWN STATUS"
	}
}

var (
	// ErrBadDimension is returned by Advance when the workspace cannot hold the problem.
	ErrBadDimension = errors.New("coord: workspace smaller than problem dimension")
	// ErrBadTask is returned by Advance when resumed with an undefined task.
	ErrBadTask = errors.New("coord: unexpected task")
)
