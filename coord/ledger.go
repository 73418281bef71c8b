// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coord

// ledger is the active-set bookkeeping used to skip coordinates that appear converged.
//
// For each coordinate k:
//   - count[k] is the number of consecutive passes where the change of xₖ stayed within tol
//     (a pass where k is skipped counts as well).
//   - limit[k] is the pass at which a skipped coordinate has to be checked again.
//
// A coordinate is skipped while 𝚖𝚒𝚗 ≤ count[k] < limit[k]. Each time a stable coordinate reaches
// its limit it is evaluated and the limit doubles, so skipped coordinates are still revisited
// on a geometrically growing schedule. The limit never exceeds cap.
type ledger struct {
	count []int
	limit []int
	tol   float64 // change under which a coordinate is considered stable
	min   int     // stable passes before skipping starts
	max   int     // initial limit
	cap   int     // upper bound of any limit
}

func (l *ledger) init(n int, tol float64, skipMin, skipMax, skipCap int) {
	l.count = make([]int, n)
	l.limit = make([]int, n)
	l.tol, l.min, l.max = tol, skipMin, skipMax
	l.cap = max(skipCap, skipMax)
}

func (l *ledger) clear() {
	for k := range l.count {
		l.count[k] = 0
		l.limit[k] = l.max
	}
}

// update records the change of coordinate k and reports whether its entry was reset.
func (l *ledger) update(k int, change float64) (reset bool) {
	if change > l.tol {
		l.count[k] = 0
		l.limit[k] = l.max
		return true
	}
	if l.count[k] >= l.limit[k] {
		if l.limit[k] > l.cap/2 {
			l.limit[k] = l.cap
		} else {
			l.limit[k] *= 2
		}
	}
	l.count[k]++
	return false
}

func (l *ledger) skippable(k int) bool {
	c := l.count[k]
	return l.min <= c && c < l.limit[k]
}

// scan moves from coordinate k to the first coordinate in [k,n) that cannot be skipped,
// charging one pass to every skipped coordinate. It returns n when the range is exhausted.
func (l *ledger) scan(k, n int) (next, skipped int) {
	for k < n && l.skippable(k) {
		l.count[k]++
		skipped++
		k++
	}
	return k, skipped
}

// idle reports whether every coordinate can be skipped. The ledger is left untouched.
func (l *ledger) idle() bool {
	for k := range l.count {
		if !l.skippable(k) {
			return false
		}
	}
	return true
}

// stale reports whether some coordinate was skipped since the last reset.
func (l *ledger) stale() bool {
	for _, c := range l.count {
		if c > l.min {
			return true
		}
	}
	return false
}
