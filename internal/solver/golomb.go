// Package solver is a development Golomb ruler solver that streams its
// progress over a websocket in the dashboard's event protocol.
package solver

import (
	"context"
	"sync/atomic"
)

// Progress receives search milestones. Calls come from the search
// goroutine, in order.
type Progress interface {
	Solution(marks []int)
	Bound(lb int, ub int)
}

// Stats are live counters readable from other goroutines.
type Stats struct {
	Nodes atomic.Int64
	Depth atomic.Int64
}

// Result of one search.
type Result struct {
	Marks   []int
	Optimal bool
}

// GreedyRuler returns the n-mark ruler built by always adding the smallest
// next mark whose differences are all new. It is a valid, usually
// suboptimal, starting upper bound.
func GreedyRuler(n int) []int {
	if n <= 0 {
		return nil
	}
	marks := []int{0}
	used := map[int]bool{}
	for next := 1; len(marks) < n; next++ {
		ok := true
		for _, m := range marks {
			if used[next-m] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for _, m := range marks {
			used[next-m] = true
		}
		marks = append(marks, next)
	}
	return marks
}

// LowerBound is the trivial bound n(n-1)/2: the n-1 consecutive gaps are
// distinct positive integers.
func LowerBound(n int) int {
	return n * (n - 1) / 2
}

// IsGolomb reports whether all pairwise differences of marks are distinct.
func IsGolomb(marks []int) bool {
	seen := map[int]bool{}
	for i := range marks {
		for j := i + 1; j < len(marks); j++ {
			d := marks[j] - marks[i]
			if d <= 0 || seen[d] {
				return false
			}
			seen[d] = true
		}
	}
	return true
}

// Search finds a shortest n-mark Golomb ruler. It starts from the greedy
// ruler and proves lengths infeasible from the lower bound upwards; the
// first feasible length is optimal. When ctx ends first the best ruler so
// far is returned with Optimal false.
func Search(ctx context.Context, n int, progress Progress, stats *Stats) Result {
	if stats == nil {
		stats = &Stats{}
	}
	best := GreedyRuler(n)
	if n < 2 {
		return Result{Marks: best, Optimal: true}
	}
	progress.Solution(best)

	ub := best[len(best)-1]
	lb := LowerBound(n)
	progress.Bound(lb, ub)

	for length := lb; length < ub; length++ {
		s := newLengthSearch(ctx, n, length, stats)
		found, aborted := s.run()
		if aborted {
			return Result{Marks: best}
		}
		if found != nil {
			best = found
			progress.Solution(best)
			progress.Bound(length, length)
			return Result{Marks: best, Optimal: true}
		}
		lb = length + 1
		progress.Bound(lb, ub)
	}
	return Result{Marks: best, Optimal: true}
}

type lengthSearch struct {
	ctx    context.Context
	n      int
	length int
	marks  []int
	used   []bool
	stats  *Stats
	nodes  int
	abort  bool
}

func newLengthSearch(ctx context.Context, n, length int, stats *Stats) *lengthSearch {
	return &lengthSearch{
		ctx:    ctx,
		n:      n,
		length: length,
		marks:  make([]int, 1, n),
		used:   make([]bool, length+1),
		stats:  stats,
	}
}

// run looks for an n-mark ruler of exactly s.length.
func (s *lengthSearch) run() (found []int, aborted bool) {
	if s.place(1) {
		out := make([]int, len(s.marks))
		copy(out, s.marks)
		return out, false
	}
	return nil, s.abort
}

func (s *lengthSearch) place(idx int) bool {
	s.nodes++
	s.stats.Nodes.Add(1)
	s.stats.Depth.Store(int64(idx))
	if s.nodes&0xfff == 0 && s.ctx.Err() != nil {
		s.abort = true
	}
	if s.abort {
		return false
	}

	last := s.marks[len(s.marks)-1]
	if idx == s.n-1 {
		return s.try(s.length, idx)
	}

	// The remaining r gaps are distinct, so they need at least r(r+1)/2.
	r := s.n - 1 - idx
	hi := s.length - r*(r+1)/2
	for m := last + 1; m <= hi; m++ {
		if s.try(m, idx) {
			return true
		}
		if s.abort {
			return false
		}
	}
	return false
}

// try adds mark m at position idx, recursing when its differences are new.
func (s *lengthSearch) try(m, idx int) bool {
	for _, prev := range s.marks {
		if s.used[m-prev] {
			return false
		}
	}
	for _, prev := range s.marks {
		s.used[m-prev] = true
	}
	s.marks = append(s.marks, m)

	ok := idx == s.n-1 || s.place(idx+1)
	if ok {
		return true
	}

	s.marks = s.marks[:len(s.marks)-1]
	for _, prev := range s.marks {
		s.used[m-prev] = false
	}
	return false
}
