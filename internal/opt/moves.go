package opt

import (
	"context"
	"math"
	"math/rand"
)

type moveKind int

const (
	moveRelocate moveKind = iota
	moveSwap
	moveTwoOpt
	moveTwoOptStar
)

var moveNames = [...]string{
	moveRelocate:   "relocate",
	moveSwap:       "swap",
	moveTwoOpt:     "two_opt",
	moveTwoOptStar: "two_opt_star",
}

func (k moveKind) String() string { return moveNames[k] }

// move is a fully evaluated candidate; v2 is -1 for intra-route moves.
type move struct {
	kind   moveKind
	delta  int
	v1, v2 int
	st1    *routeState
	st2    *routeState
}

// candidate prices a rewrite of one or two routes and propagates it when the
// objective change is below threshold. It returns nil for infeasible or
// insufficiently improving rewrites.
func (a *Assignment) candidate(kind moveKind, v1 int, r1 []int, v2 int, r2 []int, base, threshold int) *move {
	m := a.model
	d1 := m.routeDistance(v1, r1)
	d2 := 0
	if v2 >= 0 {
		d2 = m.routeDistance(v2, r2)
	}
	delta := a.objectiveWith(v1, d1, v2, d2) - base
	if delta >= threshold {
		return nil
	}
	st1 := m.evaluate(v1, r1)
	if st1 == nil {
		return nil
	}
	var st2 *routeState
	if v2 >= 0 {
		if st2 = m.evaluate(v2, r2); st2 == nil {
			return nil
		}
	}
	return &move{kind: kind, delta: delta, v1: v1, v2: v2, st1: st1, st2: st2}
}

func (a *Assignment) apply(mv *move) {
	a.routes[mv.v1] = mv.st1
	if mv.st2 != nil {
		a.routes[mv.v2] = mv.st2
	}
}

// scanner looks for the best strictly improving move on one route pair of a
// snapshot it never writes to.
type scanner struct {
	ctx  context.Context
	a    *Assignment
	base int
	best *move
}

func (s *scanner) consider(kind moveKind, v1 int, r1 []int, v2 int, r2 []int) {
	threshold := 0
	if s.best != nil {
		threshold = s.best.delta
	}
	if mv := s.a.candidate(kind, v1, r1, v2, r2, s.base, threshold); mv != nil {
		s.best = mv
	}
}

func (s *scanner) stopped() bool { return s.ctx.Err() != nil }

func (s *scanner) scanPair(v1, v2 int) *move {
	if v1 == v2 {
		s.relocateWithin(v1)
		s.twoOpt(v1)
	} else {
		s.relocateBetween(v1, v2)
		s.relocateBetween(v2, v1)
		s.swap(v1, v2)
		s.twoOptStar(v1, v2)
	}
	return s.best
}

func (s *scanner) relocateWithin(v int) {
	r := s.a.routes[v].stops()
	for i := range r {
		if s.stopped() {
			return
		}
		rest := without(r, i)
		for j := 0; j <= len(rest); j++ {
			if j == i {
				continue
			}
			s.consider(moveRelocate, v, insertAt(rest, j, r[i]), -1, nil)
		}
	}
}

func (s *scanner) twoOpt(v int) {
	r := s.a.routes[v].stops()
	for i := 0; i < len(r)-1; i++ {
		if s.stopped() {
			return
		}
		for k := i + 1; k < len(r); k++ {
			s.consider(moveTwoOpt, v, reversed(r, i, k), -1, nil)
		}
	}
}

func (s *scanner) relocateBetween(from, to int) {
	rf, rt := s.a.routes[from].stops(), s.a.routes[to].stops()
	for i := range rf {
		if s.stopped() {
			return
		}
		rest := without(rf, i)
		for j := 0; j <= len(rt); j++ {
			s.consider(moveRelocate, from, rest, to, insertAt(rt, j, rf[i]))
		}
	}
}

func (s *scanner) swap(v1, v2 int) {
	r1, r2 := s.a.routes[v1].stops(), s.a.routes[v2].stops()
	for i := range r1 {
		if s.stopped() {
			return
		}
		for j := range r2 {
			n1 := append([]int(nil), r1...)
			n2 := append([]int(nil), r2...)
			n1[i], n2[j] = r2[j], r1[i]
			s.consider(moveSwap, v1, n1, v2, n2)
		}
	}
}

// twoOptStar exchanges the tails of two routes after positions i and j.
func (s *scanner) twoOptStar(v1, v2 int) {
	r1, r2 := s.a.routes[v1].stops(), s.a.routes[v2].stops()
	for i := 0; i <= len(r1); i++ {
		if s.stopped() {
			return
		}
		for j := 0; j <= len(r2); j++ {
			if (i == 0 && j == 0) || (i == len(r1) && j == len(r2)) {
				continue
			}
			s.consider(moveTwoOptStar, v1, concat(r1[:i], r2[j:]), v2, concat(r2[:j], r1[i:]))
		}
	}
}

// randomMove draws one neighbour uniformly by kind, route and position. It
// returns nil when the draw is degenerate or infeasible.
func (a *Assignment) randomMove(rng *rand.Rand, base int) *move {
	vehicles := len(a.routes)
	v1, v2 := rng.Intn(vehicles), rng.Intn(vehicles)
	r1, r2 := a.routes[v1].stops(), a.routes[v2].stops()
	switch kind := moveKind(rng.Intn(len(moveNames))); kind {
	case moveRelocate:
		if len(r1) == 0 {
			return nil
		}
		i := rng.Intn(len(r1))
		rest := without(r1, i)
		if v1 == v2 {
			return a.candidate(kind, v1, insertAt(rest, rng.Intn(len(rest)+1), r1[i]), -1, nil, base, math.MaxInt)
		}
		return a.candidate(kind, v1, rest, v2, insertAt(r2, rng.Intn(len(r2)+1), r1[i]), base, math.MaxInt)
	case moveSwap:
		if v1 == v2 || len(r1) == 0 || len(r2) == 0 {
			return nil
		}
		i, j := rng.Intn(len(r1)), rng.Intn(len(r2))
		n1 := append([]int(nil), r1...)
		n2 := append([]int(nil), r2...)
		n1[i], n2[j] = r2[j], r1[i]
		return a.candidate(kind, v1, n1, v2, n2, base, math.MaxInt)
	case moveTwoOpt:
		if len(r1) < 2 {
			return nil
		}
		i := rng.Intn(len(r1) - 1)
		k := i + 1 + rng.Intn(len(r1)-1-i)
		return a.candidate(kind, v1, reversed(r1, i, k), -1, nil, base, math.MaxInt)
	default:
		if v1 == v2 {
			return nil
		}
		i, j := rng.Intn(len(r1)+1), rng.Intn(len(r2)+1)
		return a.candidate(kind, v1, concat(r1[:i], r2[j:]), v2, concat(r2[:j], r1[i:]), base, math.MaxInt)
	}
}
