package opt

import (
	"context"
	"math"
)

type insertion struct {
	unassigned int // position in the unassigned list
	vehicle    int
	cost       int
	state      *routeState
}

// Construct builds the initial assignment by cheapest insertion: each round
// places the unassigned stop whose cheapest feasible insertion, measured in
// added distance, is the cheapest overall. Ties go to the lower stop, then the
// lower vehicle, then the earlier position.
func Construct(ctx context.Context, m *Model) (*Assignment, error) {
	a, err := newAssignment(m)
	if err != nil {
		return nil, err
	}
	unassigned := make([]int, 0, m.inst.NumStops()-1)
	for s := 1; s < m.inst.NumStops(); s++ {
		idx, _ := m.mgr.NodeToIndex(s)
		unassigned = append(unassigned, idx)
	}
	for len(unassigned) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		best := insertion{cost: math.MaxInt}
		for ui, s := range unassigned {
			for v, r := range a.routes {
				for pos := 0; pos < len(r.path)-1; pos++ {
					prev, next := r.path[pos], r.path[pos+1]
					added := m.arcDistance(prev, s) + m.arcDistance(s, next) - m.arcDistance(prev, next)
					if added >= best.cost {
						continue
					}
					st := m.evaluate(v, insertAt(r.stops(), pos, s))
					if st == nil {
						continue
					}
					best = insertion{unassigned: ui, vehicle: v, cost: added, state: st}
				}
			}
		}
		if best.state == nil {
			return nil, &NoFeasibleInsertionError{
				Stop:       m.mgr.IndexToNode(unassigned[0]),
				Assigned:   a.Assigned(),
				Unassigned: len(unassigned),
			}
		}
		a.routes[best.vehicle] = best.state
		unassigned = append(unassigned[:best.unassigned], unassigned[best.unassigned+1:]...)
	}
	return a, nil
}

func insertAt(r []int, pos, x int) []int {
	out := make([]int, 0, len(r)+1)
	out = append(out, r[:pos]...)
	out = append(out, x)
	return append(out, r[pos:]...)
}

func without(r []int, i int) []int {
	out := make([]int, 0, len(r)-1)
	out = append(out, r[:i]...)
	return append(out, r[i+1:]...)
}

// reversed returns r with r[i..k] reversed.
func reversed(r []int, i, k int) []int {
	out := append([]int(nil), r...)
	for ; i < k; i, k = i+1, k-1 {
		out[i], out[k] = out[k], out[i]
	}
	return out
}

func concat(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
