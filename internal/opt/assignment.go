package opt

import "fmt"

// Assignment is a set of feasible routes, one per vehicle. Routes only change
// through construction and search, which commit fully propagated states, so a
// stop can never sit on two routes and cumuls never go stale.
type Assignment struct {
	model  *Model
	routes []*routeState
}

func newAssignment(m *Model) (*Assignment, error) {
	a := &Assignment{model: m, routes: make([]*routeState, m.mgr.NumVehicles())}
	for v := range a.routes {
		st := m.evaluate(v, nil)
		if st == nil {
			return nil, &NoSolutionError{Reason: fmt.Sprintf("vehicle %d cannot leave and return to the depot", v)}
		}
		a.routes[v] = st
	}
	return a, nil
}

func (a *Assignment) Model() *Model { return a.model }

// Route returns the stops visited by vehicle, depot excluded, as stop ids.
func (a *Assignment) Route(vehicle int) []int {
	stops := a.routes[vehicle].stops()
	out := make([]int, len(stops))
	for i, s := range stops {
		out[i] = a.model.mgr.IndexToNode(s)
	}
	return out
}

// Routes returns every vehicle's stop sequence.
func (a *Assignment) Routes() [][]int {
	out := make([][]int, len(a.routes))
	for v := range a.routes {
		out[v] = a.Route(v)
	}
	return out
}

// Cumuls returns the cumul of the named dimension at every visit of vehicle's
// route, depot start and end included.
func (a *Assignment) Cumuls(vehicle int, dimension string) []int {
	for d, dim := range a.model.dims {
		if dim.Name == dimension {
			return append([]int(nil), a.routes[vehicle].cumuls[d]...)
		}
	}
	return nil
}

func (a *Assignment) RouteDistance(vehicle int) int { return a.routes[vehicle].distance() }

// Objective is total distance plus the span coefficient times the longest route.
func (a *Assignment) Objective() int { return a.objectiveWith(-1, 0, -1, 0) }

// objectiveWith evaluates the objective with up to two route distances replaced.
func (a *Assignment) objectiveWith(v1, d1, v2, d2 int) int {
	total, longest := 0, 0
	for v, r := range a.routes {
		d := r.distance()
		switch v {
		case v1:
			d = d1
		case v2:
			d = d2
		}
		total += d
		if d > longest {
			longest = d
		}
	}
	return total + a.model.span*longest
}

// Assigned counts the stops currently on a route.
func (a *Assignment) Assigned() int {
	n := 0
	for _, r := range a.routes {
		n += len(r.path) - 2
	}
	return n
}

// Complete reports whether every non-depot stop is routed.
func (a *Assignment) Complete() bool { return a.Assigned() == a.model.inst.NumStops()-1 }

func (a *Assignment) clone() *Assignment {
	return &Assignment{model: a.model, routes: append([]*routeState(nil), a.routes...)}
}

func (a *Assignment) restore(from *Assignment) { copy(a.routes, from.routes) }
