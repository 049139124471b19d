package opt

import "fmt"

// Visit is one stop of a route with the cumuls reached there. TimeMin and
// TimeMax bound the service start that keeps the whole route feasible.
type Visit struct {
	Node     int `json:"node"`
	Distance int `json:"distance"`
	TimeMin  int `json:"timeMin"`
	TimeMax  int `json:"timeMax"`
	Volume   int `json:"volume"`
	Weight   int `json:"weight"`
}

// RoutePlan is a vehicle's route, depot at both ends.
type RoutePlan struct {
	Vehicle  int     `json:"vehicle"`
	Visits   []Visit `json:"visits"`
	Distance int     `json:"distance"`
	Time     int     `json:"time"`
	Volume   int     `json:"volume"`
	Weight   int     `json:"weight"`
}

type Solution struct {
	Routes           []RoutePlan   `json:"routes"`
	TotalDistance    int           `json:"totalDistance"`
	MaxRouteDistance int           `json:"maxRouteDistance"`
	TotalTime        int           `json:"totalTime"`
	Objective        int           `json:"objective"`
	Metrics          SearchMetrics `json:"metrics"`
}

// Extract walks a final assignment into per-vehicle plans. An unused vehicle
// yields a depot-to-depot plan with zero distance and time.
func Extract(a *Assignment) (*Solution, error) {
	if a == nil {
		return nil, &NoSolutionError{Reason: "no assignment was produced"}
	}
	if !a.Complete() {
		return nil, &NoSolutionError{Reason: fmt.Sprintf("%d of %d stops routed", a.Assigned(), a.model.inst.NumStops()-1)}
	}
	mgr := a.model.mgr
	timeDim := a.model.dims[dimTime]
	sol := &Solution{Routes: make([]RoutePlan, len(a.routes)), Objective: a.Objective()}
	for v, r := range a.routes {
		last := len(r.path) - 1
		latest := make([]int, len(r.path))
		timeDim.latest(v, r.path, latest)
		plan := RoutePlan{
			Vehicle:  v,
			Visits:   make([]Visit, len(r.path)),
			Distance: r.cumuls[dimDistance][last],
			Time:     r.cumuls[dimTime][last] - r.cumuls[dimTime][0],
			Volume:   r.cumuls[dimVolume][last],
			Weight:   r.cumuls[dimWeight][last],
		}
		for k, idx := range r.path {
			plan.Visits[k] = Visit{
				Node:     mgr.IndexToNode(idx),
				Distance: r.cumuls[dimDistance][k],
				TimeMin:  r.cumuls[dimTime][k],
				TimeMax:  latest[k],
				Volume:   r.cumuls[dimVolume][k],
				Weight:   r.cumuls[dimWeight][k],
			}
		}
		sol.Routes[v] = plan
		sol.TotalDistance += plan.Distance
		sol.TotalTime += plan.Time
		if plan.Distance > sol.MaxRouteDistance {
			sol.MaxRouteDistance = plan.Distance
		}
	}
	return sol, nil
}

// Stops returns the route's stop ids with the depot at both ends.
func (p RoutePlan) Stops() []int {
	out := make([]int, len(p.Visits))
	for i, v := range p.Visits {
		out[i] = v.Node
	}
	return out
}
