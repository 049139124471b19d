package opt

import (
	"math"
	"time"

	"go.uber.org/zap"
)

const (
	dimDistance = iota
	dimTime
	dimVolume
	dimWeight
)

// unbounded stands in for "no limit" while leaving room for additions.
const unbounded = math.MaxInt32

// Params tunes the routing model and the search.
type Params struct {
	// SpanCostCoefficient multiplies the longest route distance in the objective.
	SpanCostCoefficient int
	// MaxRouteDistance caps the distance of every route; 0 means unbounded.
	MaxRouteDistance int
	// Horizon caps the time dimension; 0 derives it from the instance.
	Horizon int
	// NoWaiting forbids arriving before a window opens.
	NoWaiting bool

	TimeLimit     time.Duration // 0 means no deadline
	MaxIterations int           // descent passes, 0 means until a local optimum
	Workers       int           // concurrent move evaluators, 0 means 1 per route pair
	Annealing     Annealing

	// Progress, when set, is called after every committed move.
	Progress func(Progress)
	Logger   *zap.Logger
}

// Annealing enables a simulated-annealing stage before the final descent.
type Annealing struct {
	Iterations  int // 0 disables the stage
	InitialTemp float64
	Cooling     float64
	Seed        int64
}

// Progress is reported to Params.Progress.
type Progress struct {
	Stage     string `json:"stage"`
	Iteration int    `json:"iteration"`
	Objective int    `json:"objective"`
}

// DefaultParams mirrors the reference configuration: span coefficient 100,
// routes capped at 3000 distance units, a 500-unit time horizon and a one
// second search budget.
func DefaultParams() Params {
	return Params{
		SpanCostCoefficient: 100,
		MaxRouteDistance:    3000,
		Horizon:             500,
		TimeLimit:           time.Second,
	}
}

// Model binds an instance to its routing index space and dimensions.
type Model struct {
	inst *Instance
	mgr  *IndexManager
	dims []*Dimension
	span int
}

// NewModel lays out the index space of in and registers the distance, time,
// volume and weight dimensions with the bounds taken from p.
func NewModel(in *Instance, p Params) *Model {
	mgr := NewIndexManager(in.NumStops(), in.NumVehicles())
	vehicles := in.NumVehicles()

	maxDist := p.MaxRouteDistance
	if maxDist <= 0 {
		maxDist = unbounded
	}
	horizon := p.Horizon
	if horizon <= 0 {
		horizon = in.maxWindowEnd() + in.maxTravel() + in.LoadTime() + in.UnloadTime()
	}
	slack := horizon
	if p.NoWaiting {
		slack = 0
	}

	windows := make([]Window, mgr.Size())
	for i := range windows {
		switch {
		case mgr.IsStart(i):
			windows[i] = in.Window(0)
		case mgr.IsEnd(i):
			windows[i] = Window{Start: 0, End: horizon}
		default:
			windows[i] = in.Window(mgr.IndexToNode(i))
		}
	}

	distance := &Dimension{
		Name: "distance",
		Kind: Binary,
		Transit: func(from, to int) int {
			return in.Distance(mgr.IndexToNode(from), mgr.IndexToNode(to))
		},
		Capacity:            repeat(maxDist, vehicles),
		FixStartCumulToZero: true,
	}
	travel := &Dimension{
		Name: "time",
		Kind: Binary,
		Transit: func(from, to int) int {
			if mgr.IsStart(from) && mgr.IsEnd(to) {
				return 0
			}
			t := in.Travel(mgr.IndexToNode(from), mgr.IndexToNode(to))
			if mgr.IsStart(from) {
				t += in.LoadTime()
			}
			if mgr.IsEnd(to) {
				t += in.UnloadTime()
			}
			return t
		},
		Capacity: repeat(horizon, vehicles),
		Windows:  windows,
		SlackMax: slack,
	}
	volume := &Dimension{
		Name:                "volume",
		Kind:                Unary,
		Demand:              func(i int) int { return in.Volume(mgr.IndexToNode(i)) },
		Capacity:            append([]int(nil), in.volCap...),
		FixStartCumulToZero: true,
	}
	weight := &Dimension{
		Name:                "weight",
		Kind:                Unary,
		Demand:              func(i int) int { return in.Weight(mgr.IndexToNode(i)) },
		Capacity:            append([]int(nil), in.weightCap...),
		FixStartCumulToZero: true,
	}
	return &Model{
		inst: in,
		mgr:  mgr,
		dims: []*Dimension{dimDistance: distance, dimTime: travel, dimVolume: volume, dimWeight: weight},
		span: p.SpanCostCoefficient,
	}
}

func repeat(x, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = x
	}
	return out
}

func (m *Model) Instance() *Instance         { return m.inst }
func (m *Model) IndexManager() *IndexManager { return m.mgr }

// Dimension returns the named dimension or nil.
func (m *Model) Dimension(name string) *Dimension {
	for _, d := range m.dims {
		if d.Name == name {
			return d
		}
	}
	return nil
}

func (m *Model) arcDistance(from, to int) int {
	return m.inst.Distance(m.mgr.IndexToNode(from), m.mgr.IndexToNode(to))
}

// routeDistance sums arc distances of start -> stops -> end without building cumuls.
func (m *Model) routeDistance(vehicle int, stops []int) int {
	prev := m.mgr.Start(vehicle)
	d := 0
	for _, s := range stops {
		d += m.arcDistance(prev, s)
		prev = s
	}
	return d + m.arcDistance(prev, m.mgr.End(vehicle))
}

// routeState is an immutable, fully propagated route.
type routeState struct {
	path   []int   // start, stops..., end
	cumuls [][]int // per dimension, per visit
}

func (r *routeState) stops() []int { return r.path[1 : len(r.path)-1] }

func (r *routeState) distance() int { return r.cumuls[dimDistance][len(r.path)-1] }

// evaluate propagates every dimension along the route and returns nil when any
// bound is violated.
func (m *Model) evaluate(vehicle int, stops []int) *routeState {
	path := make([]int, 0, len(stops)+2)
	path = append(path, m.mgr.Start(vehicle))
	path = append(path, stops...)
	path = append(path, m.mgr.End(vehicle))
	st := &routeState{path: path, cumuls: make([][]int, len(m.dims))}
	for d, dim := range m.dims {
		st.cumuls[d] = make([]int, len(path))
		if !dim.cumulate(vehicle, path, st.cumuls[d]) {
			return nil
		}
	}
	return st
}
