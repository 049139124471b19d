package opt

import (
	"routeplanner/internal/geo"
)

// StopRecord is one row of input: position, delivery window and demands.
// Index 0 is the depot.
type StopRecord struct {
	Lat         float64
	Lon         float64
	WindowStart int
	WindowEnd   int
	Volume      int
	Weight      int
}

// Fleet describes the vehicles. A capacity slice of length 1 applies to every vehicle.
type Fleet struct {
	Vehicles         int
	VolumeCapacities []int
	WeightCapacities []int
	Depot            int
	LoadTime         int // added when leaving the depot
	UnloadTime       int // added when returning to the depot
}

// Window is an inclusive [Start, End] bound on a cumul.
type Window struct{ Start, End int }

// Instance is a validated, read-only routing problem.
type Instance struct {
	distance   [][]int
	travel     [][]int
	windows    []Window
	volume     []int
	weight     []int
	volCap     []int
	weightCap  []int
	vehicles   int
	loadTime   int
	unloadTime int
}

// NewInstance computes haversine matrices from the stop coordinates. The
// distance matrix doubles as the travel-time matrix.
func NewInstance(stops []StopRecord, fleet Fleet) (*Instance, error) {
	pts := make([]geo.Point, len(stops))
	for i, s := range stops {
		pts[i] = geo.Point{Lat: s.Lat, Lon: s.Lon}
	}
	m := geo.Matrix(pts)
	return NewInstanceFromMatrices(m, m, stops, fleet)
}

// NewInstanceFromMatrices builds an instance from precomputed matrices.
func NewInstanceFromMatrices(distance, travel [][]int, stops []StopRecord, fleet Fleet) (*Instance, error) {
	n := len(stops)
	if n == 0 {
		return nil, invalidf(-1, "no stops, the depot must be stop 0")
	}
	if fleet.Depot != 0 {
		return nil, invalidf(-1, "depot index %d, only 0 is supported", fleet.Depot)
	}
	if fleet.Vehicles < 1 {
		return nil, invalidf(-1, "vehicle count %d, need at least 1", fleet.Vehicles)
	}
	if fleet.LoadTime < 0 || fleet.UnloadTime < 0 {
		return nil, invalidf(-1, "negative load or unload time")
	}
	volCap, err := expandCapacities("volume", fleet.VolumeCapacities, fleet.Vehicles)
	if err != nil {
		return nil, err
	}
	weightCap, err := expandCapacities("weight", fleet.WeightCapacities, fleet.Vehicles)
	if err != nil {
		return nil, err
	}
	if err := checkMatrix("distance", distance, n); err != nil {
		return nil, err
	}
	if err := checkMatrix("time", travel, n); err != nil {
		return nil, err
	}
	maxVol, maxWeight := maxOf(volCap), maxOf(weightCap)
	in := &Instance{
		distance:   distance,
		travel:     travel,
		windows:    make([]Window, n),
		volume:     make([]int, n),
		weight:     make([]int, n),
		volCap:     volCap,
		weightCap:  weightCap,
		vehicles:   fleet.Vehicles,
		loadTime:   fleet.LoadTime,
		unloadTime: fleet.UnloadTime,
	}
	for i, s := range stops {
		if s.WindowStart > s.WindowEnd {
			return nil, invalidf(i, "window start %d > end %d", s.WindowStart, s.WindowEnd)
		}
		if s.WindowStart < 0 {
			return nil, invalidf(i, "negative window start %d", s.WindowStart)
		}
		in.windows[i] = Window{Start: s.WindowStart, End: s.WindowEnd}
		if i == 0 {
			// depot demand is ignored
			continue
		}
		if s.Volume < 0 || s.Weight < 0 {
			return nil, invalidf(i, "negative demand")
		}
		if s.Volume > maxVol {
			return nil, invalidf(i, "volume %d exceeds largest vehicle capacity %d", s.Volume, maxVol)
		}
		if s.Weight > maxWeight {
			return nil, invalidf(i, "weight %d exceeds largest vehicle capacity %d", s.Weight, maxWeight)
		}
		in.volume[i] = s.Volume
		in.weight[i] = s.Weight
	}
	return in, nil
}

func expandCapacities(name string, caps []int, vehicles int) ([]int, error) {
	switch len(caps) {
	case 1:
		out := make([]int, vehicles)
		for i := range out {
			out[i] = caps[0]
		}
		caps = out
	case vehicles:
		caps = append([]int(nil), caps...)
	default:
		return nil, invalidf(-1, "%d %s capacities for %d vehicles", len(caps), name, vehicles)
	}
	for v, c := range caps {
		if c < 0 {
			return nil, invalidf(-1, "vehicle %d has negative %s capacity", v, name)
		}
	}
	return caps, nil
}

func checkMatrix(name string, m [][]int, n int) error {
	if len(m) != n {
		return invalidf(-1, "%s matrix has %d rows for %d stops", name, len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return invalidf(-1, "%s matrix row %d has %d columns for %d stops", name, i, len(row), n)
		}
		if row[i] != 0 {
			return invalidf(i, "%s matrix diagonal is %d", name, row[i])
		}
		for j, v := range row {
			if v < 0 {
				return invalidf(i, "negative %s to stop %d", name, j)
			}
		}
	}
	return nil
}

func maxOf(xs []int) int {
	m := 0
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

func (in *Instance) NumStops() int             { return len(in.windows) }
func (in *Instance) NumVehicles() int          { return in.vehicles }
func (in *Instance) Distance(from, to int) int { return in.distance[from][to] }
func (in *Instance) Travel(from, to int) int   { return in.travel[from][to] }
func (in *Instance) Window(stop int) Window    { return in.windows[stop] }
func (in *Instance) Volume(stop int) int       { return in.volume[stop] }
func (in *Instance) Weight(stop int) int       { return in.weight[stop] }
func (in *Instance) VolumeCapacity(v int) int  { return in.volCap[v] }
func (in *Instance) WeightCapacity(v int) int  { return in.weightCap[v] }
func (in *Instance) LoadTime() int             { return in.loadTime }
func (in *Instance) UnloadTime() int           { return in.unloadTime }

// maxTravel is the largest entry of the time matrix.
func (in *Instance) maxTravel() int {
	m := 0
	for _, row := range in.travel {
		if r := maxOf(row); r > m {
			m = r
		}
	}
	return m
}

func (in *Instance) maxWindowEnd() int {
	m := 0
	for _, w := range in.windows {
		if w.End > m {
			m = w.End
		}
	}
	return m
}
