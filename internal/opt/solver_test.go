package opt

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomInstance scatters stops around a depot with wide windows and small
// demands, so every generated instance is feasible.
func randomInstance(t *testing.T, seed int64, stops int) *Instance {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	recs := make([]StopRecord, stops)
	recs[0] = StopRecord{Lat: -23.55, Lon: -46.63, WindowStart: 0, WindowEnd: 2000}
	for i := 1; i < stops; i++ {
		start := rng.Intn(50)
		recs[i] = StopRecord{
			Lat:         -23.55 + (rng.Float64()-0.5)*0.4,
			Lon:         -46.63 + (rng.Float64()-0.5)*0.4,
			WindowStart: start,
			WindowEnd:   start + 1000,
			Volume:      1 + rng.Intn(10),
			Weight:      1 + rng.Intn(10),
		}
	}
	in, err := NewInstance(recs, Fleet{
		Vehicles:         3,
		VolumeCapacities: []int{55, 80, 100},
		WeightCapacities: []int{50, 70, 90},
		LoadTime:         2,
		UnloadTime:       3,
	})
	require.NoError(t, err)
	return in
}

func searchParams() Params {
	return Params{SpanCostCoefficient: 100, Workers: 4}
}

func requirePartition(t *testing.T, in *Instance, routes [][]int) {
	t.Helper()
	seen := map[int]int{}
	for _, r := range routes {
		for _, s := range r {
			require.NotZero(t, s, "depot inside a route")
			seen[s]++
		}
	}
	for s := 1; s < in.NumStops(); s++ {
		require.Equal(t, 1, seen[s], "stop %d", s)
	}
	require.Len(t, seen, in.NumStops()-1)
}

func TestSolveSingleVehicleMatchesBruteForce(t *testing.T) {
	d := squareMatrix()
	in, err := NewInstanceFromMatrices(d, d, openStops(4), oneVehicle(10))
	require.NoError(t, err)

	sol, err := Solve(context.Background(), in, searchParams())
	require.NoError(t, err)
	require.Len(t, sol.Routes, 1)

	stops := sol.Routes[0].Stops()
	require.Len(t, stops, 5)
	assert.Zero(t, stops[0])
	assert.Zero(t, stops[4])

	best := -1
	for _, p := range [][]int{{1, 2, 3}, {1, 3, 2}, {2, 1, 3}, {2, 3, 1}, {3, 1, 2}, {3, 2, 1}} {
		c := d[0][p[0]] + d[p[0]][p[1]] + d[p[1]][p[2]] + d[p[2]][0]
		if best < 0 || c < best {
			best = c
		}
	}
	assert.Equal(t, best, sol.TotalDistance)
	assert.Equal(t, best, sol.MaxRouteDistance)
	assert.Equal(t, best+100*best, sol.Objective)
}

func TestSolveRandomInstancesHoldConstraints(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		in := randomInstance(t, seed, 15)
		sol, err := Solve(context.Background(), in, searchParams())
		require.NoError(t, err, "seed %d", seed)

		routes := make([][]int, len(sol.Routes))
		total, longest, totalTime := 0, 0, 0
		for v, r := range sol.Routes {
			stops := r.Stops()
			routes[v] = stops[1 : len(stops)-1]
			last := r.Visits[len(r.Visits)-1]
			assert.LessOrEqual(t, last.Volume, in.VolumeCapacity(v))
			assert.LessOrEqual(t, last.Weight, in.WeightCapacity(v))
			for _, vis := range r.Visits[1 : len(r.Visits)-1] {
				w := in.Window(vis.Node)
				assert.GreaterOrEqual(t, vis.TimeMin, w.Start, "seed %d stop %d", seed, vis.Node)
				assert.LessOrEqual(t, vis.TimeMin, w.End, "seed %d stop %d", seed, vis.Node)
				assert.LessOrEqual(t, vis.TimeMin, vis.TimeMax)
				assert.LessOrEqual(t, vis.TimeMax, w.End)
			}
			total += r.Distance
			totalTime += r.Time
			if r.Distance > longest {
				longest = r.Distance
			}
		}
		requirePartition(t, in, routes)
		assert.Equal(t, total, sol.TotalDistance)
		assert.Equal(t, longest, sol.MaxRouteDistance)
		assert.Equal(t, totalTime, sol.TotalTime)
		assert.Equal(t, total+100*longest, sol.Objective)
		assert.LessOrEqual(t, sol.Objective, sol.Metrics.InitialObjective)
	}
}

func TestImproveIsIdempotent(t *testing.T) {
	in := randomInstance(t, 7, 14)
	p := searchParams()
	a, err := Construct(context.Background(), NewModel(in, p))
	require.NoError(t, err)

	first, err := Improve(context.Background(), a, p)
	require.NoError(t, err)
	require.Equal(t, StopLocalOptimum, first.StopReason)
	routes := a.Routes()

	second, err := Improve(context.Background(), a, p)
	require.NoError(t, err)
	assert.Equal(t, routes, a.Routes())
	assert.Zero(t, second.Improvements)
	assert.Equal(t, first.BestObjective, second.BestObjective)
	assert.Equal(t, StopLocalOptimum, second.StopReason)
}

func TestSolveIsDeterministicAcrossWorkerCounts(t *testing.T) {
	in := randomInstance(t, 11, 16)
	p := searchParams()
	p.Workers = 1
	a, err := Solve(context.Background(), in, p)
	require.NoError(t, err)
	p.Workers = 8
	b, err := Solve(context.Background(), in, p)
	require.NoError(t, err)
	for v := range a.Routes {
		assert.Equal(t, a.Routes[v].Stops(), b.Routes[v].Stops())
	}
}

func TestAnnealingKeepsFeasibility(t *testing.T) {
	in := randomInstance(t, 3, 15)
	p := searchParams()
	p.Annealing = Annealing{Iterations: 500, InitialTemp: 50, Cooling: 0.99, Seed: 42}
	var progress []Progress
	p.Progress = func(pr Progress) { progress = append(progress, pr) }

	sol, err := Solve(context.Background(), in, p)
	require.NoError(t, err)
	routes := make([][]int, len(sol.Routes))
	for v, r := range sol.Routes {
		s := r.Stops()
		routes[v] = s[1 : len(s)-1]
	}
	requirePartition(t, in, routes)
	assert.LessOrEqual(t, sol.Objective, sol.Metrics.InitialObjective)
	for i := 1; i < len(progress); i++ {
		if progress[i].Stage == progress[i-1].Stage {
			assert.Less(t, progress[i].Objective, progress[i-1].Objective)
		}
	}
}

func TestImproveStopsAtIterationBudget(t *testing.T) {
	in := randomInstance(t, 5, 15)
	p := searchParams()
	a, err := Construct(context.Background(), NewModel(in, p))
	require.NoError(t, err)
	p.MaxIterations = 1
	m, err := Improve(context.Background(), a, p)
	require.NoError(t, err)
	assert.LessOrEqual(t, m.Iterations, 1)
	assert.Contains(t, []string{StopIterations, StopLocalOptimum}, m.StopReason)
}

func TestImproveCommitsNothingWhenCanceled(t *testing.T) {
	in := randomInstance(t, 9, 12)
	p := searchParams()
	a, err := Construct(context.Background(), NewModel(in, p))
	require.NoError(t, err)
	before := a.Routes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := Improve(ctx, a, p)
	require.NoError(t, err)
	assert.Equal(t, StopCanceled, m.StopReason)
	assert.Equal(t, before, a.Routes())
}

func TestSolveCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Solve(ctx, randomInstance(t, 1, 5), searchParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConstructCapacityExhausted(t *testing.T) {
	stops := openStops(4)
	stops[1].Volume, stops[2].Volume, stops[3].Volume = 60, 60, 1
	in, err := NewInstanceFromMatrices(squareMatrix(), squareMatrix(), stops,
		Fleet{Vehicles: 1, VolumeCapacities: []int{100}, WeightCapacities: []int{100}})
	require.NoError(t, err)

	_, err = Solve(context.Background(), in, searchParams())
	var nfi *NoFeasibleInsertionError
	require.True(t, errors.As(err, &nfi), "got %v", err)
	assert.Equal(t, 2, nfi.Assigned)
	assert.Equal(t, 1, nfi.Unassigned)
}

func TestConstructDistanceCapExceeded(t *testing.T) {
	fleet := Fleet{Vehicles: 3, VolumeCapacities: []int{10}, WeightCapacities: []int{10}}
	in, err := NewInstanceFromMatrices(squareMatrix(), squareMatrix(), openStops(4), fleet)
	require.NoError(t, err)
	p := searchParams()
	p.MaxRouteDistance = 35 // stop 3 alone needs a 40 round trip

	_, err = Construct(context.Background(), NewModel(in, p))
	var nfi *NoFeasibleInsertionError
	require.True(t, errors.As(err, &nfi), "got %v", err)
	assert.Equal(t, 3, nfi.Stop)
}

func TestTimeDimensionLoadUnloadAndWaiting(t *testing.T) {
	d := [][]int{{0, 10}, {10, 0}}
	stops := []StopRecord{
		{WindowStart: 0, WindowEnd: 100},
		{WindowStart: 20, WindowEnd: 30, Volume: 1, Weight: 1},
	}
	in, err := NewInstanceFromMatrices(d, d, stops,
		Fleet{Vehicles: 2, VolumeCapacities: []int{5}, WeightCapacities: []int{5}, LoadTime: 5, UnloadTime: 3})
	require.NoError(t, err)

	p := Params{Horizon: 100}
	sol, err := Solve(context.Background(), in, p)
	require.NoError(t, err)

	r := sol.Routes[0]
	require.Equal(t, []int{0, 1, 0}, r.Stops())
	assert.Equal(t, 20, r.Visits[1].TimeMin, "arrives at 15 and waits for the window")
	assert.Equal(t, 30, r.Visits[1].TimeMax)
	assert.Equal(t, 33, r.Visits[2].TimeMin)
	assert.Equal(t, 33, r.Time)
	assert.Equal(t, 20, r.Distance)

	unused := sol.Routes[1]
	assert.Equal(t, []int{0, 0}, unused.Stops())
	assert.Zero(t, unused.Distance)
	assert.Zero(t, unused.Time)
	assert.Equal(t, 33, sol.TotalTime)

	p.NoWaiting = true
	sol, err = Solve(context.Background(), in, p)
	require.NoError(t, err)
	r = sol.Routes[0]
	assert.Equal(t, 5, r.Visits[0].TimeMin, "leaves late instead of waiting")
	assert.Equal(t, 20, r.Visits[1].TimeMin)
	assert.Equal(t, 33, r.Visits[2].TimeMin)
	assert.Equal(t, 28, r.Time)
}

func TestNoWaitingDelaysDeparture(t *testing.T) {
	d := [][]int{{0, 10}, {10, 0}}
	stops := []StopRecord{
		{WindowStart: 0, WindowEnd: 100},
		{WindowStart: 50, WindowEnd: 60, Volume: 1, Weight: 1},
	}
	fleet := Fleet{Vehicles: 1, VolumeCapacities: []int{5}, WeightCapacities: []int{5}}
	in, err := NewInstanceFromMatrices(d, d, stops, fleet)
	require.NoError(t, err)

	p := Params{Horizon: 200, NoWaiting: true}
	sol, err := Solve(context.Background(), in, p)
	require.NoError(t, err)
	r := sol.Routes[0]
	assert.Equal(t, 40, r.Visits[0].TimeMin)
	assert.Equal(t, 50, r.Visits[1].TimeMin)
	assert.Equal(t, 60, r.Visits[2].TimeMin)
	assert.Equal(t, 20, r.Time)

	stops[0].WindowEnd = 30
	in, err = NewInstanceFromMatrices(d, d, stops, fleet)
	require.NoError(t, err)
	_, err = Solve(context.Background(), in, p)
	var nfi *NoFeasibleInsertionError
	assert.True(t, errors.As(err, &nfi), "depot closes before the stop can be reached on time, got %v", err)
}

func weightBoundStops() ([][]int, []StopRecord) {
	d := [][]int{
		{0, 10, 15},
		{10, 0, 35},
		{15, 35, 0},
	}
	stops := []StopRecord{
		{WindowEnd: 1000},
		{WindowEnd: 1000, Volume: 1, Weight: 6},
		{WindowEnd: 1000, Volume: 1, Weight: 6},
	}
	return d, stops
}

func TestWeightAloneBindsOneVehicle(t *testing.T) {
	d, stops := weightBoundStops()
	in, err := NewInstanceFromMatrices(d, d, stops,
		Fleet{Vehicles: 1, VolumeCapacities: []int{100}, WeightCapacities: []int{10}})
	require.NoError(t, err)

	_, err = Solve(context.Background(), in, searchParams())
	var nfi *NoFeasibleInsertionError
	require.True(t, errors.As(err, &nfi), "got %v", err)
	assert.Equal(t, 1, nfi.Assigned)
	assert.Equal(t, 1, nfi.Unassigned)

	in, err = NewInstanceFromMatrices(d, d, stops,
		Fleet{Vehicles: 1, VolumeCapacities: []int{100}, WeightCapacities: []int{12}})
	require.NoError(t, err)
	sol, err := Solve(context.Background(), in, searchParams())
	require.NoError(t, err)
	assert.Equal(t, 12, sol.Routes[0].Weight)
	assert.Equal(t, 2, sol.Routes[0].Volume)
}

func TestWeightAloneSplitsStops(t *testing.T) {
	d, stops := weightBoundStops()
	in, err := NewInstanceFromMatrices(d, d, stops,
		Fleet{Vehicles: 2, VolumeCapacities: []int{100}, WeightCapacities: []int{10}})
	require.NoError(t, err)

	p := searchParams()
	p.SpanCostCoefficient = 0
	sol, err := Solve(context.Background(), in, p)
	require.NoError(t, err)
	routes := make([][]int, len(sol.Routes))
	for v, r := range sol.Routes {
		s := r.Stops()
		routes[v] = s[1 : len(s)-1]
		assert.Len(t, routes[v], 1, "vehicle %d", v)
		assert.Equal(t, 6, r.Weight)
	}
	requirePartition(t, in, routes)
}

func TestConstructTieBreaks(t *testing.T) {
	d := [][]int{
		{0, 10, 10, 10},
		{10, 0, 10, 10},
		{10, 10, 0, 10},
		{10, 10, 10, 0},
	}
	in, err := NewInstanceFromMatrices(d, d, openStops(4),
		Fleet{Vehicles: 2, VolumeCapacities: []int{10}, WeightCapacities: []int{10}})
	require.NoError(t, err)

	// every stop costs 20 on an empty route and 10 next to a routed one, so
	// each round the lowest stop goes to vehicle 0 at the front
	a, err := Construct(context.Background(), NewModel(in, Params{}))
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3, 2, 1}, {}}, a.Routes())
}

func TestExtractWithoutAssignment(t *testing.T) {
	_, err := Extract(nil)
	var nse *NoSolutionError
	assert.True(t, errors.As(err, &nse))
}

func TestMetricsStore(t *testing.T) {
	RecordMetrics("t-metrics", "sol-1", SearchMetrics{Iterations: 3})
	RecordMetrics("t-metrics", "sol-2", SearchMetrics{Iterations: 5})
	RecordMetrics("other", "sol-3", SearchMetrics{Iterations: 7})
	got := GetMetrics("t-metrics")
	require.Len(t, got, 2)
	assert.Equal(t, 5, got["sol-2"].Iterations)
}
