package opt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareMatrix() [][]int {
	return [][]int{
		{0, 10, 15, 20},
		{10, 0, 35, 25},
		{15, 35, 0, 30},
		{20, 25, 30, 0},
	}
}

func openStops(n int) []StopRecord {
	stops := make([]StopRecord, n)
	for i := range stops {
		stops[i] = StopRecord{WindowStart: 0, WindowEnd: 10000, Volume: 1, Weight: 1}
	}
	stops[0].Volume, stops[0].Weight = 0, 0
	return stops
}

func oneVehicle(capacity int) Fleet {
	return Fleet{Vehicles: 1, VolumeCapacities: []int{capacity}, WeightCapacities: []int{capacity}}
}

func requireInvalid(t *testing.T, err error) *InvalidInstanceError {
	t.Helper()
	var iie *InvalidInstanceError
	require.True(t, errors.As(err, &iie), "want InvalidInstanceError, got %v", err)
	return iie
}

func TestNewInstanceFromCoordinates(t *testing.T) {
	stops := []StopRecord{
		{Lat: 0, Lon: 0, WindowEnd: 500},
		{Lat: 1, Lon: 0, WindowEnd: 500, Volume: 3, Weight: 2},
		{Lat: 0, Lon: 1, WindowEnd: 500, Volume: 4, Weight: 5},
	}
	fleet := Fleet{Vehicles: 3, VolumeCapacities: []int{55, 80, 100}, WeightCapacities: []int{50, 70, 90}}
	in, err := NewInstance(stops, fleet)
	require.NoError(t, err)
	assert.Equal(t, 3, in.NumStops())
	assert.Equal(t, 3, in.NumVehicles())
	assert.Equal(t, 111, in.Distance(0, 1))
	assert.Equal(t, in.Distance(1, 2), in.Distance(2, 1))
	assert.Equal(t, in.Distance(1, 2), in.Travel(1, 2))
	assert.Equal(t, 80, in.VolumeCapacity(1))
	assert.Equal(t, 90, in.WeightCapacity(2))
	assert.Equal(t, 5, in.Weight(2))
}

func TestNewInstanceBroadcastsSingleCapacity(t *testing.T) {
	in, err := NewInstanceFromMatrices(squareMatrix(), squareMatrix(), openStops(4),
		Fleet{Vehicles: 2, VolumeCapacities: []int{7}, WeightCapacities: []int{9}})
	require.NoError(t, err)
	assert.Equal(t, 7, in.VolumeCapacity(1))
	assert.Equal(t, 9, in.WeightCapacity(1))
}

func TestNewInstanceIgnoresDepotDemand(t *testing.T) {
	stops := openStops(4)
	stops[0].Volume, stops[0].Weight = 1000, 1000
	in, err := NewInstanceFromMatrices(squareMatrix(), squareMatrix(), stops, oneVehicle(10))
	require.NoError(t, err)
	assert.Zero(t, in.Volume(0))
	assert.Zero(t, in.Weight(0))
}

func TestNewInstanceRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(d, tm *[][]int, stops []StopRecord, f *Fleet)
		stop   int
	}{
		{"window start after end", func(_, _ *[][]int, s []StopRecord, _ *Fleet) { s[2].WindowStart, s[2].WindowEnd = 50, 40 }, 2},
		{"volume above every capacity", func(_, _ *[][]int, s []StopRecord, _ *Fleet) { s[1].Volume = 11 }, 1},
		{"weight above every capacity", func(_, _ *[][]int, s []StopRecord, _ *Fleet) { s[3].Weight = 11 }, 3},
		{"negative demand", func(_, _ *[][]int, s []StopRecord, _ *Fleet) { s[1].Weight = -1 }, 1},
		{"distance matrix too small", func(d, _ *[][]int, _ []StopRecord, _ *Fleet) { *d = (*d)[:3] }, -1},
		{"time matrix ragged", func(_, tm *[][]int, _ []StopRecord, _ *Fleet) { (*tm)[1] = (*tm)[1][:2] }, -1},
		{"non-zero diagonal", func(d, _ *[][]int, _ []StopRecord, _ *Fleet) { (*d)[2][2] = 1 }, 2},
		{"no vehicles", func(_, _ *[][]int, _ []StopRecord, f *Fleet) { f.Vehicles = 0 }, -1},
		{"depot not zero", func(_, _ *[][]int, _ []StopRecord, f *Fleet) { f.Depot = 2 }, -1},
		{"capacity count mismatch", func(_, _ *[][]int, _ []StopRecord, f *Fleet) {
			f.Vehicles = 3
			f.VolumeCapacities = []int{10, 10}
		}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, tm := squareMatrix(), squareMatrix()
			stops := openStops(4)
			fleet := oneVehicle(10)
			tc.mutate(&d, &tm, stops, &fleet)
			_, err := NewInstanceFromMatrices(d, tm, stops, fleet)
			iie := requireInvalid(t, err)
			assert.Equal(t, tc.stop, iie.Stop)
		})
	}

	_, err := NewInstance(nil, oneVehicle(10))
	requireInvalid(t, err)
}
