package geo

import (
	"math"
	"runtime"

	"github.com/golang/geo/s2"
	"golang.org/x/sync/errgroup"
)

const earthRadiusKM = 6371.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceKM returns the great-circle (haversine) distance between a and b in
// kilometres, rounded to the nearest integer.
func DistanceKM(a, b Point) int {
	if a == b {
		return 0
	}
	angle := s2.LatLngFromDegrees(a.Lat, a.Lon).Distance(s2.LatLngFromDegrees(b.Lat, b.Lon))
	return int(math.Round(angle.Radians() * earthRadiusKM))
}

// Matrix builds the symmetric N×N distance matrix for pts. Only the upper
// triangle is computed and mirrored, so m[i][j] == m[j][i] holds bit for bit.
func Matrix(pts []Point) [][]int {
	n := len(pts)
	m := make([][]int, n)
	for i := range m {
		m[i] = make([]int, n)
	}
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			// row i owns cells (i,j) and (j,i) for j > i
			for j := i + 1; j < n; j++ {
				d := DistanceKM(pts[i], pts[j])
				m[i][j] = d
				m[j][i] = d
			}
			return nil
		})
	}
	_ = g.Wait()
	return m
}
