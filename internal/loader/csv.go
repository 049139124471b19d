// Package loader reads stop records from the delivery CSV export. The first
// data row is the depot.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"routeplanner/internal/opt"
)

const (
	colLat = iota
	colLon
	colWindowStart
	colWindowEnd
	colVolume
	colWeight
	numCols
)

// aliases maps accepted header names to columns. The Portuguese names are
// those of the legacy planning export.
var aliases = map[string]int{
	"latitude":       colLat,
	"lat":            colLat,
	"longitude":      colLon,
	"lon":            colLon,
	"lng":            colLon,
	"inicio_janela":  colWindowStart,
	"window_start":   colWindowStart,
	"termino_janela": colWindowEnd,
	"window_end":     colWindowEnd,
	"volumetria":     colVolume,
	"volume":         colVolume,
	"peso":           colWeight,
	"weight":         colWeight,
}

var columnNames = [numCols]string{"latitude", "longitude", "inicio_janela", "termino_janela", "volumetria", "peso"}

// ErrNoRows is returned for a file with a header and nothing else.
var ErrNoRows = errors.New("loader: no stop rows")

func ReadFile(path string) ([]opt.StopRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a header row followed by one row per stop. Extra columns
// (an unnamed pandas index, ids, notes) are ignored.
func Read(r io.Reader) ([]opt.StopRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("loader: header: %w", err)
	}
	pos := [numCols]int{}
	for i := range pos {
		pos[i] = -1
	}
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if c, ok := aliases[name]; ok {
			pos[c] = i
		}
	}
	for c, p := range pos {
		if p < 0 {
			return nil, fmt.Errorf("loader: missing column %q", columnNames[c])
		}
	}

	var out []opt.StopRecord
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("loader: line %d: %w", line, err)
		}
		var vals [numCols]float64
		for c, p := range pos {
			if p >= len(rec) {
				return nil, fmt.Errorf("loader: line %d: missing %s", line, columnNames[c])
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[p]), 64)
			if err != nil {
				return nil, fmt.Errorf("loader: line %d: %s: %w", line, columnNames[c], err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("loader: line %d: %s: non-finite value %q", line, columnNames[c], strings.TrimSpace(rec[p]))
			}
			vals[c] = v
		}
		out = append(out, opt.StopRecord{
			Lat:         vals[colLat],
			Lon:         vals[colLon],
			WindowStart: int(math.Trunc(vals[colWindowStart])),
			WindowEnd:   int(math.Trunc(vals[colWindowEnd])),
			Volume:      int(math.Trunc(vals[colVolume])),
			Weight:      int(math.Trunc(vals[colWeight])),
		})
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}
