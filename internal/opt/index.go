package opt

import "fmt"

// IndexManager translates between stops (0..N-1, 0 = depot) and routing
// indices. Stops 1..N-1 occupy indices 0..N-2; vehicle v then owns start index
// N-1+v and end index N-1+V+v, both of which resolve to the depot.
type IndexManager struct {
	stops    int
	vehicles int
}

// NewIndexManager lays out the index space for N stops and V vehicles.
func NewIndexManager(stops, vehicles int) *IndexManager {
	return &IndexManager{stops: stops, vehicles: vehicles}
}

// Size is the number of routing indices: N-1 stops plus 2V depot copies.
func (m *IndexManager) Size() int { return m.stops - 1 + 2*m.vehicles }

func (m *IndexManager) NumVehicles() int { return m.vehicles }

// Start is vehicle's start index.
func (m *IndexManager) Start(vehicle int) int { return m.stops - 1 + vehicle }

// End is vehicle's end index.
func (m *IndexManager) End(vehicle int) int { return m.stops - 1 + m.vehicles + vehicle }

// IsStart reports whether index is some vehicle's start.
func (m *IndexManager) IsStart(index int) bool {
	return index >= m.stops-1 && index < m.stops-1+m.vehicles
}

// IsEnd reports whether index is some vehicle's end.
func (m *IndexManager) IsEnd(index int) bool {
	return index >= m.stops-1+m.vehicles && index < m.Size()
}

// IndexToNode maps a routing index back to its stop; starts and ends give 0.
func (m *IndexManager) IndexToNode(index int) int {
	if index < m.stops-1 {
		return index + 1
	}
	return 0
}

// NodeToIndex resolves a non-depot stop. The depot has no single index; use
// Start or End with the vehicle instead.
func (m *IndexManager) NodeToIndex(node int) (int, error) {
	if node == 0 {
		return -1, ErrDepotIndexAmbiguous
	}
	if node < 0 || node >= m.stops {
		return -1, fmt.Errorf("node %d out of range [0,%d)", node, m.stops)
	}
	return node - 1, nil
}
