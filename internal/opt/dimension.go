package opt

// DimensionKind tells how a dimension's transit is evaluated.
type DimensionKind int

const (
	// Binary transits depend on the arc (from, to).
	Binary DimensionKind = iota
	// Unary transits depend only on the index being entered.
	Unary
)

// Dimension is a cumulative quantity tracked along every route. All
// dimensions are propagated by the same forward pass: the cumul at a visit is
// the previous cumul plus the transit, raised to the visit's lower bound when
// waiting (up to SlackMax) is allowed, and rejected once above its upper bound.
type Dimension struct {
	Name string
	Kind DimensionKind
	// Transit is used by Binary dimensions, on routing indices.
	Transit func(from, to int) int
	// Demand is used by Unary dimensions; the cumul at a visit includes its own demand.
	Demand func(index int) int
	// Capacity bounds the cumul at every visit, per vehicle.
	Capacity []int
	// Windows optionally bounds the cumul per routing index.
	Windows  []Window
	SlackMax int
	// FixStartCumulToZero pins the start cumul to 0 instead of the start window's lower bound.
	FixStartCumulToZero bool
}

func (d *Dimension) step(from, to int) int {
	if d.Kind == Unary {
		return d.Demand(to)
	}
	return d.Transit(from, to)
}

func (d *Dimension) bounds(index, vehicle int) (lo, hi int) {
	hi = d.Capacity[vehicle]
	if d.Windows != nil {
		w := d.Windows[index]
		lo = w.Start
		if w.End < hi {
			hi = w.End
		}
	}
	return lo, hi
}

// cumulate writes the earliest cumul of each visit of path into out and
// reports whether every bound holds. Without slack the route cannot wait, so a
// window that would be reached early is met by leaving the start later instead,
// as long as no visit already placed is pushed past its upper bound.
func (d *Dimension) cumulate(vehicle int, path []int, out []int) bool {
	lo, hi := d.bounds(path[0], vehicle)
	c := lo
	if d.FixStartCumulToZero {
		c = 0
	}
	if c < lo || c > hi {
		return false
	}
	out[0] = c
	delay := -1 // how far the start may still move; -1 when it is fixed
	if d.SlackMax == 0 && !d.FixStartCumulToZero {
		delay = hi - c
	}
	for k := 1; k < len(path); k++ {
		c += d.step(path[k-1], path[k])
		lo, hi = d.bounds(path[k], vehicle)
		if c > hi {
			return false
		}
		if c < lo {
			switch wait := lo - c; {
			case wait <= d.SlackMax:
			case wait <= delay:
				for j := 0; j < k; j++ {
					out[j] += wait
				}
				delay -= wait
			default:
				return false
			}
			c = lo
			if c > hi {
				return false
			}
		}
		if delay > hi-c {
			delay = hi - c
		}
		out[k] = c
	}
	return true
}

// latest writes, for each visit, the latest cumul that still lets the rest of
// the route meet its upper bounds.
func (d *Dimension) latest(vehicle int, path []int, out []int) {
	n := len(path)
	_, out[n-1] = d.bounds(path[n-1], vehicle)
	for k := n - 2; k >= 0; k-- {
		_, hi := d.bounds(path[k], vehicle)
		if l := out[k+1] - d.step(path[k], path[k+1]); l < hi {
			hi = l
		}
		out[k] = hi
	}
}
