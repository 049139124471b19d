package opt

import (
	"errors"
	"fmt"
)

// ErrDepotIndexAmbiguous is returned when the depot node is resolved to a
// routing index without naming the vehicle whose start or end is wanted.
var ErrDepotIndexAmbiguous = errors.New("depot maps to one start and one end index per vehicle")

// InvalidInstanceError reports malformed input detected before any search runs.
// Stop is -1 when the problem is not tied to a single stop.
type InvalidInstanceError struct {
	Stop   int
	Reason string
}

func (e *InvalidInstanceError) Error() string {
	if e.Stop >= 0 {
		return fmt.Sprintf("invalid instance: stop %d: %s", e.Stop, e.Reason)
	}
	return "invalid instance: " + e.Reason
}

func invalidf(stop int, format string, args ...any) error {
	return &InvalidInstanceError{Stop: stop, Reason: fmt.Sprintf(format, args...)}
}

// NoFeasibleInsertionError is raised by construction when Stop cannot be placed
// on any route without breaking a capacity, distance or time-window bound.
// A stop whose own volume or weight exceeds every vehicle's capacity never gets
// here: NewInstanceFromMatrices rejects it with an InvalidInstanceError.
type NoFeasibleInsertionError struct {
	Stop       int
	Assigned   int
	Unassigned int
}

func (e *NoFeasibleInsertionError) Error() string {
	return fmt.Sprintf("no feasible insertion for stop %d (%d assigned, %d unassigned)", e.Stop, e.Assigned, e.Unassigned)
}

// NoSolutionError means no complete feasible assignment was ever produced.
type NoSolutionError struct {
	Reason string
}

func (e *NoSolutionError) Error() string {
	return "no solution: " + e.Reason
}
