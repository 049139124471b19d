package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"routeplanner/internal/opt"
	"routeplanner/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail,omitempty"`
	Instance   string `json:"instance,omitempty"`
	Kind       string `json:"kind,omitempty"`
	SolutionID string `json:"solutionId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// Error kinds reported on failed solutions and problem bodies.
const (
	kindInvalidInstance     = "invalid_instance"
	kindNoFeasibleInsertion = "no_feasible_insertion"
	kindNoSolution          = "no_solution"
	kindCanceled            = "canceled"
	kindInternal            = "internal"
)

// classify maps an error to its HTTP status, problem title and kind.
func classify(err error) (int, string, string) {
	var inv *opt.InvalidInstanceError
	var nfi *opt.NoFeasibleInsertionError
	var nos *opt.NoSolutionError
	switch {
	case errors.As(err, &inv):
		return http.StatusUnprocessableEntity, "Invalid instance", kindInvalidInstance
	case errors.As(err, &nfi):
		return http.StatusUnprocessableEntity, "No feasible insertion", kindNoFeasibleInsertion
	case errors.As(err, &nos):
		return http.StatusUnprocessableEntity, "No solution", kindNoSolution
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Solve interrupted", kindCanceled
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not Found", ""
	default:
		return http.StatusInternalServerError, "Internal error", kindInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, solutionID string) {
	status, title, kind := classify(err)
	writeJSON(w, status, Problem{
		Type:       "about:blank",
		Title:      title,
		Status:     status,
		Detail:     err.Error(),
		Instance:   r.URL.Path,
		Kind:       kind,
		SolutionID: solutionID,
	})
}
