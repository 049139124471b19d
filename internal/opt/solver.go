package opt

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Solve builds an initial assignment by cheapest insertion, improves it by
// local search within the budget in p, and extracts the routes. Either a
// complete feasible solution or an error is returned.
func Solve(ctx context.Context, in *Instance, p Params) (*Solution, error) {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := NewModel(in, p)
	a, err := Construct(ctx, m)
	if err != nil {
		var nfi *NoFeasibleInsertionError
		if errors.As(err, &nfi) {
			log.Warn("construction failed", zap.Int("stop", nfi.Stop), zap.Int("assigned", nfi.Assigned))
		}
		return nil, err
	}
	log.Debug("initial assignment", zap.Int("objective", a.Objective()))
	metrics, err := Improve(ctx, a, p)
	if err != nil {
		return nil, err
	}
	sol, err := Extract(a)
	if err != nil {
		return nil, err
	}
	sol.Metrics = metrics
	log.Info("solve finished",
		zap.Int("stops", in.NumStops()),
		zap.Int("vehicles", in.NumVehicles()),
		zap.Int("objective", sol.Objective),
		zap.Int("totalDistance", sol.TotalDistance),
		zap.Int("maxRouteDistance", sol.MaxRouteDistance),
		zap.Duration("elapsed", metrics.Elapsed),
	)
	return sol, nil
}
