package opt

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Why a search stopped.
const (
	StopLocalOptimum = "local_optimum"
	StopIterations   = "iterations"
	StopDeadline     = "deadline"
	StopCanceled     = "canceled"
)

// SearchMetrics summarises one Improve run.
type SearchMetrics struct {
	Iterations       int            `json:"iterations"`
	Improvements     int            `json:"improvements"`
	AcceptedWorse    int            `json:"acceptedWorse"`
	InitialObjective int            `json:"initialObjective"`
	BestObjective    int            `json:"bestObjective"`
	Moves            map[string]int `json:"moves"`
	StopReason       string         `json:"stopReason"`
	Elapsed          time.Duration  `json:"elapsedNs"`
}

// Improve refines a complete assignment in place. Every committed move keeps
// the assignment feasible; the descent only commits strict improvements, so
// calling Improve on its own result changes nothing. The budget (TimeLimit,
// MaxIterations, ctx) only stops further commits.
func Improve(ctx context.Context, a *Assignment, p Params) (SearchMetrics, error) {
	start := time.Now()
	m := SearchMetrics{InitialObjective: a.Objective(), Moves: map[string]int{}}
	if !a.Complete() {
		return m, &NoSolutionError{Reason: "search needs a complete feasible assignment"}
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if p.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.TimeLimit)
		defer cancel()
	}
	if p.Annealing.Iterations > 0 {
		anneal(ctx, a, p, &m)
		log.Debug("annealing done", zap.Int("objective", a.Objective()), zap.Int("acceptedWorse", m.AcceptedWorse))
	}
	descend(ctx, a, p, &m)
	m.BestObjective = a.Objective()
	m.Elapsed = time.Since(start)
	log.Debug("search done",
		zap.Int("iterations", m.Iterations),
		zap.Int("improvements", m.Improvements),
		zap.String("stop", m.StopReason),
	)
	return m, nil
}

func stopReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StopDeadline
	}
	return StopCanceled
}

func descend(ctx context.Context, a *Assignment, p Params, m *SearchMetrics) {
	for pass := 0; ; pass++ {
		if p.MaxIterations > 0 && pass >= p.MaxIterations {
			m.StopReason = StopIterations
			return
		}
		if ctx.Err() != nil {
			m.StopReason = stopReason(ctx)
			return
		}
		mv := bestMove(ctx, a, p.Workers)
		if ctx.Err() != nil {
			// the pass may be partial; nothing from it is committed
			m.StopReason = stopReason(ctx)
			return
		}
		m.Iterations++
		if mv == nil {
			m.StopReason = StopLocalOptimum
			return
		}
		a.apply(mv)
		m.Improvements++
		m.Moves[mv.kind.String()]++
		if p.Progress != nil {
			p.Progress(Progress{Stage: "descent", Iteration: m.Iterations, Objective: a.Objective()})
		}
	}
}

// bestMove scans every route pair concurrently against the current snapshot
// and reduces the results in pair order, so the winner does not depend on
// scheduling.
func bestMove(ctx context.Context, a *Assignment, workers int) *move {
	type pair struct{ v1, v2 int }
	var pairs []pair
	for v1 := range a.routes {
		for v2 := v1; v2 < len(a.routes); v2++ {
			pairs = append(pairs, pair{v1, v2})
		}
	}
	base := a.Objective()
	results := make([]*move, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, pr := range pairs {
		i, pr := i, pr
		g.Go(func() error {
			s := &scanner{ctx: gctx, a: a, base: base}
			results[i] = s.scanPair(pr.v1, pr.v2)
			return nil
		})
	}
	_ = g.Wait()
	var best *move
	for _, mv := range results {
		if mv != nil && (best == nil || mv.delta < best.delta) {
			best = mv
		}
	}
	return best
}

// anneal walks random neighbours, accepting a worse one with probability
// exp(-delta/temp), and leaves a holding the best assignment it saw.
func anneal(ctx context.Context, a *Assignment, p Params, m *SearchMetrics) {
	seed := p.Annealing.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	temp := 1.0
	if p.Annealing.InitialTemp > 0 {
		temp = p.Annealing.InitialTemp
	}
	cool := 0.995
	if p.Annealing.Cooling > 0 && p.Annealing.Cooling < 1 {
		cool = p.Annealing.Cooling
	}
	best := a.clone()
	bestObj := a.Objective()
	for it := 1; it <= p.Annealing.Iterations; it++ {
		if ctx.Err() != nil {
			break
		}
		curr := a.Objective()
		mv := a.randomMove(rng, curr)
		if mv != nil && (mv.delta < 0 || rng.Float64() < math.Exp(-float64(mv.delta)/(temp+1e-9))) {
			a.apply(mv)
			m.Moves[mv.kind.String()]++
			if mv.delta >= 0 {
				m.AcceptedWorse++
			}
			if curr+mv.delta < bestObj {
				best = a.clone()
				bestObj = curr + mv.delta
				m.Improvements++
				if p.Progress != nil {
					p.Progress(Progress{Stage: "annealing", Iteration: it, Objective: bestObj})
				}
			}
		}
		temp *= cool
	}
	a.restore(best)
}
