package api

import (
    "context"
    "encoding/json"
    "net/http"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "routeplanner/internal/metrics"
    "routeplanner/internal/model"
    "routeplanner/internal/opt"
    "routeplanner/internal/webhooks"
)

const (
    statusRunning   = "running"
    statusCompleted = "completed"
    statusFailed    = "failed"

    eventProgress = "solve.progress"
)

const maxSolveBody = 16 << 20

// SolveHandler handles POST /v1/solve. With ?async=true the solve runs in the
// background and 202 is returned with the solution id, whose events can be
// followed on /v1/solutions/{id}/events.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !(p.IsAdmin() || p.Role == "dispatcher") { writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path); return }
    var req model.SolveRequest
    if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSolveBody)).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.TenantID == "" { req.TenantID = p.Tenant }
    if err := s.validate.Struct(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
        return
    }
    in, params, err := s.buildProblem(r.Context(), &req)
    if err != nil {
        metrics.Solves.WithLabelValues(kindInvalidInstance).Inc()
        writeError(w, r, err, "")
        return
    }

    id := uuid.NewString()
    if async := r.URL.Query().Get("async"); async == "true" || async == "1" {
        pending := model.SolutionOut{ID: id, TenantID: req.TenantID, Status: statusRunning, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
        if err := s.Store.SaveSolution(r.Context(), pending); err != nil {
            writeProblem(w, http.StatusInternalServerError, "Save solution failed", err.Error(), r.URL.Path)
            return
        }
        s.wg.Add(1)
        go func() {
            defer s.wg.Done()
            _, _ = s.runSolve(s.ctx, id, &req, in, params)
        }()
        writeJSON(w, http.StatusAccepted, pending)
        return
    }

    out, err := s.runSolve(r.Context(), id, &req, in, params)
    if err != nil {
        writeError(w, r, err, out.ID)
        return
    }
    writeJSON(w, http.StatusOK, out)
}

// buildProblem turns a validated request into an engine instance and
// parameters: config defaults, then the tenant's stored overrides, then the
// request's own overrides.
func (s *Server) buildProblem(ctx context.Context, req *model.SolveRequest) (*opt.Instance, opt.Params, error) {
    params := s.Config.Solver.Params()
    if cfg, err := s.Store.GetSolverConfig(ctx, req.TenantID); err != nil {
        s.Log.Warn("load tenant solver config", zap.String("tenant", req.TenantID), zap.Error(err))
    } else if cfg != nil {
        var sp model.SolverParams
        if b, err := json.Marshal(cfg); err == nil && json.Unmarshal(b, &sp) == nil {
            applyParams(&params, &sp)
        }
    }
    applyParams(&params, req.Params)

    fleet := s.Config.Solver.Fleet()
    if f := req.Fleet; f != nil {
        fleet = opt.Fleet{
            Vehicles:         f.Vehicles,
            VolumeCapacities: f.VolumeCapacities,
            WeightCapacities: f.WeightCapacities,
            LoadTime:         f.LoadTime,
            UnloadTime:       f.UnloadTime,
        }
    }
    stops := make([]opt.StopRecord, len(req.Stops))
    for i, st := range req.Stops {
        stops[i] = opt.StopRecord{Lat: st.Lat, Lon: st.Lng, WindowStart: st.WindowStart, WindowEnd: st.WindowEnd, Volume: st.Volume, Weight: st.Weight}
    }
    var in *opt.Instance
    var err error
    if req.DistanceMatrix != nil {
        travel := req.TimeMatrix
        if travel == nil { travel = req.DistanceMatrix }
        in, err = opt.NewInstanceFromMatrices(req.DistanceMatrix, travel, stops, fleet)
    } else {
        in, err = opt.NewInstance(stops, fleet)
    }
    return in, params, err
}

func applyParams(p *opt.Params, sp *model.SolverParams) {
    if sp == nil { return }
    if sp.SpanCostCoefficient != nil { p.SpanCostCoefficient = *sp.SpanCostCoefficient }
    if sp.MaxRouteDistance != nil { p.MaxRouteDistance = *sp.MaxRouteDistance }
    if sp.Horizon != nil { p.Horizon = *sp.Horizon }
    if sp.NoWaiting { p.NoWaiting = true }
    if sp.TimeLimitMs > 0 { p.TimeLimit = time.Duration(sp.TimeLimitMs) * time.Millisecond }
    if sp.MaxIterations > 0 { p.MaxIterations = sp.MaxIterations }
    if a := sp.Annealing; a != nil {
        p.Annealing = opt.Annealing{Iterations: a.Iterations, InitialTemp: a.InitialTemp, Cooling: a.Cooling, Seed: a.Seed}
    }
}

// runSolve solves, persists the outcome under id and notifies live listeners
// and webhook subscribers. Failed solves are stored too.
func (s *Server) runSolve(ctx context.Context, id string, req *model.SolveRequest, in *opt.Instance, params opt.Params) (model.SolutionOut, error) {
    log := s.Log.With(zap.String("solutionId", id), zap.String("tenant", req.TenantID))
    params.Logger = log
    params.Progress = func(pr opt.Progress) {
        s.Broker.Publish(id, model.SolveEvent{
            Type:       eventProgress,
            SolutionID: id,
            TS:         time.Now().UTC().Format(time.RFC3339Nano),
            Payload:    map[string]any{"stage": pr.Stage, "iteration": pr.Iteration, "objective": pr.Objective},
        })
    }

    start := time.Now()
    sol, err := opt.Solve(ctx, in, params)
    metrics.SolveDuration.Observe(time.Since(start).Seconds())

    out := model.SolutionOut{ID: id, TenantID: req.TenantID, CreatedAt: start.UTC().Format(time.RFC3339)}
    event := webhooks.EventSolutionCompleted
    if err != nil {
        _, _, kind := classify(err)
        out.Status, out.ErrorKind, out.Error = statusFailed, kind, err.Error()
        event = webhooks.EventSolutionFailed
        metrics.Solves.WithLabelValues(kind).Inc()
        log.Warn("solve failed", zap.String("kind", kind), zap.Error(err))
    } else {
        out = toSolutionOut(out, sol, req.Stops)
        opt.RecordMetrics(req.TenantID, id, sol.Metrics)
        metrics.Solves.WithLabelValues(statusCompleted).Inc()
        metrics.SearchIterations.Observe(float64(sol.Metrics.Iterations))
        for kind, n := range sol.Metrics.Moves {
            metrics.SearchMoves.WithLabelValues(kind).Add(float64(n))
        }
    }

    // persistence and notification outlive a canceled request
    pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
    defer cancel()
    if serr := s.Store.SaveSolution(pctx, out); serr != nil {
        log.Error("save solution", zap.Error(serr))
        if err == nil { err = serr }
    }
    if out.Stats != nil {
        if serr := s.Store.SaveSolveMetrics(pctx, req.TenantID, id, statsMap(out.Stats)); serr != nil {
            log.Warn("save solve metrics", zap.Error(serr))
        }
    }
    summary := map[string]any{"solutionId": id, "status": out.Status, "objective": out.Objective}
    if out.ErrorKind != "" {
        summary["errorKind"], summary["error"] = out.ErrorKind, out.Error
    }
    s.Broker.Publish(id, model.SolveEvent{Type: event, SolutionID: id, TS: time.Now().UTC().Format(time.RFC3339Nano), Payload: summary})
    s.Pub.Emit(pctx, req.TenantID, event, summary)
    return out, err
}

func toSolutionOut(out model.SolutionOut, sol *opt.Solution, stops []model.StopIn) model.SolutionOut {
    out.Status = statusCompleted
    out.TotalDistance = sol.TotalDistance
    out.MaxRouteDistance = sol.MaxRouteDistance
    out.TotalTime = sol.TotalTime
    out.Objective = sol.Objective
    out.Routes = make([]model.RouteOut, len(sol.Routes))
    for i, rp := range sol.Routes {
        ro := model.RouteOut{Vehicle: rp.Vehicle, Distance: rp.Distance, Time: rp.Time, Volume: rp.Volume, Weight: rp.Weight}
        ro.Visits = make([]model.VisitOut, len(rp.Visits))
        for k, v := range rp.Visits {
            ro.Visits[k] = model.VisitOut{Node: v.Node, Distance: v.Distance, TimeMin: v.TimeMin, TimeMax: v.TimeMax, Volume: v.Volume, Weight: v.Weight}
            if v.Node < len(stops) { ro.Visits[k].Ref = stops[v.Node].Ref }
        }
        out.Routes[i] = ro
    }
    m := sol.Metrics
    out.Stats = &model.SearchStats{
        Iterations:       m.Iterations,
        Improvements:     m.Improvements,
        AcceptedWorse:    m.AcceptedWorse,
        InitialObjective: m.InitialObjective,
        BestObjective:    m.BestObjective,
        Moves:            m.Moves,
        StopReason:       m.StopReason,
        ElapsedMs:        m.Elapsed.Milliseconds(),
    }
    return out
}

func statsMap(st *model.SearchStats) map[string]any {
    out := map[string]any{}
    b, err := json.Marshal(st)
    if err != nil { return out }
    _ = json.Unmarshal(b, &out)
    return out
}

// isTerminal reports whether a stored solution will receive no more events.
func isTerminal(sol model.SolutionOut) bool {
    return sol.Status == statusCompleted || sol.Status == statusFailed
}
