package api

import (
    "net/http"
    "time"

    "routeplanner/internal/buildinfo"
)

// DebugJSON reports build info and the effective configuration, without secrets.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    c := s.Config
    writeJSON(w, http.StatusOK, map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "port":               c.Port,
            "logLevel":           c.LogLevel,
            "rateRps":            c.RateRPS,
            "rateBurst":          c.RateBurst,
            "webhookMaxAttempts": c.WebhookMaxAttempts,
            "hasDatabaseUrl":     c.DatabaseURL != "",
            "hasRedisUrl":        c.RedisURL != "",
            "solverTimeLimitMs":  c.Solver.TimeLimit.Milliseconds(),
            "solverWorkers":      c.Solver.Workers,
        },
    })
}
