package api

import (
    "net/http"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "routeplanner/internal/metrics"
)

// Handler returns the service mux wrapped in logging and rate limiting.
func (s *Server) Handler() http.Handler {
    mux := http.NewServeMux()

    // Solving
    mux.HandleFunc("/v1/solve", s.SolveHandler)
    mux.HandleFunc("/v1/solutions", s.SolutionsHandler)
    mux.HandleFunc("/v1/solutions/", s.SolutionByIDHandler) // includes /events
    mux.HandleFunc("/v1/solver/config", s.SolverConfigHandler)

    // Webhook subscriptions
    mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)

    // Admin
    mux.HandleFunc("/v1/admin/solver/config", s.AdminSolverConfigHandler)
    mux.HandleFunc("/v1/admin/solve-metrics", s.SolveMetricsHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)

    // Health, metrics, debug
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    metrics.RegisterDefault()
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
    mux.HandleFunc("/debug", s.DebugJSON)

    return s.LogMiddleware(s.RateLimit(mux))
}
