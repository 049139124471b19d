package api

import (
    "bufio"
    "errors"
    "net"
    "net/http"
    "strconv"
    "strings"
    "time"

    "go.uber.org/zap"

    "routeplanner/internal/metrics"
)

type statusWriter struct {
    http.ResponseWriter
    status int
    bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
    if w.status == 0 { w.status = http.StatusOK }
    n, err := w.ResponseWriter.Write(b)
    w.bytes += n
    return n, err
}

// Hijack lets the WebSocket upgrade through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := w.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, errors.New("hijack not supported") }
    if w.status == 0 { w.status = http.StatusSwitchingProtocols }
    return h.Hijack()
}

// routeLabel collapses ids so metric labels stay bounded.
func routeLabel(path string) string {
    for _, prefix := range []string{"/v1/solutions/", "/v1/subscriptions/", "/v1/admin/webhook-deliveries/"} {
        if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" {
            if i := strings.Index(rest, "/"); i >= 0 {
                return prefix + "{id}" + rest[i:]
            }
            return prefix + "{id}"
        }
    }
    return path
}

// LogMiddleware logs every request through zap and records the HTTP metrics.
func (s *Server) LogMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w}
        next.ServeHTTP(sw, r)
        if sw.status == 0 { sw.status = http.StatusOK }
        dur := time.Since(start)
        route := routeLabel(r.URL.Path)
        code := strconv.Itoa(sw.status)
        metrics.HTTPRequests.WithLabelValues(r.Method, route, code).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, route, code).Observe(dur.Seconds())
        s.Log.Info("http request",
            zap.String("remote", r.RemoteAddr),
            zap.String("method", r.Method),
            zap.String("path", r.URL.Path),
            zap.Int("status", sw.status),
            zap.Int("bytes", sw.bytes),
            zap.Duration("duration", dur),
        )
    })
}

// RateLimit rejects requests beyond RATE_RPS/RATE_BURST with 429. Health and
// metrics probes are never limited.
func (s *Server) RateLimit(next http.Handler) http.Handler {
    if s.limiter == nil { return next }
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        switch r.URL.Path {
        case "/healthz", "/readyz", "/metrics":
            next.ServeHTTP(w, r)
            return
        }
        if !s.limiter.Allow() {
            metrics.RateLimited.Inc()
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}
