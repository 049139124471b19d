package webhooks

import (
    "bytes"
    "context"
    "net/http"
    "strconv"
    "time"

    "go.uber.org/zap"

    "routeplanner/internal/metrics"
    "routeplanner/internal/store"
)

type Worker struct {
    Store store.Store
    HTTP  *http.Client
    Stop  chan struct{}
    MaxAttempts int
    Log   *zap.Logger
}

func NewWorker(s store.Store, maxAttempts int, log *zap.Logger) *Worker {
    if maxAttempts <= 0 { maxAttempts = 10 }
    if log == nil { log = zap.NewNop() }
    return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), MaxAttempts: maxAttempts, Log: log}
}

func (w *Worker) Start() {
    go func() {
        ticker := time.NewTicker(1 * time.Second)
        defer ticker.Stop()
        for {
            select {
            case <-w.Stop:
                return
            case <-ticker.C:
                w.processOnce()
            }
        }
    }()
}

func (w *Worker) processOnce() {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
    if err != nil {
        w.Log.Warn("fetch due webhooks", zap.Error(err))
        return
    }
    for _, it := range items {
        success := false
        next := time.Now().Add(nextBackoff(it.Attempts))
        req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
        if err != nil {
            _ = w.Store.FailWebhookDelivery(ctx, it.ID, err.Error(), 0, 0)
            continue
        }
        req.Header.Set("Content-Type", "application/json")
        req.Header.Set(HeaderEventType, it.EventType)
        req.Header.Set(HeaderAttempt, strconv.Itoa(it.Attempts+1))
        if it.Secret != "" {
            req.Header.Set(HeaderSignature, SignHMAC(it.Secret, it.Payload))
        }
        start := time.Now()
        resp, err := w.HTTP.Do(req)
        latency := int(time.Since(start).Milliseconds())
        code := 0
        if err == nil && resp != nil {
            code = resp.StatusCode
            if resp.Body != nil { _ = resp.Body.Close() }
            if code >= 200 && code < 300 { success = true }
        }
        lastErr := ""
        if !success {
            if err != nil { lastErr = err.Error() } else { lastErr = "status " + strconv.Itoa(code) }
        }
        status := store.DeliveryDelivered
        switch {
        case !success && it.Attempts+1 >= w.MaxAttempts:
            status = store.DeliveryFailed
            w.Log.Warn("webhook dead-lettered", zap.String("id", it.ID), zap.String("url", it.URL), zap.Int("attempts", it.Attempts+1), zap.String("error", lastErr))
            _ = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
        case !success:
            status = "retry"
            _ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
        default:
            _ = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
        }
        metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
        metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
    }
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 12 { attempts = 12 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Hour { base = time.Hour }
    return base
}
