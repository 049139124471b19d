package api

import (
    "context"
    "strings"
    "sync"

    "go.uber.org/zap"
    "golang.org/x/time/rate"

    "routeplanner/internal/config"
    "routeplanner/internal/store"
    "routeplanner/internal/webhooks"
)

type Server struct {
    Store    store.Store
    Pub      *webhooks.Publisher
    Broker   EventBroker
    Log      *zap.Logger
    Config   config.Config
    validate *requestValidator
    limiter  *rate.Limiter

    // background solves started with ?async=true
    ctx    context.Context
    cancel context.CancelFunc
    wg     sync.WaitGroup
}

// NewServer creates a Server. If DatabaseURL is empty, uses in-memory store;
// if RedisURL is empty or unreachable, events stay in process.
func NewServer(cfg config.Config, log *zap.Logger) (*Server, error) {
    if log == nil { log = zap.NewNop() }
    var s store.Store
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, err
        }
        if err := sp.Migrate(context.Background()); err != nil {
            _ = sp.Close()
            return nil, err
        }
        s = sp
    }
    var broker EventBroker = NewBroker()
    if cfg.RedisURL != "" {
        if rb, err := NewRedisBroker(cfg.RedisURL, log); err == nil {
            broker = rb
        } else {
            log.Warn("redis broker unavailable, using in-process events", zap.Error(err))
        }
    }
    return newServer(cfg, log, s, broker), nil
}

func newServer(cfg config.Config, log *zap.Logger, s store.Store, broker EventBroker) *Server {
    ctx, cancel := context.WithCancel(context.Background())
    srv := &Server{
        Store:    s,
        Pub:      webhooks.NewPublisher(s, log),
        Broker:   broker,
        Log:      log,
        Config:   cfg,
        validate: newRequestValidator(),
        ctx:      ctx,
        cancel:   cancel,
    }
    if cfg.RateRPS > 0 {
        burst := cfg.RateBurst
        if burst < 1 { burst = 1 }
        srv.limiter = rate.NewLimiter(rate.Limit(cfg.RateRPS), burst)
    }
    return srv
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Config.WebhookMaxAttempts, s.Log.Named("webhooks"))
}

// Close cancels running background solves, waits for them, and releases
// the store and broker connections.
func (s *Server) Close() error {
    s.cancel()
    s.wg.Wait()
    type closer interface{ Close() error }
    if c, ok := s.Broker.(closer); ok { _ = c.Close() }
    if c, ok := s.Store.(closer); ok { return c.Close() }
    return nil
}
