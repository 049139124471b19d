package api

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "routeplanner/internal/model"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so that several API
// replicas can serve the event stream of a solve running on any of them.
type RedisBroker struct {
    rdb *redis.Client
    log *zap.Logger

    mu   sync.Mutex
    subs map[chan model.SolveEvent]*redis.PubSub
}

func NewRedisBroker(url string, log *zap.Logger) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil { return nil, err }
    rdb := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := rdb.Ping(ctx).Err(); err != nil {
        _ = rdb.Close()
        return nil, err
    }
    if log == nil { log = zap.NewNop() }
    return &RedisBroker{rdb: rdb, log: log, subs: map[chan model.SolveEvent]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(solutionID string) chan model.SolveEvent {
    ch := make(chan model.SolveEvent, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(solutionID))
    // wait for the subscription to be confirmed so no publish is missed
    if _, err := ps.Receive(ctx); err != nil {
        b.log.Warn("redis subscribe", zap.String("solutionId", solutionID), zap.Error(err))
    }
    b.mu.Lock()
    b.subs[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var evt model.SolveEvent
            if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
                b.log.Debug("drop malformed event", zap.Error(err))
                continue
            }
            select { case ch <- evt: default: }
        }
    }()
    return ch
}

// Unsubscribe closes the Pub/Sub connection; the reader goroutine then closes ch.
func (b *RedisBroker) Unsubscribe(solutionID string, ch chan model.SolveEvent) {
    b.mu.Lock()
    ps := b.subs[ch]
    delete(b.subs, ch)
    b.mu.Unlock()
    if ps != nil { _ = ps.Close() }
}

func (b *RedisBroker) Publish(solutionID string, evt model.SolveEvent) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, err := json.Marshal(evt)
    if err != nil { return }
    if err := b.rdb.Publish(ctx, b.chanName(solutionID), data).Err(); err != nil {
        b.log.Warn("redis publish", zap.String("solutionId", solutionID), zap.Error(err))
    }
}

func (b *RedisBroker) Close() error { return b.rdb.Close() }

func (b *RedisBroker) chanName(solutionID string) string { return "solution:" + solutionID }
