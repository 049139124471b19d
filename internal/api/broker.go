package api

import (
    "sync"

    "routeplanner/internal/model"
)

// EventBroker fans solve events out to live listeners of a solution.
type EventBroker interface {
    Subscribe(solutionID string) chan model.SolveEvent
    Unsubscribe(solutionID string, ch chan model.SolveEvent)
    Publish(solutionID string, evt model.SolveEvent)
}

// Broker is the in-process EventBroker. Slow listeners drop events rather
// than stall the solver.
type Broker struct {
    mu      sync.Mutex
    subs    map[string]map[chan model.SolveEvent]struct{} // solutionId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan model.SolveEvent]struct{}{}}
}

func (b *Broker) Subscribe(solutionID string) chan model.SolveEvent {
    ch := make(chan model.SolveEvent, 16)
    b.mu.Lock()
    if b.subs[solutionID] == nil { b.subs[solutionID] = map[chan model.SolveEvent]struct{}{} }
    b.subs[solutionID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(solutionID string, ch chan model.SolveEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[solutionID]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, solutionID) }
    close(ch)
}

func (b *Broker) Publish(solutionID string, evt model.SolveEvent) {
    b.mu.Lock()
    m := b.subs[solutionID]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
