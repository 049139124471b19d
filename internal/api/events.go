package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"routeplanner/internal/model"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// SolutionEventsHandler streams a solution's events over a WebSocket as JSON
// SolveEvent messages and closes after the terminal event. Connecting to an
// already finished solution yields its terminal event right away.
func (s *Server) SolutionEventsHandler(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	sol, err := s.Store.GetSolution(r.Context(), p.Tenant, id)
	if err != nil {
		writeError(w, r, err, id)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// subscribe before the second look so a solve finishing in between is not missed
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	if !isTerminal(sol) {
		if again, err := s.Store.GetSolution(r.Context(), p.Tenant, id); err == nil {
			sol = again
		}
	}
	write := func(evt model.SolveEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(evt)
	}
	if isTerminal(sol) {
		_ = write(terminalEvent(sol))
		closeWS(conn)
		return
	}

	// read loop only services pongs and notices the client going away
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(wsPongWait)) })
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				s.Log.Debug("event stream write", zap.String("solutionId", id), zap.Error(err))
				return
			}
			if evt.Type != eventProgress {
				closeWS(conn)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func terminalEvent(sol model.SolutionOut) model.SolveEvent {
	typ := "solution." + sol.Status
	payload := map[string]any{"solutionId": sol.ID, "status": sol.Status, "objective": sol.Objective}
	if sol.ErrorKind != "" {
		payload["errorKind"], payload["error"] = sol.ErrorKind, sol.Error
	}
	return model.SolveEvent{Type: typ, SolutionID: sol.ID, TS: time.Now().UTC().Format(time.RFC3339Nano), Payload: payload}
}

func closeWS(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
