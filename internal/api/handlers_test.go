package api

import (
    "bytes"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"

    "routeplanner/internal/config"
    "routeplanner/internal/model"
    "routeplanner/internal/store"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    cfg := config.Default()
    cfg.RateRPS = 0
    cfg.Solver.TimeLimit = 500 * time.Millisecond
    s := newServer(cfg, zap.NewNop(), store.NewMemory(), NewBroker())
    t.Cleanup(func() { _ = s.Close() })
    return s
}

// nearbyStops is a depot and four stops a few kilometres apart with wide windows.
func nearbyStops() []model.StopIn {
    return []model.StopIn{
        {Ref: "depot", Lat: 0, Lng: 0, WindowStart: 0, WindowEnd: 500},
        {Ref: "a", Lat: 0.05, Lng: 0, WindowEnd: 400, Volume: 5, Weight: 5},
        {Ref: "b", Lat: 0.05, Lng: 0.05, WindowEnd: 400, Volume: 5, Weight: 5},
        {Ref: "c", Lat: -0.05, Lng: 0.05, WindowEnd: 400, Volume: 5, Weight: 5},
        {Ref: "d", Lat: -0.05, Lng: -0.05, WindowEnd: 400, Volume: 5, Weight: 5},
    }
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
    t.Helper()
    var rdr *bytes.Reader
    if body != nil {
        b, err := json.Marshal(body)
        require.NoError(t, err)
        rdr = bytes.NewReader(b)
    } else {
        rdr = bytes.NewReader(nil)
    }
    req := httptest.NewRequest(method, path, rdr)
    req.Header.Set("Content-Type", "application/json")
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
    return v
}

func TestHealthReady(t *testing.T) {
    h := newTestServer(t).Handler()
    assert.Equal(t, 200, do(t, h, http.MethodGet, "/healthz", nil).Code)
    assert.Equal(t, 200, do(t, h, http.MethodGet, "/readyz", nil).Code)
    rr := do(t, h, http.MethodGet, "/debug", nil)
    assert.Equal(t, 200, rr.Code)
    assert.Contains(t, rr.Body.String(), `"version"`)
}

func TestSolveAndFetch(t *testing.T) {
    h := newTestServer(t).Handler()
    rr := do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{Stops: nearbyStops()})
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
    sol := decode[model.SolutionOut](t, rr)
    assert.Equal(t, statusCompleted, sol.Status)
    assert.Equal(t, defaultTenant, sol.TenantID)
    require.Len(t, sol.Routes, 3)

    seen := map[string]int{}
    total := 0
    for _, rt := range sol.Routes {
        require.GreaterOrEqual(t, len(rt.Visits), 2)
        assert.Equal(t, 0, rt.Visits[0].Node)
        assert.Equal(t, 0, rt.Visits[len(rt.Visits)-1].Node)
        for _, v := range rt.Visits[1 : len(rt.Visits)-1] {
            seen[v.Ref]++
            assert.LessOrEqual(t, v.TimeMin, v.TimeMax)
        }
        total += rt.Distance
        assert.LessOrEqual(t, rt.Distance, sol.MaxRouteDistance)
    }
    assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1}, seen)
    assert.Equal(t, total, sol.TotalDistance)
    assert.Equal(t, sol.TotalDistance+100*sol.MaxRouteDistance, sol.Objective)
    require.NotNil(t, sol.Stats)

    got := do(t, h, http.MethodGet, "/v1/solutions/"+sol.ID, nil)
    require.Equal(t, 200, got.Code)
    assert.Equal(t, sol.Objective, decode[model.SolutionOut](t, got).Objective)

    list := do(t, h, http.MethodGet, "/v1/solutions?limit=10", nil)
    require.Equal(t, 200, list.Code)
    page := decode[struct{ Items []model.SolutionOut `json:"items"` }](t, list)
    require.Len(t, page.Items, 1)
    assert.Equal(t, sol.ID, page.Items[0].ID)

    mx := do(t, h, http.MethodGet, "/v1/admin/solve-metrics?id="+sol.ID, nil)
    require.Equal(t, 200, mx.Code)
    items := decode[struct{ Items []map[string]any `json:"items"` }](t, mx)
    require.Len(t, items.Items, 1)
    assert.Equal(t, sol.ID, items.Items[0]["solutionId"])
}

func TestSolveRejectsBadRequests(t *testing.T) {
    h := newTestServer(t).Handler()

    rr := do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{})
    assert.Equal(t, http.StatusBadRequest, rr.Code)

    stops := nearbyStops()
    stops[2].WindowStart, stops[2].WindowEnd = 50, 10
    rr = do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{Stops: stops})
    assert.Equal(t, http.StatusBadRequest, rr.Code)

    rr = do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{Stops: nearbyStops(), Fleet: &model.FleetIn{Vehicles: 2, VolumeCapacities: []int{1, 2, 3}, WeightCapacities: []int{9}}})
    assert.Equal(t, http.StatusBadRequest, rr.Code)

    req := httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader("{"))
    rec := httptest.NewRecorder()
    h.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/v1/solve", nil).Code)
}

func TestSolveInvalidInstance(t *testing.T) {
    h := newTestServer(t).Handler()
    stops := nearbyStops()
    stops[1].Volume = 1000
    rr := do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{Stops: stops})
    require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
    p := decode[Problem](t, rr)
    assert.Equal(t, kindInvalidInstance, p.Kind)
    assert.Empty(t, p.SolutionID)
}

func TestSolveNoFeasibleInsertionIsStored(t *testing.T) {
    h := newTestServer(t).Handler()
    stops := nearbyStops()
    // about 111 km from the depot but closing at minute 10
    stops = append(stops, model.StopIn{Ref: "far", Lat: 1, Lng: 0, WindowEnd: 10, Volume: 1, Weight: 1})
    rr := do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{Stops: stops})
    require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
    p := decode[Problem](t, rr)
    assert.Equal(t, kindNoFeasibleInsertion, p.Kind)
    require.NotEmpty(t, p.SolutionID)

    got := do(t, h, http.MethodGet, "/v1/solutions/"+p.SolutionID, nil)
    require.Equal(t, 200, got.Code)
    sol := decode[model.SolutionOut](t, got)
    assert.Equal(t, statusFailed, sol.Status)
    assert.Equal(t, kindNoFeasibleInsertion, sol.ErrorKind)
    assert.Empty(t, sol.Routes)
}

func TestSolveWithMatrices(t *testing.T) {
    h := newTestServer(t).Handler()
    stops := []model.StopIn{
        {WindowEnd: 100},
        {WindowEnd: 100, Volume: 1, Weight: 1},
        {WindowEnd: 100, Volume: 1, Weight: 1},
    }
    dist := [][]int{{0, 4, 6}, {4, 0, 3}, {6, 3, 0}}
    one := 1
    rr := do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{
        Stops:          stops,
        DistanceMatrix: dist,
        Fleet:          &model.FleetIn{Vehicles: 1, VolumeCapacities: []int{10}, WeightCapacities: []int{10}},
        Params:         &model.SolverParams{SpanCostCoefficient: &one},
    })
    require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
    sol := decode[model.SolutionOut](t, rr)
    assert.Equal(t, 13, sol.TotalDistance)
    assert.Equal(t, 26, sol.Objective)

    rr = do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{Stops: stops, DistanceMatrix: dist[:2]})
    assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetSolutionNotFound(t *testing.T) {
    h := newTestServer(t).Handler()
    assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/solutions/nope", nil).Code)
    assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/solutions/nope/events", nil).Code)
}

func TestAsyncSolveEventsOverWebSocket(t *testing.T) {
    s := newTestServer(t)
    ts := httptest.NewServer(s.Handler())
    defer ts.Close()

    body, _ := json.Marshal(model.SolveRequest{Stops: nearbyStops()})
    resp, err := http.Post(ts.URL+"/v1/solve?async=true", "application/json", bytes.NewReader(body))
    require.NoError(t, err)
    defer resp.Body.Close()
    require.Equal(t, http.StatusAccepted, resp.StatusCode)
    var pending model.SolutionOut
    require.NoError(t, json.NewDecoder(resp.Body).Decode(&pending))
    assert.Equal(t, statusRunning, pending.Status)

    url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/solutions/" + pending.ID + "/events"
    conn, _, err := websocket.DefaultDialer.Dial(url, nil)
    require.NoError(t, err)
    defer conn.Close()

    _ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
    var last model.SolveEvent
    for {
        require.NoError(t, conn.ReadJSON(&last))
        if last.Type != eventProgress { break }
    }
    assert.Equal(t, "solution.completed", last.Type)
    assert.Equal(t, pending.ID, last.SolutionID)

    got := do(t, s.Handler(), http.MethodGet, "/v1/solutions/"+pending.ID, nil)
    assert.Equal(t, statusCompleted, decode[model.SolutionOut](t, got).Status)
}

func TestSubscriptionsAndDeliveries(t *testing.T) {
    h := newTestServer(t).Handler()

    rr := do(t, h, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{URL: "not a url", Events: []string{"solution.completed"}})
    assert.Equal(t, http.StatusBadRequest, rr.Code)
    rr = do(t, h, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{URL: "https://hooks.example.com/x", Events: []string{"route.created"}})
    assert.Equal(t, http.StatusBadRequest, rr.Code)

    rr = do(t, h, http.MethodPost, "/v1/subscriptions", model.SubscriptionRequest{URL: "https://hooks.example.com/x", Events: []string{"solution.completed"}, Secret: "k"})
    require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
    sub := decode[model.Subscription](t, rr)

    list := do(t, h, http.MethodGet, "/v1/subscriptions", nil)
    require.Equal(t, 200, list.Code)
    assert.Contains(t, list.Body.String(), sub.ID)

    require.Equal(t, 200, do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{Stops: nearbyStops()}).Code)

    dl := do(t, h, http.MethodGet, "/v1/admin/webhook-deliveries", nil)
    require.Equal(t, 200, dl.Code)
    items := decode[struct{ Items []map[string]any `json:"items"` }](t, dl)
    assert.Len(t, items.Items, 1)

    assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/admin/webhook-deliveries/missing/retry", nil).Code)
    assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil).Code)
    assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil).Code)
}

func TestSolverConfigOverrides(t *testing.T) {
    h := newTestServer(t).Handler()

    rr := do(t, h, http.MethodPut, "/v1/admin/solver/config", map[string]any{"config": map[string]any{"maxIterations": 5, "spanCostCoefficient": 7}})
    require.Equal(t, 200, rr.Code, rr.Body.String())
    rr = do(t, h, http.MethodPut, "/v1/admin/solver/config", map[string]any{"config": map[string]any{"algorithm": "alns"}})
    assert.Equal(t, http.StatusBadRequest, rr.Code)

    rr = do(t, h, http.MethodGet, "/v1/solver/config", nil)
    require.Equal(t, 200, rr.Code)
    cfg := decode[struct{ Defaults map[string]any `json:"defaults"` }](t, rr)
    assert.EqualValues(t, 5, cfg.Defaults["maxIterations"])
    assert.EqualValues(t, 7, cfg.Defaults["spanCostCoefficient"])
    assert.EqualValues(t, 3, cfg.Defaults["vehicles"])

    sol := decode[model.SolutionOut](t, do(t, h, http.MethodPost, "/v1/solve", model.SolveRequest{Stops: nearbyStops()}))
    assert.Equal(t, sol.TotalDistance+7*sol.MaxRouteDistance, sol.Objective)
    assert.LessOrEqual(t, sol.Stats.Iterations, 5)
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
    h := newTestServer(t).Handler()
    for _, path := range []string{"/v1/admin/solve-metrics", "/v1/admin/webhook-deliveries", "/v1/admin/solver/config", "/v1/subscriptions"} {
        req := httptest.NewRequest(http.MethodGet, path, nil)
        req.Header.Set("X-Role", "dispatcher")
        rr := httptest.NewRecorder()
        h.ServeHTTP(rr, req)
        assert.Equal(t, http.StatusForbidden, rr.Code, path)
    }
}

func TestRateLimit(t *testing.T) {
    cfg := config.Default()
    cfg.RateRPS, cfg.RateBurst = 0.001, 1
    s := newServer(cfg, zap.NewNop(), store.NewMemory(), NewBroker())
    defer s.Close()
    h := s.Handler()
    assert.Equal(t, 200, do(t, h, http.MethodGet, "/v1/solutions", nil).Code)
    assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/v1/solutions", nil).Code)
    assert.Equal(t, 200, do(t, h, http.MethodGet, "/healthz", nil).Code)
}

func TestRouteLabel(t *testing.T) {
    assert.Equal(t, "/v1/solutions/{id}", routeLabel("/v1/solutions/abc"))
    assert.Equal(t, "/v1/solutions/{id}/events", routeLabel("/v1/solutions/abc/events"))
    assert.Equal(t, "/v1/admin/webhook-deliveries/{id}/retry", routeLabel("/v1/admin/webhook-deliveries/d1/retry"))
    assert.Equal(t, "/v1/solutions", routeLabel("/v1/solutions"))
}
