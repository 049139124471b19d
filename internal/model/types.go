package model

// Wire types for the solve API and persisted results.

type StopIn struct {
    Ref         string  `json:"ref,omitempty"`
    Lat         float64 `json:"lat" validate:"gte=-90,lte=90"`
    Lng         float64 `json:"lng" validate:"gte=-180,lte=180"`
    WindowStart int     `json:"windowStart" validate:"gte=0"`
    WindowEnd   int     `json:"windowEnd"`
    Volume      int     `json:"volume" validate:"gte=0"`
    Weight      int     `json:"weight" validate:"gte=0"`
}

type FleetIn struct {
    Vehicles         int   `json:"vehicles" validate:"gte=1"`
    VolumeCapacities []int `json:"volumeCapacities" validate:"required,min=1,dive,gte=0"`
    WeightCapacities []int `json:"weightCapacities" validate:"required,min=1,dive,gte=0"`
    LoadTime         int   `json:"loadTime,omitempty" validate:"gte=0"`
    UnloadTime       int   `json:"unloadTime,omitempty" validate:"gte=0"`
}

// SolverParams overrides the server defaults for one solve. Nil pointers keep the default.
type SolverParams struct {
    SpanCostCoefficient *int         `json:"spanCostCoefficient,omitempty" validate:"omitempty,gte=0"`
    MaxRouteDistance    *int         `json:"maxRouteDistance,omitempty" validate:"omitempty,gte=0"`
    Horizon             *int         `json:"horizon,omitempty" validate:"omitempty,gte=0"`
    NoWaiting           bool         `json:"noWaiting,omitempty"`
    TimeLimitMs         int          `json:"timeLimitMs,omitempty" validate:"gte=0,lte=600000"`
    MaxIterations       int          `json:"maxIterations,omitempty" validate:"gte=0"`
    Annealing           *AnnealingIn `json:"annealing,omitempty"`
}

type AnnealingIn struct {
    Iterations  int     `json:"iterations" validate:"gte=0"`
    InitialTemp float64 `json:"initialTemp,omitempty" validate:"gte=0"`
    Cooling     float64 `json:"cooling,omitempty" validate:"gte=0,lt=1"`
    Seed        int64   `json:"seed,omitempty"`
}

type SolveRequest struct {
    TenantID string        `json:"tenantId" validate:"required"`
    Stops    []StopIn      `json:"stops" validate:"required,min=1,dive"`
    Fleet    *FleetIn      `json:"fleet,omitempty"` // server defaults when absent
    Params   *SolverParams `json:"params,omitempty"`
    // Optional precomputed matrices; haversine distances are used when absent.
    DistanceMatrix [][]int `json:"distanceMatrix,omitempty"`
    TimeMatrix     [][]int `json:"timeMatrix,omitempty"`
}

type VisitOut struct {
    Node     int    `json:"node"`
    Ref      string `json:"ref,omitempty"`
    Distance int    `json:"distance"`
    TimeMin  int    `json:"timeMin"`
    TimeMax  int    `json:"timeMax"`
    Volume   int    `json:"volume"`
    Weight   int    `json:"weight"`
}

type RouteOut struct {
    Vehicle  int        `json:"vehicle"`
    Visits   []VisitOut `json:"visits"`
    Distance int        `json:"distance"`
    Time     int        `json:"time"`
    Volume   int        `json:"volume"`
    Weight   int        `json:"weight"`
}

type SearchStats struct {
    Iterations       int            `json:"iterations"`
    Improvements     int            `json:"improvements"`
    AcceptedWorse    int            `json:"acceptedWorse"`
    InitialObjective int            `json:"initialObjective"`
    BestObjective    int            `json:"bestObjective"`
    Moves            map[string]int `json:"moves,omitempty"`
    StopReason       string         `json:"stopReason"`
    ElapsedMs        int64          `json:"elapsedMs"`
}

// SolutionOut is the stored and returned result of a solve. Failed solves keep
// the error kind and message and carry no routes.
type SolutionOut struct {
    ID               string       `json:"id"`
    TenantID         string       `json:"tenantId"`
    Status           string       `json:"status"` // completed, failed
    CreatedAt        string       `json:"createdAt"`
    Routes           []RouteOut   `json:"routes,omitempty"`
    TotalDistance    int          `json:"totalDistance"`
    MaxRouteDistance int          `json:"maxRouteDistance"`
    TotalTime        int          `json:"totalTime"`
    Objective        int          `json:"objective"`
    Stats            *SearchStats `json:"stats,omitempty"`
    ErrorKind        string       `json:"errorKind,omitempty"`
    Error            string       `json:"error,omitempty"`
}

// SolveEvent is pushed to live listeners of a solution.
type SolveEvent struct {
    Type       string         `json:"type"` // solve.progress, solution.completed, solution.failed
    SolutionID string         `json:"solutionId"`
    TS         string         `json:"ts"`
    Payload    map[string]any `json:"payload,omitempty"`
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId" validate:"required"`
    URL      string   `json:"url" validate:"required,url"`
    Events   []string `json:"events" validate:"required,min=1,dive,oneof=solution.completed solution.failed"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}
