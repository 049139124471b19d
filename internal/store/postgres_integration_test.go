//go:build postgres_integration

package store

import (
    "os"
    "testing"

    "routeplanner/internal/model"
)

func TestPostgresSolutionRoundTrip(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    defer p.Close()
    if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
    if err := p.Migrate(t.Context()); err != nil { t.Fatalf("Migrate: %v", err) }

    sol := model.SolutionOut{ID: "6f1c1f7e-8d1b-4d6a-9a51-3f0f2b9d0a11", TenantID: "t_it", Status: "completed", Objective: 42}
    if err := p.SaveSolution(t.Context(), sol); err != nil { t.Fatalf("SaveSolution: %v", err) }
    got, err := p.GetSolution(t.Context(), "t_it", sol.ID)
    if err != nil { t.Fatalf("GetSolution: %v", err) }
    if got.Objective != 42 { t.Fatalf("objective: want 42, got %d", got.Objective) }
    if _, _, err := p.ListSolutions(t.Context(), "t_it", "", 1); err != nil { t.Fatalf("ListSolutions: %v", err) }
}
