package opt

import "sync"

type metricsKey struct {
	Tenant     string
	SolutionID string
}

var (
	mu      sync.Mutex
	metrics = map[metricsKey]SearchMetrics{}
)

// RecordMetrics keeps the search metrics of a solve for the admin endpoints.
func RecordMetrics(tenant, solutionID string, m SearchMetrics) {
	mu.Lock()
	metrics[metricsKey{Tenant: tenant, SolutionID: solutionID}] = m
	mu.Unlock()
}

// GetMetrics returns the recorded metrics of a tenant keyed by solution id.
func GetMetrics(tenant string) map[string]SearchMetrics {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]SearchMetrics{}
	for k, v := range metrics {
		if k.Tenant == tenant {
			out[k.SolutionID] = v
		}
	}
	return out
}
