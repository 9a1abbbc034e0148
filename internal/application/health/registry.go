// Package health keeps the last known status of every periodic component so
// degraded-but-alive operation is visible without making failures fatal.
package health

import (
	"sort"
	"sync"
	"time"
)

// Reporter receives the outcome of a component run. A nil err marks it healthy.
type Reporter interface {
	Report(component string, err error)
}

// Nop discards reports.
type Nop struct{}

func (Nop) Report(string, error) {}

// Status is the latest outcome of one component.
type Status struct {
	Component           string    `json:"component"`
	Healthy             bool      `json:"healthy"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Registry is a concurrency-safe Reporter backing the health endpoint.
type Registry struct {
	mu       sync.RWMutex
	statuses map[string]Status
	// FailureThreshold is the number of consecutive failures after which a
	// component is reported unhealthy. Values below 1 mean 1.
	FailureThreshold int
	now              func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(failureThreshold int) *Registry {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &Registry{
		statuses:         make(map[string]Status),
		FailureThreshold: failureThreshold,
		now:              time.Now,
	}
}

// Report records the outcome of a component run.
func (r *Registry) Report(component string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := r.statuses[component]
	status.Component = component
	status.UpdatedAt = r.now().UTC()
	if err == nil {
		status.Healthy = true
		status.LastError = ""
		status.ConsecutiveFailures = 0
	} else {
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		status.Healthy = status.ConsecutiveFailures < r.FailureThreshold
	}
	r.statuses[component] = status
}

// Snapshot returns every status sorted by component name.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.statuses))
	for _, status := range r.statuses {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Component < out[j].Component })
	return out
}

// Healthy reports whether every known component is healthy.
func (r *Registry) Healthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, status := range r.statuses {
		if !status.Healthy {
			return false
		}
	}
	return true
}
