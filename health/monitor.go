package health

import (
	"sync"
	"time"
)

// Monitor remembers the most recent status reported by each component.
// It is safe for concurrent use.
type Monitor struct {
	mu     sync.RWMutex
	latest map[string]Status
}

// NewMonitor returns an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{latest: make(map[string]Status)}
}

// Update stores status under name. The component name is forced to name and a
// missing timestamp is filled with the current time.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.latest[name] = status
	m.mu.Unlock()
}

// Get returns the last status stored under name
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.latest[name]
	return status, ok
}

// AggregateHealth rolls every stored status up under systemName
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.latest))
	for _, status := range m.latest {
		subs = append(subs, status)
	}
	m.mu.RUnlock()

	return Aggregate(systemName, subs)
}
