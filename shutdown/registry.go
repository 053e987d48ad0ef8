package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CleanupFunc releases one resource during shutdown. It should respect the
// context deadline and be safe to call more than once.
type CleanupFunc func(ctx context.Context) error

// Cleanup priorities used by the process. Lower values run first.
const (
	PriorityPipeline = 10 // close the node chain: sinks flush, sources disconnect
	PriorityStore    = 20 // anything holding the results database
	PriorityMetrics  = 30 // print the run summary
	PriorityLogger   = 90 // flush logs last
)

// cleanupEntry holds a registered cleanup function with metadata.
type cleanupEntry struct {
	name     string
	fn       CleanupFunc
	priority int
	seq      int
}

// CleanupRegistry maintains an ordered collection of cleanup functions.
// Entries with equal priority run in registration order.
type CleanupRegistry struct {
	mu      sync.Mutex
	entries []cleanupEntry
	closed  bool
}

// NewCleanupRegistry creates a registry ready to accept registrations.
func NewCleanupRegistry() *CleanupRegistry {
	return &CleanupRegistry{}
}

// Register adds a cleanup function. Registration after Run is a no-op.
func (r *CleanupRegistry) Register(name string, priority int, fn CleanupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.entries = append(r.entries, cleanupEntry{
		name:     name,
		fn:       fn,
		priority: priority,
		seq:      len(r.entries),
	})
}

func (r *CleanupRegistry) sorted() []cleanupEntry {
	sorted := make([]cleanupEntry, len(r.entries))
	copy(sorted, r.entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].priority != sorted[j].priority {
			return sorted[i].priority < sorted[j].priority
		}
		return sorted[i].seq < sorted[j].seq
	})
	return sorted
}

// Run executes every cleanup function in priority order, even when some
// fail, and returns the failures annotated with the handler name. Only the
// first call does anything.
func (r *CleanupRegistry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sorted := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, entry := range sorted {
		if err := entry.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		}
	}
	return errs
}

// Names returns the registered handler names in execution order.
func (r *CleanupRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := r.sorted()
	names := make([]string, len(sorted))
	for i, entry := range sorted {
		names[i] = entry.name
	}
	return names
}

// Count returns the number of registered cleanup functions.
func (r *CleanupRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
