// Package registry holds process-wide transient upload progress and the set
// of documents currently considered busy.
package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Registry maps transient upload keys to a 0-100 progress value and tracks
// document ids that are in flight for processing. Every method is total: a
// missing key reads as "no progress entry" / "not processing".
type Registry struct {
	mu         sync.RWMutex
	progress   map[string]int
	processing map[string]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		progress:   make(map[string]int),
		processing: make(map[string]struct{}),
	}
}

// NewKey returns a transient key such as "upload-<uuid>". Upload keys cannot
// be document ids because the document does not exist yet.
func NewKey(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// SetProgress stores value for key, clamped to [0, 100].
func (r *Registry) SetProgress(key string, value int) {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	r.mu.Lock()
	r.progress[key] = value
	r.mu.Unlock()
}

// ClearProgress removes the entry for key, if any.
func (r *Registry) ClearProgress(key string) {
	r.mu.Lock()
	delete(r.progress, key)
	r.mu.Unlock()
}

// Progress returns the progress stored for key.
func (r *Registry) Progress(key string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.progress[key]
	return v, ok
}

// Uploads returns a copy of every progress entry.
func (r *Registry) Uploads() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.progress))
	for k, v := range r.progress {
		out[k] = v
	}
	return out
}

// MarkProcessing adds id to the processing set.
func (r *Registry) MarkProcessing(id string) {
	r.mu.Lock()
	r.processing[id] = struct{}{}
	r.mu.Unlock()
}

// UnmarkProcessing removes id from the processing set.
func (r *Registry) UnmarkProcessing(id string) {
	r.mu.Lock()
	delete(r.processing, id)
	r.mu.Unlock()
}

// IsProcessing reports whether id is in the processing set.
func (r *Registry) IsProcessing(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.processing[id]
	return ok
}

// Processing returns the ids currently in the processing set.
func (r *Registry) Processing() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.processing))
	for id := range r.processing {
		out = append(out, id)
	}
	return out
}

// ProgressTracker reports progress for one key and never lets the stored
// value decrease, even when the transport restarts a body (e.g. on retry).
type ProgressTracker struct {
	reg  *Registry
	key  string
	mu   sync.Mutex
	high int
	done bool
}

// Track starts tracking key at 0.
func (r *Registry) Track(key string) *ProgressTracker {
	r.SetProgress(key, 0)
	return &ProgressTracker{reg: r, key: key}
}

// Key returns the tracked registry key.
func (t *ProgressTracker) Key() string {
	return t.key
}

// Report stores value if it is higher than anything reported so far. Reports
// after Done are dropped.
func (t *ProgressTracker) Report(value int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || value <= t.high {
		return
	}
	t.high = value
	t.reg.SetProgress(t.key, value)
}

// High returns the highest value reported so far.
func (t *ProgressTracker) High() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.high
}

// Done removes the tracked entry.
func (t *ProgressTracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.reg.ClearProgress(t.key)
}
