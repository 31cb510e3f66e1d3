package utils

import "sync"

// URLTracker tracks listing URLs seen during discovery so the same listing is
// never visited twice within a cycle.
type URLTracker struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

// NewURLTracker creates a new tracker.
func NewURLTracker() *URLTracker {
	return &URLTracker{seen: make(map[string]struct{})}
}

// Add returns true if the URL is new (not seen before), false if duplicate.
func (t *URLTracker) Add(url string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.seen[url]; exists {
		return false
	}
	t.seen[url] = struct{}{}
	t.order = append(t.order, url)
	return true
}

// Count returns the number of tracked URLs.
func (t *URLTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Values returns the tracked URLs in insertion order.
func (t *URLTracker) Values() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}
