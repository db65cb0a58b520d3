package sizes

import "sync"

// Source yields the raw image_sizes configuration.
type Source func() map[string]any

// Normalizer memoizes the normalized table for the lifetime of the process.
// Call Invalidate after the underlying configuration changes.
type Normalizer struct {
	source Source

	mu    sync.RWMutex
	table *Table
}

func NewNormalizer(source Source) *Normalizer {
	return &Normalizer{source: source}
}

// Static wraps an already-loaded raw map.
func Static(raw map[string]any) *Normalizer {
	return NewNormalizer(func() map[string]any { return raw })
}

// All returns the memoized table, normalizing on first use.
func (n *Normalizer) All() *Table {
	n.mu.RLock()
	t := n.table
	n.mu.RUnlock()
	if t != nil {
		return t
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.table == nil {
		var raw map[string]any
		if n.source != nil {
			raw = n.source()
		}
		n.table = Normalize(raw)
	}
	return n.table
}

// Source returns the raw configuration reader behind n.
func (n *Normalizer) Source() Source {
	return n.source
}

// Get looks up a configured (non-variant) size.
func (n *Normalizer) Get(name string) (Spec, bool) {
	return n.All().Get(name)
}

func (n *Normalizer) Invalidate() {
	n.mu.Lock()
	n.table = nil
	n.mu.Unlock()
}
