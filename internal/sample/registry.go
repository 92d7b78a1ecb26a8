package sample

import (
	"sort"

	"go.uber.org/zap"
)

// Registry is an explicit, caller-owned name lookup table for samples and
// processes. Registration under an existing name follows last-writer-wins:
// the new handle replaces the old, the displaced handle is returned and the
// conflict is logged. The registry does not own its entries and is not safe
// for concurrent mutation.
type Registry struct {
	entries map[string]Queryable
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Queryable)}
}

// Register stores q under its name and returns the displaced handle, if any.
func (r *Registry) Register(q Queryable) Queryable {
	prev, ok := r.entries[q.Name()]
	if ok && prev != q {
		zap.L().Warn("registry: overwriting existing name", zap.String("name", q.Name()))
	}
	r.entries[q.Name()] = q
	if prev == q {
		return nil
	}
	return prev
}

// Lookup resolves a name.
func (r *Registry) Lookup(name string) (Queryable, bool) {
	q, ok := r.entries[name]
	return q, ok
}

// Remove drops a name, if present.
func (r *Registry) Remove(name string) {
	delete(r.entries, name)
}

// Names returns the sorted registered names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered entries.
func (r *Registry) Len() int { return len(r.entries) }
