package browser

import (
	"sync"

	"github.com/chromedp/cdproto/target"
)

// Registry assigns stable integer tab ids to CDP target ids. An id is never
// reused within the process, even after its target is forgotten.
type Registry struct {
	mu      sync.RWMutex
	next    int64
	ids     map[target.ID]int64
	targets map[int64]target.ID
}

func NewRegistry() *Registry {
	return &Registry{
		ids:     make(map[target.ID]int64),
		targets: make(map[int64]target.ID),
	}
}

// ID returns the tab id for targetID, assigning one on first sight.
func (r *Registry) ID(targetID target.ID) int64 {
	r.mu.RLock()
	id, ok := r.ids[targetID]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[targetID]; ok {
		return id
	}
	r.next++
	r.ids[targetID] = r.next
	r.targets[r.next] = targetID
	return r.next
}

// Lookup returns the target behind a tab id.
func (r *Registry) Lookup(id int64) (target.ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[id]
	return t, ok
}

// Known reports whether targetID already has an id.
func (r *Registry) Known(targetID target.ID) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[targetID]
	return id, ok
}

func (r *Registry) Forget(targetID target.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[targetID]; ok {
		delete(r.targets, id)
		delete(r.ids, targetID)
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}
