package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned when no tracker matches a name or ID.
var ErrNotFound = errors.New("tracker: not found")

// Registry holds the trackers of a running service, keyed by hand name.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{trackers: make(map[string]*Tracker)}
}

// Add registers t under its name.
func (r *Registry) Add(t *Tracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trackers[t.Name()]; ok {
		return fmt.Errorf("tracker: duplicate hand %q", t.Name())
	}
	r.trackers[t.Name()] = t
	return nil
}

// Get looks a tracker up by hand name or by ID.
func (r *Registry) Get(key string) (*Tracker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.trackers[key]; ok {
		return t, nil
	}
	for _, t := range r.trackers {
		if t.ID().String() == key {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
}

// List returns all trackers sorted by name.
func (r *Registry) List() []*Tracker {
	r.mu.RLock()
	list := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		list = append(list, t)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Len returns the number of registered trackers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}

// Close closes every tracker's source.
func (r *Registry) Close() error {
	var errs []error
	for _, t := range r.List() {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", t.Name(), err))
		}
	}
	return errors.Join(errs...)
}
