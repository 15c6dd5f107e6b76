package delivery

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps channel names to channels. Each notifier owns one.
type Registry struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Register rejects nil channels, empty names and duplicates.
func (r *Registry) Register(ch Channel) error {
	if ch == nil {
		return ErrNilChannel
	}
	name := normalize(ch.Name())
	if name == "" {
		return ErrEmptyChannelName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	r.channels[name] = ch
	return nil
}

// MustRegister panics on configuration errors. Meant for wiring code.
func (r *Registry) MustRegister(channels ...Channel) *Registry {
	for _, ch := range channels {
		if err := r.Register(ch); err != nil {
			panic(err)
		}
	}
	return r
}

// Resolve reports absence with ok=false; callers treat that as "not configured".
func (r *Registry) Resolve(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[normalize(name)]
	return ch, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
