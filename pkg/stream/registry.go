package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry is a thread-safe set of named sessions, so one process can hold
// several connections (e.g. public market data and a private feed) and shut
// them down together.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register adds s under name. It fails if the name is taken.
func (r *Registry) Register(name string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[name]; exists {
		return fmt.Errorf("session %q already registered", name)
	}
	r.sessions[name] = s
	return nil
}

// Get returns the session registered under name.
func (r *Registry) Get(name string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.sessions[name]
	if !exists {
		return nil, fmt.Errorf("session %q not found", name)
	}
	return s, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes name. The session itself is left untouched.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, name)
}

// Exists reports whether name is registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sessions[name]
	return exists
}

// CloseAll starts a close on every connected session, waits for their pumps
// to exit and empties the registry. Sessions that are not connected are skipped.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs []error
	for name, s := range sessions {
		if s.State() != StateConnected {
			continue
		}
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	for _, s := range sessions {
		s.Wait()
	}
	return errors.Join(errs...)
}
