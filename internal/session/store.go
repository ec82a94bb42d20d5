// Package session keeps wizard sessions between requests.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/socialchef/recipewizard/internal/wizard"
)

// Store defines the persistence operations for sessions.
type Store interface {
	// Load returns the session stored under id.
	// Returns nil if the id is unknown or has expired.
	Load(ctx context.Context, id string) (*wizard.Session, error)

	// Save stores s under id, resetting its TTL.
	Save(ctx context.Context, id string, s *wizard.Session) error

	// Delete removes the session stored under id.
	Delete(ctx context.Context, id string) error
}

// Registry serializes the actions of one session on top of a Store. Different
// sessions do not block each other.
type Registry struct {
	Store

	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewRegistry(store Store) *Registry {
	return &Registry{Store: store, locks: make(map[string]*lockEntry)}
}

// Lock blocks until no other action holds id and returns the release func.
func (r *Registry) Lock(id string) (unlock func()) {
	r.mu.Lock()
	e, ok := r.locks[id]
	if !ok {
		e = &lockEntry{}
		r.locks[id] = e
	}
	e.refs++
	r.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		r.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(r.locks, id)
		}
		r.mu.Unlock()
	}
}

func encode(s *wizard.Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*wizard.Session, error) {
	var s wizard.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Recipes == nil {
		s.Recipes = []string{}
	}
	return &s, nil
}

// DefaultTTL applies when a store is built with a non-positive TTL.
const DefaultTTL = 12 * time.Hour
