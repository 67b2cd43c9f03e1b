// Package memory provides a process-local core.Repository.
// Data lives only as long as the process; it backs tests and the default
// `pinboard serve` configuration.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/pinboard/pkg/core"
)

// Repository implements core.Repository and core.UserRepository over maps.
type Repository struct {
	mu    sync.RWMutex
	notes map[string]core.Note
	users map[string]core.User // keyed by email
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		notes: make(map[string]core.Note),
		users: make(map[string]core.User),
	}
}

// Initialize is a no-op.
func (r *Repository) Initialize(ctx context.Context) error {
	return nil
}

// List returns all notes ordered by UpdatedAt descending.
func (r *Repository) List(ctx context.Context) ([]core.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]core.Note, 0, len(r.notes))
	for _, n := range r.notes {
		notes = append(notes, n)
	}
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

// Get retrieves a note by ID.
func (r *Repository) Get(ctx context.Context, id string) (core.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notes[id]
	if !ok {
		return core.Note{}, core.NotFound(id)
	}
	return n, nil
}

// Insert stores n as given.
func (r *Repository) Insert(ctx context.Context, n core.Note) (core.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.notes[n.ID] = n
	return n, nil
}

// Update merges p onto the stored note.
func (r *Repository) Update(ctx context.Context, id string, p core.Patch, updatedAt time.Time) (core.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notes[id]
	if !ok {
		return core.Note{}, core.NotFound(id)
	}
	n = p.Apply(n)
	n.UpdatedAt = updatedAt
	r.notes[id] = n
	return n, nil
}

// Delete removes a note.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.notes[id]; !ok {
		return core.NotFound(id)
	}
	delete(r.notes, id)
	return nil
}

// EnsureUser inserts u unless its email is already registered.
func (r *Repository) EnsureUser(ctx context.Context, u core.User) (core.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[u.Email]; ok {
		return existing, false, nil
	}
	r.users[u.Email] = u
	return u, true, nil
}

// Len returns the number of stored notes.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notes)
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{"notes": len(r.notes), "users": len(r.users)}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "memory-repository"
}

var (
	_ core.Repository     = (*Repository)(nil)
	_ core.UserRepository = (*Repository)(nil)
)
