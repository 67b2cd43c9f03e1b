package core

import (
	"context"
	"time"
)

// Store is the note persistence contract exposed to callers (the Notes API, tests).
// Service implements it on top of a Repository.
type Store interface {
	List(ctx context.Context) ([]Note, error)
	Get(ctx context.Context, id string) (Note, error)
	Create(ctx context.Context, in NoteInput) (Note, error)
	Update(ctx context.Context, id string, p Patch) (Note, error)
	Delete(ctx context.Context, id string) error
}

// Repository defines the contract a storage adapter fulfils.
// Adhering to this interface keeps the core independent of the
// underlying storage mechanism (memory, filesystem, MongoDB, PostgREST).
//
// Adapters must return errors wrapping ErrNotFound for absent ids and
// StorageError (or ErrReadOnly) for everything else.
type Repository interface {
	// List returns all notes ordered by UpdatedAt, most recent first.
	List(ctx context.Context) ([]Note, error)

	// Get retrieves a note by its ID.
	Get(ctx context.Context, id string) (Note, error)

	// Insert persists a fully populated note and returns the stored record.
	Insert(ctx context.Context, n Note) (Note, error)

	// Update merges p onto the stored note, sets UpdatedAt and returns the stored record.
	Update(ctx context.Context, id string, p Patch, updatedAt time.Time) (Note, error)

	// Delete removes a note by its ID.
	Delete(ctx context.Context, id string) error

	// Initialize ensures the underlying storage is ready (directories, indexes).
	Initialize(ctx context.Context) error
}

// UserRepository stores accounts coming from the identity provider.
type UserRepository interface {
	// EnsureUser inserts u unless a user with the same email exists.
	// It returns the stored user and whether it was created by this call.
	EnsureUser(ctx context.Context, u User) (User, bool, error)
}

// Watchable is implemented by repositories that observe out-of-band changes.
type Watchable interface {
	// Watch starts observing and reports each external change to fn.
	Watch(ctx context.Context, fn func(Event)) error
}
