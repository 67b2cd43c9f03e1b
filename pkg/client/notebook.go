package client

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/pinboard/pkg/core"
)

// Failure messages recorded by Notebook.
const (
	MsgFetchNotes = "Failed to fetch notes"
	MsgFetchNote  = "Failed to fetch note"
	MsgCreateNote = "Failed to create note"
	MsgUpdateNote = "Failed to update note"
	MsgDeleteNote = "Failed to delete note"
)

// Notebook mirrors the server's note list locally.
// The list only changes after the server confirms a mutation.
type Notebook struct {
	client *Client

	mu      sync.RWMutex
	notes   []core.Note
	err     string
	loading bool
}

// NewNotebook creates an empty Notebook. Call Refresh to populate it.
func NewNotebook(c *Client) *Notebook {
	return &Notebook{client: c}
}

// Notes returns a copy of the local list.
func (nb *Notebook) Notes() []core.Note {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]core.Note, len(nb.notes))
	copy(out, nb.notes)
	return out
}

// Err returns the last failure message, or "".
func (nb *Notebook) Err() string {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return nb.err
}

// Loading reports whether a Refresh is in flight.
func (nb *Notebook) Loading() bool {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return nb.loading
}

// Refresh replaces the local list with the server's.
func (nb *Notebook) Refresh(ctx context.Context) error {
	nb.mu.Lock()
	nb.loading = true
	nb.err = ""
	nb.mu.Unlock()

	notes, err := nb.client.List(ctx)

	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.loading = false
	if err != nil {
		nb.err = message(err, MsgFetchNotes)
		return err
	}
	nb.notes = notes
	return nil
}

// Fetch returns a single note without touching the list.
func (nb *Notebook) Fetch(ctx context.Context, id string) (core.Note, error) {
	n, err := nb.client.Get(ctx, id)
	if err != nil {
		nb.fail(err, MsgFetchNote)
		return core.Note{}, err
	}
	return n, nil
}

// Create posts a note and appends the server's copy.
func (nb *Notebook) Create(ctx context.Context, in core.NoteInput) (core.Note, error) {
	n, err := nb.client.Create(ctx, in)
	if err != nil {
		nb.fail(err, MsgCreateNote)
		return core.Note{}, err
	}
	nb.mu.Lock()
	nb.notes = append(nb.notes, n)
	nb.err = ""
	nb.mu.Unlock()
	return n, nil
}

// Update patches a note and replaces the matching entry.
func (nb *Notebook) Update(ctx context.Context, id string, p core.Patch) (core.Note, error) {
	n, err := nb.client.Update(ctx, id, p)
	if err != nil {
		nb.fail(err, MsgUpdateNote)
		return core.Note{}, err
	}
	nb.mu.Lock()
	for i := range nb.notes {
		if nb.notes[i].ID == id {
			nb.notes[i] = n
		}
	}
	nb.err = ""
	nb.mu.Unlock()
	return n, nil
}

// Delete removes a note and drops the matching entry.
func (nb *Notebook) Delete(ctx context.Context, id string) error {
	if err := nb.client.Delete(ctx, id); err != nil {
		nb.fail(err, MsgDeleteNote)
		return err
	}
	nb.mu.Lock()
	kept := nb.notes[:0]
	for _, n := range nb.notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	nb.notes = kept
	nb.err = ""
	nb.mu.Unlock()
	return nil
}

func (nb *Notebook) fail(err error, fallback string) {
	nb.mu.Lock()
	nb.err = message(err, fallback)
	nb.mu.Unlock()
}

// message prefers the server's explanation over the generic fallback.
func message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
