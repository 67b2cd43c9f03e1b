// Package rest talks to a PostgREST endpoint (e.g. a hosted Postgres with a
// REST gateway) over plain HTTP.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/pinboard/pkg/core"
)

const maxErrorBody = 4 << 10

// Config holds the endpoint settings.
type Config struct {
	BaseURL    string // e.g. https://xyz.example.co; /rest/v1 is appended
	APIKey     string
	Timeout    time.Duration // defaults to 10s
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Repository implements core.Repository and core.UserRepository against PostgREST.
type Repository struct {
	base   string
	config Config
	http   *http.Client
}

// New creates a repository. It performs no I/O.
func New(cfg Config) (*Repository, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("rest: base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("rest: invalid base url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Repository{
		base:   strings.TrimRight(cfg.BaseURL, "/") + "/rest/v1",
		config: cfg,
		http:   client,
	}, nil
}

// Error is a non-2xx response from the endpoint.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s %s", e.Status, e.Code, e.Message)
}

// Initialize checks that the notes table is reachable.
func (r *Repository) Initialize(ctx context.Context) error {
	q := url.Values{"select": {"id"}, "limit": {"1"}}
	var rows []noteRow
	return r.do(ctx, "probe notes", http.MethodGet, "notes", q, nil, &rows)
}

// List returns all notes ordered by updated_at descending.
func (r *Repository) List(ctx context.Context) ([]core.Note, error) {
	q := url.Values{"order": {"updated_at.desc,id.asc"}}
	var rows []noteRow
	if err := r.do(ctx, "list notes", http.MethodGet, "notes", q, nil, &rows); err != nil {
		return nil, err
	}
	return toNotes(rows), nil
}

// Get retrieves a single note. An empty result set is NotFound.
func (r *Repository) Get(ctx context.Context, id string) (core.Note, error) {
	q := url.Values{"id": {"eq." + id}, "limit": {"1"}}
	var rows []noteRow
	if err := r.do(ctx, "get note", http.MethodGet, "notes", q, nil, &rows); err != nil {
		return core.Note{}, err
	}
	if len(rows) == 0 {
		return core.Note{}, core.NotFound(id)
	}
	return rows[0].toNote(), nil
}

// Insert posts a new row and returns the stored representation.
func (r *Repository) Insert(ctx context.Context, n core.Note) (core.Note, error) {
	var rows []noteRow
	if err := r.do(ctx, "insert note", http.MethodPost, "notes", nil, fromNote(n), &rows); err != nil {
		return core.Note{}, err
	}
	if len(rows) == 0 {
		return n, nil
	}
	return rows[0].toNote(), nil
}

// Update patches the row; no representation means no row matched.
func (r *Repository) Update(ctx context.Context, id string, p core.Patch, updatedAt time.Time) (core.Note, error) {
	q := url.Values{"id": {"eq." + id}}
	var rows []noteRow
	if err := r.do(ctx, "update note", http.MethodPatch, "notes", q, patchBody(p, updatedAt), &rows); err != nil {
		return core.Note{}, err
	}
	if len(rows) == 0 {
		return core.Note{}, core.NotFound(id)
	}
	return rows[0].toNote(), nil
}

// Delete removes the row; no representation means no row matched.
func (r *Repository) Delete(ctx context.Context, id string) error {
	q := url.Values{"id": {"eq." + id}}
	var rows []noteRow
	if err := r.do(ctx, "delete note", http.MethodDelete, "notes", q, nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return core.NotFound(id)
	}
	return nil
}

// EnsureUser looks the email up and inserts the user only when absent.
// A 409 from a concurrent insert falls back to the existing row.
func (r *Repository) EnsureUser(ctx context.Context, u core.User) (core.User, bool, error) {
	existing, ok, err := r.findUser(ctx, u.Email)
	if err != nil {
		return core.User{}, false, err
	}
	if ok {
		return existing, false, nil
	}

	var rows []userRow
	err = r.do(ctx, "insert user", http.MethodPost, "users", nil, fromUser(u), &rows)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		existing, ok, ferr := r.findUser(ctx, u.Email)
		if ferr != nil || !ok {
			return core.User{}, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return core.User{}, false, err
	}
	if len(rows) > 0 {
		return rows[0].toUser(), true, nil
	}
	return u, true, nil
}

func (r *Repository) findUser(ctx context.Context, email string) (core.User, bool, error) {
	q := url.Values{"email": {"eq." + email}, "limit": {"1"}}
	var rows []userRow
	if err := r.do(ctx, "find user", http.MethodGet, "users", q, nil, &rows); err != nil {
		return core.User{}, false, err
	}
	if len(rows) == 0 {
		return core.User{}, false, nil
	}
	return rows[0].toUser(), true, nil
}

// do performs one request. Every failure is returned as a StorageError.
func (r *Repository) do(ctx context.Context, op, method, table string, q url.Values, body, out any) error {
	endpoint := r.base + "/" + table
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return core.NewStorageError(op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return core.NewStorageError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", r.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	req.Header.Set("Prefer", "return=representation")

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		return core.NewStorageError(op, err)
	}
	defer resp.Body.Close()

	r.config.Logger.Debug("rest request", "op", op, "method", method, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return core.NewStorageError(op, apiErr)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.NewStorageError(op, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return core.NewStorageError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func toNotes(rows []noteRow) []core.Note {
	notes := make([]core.Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, row.toNote())
	}
	return notes
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	return map[string]string{
		"endpoint": r.base,
		"timeout":  r.config.Timeout.String(),
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "rest-repository"
}

var (
	_ core.Repository              = (*Repository)(nil)
	_ core.UserRepository          = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
