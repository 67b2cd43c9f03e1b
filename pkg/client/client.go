// Package client talks to the Notes API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/pinboard/pkg/api"
	"github.com/aretw0/pinboard/pkg/core"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 15 * time.Second

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client is a typed client of /api/notes.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithToken sends token as a Bearer credential.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns every note, most recently updated first.
func (c *Client) List(ctx context.Context) ([]core.Note, error) {
	var out []api.Note
	if err := c.do(ctx, http.MethodGet, "/api/notes", nil, &out); err != nil {
		return nil, err
	}
	notes := make([]core.Note, 0, len(out))
	for _, n := range out {
		note, err := fromExternal(n)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

// Get returns one note.
func (c *Client) Get(ctx context.Context, id string) (core.Note, error) {
	var out api.Note
	if err := c.do(ctx, http.MethodGet, notePath(id), nil, &out); err != nil {
		return core.Note{}, err
	}
	return fromExternal(out)
}

// Create posts a new note.
func (c *Client) Create(ctx context.Context, in core.NoteInput) (core.Note, error) {
	body := map[string]string{"title": in.Title, "content": in.Content, "color": in.Color}
	var out api.Note
	if err := c.do(ctx, http.MethodPost, "/api/notes", body, &out); err != nil {
		return core.Note{}, err
	}
	return fromExternal(out)
}

// Update sends the set fields of p.
func (c *Client) Update(ctx context.Context, id string, p core.Patch) (core.Note, error) {
	body := map[string]string{}
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Content != nil {
		body["content"] = *p.Content
	}
	if p.Color != nil {
		body["color"] = *p.Color
	}
	var out api.Note
	if err := c.do(ctx, http.MethodPatch, notePath(id), body, &out); err != nil {
		return core.Note{}, err
	}
	return fromExternal(out)
}

// Delete removes a note.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, notePath(id), nil, nil)
}

// notePath escapes id so reserved characters stay inside the path segment.
func notePath(id string) string {
	return "/api/notes/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&eb) == nil {
			apiErr.Message = eb.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func fromExternal(n api.Note) (core.Note, error) {
	created, err := api.ParseTime(n.CreatedAt)
	if err != nil {
		return core.Note{}, fmt.Errorf("note %s: createdAt: %w", n.ID, err)
	}
	updated, err := api.ParseTime(n.UpdatedAt)
	if err != nil {
		return core.Note{}, fmt.Errorf("note %s: updatedAt: %w", n.ID, err)
	}
	return core.Note{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Color:     n.Color,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}
