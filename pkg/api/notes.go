package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretw0/pinboard/pkg/core"
)

// Messages returned in error bodies.
const (
	msgFetchNotes    = "Failed to fetch notes"
	msgFetchNote     = "Failed to fetch note"
	msgCreateNote    = "Failed to create note"
	msgUpdateNote    = "Failed to update note"
	msgDeleteNote    = "Failed to delete note"
	msgMissingFields = "Missing required fields: title, content, color"
	msgNoFields      = "No fields to update"
	msgInvalidBody   = "Invalid JSON body"
	msgReadOnly      = "Notes are read-only"
)

func notFoundMessage(id string) string {
	return fmt.Sprintf("Note with ID %s not found", id)
}

// GET /api/notes
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.List(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err, "", msgFetchNotes)
		return
	}
	writeJSON(w, http.StatusOK, toExternalList(notes))
}

// GET /api/notes/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	n, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err, id, msgFetchNote)
		return
	}
	writeJSON(w, http.StatusOK, ToExternal(n))
}

// createRequest is the POST body. Unknown fields (including id and timestamps) are ignored.
type createRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Color   string `json:"color"`
}

// POST /api/notes
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	in := core.NoteInput{Title: req.Title, Content: req.Content, Color: req.Color}
	if err := core.ValidateInput(in); err != nil {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	n, err := s.store.Create(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err, "", msgCreateNote)
		return
	}
	writeJSON(w, http.StatusCreated, ToExternal(n))
}

// PATCH /api/notes/{id}
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	p, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := core.ValidatePatch(p); err != nil {
		if p.Empty() {
			writeError(w, http.StatusBadRequest, msgNoFields)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := s.store.Update(r.Context(), id, p)
	if err != nil {
		s.writeStoreError(w, r, err, id, msgUpdateNote)
		return
	}
	writeJSON(w, http.StatusOK, ToExternal(n))
}

// badRequest is a client error whose text is sent as-is.
type badRequest string

func (e badRequest) Error() string { return string(e) }

// decodePatch reads the recognized fields of a PATCH body.
// Unrecognized keys are dropped; a recognized key whose value is not a string is rejected.
func decodePatch(r *http.Request) (core.Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return core.Patch{}, badRequest(msgInvalidBody)
	}

	var p core.Patch
	for _, field := range []struct {
		key string
		dst **string
	}{
		{"title", &p.Title},
		{"content", &p.Content},
		{"color", &p.Color},
	} {
		value, ok := raw[field.key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(value, &v); err != nil || string(value) == "null" {
			return core.Patch{}, badRequest("Invalid value for " + field.key)
		}
		*field.dst = &v
	}
	return p, nil
}

// DELETE /api/notes/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err, id, msgDeleteNote)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps the error taxonomy to a status code.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error, id, fallback string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMessage(id))
	case errors.Is(err, core.ErrReadOnly):
		writeError(w, http.StatusForbidden, msgReadOnly)
	default:
		s.logger.Error(fallback, "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
