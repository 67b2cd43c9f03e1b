package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakePostgREST serves the subset of PostgREST the repository uses.
type fakePostgREST struct {
	t      *testing.T
	apiKey string

	mu       sync.Mutex
	notes    map[string]noteRow
	users    map[string]userRow // keyed by email
	requests []*http.Request
	fail     int // when non-zero, every request answers with this status
}

func newFakePostgREST(t *testing.T, apiKey string) (*fakePostgREST, *httptest.Server) {
	f := &fakePostgREST{
		t:      t,
		apiKey: apiKey,
		notes:  make(map[string]noteRow),
		users:  make(map[string]userRow),
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)

	if r.Header.Get("apikey") != f.apiKey || r.Header.Get("Authorization") != "Bearer "+f.apiKey {
		writeFake(w, http.StatusUnauthorized, map[string]string{"code": "PGRST301", "message": "bad key"})
		return
	}
	if f.fail != 0 {
		writeFake(w, f.fail, map[string]string{"code": "XX000", "message": "injected failure"})
		return
	}

	switch r.URL.Path {
	case "/rest/v1/notes":
		f.serveNotes(w, r)
	case "/rest/v1/users":
		f.serveUsers(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakePostgREST) serveNotes(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")

	switch r.Method {
	case http.MethodGet:
		var rows []noteRow
		for _, n := range f.notes {
			if id == "" || n.ID == id {
				rows = append(rows, n)
			}
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].UpdatedAt.Equal(rows[j].UpdatedAt) {
				return rows[i].ID < rows[j].ID
			}
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		})
		if r.URL.Query().Get("limit") == "1" && len(rows) > 1 {
			rows = rows[:1]
		}
		writeFake(w, http.StatusOK, nonNil(rows))

	case http.MethodPost:
		var row noteRow
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeFake(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if _, exists := f.notes[row.ID]; exists {
			writeFake(w, http.StatusConflict, map[string]string{"code": "23505", "message": "duplicate key"})
			return
		}
		f.notes[row.ID] = row
		writeFake(w, http.StatusCreated, []noteRow{row})

	case http.MethodPatch:
		var body struct {
			Title     *string   `json:"title"`
			Content   *string   `json:"content"`
			Color     *string   `json:"color"`
			UpdatedAt time.Time `json:"updated_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeFake(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		row, ok := f.notes[id]
		if !ok {
			writeFake(w, http.StatusOK, []noteRow{})
			return
		}
		if body.Title != nil {
			row.Title = *body.Title
		}
		if body.Content != nil {
			row.Content = *body.Content
		}
		if body.Color != nil {
			row.Color = *body.Color
		}
		row.UpdatedAt = body.UpdatedAt
		f.notes[id] = row
		writeFake(w, http.StatusOK, []noteRow{row})

	case http.MethodDelete:
		row, ok := f.notes[id]
		if !ok {
			writeFake(w, http.StatusOK, []noteRow{})
			return
		}
		delete(f.notes, id)
		writeFake(w, http.StatusOK, []noteRow{row})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePostgREST) serveUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		email := strings.TrimPrefix(r.URL.Query().Get("email"), "eq.")
		rows := []userRow{}
		if u, ok := f.users[email]; ok {
			rows = append(rows, u)
		}
		writeFake(w, http.StatusOK, rows)

	case http.MethodPost:
		var row userRow
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			writeFake(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if _, exists := f.users[row.Email]; exists {
			writeFake(w, http.StatusConflict, map[string]string{"code": "23505", "message": "duplicate key"})
			return
		}
		f.users[row.Email] = row
		writeFake(w, http.StatusCreated, []userRow{row})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeFake(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil(rows []noteRow) []noteRow {
	if rows == nil {
		return []noteRow{}
	}
	return rows
}
