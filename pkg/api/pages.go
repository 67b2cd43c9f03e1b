package api

import (
	"html/template"
	"net/http"
)

var pages = template.Must(template.New("layout").Parse(`{{define "head"}}<!doctype html>
<html lang="en"><head><meta charset="utf-8"><title>pinboard</title></head><body>{{end}}
{{define "home"}}{{template "head"}}
<h1>pinboard</h1>
{{if .User}}<p><a href="/notes">Your notes</a> · <a href="/auth/signout">Sign out</a></p>
{{else}}<p><a href="/auth/signin">Sign in with Google</a></p>{{end}}
</body></html>{{end}}
{{define "notes"}}{{template "head"}}
<h1>Notes</h1>
<p><a href="/">Home</a></p>
{{if not .Notes}}<p>No notes yet.</p>{{end}}
<ul>{{range .Notes}}
<li data-color="{{.Color}}"><strong>{{.Title}}</strong> <small>{{.UpdatedAt}}</small><p>{{.Content}}</p></li>{{end}}
</ul>
</body></html>{{end}}`))

type pageData struct {
	User  any
	Notes []Note
}

func (s *Server) sessionUser(r *http.Request) any {
	if s.session == nil {
		return nil
	}
	if u, ok := s.session(r); ok {
		return u
	}
	return nil
}

// GET /
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, "home", pageData{User: s.sessionUser(r)})
}

// GET /notes, protected by the auth gate when one is installed.
func (s *Server) handleNotesPage(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error(msgFetchNotes, "error", err)
		http.Error(w, msgFetchNotes, http.StatusInternalServerError)
		return
	}
	s.render(w, "notes", pageData{User: s.sessionUser(r), Notes: toExternalList(notes)})
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("render page", "page", name, "error", err)
	}
}
