package rest

import (
	"time"

	"github.com/aretw0/pinboard/pkg/core"
)

// noteRow is a row of the notes table as PostgREST renders it.
type noteRow struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func fromNote(n core.Note) noteRow {
	return noteRow{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Color:     n.Color,
		CreatedAt: n.CreatedAt.UTC(),
		UpdatedAt: n.UpdatedAt.UTC(),
	}
}

func (r noteRow) toNote() core.Note {
	return core.Note{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Color:     r.Color,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// patchBody carries only the supplied columns plus updated_at.
func patchBody(p core.Patch, updatedAt time.Time) map[string]any {
	body := map[string]any{"updated_at": updatedAt.UTC()}
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Content != nil {
		body["content"] = *p.Content
	}
	if p.Color != nil {
		body["color"] = *p.Color
	}
	return body
}

type userRow struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Image     *string   `json:"image"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

func fromUser(u core.User) userRow {
	return userRow{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Image:     u.Image,
		Provider:  u.Provider,
		CreatedAt: u.CreatedAt.UTC(),
	}
}

func (r userRow) toUser() core.User {
	return core.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		Image:     r.Image,
		Provider:  r.Provider,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
