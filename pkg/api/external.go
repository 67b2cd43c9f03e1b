package api

import (
	"time"

	"github.com/aretw0/pinboard/pkg/core"
)

// TimeFormat renders timestamps as RFC 3339 UTC with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Note is the external JSON shape of a note.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Color     string `json:"color"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// ToExternal is the single place where core.Note becomes the wire shape.
func ToExternal(n core.Note) Note {
	return Note{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Color:     n.Color,
		CreatedAt: n.CreatedAt.UTC().Format(TimeFormat),
		UpdatedAt: n.UpdatedAt.UTC().Format(TimeFormat),
	}
}

func toExternalList(notes []core.Note) []Note {
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		out = append(out, ToExternal(n))
	}
	return out
}

// ParseTime parses a timestamp produced by ToExternal (or any RFC 3339 value).
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// errorBody is the JSON body of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}
