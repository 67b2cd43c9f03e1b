package core

import "time"

// Palette lists the color labels offered to users.
// The store does not enforce membership; presentation layers enumerate it.
var Palette = []string{
	"gray", "red", "orange", "yellow", "green", "blue", "indigo", "purple", "pink",
}

// InPalette reports whether color is one of the Palette labels.
func InPalette(color string) bool {
	for _, c := range Palette {
		if c == color {
			return true
		}
	}
	return false
}

// Note is the central entity of the domain.
// It is agnostic to storage format (Markdown, BSON, SQL rows behind REST).
type Note struct {
	ID        string
	Title     string
	Content   string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteInput carries the caller-controlled fields of a new note.
type NoteInput struct {
	Title   string `validate:"required"`
	Content string `validate:"required"`
	Color   string `validate:"required"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title   *string
	Content *string
	Color   *string
}

// Empty reports whether the patch carries no fields.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Color == nil
}

// Apply merges the supplied fields onto n and returns the result.
func (p Patch) Apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
	return n
}

// Fields returns the names of the supplied fields, in a stable order.
func (p Patch) Fields() []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Content != nil {
		fields = append(fields, "content")
	}
	if p.Color != nil {
		fields = append(fields, "color")
	}
	return fields
}

// User is an account known from the identity provider.
type User struct {
	ID        string
	Email     string
	Name      *string
	Image     *string
	Provider  string
	CreatedAt time.Time
}
