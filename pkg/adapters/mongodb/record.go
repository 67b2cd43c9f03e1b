package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/aretw0/pinboard/pkg/core"
)

// noteRecord is the stored document. Field names are snake_case;
// translation to core.Note happens here only.
type noteRecord struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	Content   string    `bson:"content"`
	Color     string    `bson:"color"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func fromNote(n core.Note) noteRecord {
	return noteRecord{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Color:     n.Color,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func (r noteRecord) toNote() core.Note {
	return core.Note{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Color:     r.Color,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

// patchSet builds the $set document for p.
func patchSet(p core.Patch, updatedAt time.Time) bson.M {
	set := bson.M{"updated_at": updatedAt}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Content != nil {
		set["content"] = *p.Content
	}
	if p.Color != nil {
		set["color"] = *p.Color
	}
	return set
}

type userRecord struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      *string   `bson:"name,omitempty"`
	Image     *string   `bson:"image,omitempty"`
	Provider  string    `bson:"provider"`
	CreatedAt time.Time `bson:"created_at"`
}

func fromUser(u core.User) userRecord {
	return userRecord{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Image:     u.Image,
		Provider:  u.Provider,
		CreatedAt: u.CreatedAt,
	}
}

func (r userRecord) toUser() core.User {
	return core.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		Image:     r.Image,
		Provider:  r.Provider,
		CreatedAt: r.CreatedAt.UTC(),
	}
}
