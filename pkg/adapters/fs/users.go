package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/pinboard/pkg/core"
)

type userRecord struct {
	ID        string    `yaml:"id"`
	Email     string    `yaml:"email"`
	Name      *string   `yaml:"name,omitempty"`
	Image     *string   `yaml:"image,omitempty"`
	Provider  string    `yaml:"provider"`
	CreatedAt time.Time `yaml:"created_at"`
}

func (u userRecord) toUser() core.User {
	return core.User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Image:     u.Image,
		Provider:  u.Provider,
		CreatedAt: u.CreatedAt.UTC(),
	}
}

func (r *Repository) usersPath() string {
	return filepath.Join(r.Path, r.config.SystemDir, "users.yaml")
}

// EnsureUser appends u to the users file unless its email is already present.
func (r *Repository) EnsureUser(ctx context.Context, u core.User) (core.User, bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	records, err := r.readUsers()
	if err != nil {
		return core.User{}, false, core.NewStorageError("read users", err)
	}
	for _, rec := range records {
		if rec.Email == u.Email {
			return rec.toUser(), false, nil
		}
	}
	if r.isReadOnly() {
		return core.User{}, false, core.ErrReadOnly
	}

	records = append(records, userRecord{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Image:     u.Image,
		Provider:  u.Provider,
		CreatedAt: u.CreatedAt.UTC(),
	})
	data, err := yaml.Marshal(records)
	if err != nil {
		return core.User{}, false, core.NewStorageError("write users", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.usersPath()), 0755); err != nil {
		return core.User{}, false, core.NewStorageError("write users", err)
	}
	if err := writeFileAtomic(r.usersPath(), data, 0600); err != nil {
		return core.User{}, false, core.NewStorageError("write users", err)
	}
	return u, true, nil
}

func (r *Repository) readUsers() ([]userRecord, error) {
	data, err := os.ReadFile(r.usersPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []userRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("invalid users file: %w", err)
	}
	return records, nil
}
