package fs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/pinboard/pkg/core"
)

// frontmatter is the on-disk header of a note file.
// Storage naming is snake_case; it is translated to core.Note here and nowhere else.
type frontmatter struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Color     string    `yaml:"color"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

func toFrontmatter(n core.Note) frontmatter {
	return frontmatter{
		ID:        n.ID,
		Title:     n.Title,
		Color:     n.Color,
		CreatedAt: n.CreatedAt.UTC(),
		UpdatedAt: n.UpdatedAt.UTC(),
	}
}

func (f frontmatter) toNote(content string) core.Note {
	return core.Note{
		ID:        f.ID,
		Title:     f.Title,
		Content:   content,
		Color:     f.Color,
		CreatedAt: f.CreatedAt.UTC(),
		UpdatedAt: f.UpdatedAt.UTC(),
	}
}

// parseNote reads a Markdown file with YAML frontmatter.
// fallbackID is used when the header carries no id (hand-written files).
func parseNote(r io.Reader, fallbackID string) (core.Note, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Note{}, err
	}

	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		return core.Note{ID: fallbackID, Content: string(data)}, nil
	}

	rest := data[3:]
	parts := bytes.SplitN(rest, []byte("\n---"), 2)
	if len(parts) == 1 {
		return core.Note{}, errors.New("frontmatter started but no closing delimiter found")
	}

	var fm frontmatter
	if err := yaml.Unmarshal(parts[0], &fm); err != nil {
		return core.Note{}, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if fm.ID == "" {
		fm.ID = fallbackID
	}

	content := string(parts[1])
	if strings.HasPrefix(content, "\r\n") {
		content = content[2:]
	} else {
		content = strings.TrimPrefix(content, "\n")
	}
	return fm.toNote(content), nil
}

// serializeNote renders n as frontmatter followed by the raw content.
func serializeNote(n core.Note) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(toFrontmatter(n)); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	buf.WriteString(n.Content)
	return buf.Bytes(), nil
}
