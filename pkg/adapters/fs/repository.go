// Package fs stores notes as Markdown files with YAML frontmatter,
// optionally versioning every mutation with git.
package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/pinboard/pkg/core"
	"github.com/aretw0/pinboard/pkg/git"
)

// DefaultSystemDir holds the index cache and the users file.
const DefaultSystemDir = ".pinboard"

const noteExt = ".md"

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path         string
	SystemDir    string // defaults to DefaultSystemDir
	Gitless      bool   // skip git entirely
	AutoInit     bool   // run git init when Path is not a repository
	MustExist    bool   // fail instead of creating Path
	ReadOnly     bool
	Logger       *slog.Logger
	ErrorHandler func(error) // receives failures from background work (watcher, commits)
}

// Repository implements core.Repository using the filesystem and Git.
type Repository struct {
	Path   string
	config Config
	git    *git.Client
	cache  *cache

	// writeMu serializes mutations so read-modify-write cycles do not interleave.
	writeMu sync.Mutex

	mu            sync.RWMutex
	readOnly      bool
	watcherActive bool
	lastScan      *time.Time
	selfWrites    map[string]time.Time
}

// NewRepository creates a new filesystem-backed repository.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Repository{
		Path:       config.Path,
		config:     config,
		git:        git.NewClient(config.Path, config.SystemDir+".lock", config.Logger),
		cache:      newCache(config.Path, config.SystemDir),
		readOnly:   config.ReadOnly,
		selfWrites: make(map[string]time.Time),
	}
}

// Initialize performs the necessary setup for the repository (mkdir, git init, cache load).
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("notes path does not exist: %s", r.Path)
		}
		if err != nil {
			return fmt.Errorf("failed to stat notes path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("notes path is not a directory: %s", r.Path)
		}
	} else if err := os.MkdirAll(r.Path, 0755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}

	if !r.config.Gitless {
		if err := r.initGit(ctx); err != nil {
			return err
		}
	}

	if err := r.cache.Load(); err != nil {
		r.config.Logger.Warn("index cache unreadable, rebuilding", "error", err)
	}
	return nil
}

func (r *Repository) initGit(ctx context.Context) error {
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !r.git.IsRepo() {
		if !r.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", r.Path)
		}
		if err := r.git.Init(ctx); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}
	if mod && wasNewRepo && !r.readOnly {
		if err := r.git.Add(ctx, ".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		msg := git.FormatCommitMessage(git.CommitTypeChore, "", fmt.Sprintf("configure %s ignore", r.config.SystemDir), "")
		if err := r.git.Commit(ctx, msg); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

// ensureIgnore keeps the system directory and lock file out of version control.
func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	wanted := []string{r.config.SystemDir + "/", r.config.SystemDir + ".lock"}

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(content), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var buf bytes.Buffer
	buf.Write(content)
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		buf.WriteString("\n")
	}
	modified := false
	for _, entry := range wanted {
		if !present[entry] {
			buf.WriteString(entry + "\n")
			modified = true
		}
	}
	if !modified {
		return false, nil
	}
	return true, writeFileAtomic(ignorePath, buf.Bytes(), 0644)
}

// SetReadOnly toggles rejection of mutations at runtime.
func (r *Repository) SetReadOnly(readOnly bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readOnly = readOnly
}

func (r *Repository) isReadOnly() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readOnly
}

// List returns all notes ordered by UpdatedAt, most recent first.
func (r *Repository) List(ctx context.Context) ([]core.Note, error) {
	entries, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	notes := make([]core.Note, 0, len(entries))
	for _, e := range entries {
		notes = append(notes, e.note())
	}
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

// Get retrieves a note by its ID.
func (r *Repository) Get(ctx context.Context, id string) (core.Note, error) {
	rel, err := r.locate(ctx, id)
	if err != nil {
		return core.Note{}, err
	}
	entry, err := r.load(rel)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return core.Note{}, core.NotFound(id)
		}
		return core.Note{}, core.NewStorageError("read note", err)
	}
	return entry.note(), nil
}

// Insert writes a new note file named after its ID.
func (r *Repository) Insert(ctx context.Context, n core.Note) (core.Note, error) {
	if r.isReadOnly() {
		return core.Note{}, core.ErrReadOnly
	}
	if !validID(n.ID) {
		return core.Note{}, core.NewStorageError("insert note", fmt.Errorf("invalid note id %q", n.ID))
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	rel := n.ID + noteExt
	if _, err := os.Stat(r.abs(rel)); err == nil {
		return core.Note{}, core.NewStorageError("insert note", fmt.Errorf("note %s already exists", n.ID))
	}
	if err := r.write(rel, n); err != nil {
		return core.Note{}, core.NewStorageError("insert note", err)
	}
	r.commit(ctx, git.CommitTypeFeat, "create "+n.Title, n.ID, rel, false)
	return n, nil
}

// Update merges p onto the stored note and rewrites its file.
func (r *Repository) Update(ctx context.Context, id string, p core.Patch, updatedAt time.Time) (core.Note, error) {
	if r.isReadOnly() {
		return core.Note{}, core.ErrReadOnly
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	rel, err := r.locate(ctx, id)
	if err != nil {
		return core.Note{}, err
	}
	entry, err := r.load(rel)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return core.Note{}, core.NotFound(id)
		}
		return core.Note{}, core.NewStorageError("read note", err)
	}

	n := p.Apply(entry.note())
	n.UpdatedAt = updatedAt
	if err := r.write(rel, n); err != nil {
		return core.Note{}, core.NewStorageError("update note", err)
	}
	r.commit(ctx, git.CommitTypeFeat, "update "+n.Title, n.ID, rel, false)
	return n, nil
}

// Delete removes the note file.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r.isReadOnly() {
		return core.ErrReadOnly
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	rel, err := r.locate(ctx, id)
	if err != nil {
		return err
	}

	r.markSelf(rel)
	if err := os.Remove(r.abs(rel)); err != nil {
		if os.IsNotExist(err) {
			return core.NotFound(id)
		}
		return core.NewStorageError("delete note", err)
	}
	r.cache.Delete(rel)
	r.saveCache()
	r.commit(ctx, git.CommitTypeFeat, "delete "+id, id, rel, true)
	return nil
}

// locate returns the relative path of the note with id.
// Files are normally named <id>.md; renamed or nested files are found via the index.
func (r *Repository) locate(ctx context.Context, id string) (string, error) {
	if !validID(id) {
		return "", core.NotFound(id)
	}
	rel := id + noteExt
	if _, err := os.Stat(r.abs(rel)); err == nil {
		return rel, nil
	}

	if _, err := r.scan(ctx); err != nil {
		return "", err
	}
	if found, ok := r.cache.Lookup(id); ok {
		return found, nil
	}
	return "", core.NotFound(id)
}

// scan walks the notes directory and refreshes the index from changed files.
func (r *Repository) scan(ctx context.Context) ([]*indexEntry, error) {
	matches, err := doublestar.Glob(os.DirFS(r.Path), "**/*"+noteExt)
	if err != nil {
		return nil, core.NewStorageError("list notes", err)
	}

	keep := make(map[string]bool, len(matches))
	entries := make([]*indexEntry, 0, len(matches))
	for _, rel := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.ignored(rel) {
			continue
		}
		entry, err := r.load(rel)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				continue
			}
			r.config.Logger.Warn("skipping unreadable note", "path", rel, "error", err)
			continue
		}
		keep[filepath.ToSlash(rel)] = true
		entries = append(entries, entry)
	}

	r.cache.Prune(keep)
	r.saveCache()

	now := time.Now()
	r.mu.Lock()
	r.lastScan = &now
	r.mu.Unlock()
	return entries, nil
}

// load returns the parsed file at rel, consulting the index first.
func (r *Repository) load(rel string) (*indexEntry, error) {
	key := filepath.ToSlash(rel)
	info, err := os.Stat(r.abs(rel))
	if err != nil {
		return nil, err
	}
	if entry, ok := r.cache.Get(key, info.ModTime()); ok {
		return entry, nil
	}

	f, err := os.Open(r.abs(rel))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n, err := parseNote(f, strings.TrimSuffix(filepath.Base(rel), noteExt))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	entry := newIndexEntry(n, info.ModTime())
	r.cache.Set(key, entry)
	return entry, nil
}

// write serializes n to rel atomically and refreshes its index entry.
func (r *Repository) write(rel string, n core.Note) error {
	data, err := serializeNote(n)
	if err != nil {
		return fmt.Errorf("failed to serialize note: %w", err)
	}

	full := r.abs(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	r.markSelf(rel)
	if err := writeFileAtomic(full, data, 0644); err != nil {
		return err
	}

	if info, err := os.Stat(full); err == nil {
		r.cache.Set(filepath.ToSlash(rel), newIndexEntry(n, info.ModTime()))
		r.saveCache()
	}
	return nil
}

// commit records a mutation in git. Failures are reported but never undo the write.
func (r *Repository) commit(ctx context.Context, ctype, subject, id, rel string, removed bool) {
	if r.config.Gitless {
		return
	}

	unlock, err := r.git.Lock(ctx)
	if err != nil {
		r.report(fmt.Errorf("git lock: %w", err))
		return
	}
	defer unlock()

	if removed {
		err = r.git.Rm(ctx, rel)
	} else {
		err = r.git.Add(ctx, rel)
	}
	if err != nil {
		r.report(fmt.Errorf("git stage %s: %w", rel, err))
		return
	}

	msg := git.FormatCommitMessage(ctype, "notes", subject, "Note-ID: "+id)
	if err := r.git.Commit(ctx, msg); err != nil {
		r.report(fmt.Errorf("git commit %s: %w", rel, err))
	}
}

func (r *Repository) report(err error) {
	r.config.Logger.Error("fs repository", "error", err)
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
	}
}

func (r *Repository) saveCache() {
	if err := r.cache.Save(); err != nil {
		r.config.Logger.Warn("failed to save index cache", "error", err)
	}
}

func (r *Repository) abs(rel string) string {
	return filepath.Join(r.Path, filepath.FromSlash(rel))
}

// ignored reports whether rel lives in a directory pinboard does not own.
func (r *Repository) ignored(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, dir := range []string{r.config.SystemDir, ".git"} {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return strings.HasPrefix(filepath.Base(rel), TempFilePrefix)
}

// markSelf records a write made by this process so the watcher can skip its echo.
func (r *Repository) markSelf(rel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selfWrites[filepath.ToSlash(rel)] = time.Now()
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

func newIndexEntry(n core.Note, mtime time.Time) *indexEntry {
	return &indexEntry{
		ID:           n.ID,
		Title:        n.Title,
		Content:      n.Content,
		Color:        n.Color,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
		LastModified: mtime,
	}
}

func (e *indexEntry) note() core.Note {
	return core.Note{
		ID:        e.ID,
		Title:     e.Title,
		Content:   e.Content,
		Color:     e.Color,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}
}

var (
	_ core.Repository     = (*Repository)(nil)
	_ core.UserRepository = (*Repository)(nil)
	_ core.Watchable      = (*Repository)(nil)
)
