package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/pinboard/pkg/adapters/fs"
	"github.com/aretw0/pinboard/pkg/adapters/storetest"
	"github.com/aretw0/pinboard/pkg/core"
	"github.com/aretw0/pinboard/pkg/git"
)

// setupRepo creates a gitless repository in a temp dir unless opts say otherwise.
// It returns the repository, its root path and a git client for verification.
func setupRepo(t *testing.T, opts ...func(*fs.Config)) (*fs.Repository, string, *git.Client) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "notes")
	cfg := fs.Config{
		Path:     path,
		AutoInit: true,
		Gitless:  true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return fs.NewRepository(cfg), path, git.NewClient(path, "", nil)
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.Repository {
		repo, _, _ := setupRepo(t)
		return repo
	})
}

func TestInitialize(t *testing.T) {
	t.Run("Creates Directory if Missing", func(t *testing.T) {
		repo, path, _ := setupRepo(t)

		require.NoError(t, repo.Initialize(context.Background()))
		assert.DirExists(t, path)
	})

	t.Run("Fails if MustExist and Missing", func(t *testing.T) {
		repo, _, _ := setupRepo(t, func(c *fs.Config) {
			c.MustExist = true
		})

		assert.Error(t, repo.Initialize(context.Background()))
	})

	t.Run("Inits Git Repo and Ignores System Dir", func(t *testing.T) {
		if !git.IsInstalled() {
			t.Skip("git not installed")
		}
		repo, path, _ := setupRepo(t, func(c *fs.Config) {
			c.Gitless = false
		})

		require.NoError(t, repo.Initialize(context.Background()))
		assert.DirExists(t, filepath.Join(path, ".git"))

		ignore, err := os.ReadFile(filepath.Join(path, ".gitignore"))
		require.NoError(t, err)
		assert.Contains(t, string(ignore), fs.DefaultSystemDir+"/")
	})

	t.Run("Fails Without AutoInit on Plain Directory", func(t *testing.T) {
		if !git.IsInstalled() {
			t.Skip("git not installed")
		}
		repo, path, _ := setupRepo(t, func(c *fs.Config) {
			c.Gitless = false
			c.AutoInit = false
		})
		require.NoError(t, os.MkdirAll(path, 0755))

		assert.Error(t, repo.Initialize(context.Background()))
	})
}

func TestRepository_FileLayout(t *testing.T) {
	ctx := context.Background()
	repo, path, _ := setupRepo(t)
	require.NoError(t, repo.Initialize(ctx))
	svc := core.NewService(repo)

	n, err := svc.Create(ctx, core.NoteInput{Title: "Groceries", Content: "milk, eggs\n", Color: "green"})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(path, n.ID+".md"))
	require.NoError(t, err)
	text := string(raw)

	assert.True(t, strings.HasPrefix(text, "---\n"))
	assert.Contains(t, text, "id: "+n.ID)
	assert.Contains(t, text, "title: Groceries")
	assert.Contains(t, text, "color: green")
	assert.Contains(t, text, "created_at:")
	assert.Contains(t, text, "updated_at:")
	assert.True(t, strings.HasSuffix(text, "---\nmilk, eggs\n"))

	got, err := svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "milk, eggs\n", got.Content)
}

func TestRepository_HandWrittenFiles(t *testing.T) {
	ctx := context.Background()
	repo, path, _ := setupRepo(t)
	require.NoError(t, repo.Initialize(ctx))

	require.NoError(t, os.MkdirAll(filepath.Join(path, "inbox"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "inbox", "scratch.md"), []byte("just text"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(path, "readme.txt"), []byte("not a note"), 0644))

	notes, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "scratch", notes[0].ID)
	assert.Equal(t, "just text", notes[0].Content)

	// Nested files are reachable through the index.
	got, err := repo.Get(ctx, "scratch")
	require.NoError(t, err)
	assert.Equal(t, "just text", got.Content)
}

func TestRepository_RejectsPathTraversal(t *testing.T) {
	ctx := context.Background()
	repo, path, _ := setupRepo(t)
	require.NoError(t, repo.Initialize(ctx))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "secret.md"), []byte("x"), 0644))

	for _, id := range []string{"../secret", "..", ".pinboard/index", `a\b`} {
		_, err := repo.Get(ctx, id)
		assert.ErrorIs(t, err, core.ErrNotFound, id)
	}
}

func TestRepository_ReadOnly(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupRepo(t, func(c *fs.Config) {
		c.ReadOnly = true
	})
	require.NoError(t, repo.Initialize(ctx))
	svc := core.NewService(repo)

	_, err := svc.Create(ctx, core.NoteInput{Title: "t", Content: "c", Color: "red"})
	assert.ErrorIs(t, err, core.ErrReadOnly)

	repo.SetReadOnly(false)
	_, err = svc.Create(ctx, core.NoteInput{Title: "t", Content: "c", Color: "red"})
	assert.NoError(t, err)
}

func TestRepository_CacheSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	repo, path, _ := setupRepo(t)
	require.NoError(t, repo.Initialize(ctx))
	svc := core.NewService(repo)

	n, err := svc.Create(ctx, core.NoteInput{Title: "t", Content: "c", Color: "red"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(path, fs.DefaultSystemDir, "index.json"))

	reopened := fs.NewRepository(fs.Config{Path: path, Gitless: true})
	require.NoError(t, reopened.Initialize(ctx))

	got, err := reopened.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.Title, got.Title)
	assert.True(t, n.UpdatedAt.Equal(got.UpdatedAt))

	state, ok := reopened.State().(fs.RepositoryState)
	require.True(t, ok)
	assert.Equal(t, 1, state.CacheSize)
}

func TestRepository_GitCommitsEachMutation(t *testing.T) {
	if !git.IsInstalled() {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	repo, _, client := setupRepo(t, func(c *fs.Config) {
		c.Gitless = false
	})
	require.NoError(t, repo.Initialize(ctx))
	svc := core.NewService(repo)

	n, err := svc.Create(ctx, core.NoteInput{Title: "Groceries", Content: "milk", Color: "green"})
	require.NoError(t, err)
	msg, err := client.LastMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feat(notes): create Groceries", msg)

	title := "Shopping"
	_, err = svc.Update(ctx, n.ID, core.Patch{Title: &title})
	require.NoError(t, err)
	msg, err = client.LastMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feat(notes): update Shopping", msg)

	require.NoError(t, svc.Delete(ctx, n.ID))
	msg, err = client.LastMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "feat(notes): delete "+n.ID, msg)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(status))
}

func TestRepository_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setupRepo(t)
	require.NoError(t, repo.Initialize(ctx))
	svc := core.NewService(repo)

	n, err := svc.Create(ctx, core.NoteInput{Title: "t", Content: "c", Color: "red"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content := "edit"
			_, err := svc.Update(ctx, n.ID, core.Patch{Content: &content})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "edit", got.Content)
	assert.Equal(t, "t", got.Title)
}

func TestRepository_Users(t *testing.T) {
	ctx := context.Background()
	repo, path, _ := setupRepo(t)
	require.NoError(t, repo.Initialize(ctx))

	u := core.User{ID: "u1", Email: "ada@example.com", Provider: "google", CreatedAt: time.Now().UTC()}
	stored, created, err := repo.EnsureUser(ctx, u)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u1", stored.ID)

	stored, created, err = repo.EnsureUser(ctx, core.User{ID: "u2", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u1", stored.ID)

	assert.FileExists(t, filepath.Join(path, fs.DefaultSystemDir, "users.yaml"))
}

func TestRepository_WatchReportsExternalEdits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, path, _ := setupRepo(t)
	require.NoError(t, repo.Initialize(ctx))

	events := make(chan core.Event, 10)
	require.NoError(t, repo.Watch(ctx, func(e core.Event) { events <- e }))

	svc := core.NewService(repo)
	_, err := svc.Create(ctx, core.NoteInput{Title: "mine", Content: "c", Color: "red"})
	require.NoError(t, err)

	external := "---\nid: ext-1\ntitle: From editor\ncolor: blue\n---\nhello\n"
	require.NoError(t, os.WriteFile(filepath.Join(path, "ext-1.md"), []byte(external), 0644))

	select {
	case e := <-events:
		assert.Equal(t, "ext-1", e.ID, "own writes must not be echoed")
		assert.Contains(t, []core.EventType{core.EventCreate, core.EventModify}, e.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}
}
