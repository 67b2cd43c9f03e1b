// Package storetest holds the behavioural contract every core.Repository
// adapter must satisfy. Adapter packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aretw0/pinboard/pkg/core"
)

// Factory returns a fresh, initialized, empty repository.
type Factory func(t *testing.T) core.Repository

// Options tunes the suite for slow backends.
type Options struct {
	// SkipProperties disables the randomized checks (e.g. for remote databases).
	SkipProperties bool
}

func strPtr(s string) *string { return &s }

func newService(t *testing.T, f Factory) *core.Service {
	t.Helper()
	repo := f(t)
	require.NoError(t, repo.Initialize(context.Background()))
	return core.NewService(repo)
}

// Run executes the full contract against repositories produced by f.
func Run(t *testing.T, f Factory, opts ...Options) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		s := newService(t, f)

		created, err := s.Create(ctx, core.NoteInput{Title: "Groceries", Content: "milk, eggs", Color: "green"})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Groceries", got.Title)
		assert.Equal(t, "milk, eggs", got.Content)
		assert.Equal(t, "green", got.Color)
		assert.True(t, got.CreatedAt.Equal(got.UpdatedAt), "createdAt %v != updatedAt %v", got.CreatedAt, got.UpdatedAt)
		assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newService(t, f)

		notes, err := s.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, notes)
		assert.Empty(t, notes)
	})

	t.Run("ListOrdering", func(t *testing.T) {
		s := newService(t, f)

		a, err := s.Create(ctx, core.NoteInput{Title: "A", Content: "a", Color: "red"})
		require.NoError(t, err)
		b, err := s.Create(ctx, core.NoteInput{Title: "B", Content: "b", Color: "blue"})
		require.NoError(t, err)

		notes, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, notes, 2)
		assert.Equal(t, []string{b.ID, a.ID}, ids(notes))

		_, err = s.Update(ctx, a.ID, core.Patch{Title: strPtr("A2")})
		require.NoError(t, err)

		notes, err = s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID, b.ID}, ids(notes))
	})

	t.Run("PatchIsolation", func(t *testing.T) {
		s := newService(t, f)

		before, err := s.Create(ctx, core.NoteInput{Title: "T", Content: "body", Color: "yellow"})
		require.NoError(t, err)

		after, err := s.Update(ctx, before.ID, core.Patch{Title: strPtr("X")})
		require.NoError(t, err)
		assert.Equal(t, "X", after.Title)
		assert.Equal(t, before.Content, after.Content)
		assert.Equal(t, before.Color, after.Color)
		assert.Equal(t, before.ID, after.ID)
		assert.True(t, after.CreatedAt.Equal(before.CreatedAt))
		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

		got, err := s.Get(ctx, before.ID)
		require.NoError(t, err)
		assert.Equal(t, after.Title, got.Title)
		assert.True(t, got.UpdatedAt.Equal(after.UpdatedAt))
	})

	t.Run("MonotonicUpdatedAt", func(t *testing.T) {
		s := newService(t, f)

		n, err := s.Create(ctx, core.NoteInput{Title: "T", Content: "c", Color: "gray"})
		require.NoError(t, err)

		prev := n.UpdatedAt
		for i := 0; i < 5; i++ {
			n, err = s.Update(ctx, n.ID, core.Patch{Content: strPtr("c" + string(rune('a'+i)))})
			require.NoError(t, err)
			require.True(t, n.UpdatedAt.After(prev), "update %d did not advance updatedAt", i)
			prev = n.UpdatedAt
		}
	})

	t.Run("NotFoundOnGhostIDs", func(t *testing.T) {
		s := newService(t, f)
		ghost := "00000000-0000-0000-0000-000000000000"

		_, err := s.Get(ctx, ghost)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.NotErrorIs(t, err, core.ErrStorage)

		_, err = s.Update(ctx, ghost, core.Patch{Title: strPtr("x")})
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.NotErrorIs(t, err, core.ErrStorage)

		err = s.Delete(ctx, ghost)
		assert.ErrorIs(t, err, core.ErrNotFound)
		assert.NotErrorIs(t, err, core.ErrStorage)
	})

	t.Run("DeleteThenGet", func(t *testing.T) {
		s := newService(t, f)

		n, err := s.Create(ctx, core.NoteInput{Title: "T", Content: "c", Color: "pink"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, n.ID))
		assert.ErrorIs(t, s.Delete(ctx, n.ID), core.ErrNotFound)
		_, err = s.Get(ctx, n.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)

		notes, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, notes)
	})

	t.Run("ValidationLeavesStoreUntouched", func(t *testing.T) {
		s := newService(t, f)

		_, err := s.Create(ctx, core.NoteInput{Title: "only title"})
		assert.ErrorIs(t, err, core.ErrValidation)

		notes, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, notes)
	})

	t.Run("EnsureUserIdempotent", func(t *testing.T) {
		s := newService(t, f)
		if _, ok := s.Repository().(core.UserRepository); !ok {
			t.Skip("repository does not store users")
		}

		first, err := s.EnsureUser(ctx, core.User{Email: "ada@example.com", Name: strPtr("Ada")})
		require.NoError(t, err)
		second, err := s.EnsureUser(ctx, core.User{Email: "ada@example.com", Name: strPtr("Someone Else")})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		require.NotNil(t, second.Name)
		assert.Equal(t, "Ada", *second.Name)
	})

	if o.SkipProperties {
		return
	}

	t.Run("PropertyUniqueIDs", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			s := newService(t, f)
			count := rapid.IntRange(1, 8).Draw(rt, "count")

			seen := make(map[string]bool, count)
			for i := 0; i < count; i++ {
				n, err := s.Create(ctx, inputGen().Draw(rt, "input"))
				if err != nil {
					rt.Fatalf("create: %v", err)
				}
				if seen[n.ID] {
					rt.Fatalf("duplicate id %q", n.ID)
				}
				seen[n.ID] = true
			}
		})
	})

	t.Run("PropertyPatchIsolation", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			s := newService(t, f)
			before, err := s.Create(ctx, inputGen().Draw(rt, "input"))
			if err != nil {
				rt.Fatalf("create: %v", err)
			}

			p := patchGen().Draw(rt, "patch")
			after, err := s.Update(ctx, before.ID, p)
			if err != nil {
				rt.Fatalf("update: %v", err)
			}

			want := p.Apply(before)
			if after.Title != want.Title || after.Content != want.Content || after.Color != want.Color {
				rt.Fatalf("patch %v produced %+v, want %+v", p.Fields(), after, want)
			}
			if !after.UpdatedAt.After(before.UpdatedAt) {
				rt.Fatalf("updatedAt did not advance: %v -> %v", before.UpdatedAt, after.UpdatedAt)
			}
			if !after.CreatedAt.Equal(before.CreatedAt) {
				rt.Fatalf("createdAt changed: %v -> %v", before.CreatedAt, after.CreatedAt)
			}
		})
	})

	t.Run("PropertyGhostIDs", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			s := newService(t, f)
			ghost := rapid.StringMatching(`[a-z0-9]{8,24}`).Draw(rt, "ghost")

			if _, err := s.Get(ctx, ghost); !isNotFound(err) {
				rt.Fatalf("get %q: expected not found, got %v", ghost, err)
			}
			if _, err := s.Update(ctx, ghost, core.Patch{Title: strPtr("x")}); !isNotFound(err) {
				rt.Fatalf("update %q: expected not found, got %v", ghost, err)
			}
			if err := s.Delete(ctx, ghost); !isNotFound(err) {
				rt.Fatalf("delete %q: expected not found, got %v", ghost, err)
			}
		})
	})
}

func ids(notes []core.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}
