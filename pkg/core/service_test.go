package core_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/aretw0/pinboard/pkg/core"
)

// MockRepository implements core.Repository in memory and counts calls.
// It deliberately does NOT implement core.Watchable to test fallback/errors.
type MockRepository struct {
	notes map[string]core.Note
	users map[string]core.User
	calls int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		notes: make(map[string]core.Note),
		users: make(map[string]core.User),
	}
}

func (m *MockRepository) List(ctx context.Context) ([]core.Note, error) {
	m.calls++
	var notes []core.Note
	for _, n := range m.notes {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes, nil
}

func (m *MockRepository) Get(ctx context.Context, id string) (core.Note, error) {
	m.calls++
	n, ok := m.notes[id]
	if !ok {
		return core.Note{}, core.NotFound(id)
	}
	return n, nil
}

func (m *MockRepository) Insert(ctx context.Context, n core.Note) (core.Note, error) {
	m.calls++
	m.notes[n.ID] = n
	return n, nil
}

func (m *MockRepository) Update(ctx context.Context, id string, p core.Patch, at time.Time) (core.Note, error) {
	m.calls++
	n, ok := m.notes[id]
	if !ok {
		return core.Note{}, core.NotFound(id)
	}
	n = p.Apply(n)
	n.UpdatedAt = at
	m.notes[id] = n
	return n, nil
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	m.calls++
	if _, ok := m.notes[id]; !ok {
		return core.NotFound(id)
	}
	delete(m.notes, id)
	return nil
}

func (m *MockRepository) Initialize(ctx context.Context) error { return nil }

func (m *MockRepository) EnsureUser(ctx context.Context, u core.User) (core.User, bool, error) {
	if existing, ok := m.users[u.Email]; ok {
		return existing, false, nil
	}
	m.users[u.Email] = u
	return u, true, nil
}

func strPtr(s string) *string { return &s }

func TestService_CRUD(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo)
	ctx := context.TODO()

	// 1. Create
	note, err := service.Create(ctx, core.NoteInput{Title: "Groceries", Content: "milk, eggs", Color: "green"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if note.ID == "" {
		t.Fatal("expected generated ID")
	}
	if !note.CreatedAt.Equal(note.UpdatedAt) {
		t.Errorf("expected CreatedAt == UpdatedAt, got %v / %v", note.CreatedAt, note.UpdatedAt)
	}

	// 2. Get
	got, err := service.Get(ctx, note.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Groceries" || got.Content != "milk, eggs" || got.Color != "green" {
		t.Errorf("unexpected note: %+v", got)
	}

	// 3. Update
	updated, err := service.Update(ctx, note.ID, core.Patch{Title: strPtr("Shopping")})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Title != "Shopping" || updated.Content != "milk, eggs" {
		t.Errorf("patch leaked into other fields: %+v", updated)
	}
	if !updated.UpdatedAt.After(note.UpdatedAt) {
		t.Errorf("expected UpdatedAt to advance")
	}

	// 4. Delete
	if err := service.Delete(ctx, note.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := service.Get(ctx, note.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound after deletion, got %v", err)
	}
}

func TestService_List_EmptyIsNotNil(t *testing.T) {
	service := core.NewService(NewMockRepository())

	notes, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if notes == nil || len(notes) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", notes)
	}
}

func TestService_Create_ValidationSkipsRepository(t *testing.T) {
	cases := []struct {
		name   string
		in     core.NoteInput
		fields []string
	}{
		{"missing title", core.NoteInput{Content: "c", Color: "red"}, []string{"title"}},
		{"missing content", core.NoteInput{Title: "t", Color: "red"}, []string{"content"}},
		{"missing color", core.NoteInput{Title: "t", Content: "c"}, []string{"color"}},
		{"missing everything", core.NoteInput{}, []string{"title", "content", "color"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewMockRepository()
			service := core.NewService(repo)

			_, err := service.Create(context.Background(), tc.in)
			if !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if fmt.Sprint(verr.Fields) != fmt.Sprint(tc.fields) {
				t.Errorf("expected fields %v, got %v", tc.fields, verr.Fields)
			}
			if repo.calls != 0 {
				t.Errorf("expected no repository calls, got %d", repo.calls)
			}
		})
	}
}

func TestService_Update_RejectsEmptyPatch(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo)

	_, err := service.Update(context.Background(), "any", core.Patch{})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	_, err = service.Update(context.Background(), "any", core.Patch{Color: strPtr("")})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank color, got %v", err)
	}
	if repo.calls != 0 {
		t.Errorf("expected no repository calls, got %d", repo.calls)
	}
}

func TestService_ReadOnly(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo, core.WithReadOnlyService(true))
	ctx := context.Background()

	if _, err := service.Create(ctx, core.NoteInput{Title: "t", Content: "c", Color: "red"}); !errors.Is(err, core.ErrReadOnly) {
		t.Errorf("Create: expected ErrReadOnly, got %v", err)
	}
	if _, err := service.Update(ctx, "x", core.Patch{Title: strPtr("t")}); !errors.Is(err, core.ErrReadOnly) {
		t.Errorf("Update: expected ErrReadOnly, got %v", err)
	}
	if err := service.Delete(ctx, "x"); !errors.Is(err, core.ErrReadOnly) {
		t.Errorf("Delete: expected ErrReadOnly, got %v", err)
	}
	if _, err := service.List(ctx); err != nil {
		t.Errorf("List should work in read-only mode: %v", err)
	}
}

func TestService_PublishesEvents(t *testing.T) {
	var events []core.Event
	pub := core.PublisherFunc(func(ctx context.Context, e core.Event) error {
		events = append(events, e)
		return nil
	})
	service := core.NewService(NewMockRepository(), core.WithPublisher(pub))
	ctx := context.Background()

	n, _ := service.Create(ctx, core.NoteInput{Title: "t", Content: "c", Color: "red"})
	_, _ = service.Update(ctx, n.ID, core.Patch{Content: strPtr("c2")})
	_ = service.Delete(ctx, n.ID)
	_ = service.Delete(ctx, n.ID) // fails, must not publish

	want := []core.EventType{core.EventCreate, core.EventModify, core.EventDelete}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(events), events)
	}
	for i, e := range events {
		if e.Type != want[i] || e.ID != n.ID {
			t.Errorf("event %d: got %v", i, e)
		}
	}
}

func TestService_EventTimestampsUseClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var events []core.Event
	pub := core.PublisherFunc(func(ctx context.Context, e core.Event) error {
		events = append(events, e)
		return nil
	})
	service := core.NewService(NewMockRepository(),
		core.WithPublisher(pub),
		core.WithClock(core.NewClock(func() time.Time { return fixed })),
	)
	ctx := context.Background()

	n, err := service.Create(ctx, core.NoteInput{Title: "t", Content: "c", Color: "red"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := service.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	deleted := events[1].Timestamp
	if deleted > fixed.Add(time.Second).UnixMilli() || deleted <= events[0].Timestamp {
		t.Errorf("delete event not stamped by the service clock: %v then %v", events[0].Timestamp, deleted)
	}
}

func TestService_PublishFailureDoesNotFailMutation(t *testing.T) {
	pub := core.PublisherFunc(func(ctx context.Context, e core.Event) error {
		return errors.New("broker down")
	})
	service := core.NewService(NewMockRepository(), core.WithPublisher(pub))

	if _, err := service.Create(context.Background(), core.NoteInput{Title: "t", Content: "c", Color: "red"}); err != nil {
		t.Fatalf("Create should succeed despite publish failure: %v", err)
	}
}

func TestService_EnsureUser(t *testing.T) {
	repo := NewMockRepository()
	service := core.NewService(repo)
	ctx := context.Background()

	first, err := service.EnsureUser(ctx, core.User{Email: "ada@example.com", Name: strPtr("Ada")})
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if first.Provider != "google" {
		t.Errorf("expected default provider google, got %q", first.Provider)
	}

	second, err := service.EnsureUser(ctx, core.User{Email: "ada@example.com", Provider: "github"})
	if err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if second.ID != first.ID || second.Provider != "google" {
		t.Errorf("expected existing user to be returned unchanged, got %+v", second)
	}

	if _, err := service.EnsureUser(ctx, core.User{Email: "not-an-email"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation for bad email, got %v", err)
	}
}

func TestService_Watch_Unsupported(t *testing.T) {
	service := core.NewService(NewMockRepository())

	err := service.Watch(context.Background())
	if err == nil {
		t.Fatal("expected error for non-watchable repo")
	}
	if err.Error() != "repository does not support watching" {
		t.Errorf("unexpected error msg: %v", err)
	}
}

func TestClock_StrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := core.NewClock(func() time.Time { return fixed })

	prev := clock.Now()
	for i := 0; i < 100; i++ {
		next := clock.Now()
		if !next.After(prev) {
			t.Fatalf("clock went backwards or stalled: %v then %v", prev, next)
		}
		if next.Nanosecond()%int(time.Millisecond) != 0 {
			t.Fatalf("expected millisecond precision, got %v", next)
		}
		prev = next
	}
}

func TestStorageError_Is(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("list: %w", core.NewStorageError("find notes", cause))

	if !errors.Is(err, core.ErrStorage) {
		t.Error("expected errors.Is(err, ErrStorage)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to remain reachable")
	}
	if errors.Is(err, core.ErrNotFound) {
		t.Error("storage error must not look like NotFound")
	}
}
