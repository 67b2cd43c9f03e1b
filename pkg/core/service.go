package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service handles the business logic for notes.
// It implements Store on top of a Repository.
type Service struct {
	repo      Repository
	clock     *Clock
	newID     func() string
	logger    *slog.Logger
	publisher Publisher
	readOnly  bool

	mu       sync.RWMutex
	watching bool

	created atomic.Int64
	updated atomic.Int64
	deleted atomic.Int64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock sets the timestamp source.
func WithClock(c *Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator replaces the UUID generator. Intended for tests.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

// WithServiceLogger sets the logger used for non-fatal failures.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithPublisher registers a sink for change events.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithReadOnlyService rejects every mutation with ErrReadOnly.
func WithReadOnlyService(enabled bool) ServiceOption {
	return func(s *Service) { s.readOnly = enabled }
}

// NewService creates a new Service.
func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:   repo,
		clock:  NewClock(nil),
		newID:  func() string { return uuid.NewString() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying adapter.
func (s *Service) Repository() Repository {
	return s.repo
}

// List returns every note, most recently updated first.
func (s *Service) List(ctx context.Context) ([]Note, error) {
	notes, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}

// Get retrieves a note.
func (s *Service) Get(ctx context.Context, id string) (Note, error) {
	if id == "" {
		return Note{}, NotFound(id)
	}
	return s.repo.Get(ctx, id)
}

// Create validates in, assigns an ID and timestamps, and persists the note.
func (s *Service) Create(ctx context.Context, in NoteInput) (Note, error) {
	if err := ValidateInput(in); err != nil {
		return Note{}, err
	}
	if s.readOnly {
		return Note{}, ErrReadOnly
	}

	now := s.clock.Now()
	n := Note{
		ID:        s.newID(),
		Title:     in.Title,
		Content:   in.Content,
		Color:     in.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	stored, err := s.repo.Insert(ctx, n)
	if err != nil {
		return Note{}, err
	}
	s.created.Add(1)
	s.publish(ctx, EventCreate, stored.ID, stored.UpdatedAt)
	return stored, nil
}

// Update applies a partial patch and advances UpdatedAt.
func (s *Service) Update(ctx context.Context, id string, p Patch) (Note, error) {
	if err := ValidatePatch(p); err != nil {
		return Note{}, err
	}
	if s.readOnly {
		return Note{}, ErrReadOnly
	}
	if id == "" {
		return Note{}, NotFound(id)
	}

	stored, err := s.repo.Update(ctx, id, p, s.clock.Now())
	if err != nil {
		return Note{}, err
	}
	s.updated.Add(1)
	s.publish(ctx, EventModify, stored.ID, stored.UpdatedAt)
	return stored, nil
}

// Delete removes a note permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if id == "" {
		return NotFound(id)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.deleted.Add(1)
	s.publish(ctx, EventDelete, id, s.clock.Now())
	return nil
}

// EnsureUser records an identity-provider account unless its email is already known.
func (s *Service) EnsureUser(ctx context.Context, u User) (User, error) {
	users, ok := s.repo.(UserRepository)
	if !ok {
		return User{}, errors.New("repository does not support users")
	}

	u.Email = strings.TrimSpace(u.Email)
	if !govalidator.IsEmail(u.Email) {
		return User{}, &ValidationError{Fields: []string{"email"}, Reason: "invalid user"}
	}
	if u.Provider == "" {
		u.Provider = "google"
	}
	u.ID = s.newID()
	u.CreatedAt = s.clock.Now()

	stored, created, err := users.EnsureUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	if created {
		s.logger.Info("user registered", "email", stored.Email, "provider", stored.Provider)
	}
	return stored, nil
}

// Watch observes out-of-band changes if the repository supports it,
// forwarding each one to the configured publisher.
func (s *Service) Watch(ctx context.Context) error {
	w, ok := s.repo.(Watchable)
	if !ok {
		return errors.New("repository does not support watching")
	}
	if err := w.Watch(ctx, func(e Event) {
		s.emit(ctx, e)
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.watching = true
	s.mu.Unlock()
	return nil
}

func (s *Service) publish(ctx context.Context, t EventType, id string, at time.Time) {
	s.emit(ctx, Event{Type: t, ID: id, Timestamp: at.UnixMilli()})
}

func (s *Service) emit(ctx context.Context, e Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("event publish failed", "event", e.String(), "error", err)
	}
}

// ValidateInput checks the required fields of a new note.
func ValidateInput(in NoteInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return &ValidationError{Fields: fields, Reason: "missing required fields"}
}

// ValidatePatch rejects empty patches and blank values for supplied fields.
func ValidatePatch(p Patch) error {
	if p.Empty() {
		return &ValidationError{Reason: "no fields to update"}
	}

	var blank []string
	if p.Title != nil && *p.Title == "" {
		blank = append(blank, "title")
	}
	if p.Content != nil && *p.Content == "" {
		blank = append(blank, "content")
	}
	if p.Color != nil && *p.Color == "" {
		blank = append(blank, "color")
	}
	if len(blank) > 0 {
		return &ValidationError{Fields: blank, Reason: "fields cannot be empty"}
	}
	return nil
}
