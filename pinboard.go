package pinboard

import (
	"context"
	"log/slog"

	"github.com/aretw0/pinboard/internal/platform"
	"github.com/aretw0/pinboard/pkg/core"
)

// --- Types ---

// Note is a stored note.
type Note = core.Note

// NoteInput carries the fields of a new note.
type NoteInput = core.NoteInput

// Patch carries the fields of a partial update.
type Patch = core.Patch

// Service implements the note store on top of a repository.
type Service = core.Service

// Platform is an opened store and the resources it owns.
type Platform = platform.Platform

// Config is the pinboard.yaml file.
type Config = platform.Config

// --- Configuration ---

// Option defines a functional option for configuring pinboard.
type Option = platform.Option

// WithAdapter selects the storage backend: memory (default), fs, mongo or rest.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithRepository injects a custom storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithLogger sets the logger for the service and adapters.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAdapterConfig merges adapter-specific settings.
func WithAdapterConfig(cfg map[string]any) Option {
	return platform.WithAdapterConfig(cfg)
}

// WithAutoInit creates the fs directory and Git repository when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables Git history for the fs adapter.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp forces the fs adapter into a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist ensures the fs directory already exists.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithSystemDir sets the hidden fs directory (default ".pinboard").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithReadOnly rejects every mutation.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the temporary-directory sandbox used under `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithWatch reports out-of-band changes as events when the adapter supports it.
func WithWatch(enabled bool) Option {
	return platform.WithWatch(enabled)
}

// WithPublisher adds a sink for change events.
func WithPublisher(p core.Publisher) Option {
	return platform.WithPublisher(p)
}

// WithNATS publishes change events to a NATS server.
func WithNATS(url, prefix string) Option {
	return platform.WithNATS(url, prefix)
}

// --- Factory ---

// Open builds the configured store. Close releases it.
func Open(ctx context.Context, uri string, opts ...Option) (*Platform, error) {
	return platform.Open(ctx, uri, opts...)
}

// New creates a Service. Prefer Open for network adapters.
func New(uri string, opts ...Option) (*Service, error) {
	return platform.New(uri, opts...)
}

// Init builds and initializes a repository without a service.
func Init(ctx context.Context, uri string, opts ...Option) (core.Repository, error) {
	return platform.Init(ctx, uri, opts...)
}

// --- Config & Utils ---

// LoadConfig reads pinboard.yaml (when path is set) and the environment.
func LoadConfig(path string) (Config, error) {
	return platform.LoadConfig(path)
}

// FindConfig returns the nearest pinboard.yaml above startDir.
func FindConfig(startDir string) (string, error) {
	return platform.FindConfig(startDir)
}

// FindRoot looks upwards for a project root indicator.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// IsDevRun reports whether the process runs via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}
