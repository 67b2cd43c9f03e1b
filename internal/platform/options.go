package platform

import (
	"log/slog"

	"github.com/aretw0/pinboard/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterMemory = "memory"
	AdapterFS     = "fs"
	AdapterMongo  = "mongo"
	AdapterREST   = "rest"
)

// options holds the internal configuration for a pinboard store.
type options struct {
	repository core.Repository
	logger     *slog.Logger
	adapter    string
	config     map[string]any
	publishers []core.Publisher
	natsURL    string
	natsPrefix string
	watch      bool
}

// Option defines a functional option for configuring pinboard.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter: AdapterMemory,
		config:  make(map[string]any),
	}
}

func (o *options) log() *slog.Logger {
	if o.logger == nil {
		return slog.Default()
	}
	return o.logger
}

// WithAdapter selects the storage backend by name: memory, fs, mongo or rest.
// Defaults to memory.
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithRepository injects a storage adapter, skipping adapter selection.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithLogger sets the logger for the service and adapters.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAdapterConfig merges adapter-specific settings (e.g. "database", "api_key").
// Keys use the same snake_case names as the store.options section of pinboard.yaml.
func WithAdapterConfig(cfg map[string]any) Option {
	return func(o *options) {
		for k, v := range cfg {
			o.config[k] = v
		}
	}
}

// WithAutoInit creates the fs directory and initializes Git when missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.config["auto_init"] = auto
	}
}

// WithVersioning enables or disables Git history for the fs adapter.
// When not set, it is detected from the directory.
func WithVersioning(enabled bool) Option {
	return func(o *options) {
		o.config["gitless"] = !enabled
	}
}

// WithForceTemp re-roots the fs directory under the system temp dir.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithMustExist fails instead of creating a missing fs directory.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.config["must_exist"] = must
	}
}

// WithSystemDir sets the hidden fs directory name. Defaults to ".pinboard".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.config["system_dir"] = name
	}
}

// WithReadOnly rejects every mutation with core.ErrReadOnly.
// For fs it also skips directory creation and Git initialization.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.config["read_only"] = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or `go test`.
// By default (true) the fs adapter is re-rooted into a temporary directory.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithWatcherErrorHandler receives failures from fs background work (watcher, commits).
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithWatch starts observing out-of-band changes when the adapter supports it.
func WithWatch(enabled bool) Option {
	return func(o *options) {
		o.watch = enabled
	}
}

// WithPublisher adds a sink for change events.
func WithPublisher(p core.Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publishers = append(o.publishers, p)
		}
	}
}

// WithNATS publishes change events to a NATS server. An empty prefix uses the default.
func WithNATS(url, prefix string) Option {
	return func(o *options) {
		o.natsURL = url
		o.natsPrefix = prefix
	}
}
