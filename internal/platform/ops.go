package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/pinboard/pkg/adapters/fs"
	"github.com/aretw0/pinboard/pkg/adapters/memory"
	"github.com/aretw0/pinboard/pkg/adapters/mongodb"
	"github.com/aretw0/pinboard/pkg/adapters/rest"
	"github.com/aretw0/pinboard/pkg/core"
)

// fsSettings are the config keys understood by the fs adapter.
type fsSettings struct {
	AutoInit     bool        `mapstructure:"auto_init"`
	Gitless      *bool       `mapstructure:"gitless"`
	TempDir      bool        `mapstructure:"temp_dir"`
	MustExist    bool        `mapstructure:"must_exist"`
	SystemDir    string      `mapstructure:"system_dir"`
	ReadOnly     bool        `mapstructure:"read_only"`
	DevSafety    *bool       `mapstructure:"dev_safety"`
	ErrorHandler func(error) `mapstructure:"watcher_error_handler"`
}

// mongoSettings are the config keys understood by the mongo adapter.
type mongoSettings struct {
	Database        string        `mapstructure:"database"`
	NotesCollection string        `mapstructure:"notes_collection"`
	UsersCollection string        `mapstructure:"users_collection"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// restSettings are the config keys understood by the rest adapter.
type restSettings struct {
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// decodeSettings fills out from the loosely typed adapter config.
// Strings coming from YAML or the environment are converted ("true", "5s").
func decodeSettings(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("invalid adapter config: %w", err)
	}
	return nil
}

// Init builds and initializes the repository selected by the options.
// The uri is adapter-specific: a directory for fs, a connection string for
// mongo, the project URL for rest. It is ignored by memory.
func Init(ctx context.Context, uri string, opts ...Option) (core.Repository, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return initRepository(ctx, uri, o)
}

func initRepository(ctx context.Context, uri string, o *options) (core.Repository, error) {
	if o.repository != nil {
		return o.repository, nil
	}

	var (
		repo core.Repository
		err  error
	)
	switch o.adapter {
	case AdapterMemory, "":
		repo = memory.NewRepository()
	case AdapterFS:
		repo, err = initFS(uri, o)
	case AdapterMongo:
		repo, err = initMongo(ctx, uri, o)
	case AdapterREST:
		repo, err = initREST(uri, o)
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.Initialize(ctx); err != nil {
		if c, ok := repo.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return repo, nil
}

// initFS resolves the directory (dev sandbox, Git detection) and builds the fs adapter.
func initFS(path string, o *options) (core.Repository, error) {
	var s fsSettings
	if err := decodeSettings(o.config, &s); err != nil {
		return nil, err
	}
	logger := o.log()

	devSafety := s.DevSafety == nil || *s.DevSafety
	bypassSafety := s.ReadOnly || !devSafety
	useTemp := s.TempDir || (IsDevRun() && !bypassSafety)
	resolved := ResolveStorePath(path, useTemp)

	if IsDevRun() {
		switch {
		case s.ReadOnly:
			logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
		case bypassSafety:
			logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		default:
			logger.Debug("running in SAFE mode (dev sandbox enabled)", "path", resolved)
		}
	}
	if useTemp {
		logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", path, "resolved_path", resolved)
	}

	if s.SystemDir == "" {
		s.SystemDir = fs.DefaultSystemDir
	}

	gitless := detectGitless(resolved, s)
	return fs.NewRepository(fs.Config{
		Path:         resolved,
		SystemDir:    s.SystemDir,
		Gitless:      gitless,
		AutoInit:     s.AutoInit,
		MustExist:    s.MustExist || (!s.AutoInit && !useTemp),
		ReadOnly:     s.ReadOnly,
		Logger:       logger,
		ErrorHandler: s.ErrorHandler,
	}), nil
}

// detectGitless decides whether the fs adapter records history.
// An explicit setting wins. Otherwise an existing .git means Git, a fresh
// auto-initialized directory gets Git, and anything else is plain files.
func detectGitless(path string, s fsSettings) bool {
	if s.Gitless != nil {
		return *s.Gitless
	}
	if hasFile(path, ".git") {
		return false
	}
	if s.AutoInit {
		return hasFile(path, s.SystemDir)
	}
	return true
}

func initMongo(ctx context.Context, uri string, o *options) (core.Repository, error) {
	if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
		return nil, fmt.Errorf("invalid mongo uri %q", uri)
	}
	var s mongoSettings
	if err := decodeSettings(o.config, &s); err != nil {
		return nil, err
	}
	return mongodb.Connect(ctx, mongodb.Config{
		URI:             uri,
		Database:        s.Database,
		NotesCollection: s.NotesCollection,
		UsersCollection: s.UsersCollection,
		Timeout:         s.Timeout,
		Logger:          o.log(),
	})
}

func initREST(uri string, o *options) (core.Repository, error) {
	if !govalidator.IsURL(uri) {
		return nil, fmt.Errorf("invalid rest url %q", uri)
	}
	var s restSettings
	if err := decodeSettings(o.config, &s); err != nil {
		return nil, err
	}
	return rest.New(rest.Config{
		BaseURL: uri,
		APIKey:  s.APIKey,
		Timeout: s.Timeout,
		Logger:  o.log(),
	})
}

// absPath resolves p for log output.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
