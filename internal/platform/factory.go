package platform

import (
	"context"
	"errors"
	"net/url"

	"github.com/aretw0/introspection"

	"github.com/aretw0/pinboard/pkg/adapters/nats"
	"github.com/aretw0/pinboard/pkg/core"
)

// Platform is an opened store: the service and the resources it owns.
type Platform struct {
	Service    *core.Service
	Repository core.Repository

	components map[string]introspection.Introspectable
	closers    []func() error
	stopWatch  context.CancelFunc
}

// Open builds the repository, connects event publishers and wires the service.
//
//	p, err := platform.Open(ctx, "./notes", platform.WithAdapter("fs"), platform.WithAutoInit(true))
//	defer p.Close()
func Open(ctx context.Context, uri string, opts ...Option) (*Platform, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.log()

	repo, err := initRepository(ctx, uri, o)
	if err != nil {
		return nil, err
	}
	p := &Platform{
		Repository: repo,
		components: make(map[string]introspection.Introspectable),
	}
	if c, ok := repo.(interface{ Close() error }); ok {
		p.closers = append(p.closers, c.Close)
	}
	if c, ok := repo.(introspection.Introspectable); ok {
		p.components["repository"] = c
	}

	publishers := append([]core.Publisher(nil), o.publishers...)
	if o.natsURL != "" {
		pub, err := nats.Connect(nats.Config{URL: o.natsURL, Prefix: o.natsPrefix, Logger: logger})
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		publishers = append(publishers, pub)
		p.closers = append(p.closers, pub.Close)
		p.components["events"] = pub
	}

	var common struct {
		ReadOnly bool `mapstructure:"read_only"`
	}
	if err := decodeSettings(o.config, &common); err != nil {
		_ = p.Close()
		return nil, err
	}

	p.Service = core.NewService(repo,
		core.WithServiceLogger(logger),
		core.WithPublisher(core.Publishers(publishers...)),
		core.WithReadOnlyService(common.ReadOnly),
	)
	p.components["service"] = p.Service

	if o.watch {
		watchCtx, cancel := context.WithCancel(context.Background())
		if err := p.Service.Watch(watchCtx); err != nil {
			cancel()
			logger.Warn("watch not started", "adapter", o.adapter, "error", err)
		} else {
			p.stopWatch = cancel
			logger.Debug("watching for external changes", "adapter", o.adapter)
		}
	}

	logger.Debug("store opened", "adapter", o.adapter, "uri", redact(uri, o.adapter))
	return p, nil
}

// New opens a store and returns only its service.
// Resources held by network adapters are released when the process exits;
// use Open to close them explicitly.
func New(uri string, opts ...Option) (*core.Service, error) {
	p, err := Open(context.Background(), uri, opts...)
	if err != nil {
		return nil, err
	}
	return p.Service, nil
}

// Components lists the introspectable parts of the platform by name.
func (p *Platform) Components() map[string]introspection.Introspectable {
	out := make(map[string]introspection.Introspectable, len(p.components))
	for k, v := range p.components {
		out[k] = v
	}
	return out
}

// Close stops the watcher and releases connections in reverse order.
func (p *Platform) Close() error {
	if p.stopWatch != nil {
		p.stopWatch()
		p.stopWatch = nil
	}
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// redact keeps credentials embedded in connection strings out of logs.
func redact(uri, adapter string) string {
	switch adapter {
	case AdapterFS:
		return absPath(uri)
	case AdapterMongo, AdapterREST:
		if u, err := url.Parse(uri); err == nil {
			return u.Redacted()
		}
		return "<redacted>"
	}
	return uri
}
