package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aretw0/pinboard"
	eventfeed "github.com/aretw0/pinboard/pkg/adapters/lifecycle"
	"github.com/aretw0/pinboard/pkg/api"
	"github.com/aretw0/pinboard/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr    string
	serveAdapter string
	serveURI     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the notes API and pages",
	Long: `Serve opens the configured store and serves /api/notes, the sign-in
routes, /metrics and /healthz until interrupted.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveAdapter != "" {
			cfg.Store.Adapter = serveAdapter
		}
		if serveURI != "" {
			cfg.Store.URI = serveURI
		}
		if err := cfg.Validate(); err != nil {
			fatal("Invalid configuration", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx, slog.Default()); err != nil {
			fatal("Server failed", err)
		}
	},
}

func serve(ctx context.Context, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := api.NewMetrics(reg)
	feed := eventfeed.NewSource(0)

	opts := append(cfg.Options(),
		pinboard.WithLogger(logger),
		pinboard.WithPublisher(metrics),
		pinboard.WithPublisher(feed),
	)
	store, err := pinboard.Open(ctx, cfg.Store.URI, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	if err := feed.Start(ctx); err != nil {
		return err
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for e := range feed.Events() {
			logger.Debug("note changed", "event", e.String())
		}
		return nil
	})

	serverOpts := []api.Option{
		api.WithLogger(logger),
		api.WithRegistry(reg),
		api.WithMetrics(metrics),
	}
	for name, c := range store.Components() {
		serverOpts = append(serverOpts, api.WithComponent(name, c))
	}
	authOpts, err := authOptions(store.Service, logger)
	if err != nil {
		return err
	}
	serverOpts = append(serverOpts, authOpts...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(store.Service, serverOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "adapter", cfg.Store.Adapter, "auth", cfg.Auth.Enabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// authOptions wires the gate, the identity provider and /api/session when auth is enabled.
func authOptions(users auth.UserRegistrar, logger *slog.Logger) ([]api.Option, error) {
	if !cfg.Auth.Enabled {
		return nil, nil
	}
	sessions, err := auth.NewSessions([]byte(cfg.Auth.SessionSecret),
		auth.WithTTL(cfg.Auth.SessionTTL),
		auth.WithSecureCookie(cfg.Auth.SecureCookie),
	)
	if err != nil {
		return nil, err
	}
	gate, err := auth.NewGate(sessions, auth.WithGateLogger(logger))
	if err != nil {
		return nil, err
	}
	handler, err := auth.NewHandler(auth.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RedirectURL:  cfg.RedirectURL(),
	}, users, sessions, auth.WithHandlerLogger(logger))
	if err != nil {
		return nil, err
	}
	return []api.Option{
		api.WithMiddleware(gate.Middleware),
		api.WithRoutes(handler.Register),
		api.WithSession(sessions.Resolve),
	}, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().StringVar(&serveAdapter, "adapter", "", "Storage adapter: memory, fs, mongo or rest")
	serveCmd.Flags().StringVar(&serveURI, "store", "", "Adapter URI: directory, mongo connection string or REST URL")
}
