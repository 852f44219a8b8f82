package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/address"
	"github.com/Togather-Foundation/geowidget/internal/api"
	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/metrics"
	"github.com/Togather-Foundation/geowidget/internal/session"
	"github.com/Togather-Foundation/geowidget/internal/storage"
	"github.com/Togather-Foundation/geowidget/internal/storage/memory"
	"github.com/Togather-Foundation/geowidget/internal/storage/postgres"
	"github.com/Togather-Foundation/geowidget/internal/telemetry"
	"github.com/Togather-Foundation/geowidget/internal/widget"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	sweepInterval      = time.Minute
	poolStatsInterval  = 15 * time.Second
	storageOpenTimeout = 10 * time.Second
)

type serveOptions struct {
	host string
	port int
}

func newServeCmd(g *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the geowidget HTTP server",
		Long: `Start the geowidget HTTP server and begin accepting requests.

The server will:
- Load configuration from environment variables (and --config if provided)
- Use PostgreSQL when DATABASE_URL is set, applying pending migrations,
  otherwise keep entities and settings in memory
- Serve entity forms, the widget session endpoint and the geocoding API
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  geowidget serve

  # Start on a specific host and port
  geowidget serve --host 127.0.0.1 --port 9090

  # Start with debug logging and a config file
  geowidget serve --log-level debug --config /etc/geowidget/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	return cmd
}

func runServer(ctx context.Context, g *globalOptions, opts *serveOptions) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting geowidget server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           a.handler,
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		a.registry.Run(gctx, sweepInterval)
		return nil
	})
	if a.pool != nil {
		group.Go(func() error {
			metrics.NewPoolCollector(a.pool).Run(gctx, poolStatsInterval)
			return nil
		})
	}
	group.Go(func() error {
		<-gctx.Done()
		return gracefulShutdown(server, a.hub, logger)
	})

	return group.Wait()
}

// app is the wired server: storage, widget sessions and the HTTP handler.
type app struct {
	handler  http.Handler
	repo     storage.Repository
	pool     *pgxpool.Pool
	registry *session.Registry
	hub      *session.Hub
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	repo, pool, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	providers := geocoding.NewProviders(cfg.Geocoding)
	registry := session.NewRegistry(cfg.Widget.SessionIdleTimeout)
	hub := session.NewHub(
		registry,
		func(wc widget.WidgetConfig) widget.Geocoder {
			return geocoding.NewDispatcher(providers.For(wc.ServiceURL), wc.Filters(), logger)
		},
		address.NewBridge(logger),
		logger,
		session.WithControllerOptions(controllerOptions(cfg.Widget, logger)...),
	)

	handler, err := api.NewRouter(api.Deps{
		Config:    cfg,
		Logger:    logger,
		Repo:      repo,
		Pool:      pool,
		Registry:  registry,
		Hub:       hub,
		Providers: providers,
		Build:     api.BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate},
	})
	if err != nil {
		hub.CloseAll()
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("router: %w", err)
	}

	return &app{handler: handler, repo: repo, pool: pool, registry: registry, hub: hub}, nil
}

func (a *app) close() {
	a.hub.CloseAll()
	if a.pool != nil {
		a.pool.Close()
	}
}

func controllerOptions(cfg config.WidgetConfig, logger zerolog.Logger) []widget.Option {
	opts := []widget.Option{
		widget.WithLogger(logger),
		widget.WithSuppressClickFor(cfg.SuppressClickFor),
	}
	if cfg.NearestWithinM > 0 {
		opts = append(opts, widget.WithSelector(geocoding.NearestWithin(cfg.NearestWithinM)))
	}
	return opts
}

// openStorage connects PostgreSQL and migrates it when a database URL is
// configured. Without one, entities live in memory until the process exits.
func openStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (storage.Repository, *pgxpool.Pool, error) {
	if cfg.Database.URL == "" {
		logger.Warn().Msg("DATABASE_URL not set; using in-memory storage")
		return memory.New(), nil, nil
	}

	if err := postgres.MigrateUp(cfg.Database.URL, migrationsPath(cfg.Database)); err != nil {
		return nil, nil, err
	}

	openCtx, cancel := context.WithTimeout(ctx, storageOpenTimeout)
	defer cancel()
	pool, err := postgres.Open(openCtx, cfg.Database.URL, int32(cfg.Database.MaxConnections))
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Int("max_connections", cfg.Database.MaxConnections).Msg("database connected")
	return repo, pool, nil
}

func migrationsPath(cfg config.DatabaseConfig) string {
	if cfg.MigrationsPath != "" {
		return cfg.MigrationsPath
	}
	return postgres.DefaultMigrationsPath
}

func gracefulShutdown(server *http.Server, hub *session.Hub, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	hub.CloseAll()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
