// Package server assembles the picshare server: the structured store, the
// blob sink, the session authority, the services on top of them, and the
// gRPC and /metrics listeners.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/logging"
	"github.com/dmitrijs2005/picshare/internal/server/blobstore"
	"github.com/dmitrijs2005/picshare/internal/server/config"
	"github.com/dmitrijs2005/picshare/internal/server/metrics"
	"github.com/dmitrijs2005/picshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/picshare/internal/server/services"
	"github.com/dmitrijs2005/picshare/internal/server/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/picshare/internal/server/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Test seams.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	rm       repomanager.RepositoryManager
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	sessions *sessions.Authority
	users    *services.UserService
	media    *services.MediaService
}

// NewApp opens the database handle and builds every component. It does not
// touch the schema; Run and Migrate do.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	secret := c.SecretKey
	if secret == "" {
		s, err := common.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("generate secret key: %w", err)
		}
		secret = s
		logger.Warn(ctx, "no secret key configured, using a random one")
	}

	sink, err := newSink(ctx, c)
	if err != nil {
		return nil, err
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	rm := newRepositoryManager()
	sa := sessions.NewAuthority([]byte(secret), c.SessionValidityDuration, logger, m.ActiveSessions)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		rm:       rm,
		registry: registry,
		metrics:  m,
		sessions: sa,
		users:    services.NewUserService(db, rm, sa, logger, m),
		media:    services.NewMediaService(db, rm, sink, logger, m, c.MaxUploadSize),
	}, nil
}

func newSink(ctx context.Context, c *config.Config) (blobstore.Sink, error) {
	switch c.BlobBackend {
	case config.BlobBackendFS, "":
		return blobstore.NewFSSink(c.UploadDir)
	case config.BlobBackendS3:
		return blobstore.NewS3Sink(ctx, blobstore.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

func (app *App) Users() *services.UserService  { return app.users }
func (app *App) Media() *services.MediaService { return app.media }

// Migrate brings the schema up to date.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startMetricsServer(ctx context.Context) error {
	if app.config.MetricsAddr == "" {
		return nil
	}

	lis, err := net.Listen("tcp", app.config.MetricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.registry))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run migrates the schema, then serves gRPC and /metrics and sweeps expired
// sessions until ctx is done or a SIGINT/SIGTERM arrives. The database handle
// is closed on return.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.Migrate(ctx); err != nil {
		return err
	}

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.users, app.media, app.sessions, app.metrics, app.config.MaxUploadSize)

	g, gctx := errgroup.WithContext(ctx)

	if app.config.SessionSweepInterval > 0 {
		g.Go(func() error {
			app.sessions.Run(gctx, app.config.SessionSweepInterval)
			return nil
		})
	}
	g.Go(func() error {
		return app.startMetricsServer(gctx)
	})
	g.Go(func() error {
		return s.Run(gctx)
	})

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}
