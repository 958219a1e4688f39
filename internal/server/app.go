// Package server wires the pulsekeeper components together and runs them:
// it opens the configured document store, builds the services and the HTTP
// front end, schedules the consistency scan, and shuts everything down on
// SIGINT or SIGTERM.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrijs2005/pulsekeeper/internal/cryptox"
	"github.com/dmitrijs2005/pulsekeeper/internal/keylock"
	"github.com/dmitrijs2005/pulsekeeper/internal/logging"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/api"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/config"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/services"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/store"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	store      store.DocumentStore
	closeStore func() error
	metrics    *metrics.Metrics
	reconciler *services.Reconciler
	handler    http.Handler
}

// NewApp opens the store selected by c.StoreBackend and builds the service
// graph on top of it.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.Logger, c.Env)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	st, closeStore, err := openStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	deps := services.Deps{Store: st, Locks: keylock.New(), Logger: logger}
	hasher := cryptox.NewHasher(c.HashingSecret)
	tokens := services.NewTokenAuthority(deps, hasher, c)

	router := api.NewServiceRouter(logger, api.Services{
		Tokens:   tokens,
		Accounts: services.NewAccountRegistry(deps, hasher, tokens),
		Checks:   services.NewCheckRegistry(deps, tokens, c),
	})

	m := metrics.New()

	return &App{
		config:     c,
		logger:     logger,
		store:      st,
		closeStore: closeStore,
		metrics:    m,
		reconciler: services.NewReconciler(deps),
		handler:    httpapi.NewHandler(router, m, logger),
	}, nil
}

func openStore(ctx context.Context, c *config.Config) (store.DocumentStore, func() error, error) {
	noop := func() error { return nil }

	switch c.StoreBackend {
	case config.StoreFS, "":
		s, err := store.NewFileStore(c.DataDir, c.FileExtension)
		return s, noop, err
	case config.StorePostgres:
		s, db, err := store.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, db.Close, nil
	case config.StoreS3:
		client, err := store.NewS3Client(ctx, store.S3Config{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return store.NewS3Store(client, c.S3Bucket), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// reconcile runs one consistency scan and records its outcome.
func (app *App) reconcile(ctx context.Context) {
	report, err := app.reconciler.Run(ctx)
	if err != nil {
		app.metrics.RecordReconcileFailure()
		app.logger.Error(ctx, "reconcile failed", "error", err)
		return
	}
	app.metrics.RecordReconcile(len(report.Orphans), len(report.Dangling), time.Now())
}

// startScheduler starts the cron job for the consistency scan. It returns
// nil when no schedule is configured.
func (app *App) startScheduler(ctx context.Context) (*cron.Cron, error) {
	if app.config.ReconcileSchedule == "" {
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(app.config.ReconcileSchedule, func() { app.reconcile(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", app.config.ReconcileSchedule, err)
	}
	c.Start()
	app.logger.Info(ctx, "reconcile scheduled", "schedule", app.config.ReconcileSchedule)
	return c, nil
}

func (app *App) serveHTTP(ctx context.Context, ln net.Listener) error {
	srv := httpapi.NewServer(app.config.EndpointAddrHTTP, app.handler)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "HTTP server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains in-flight requests, stops the scheduler and closes the store.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.StoreBackend)

	app.initSignalHandler(cancelFunc)

	ln, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		return fmt.Errorf("listen %s: %w", app.config.EndpointAddrHTTP, err)
	}

	scheduler, err := app.startScheduler(ctx)
	if err != nil {
		_ = ln.Close()
		return err
	}

	var (
		wg      sync.WaitGroup
		httpErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		httpErr = app.serveHTTP(ctx, ln)
		cancelFunc()
	}()

	wg.Wait()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	if err := app.closeStore(); err != nil {
		app.logger.Error(ctx, "closing store", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
	return httpErr
}
