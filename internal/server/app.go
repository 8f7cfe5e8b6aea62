// Package server wires configuration, storage, side-effect backends and the
// transport servers into one runnable application.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/judoassistant/tournament-sync/internal/dbx"
	"github.com/judoassistant/tournament-sync/internal/logging"
	"github.com/judoassistant/tournament-sync/internal/server/cache"
	"github.com/judoassistant/tournament-sync/internal/server/config"
	"github.com/judoassistant/tournament-sync/internal/server/events"
	"github.com/judoassistant/tournament-sync/internal/server/httpapi"
	"github.com/judoassistant/tournament-sync/internal/server/migrate"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/repomanager"
	"github.com/judoassistant/tournament-sync/internal/server/services"
	"github.com/judoassistant/tournament-sync/internal/server/snapshots"

	gs "github.com/judoassistant/tournament-sync/internal/server/grpc"
)

type App struct {
	config            *config.Config
	logger            logging.Logger
	db                *sql.DB
	engine            *migrate.Engine
	userService       *services.UserService
	tournamentService *services.TournamentService
	closers           []io.Closer
}

// OpenDatabase opens the configured database and returns the matching
// dialect and repository manager. SQLite DSNs get the parameters from
// dbx.SQLiteDSN added.
func OpenDatabase(c *config.Config, logger logging.Logger) (*sql.DB, *repomanager.PostgresRepositoryManager, error) {
	dialect, err := migrate.DialectFor(c.DatabaseDriver)
	if err != nil {
		return nil, nil, err
	}

	dsn := c.DatabaseDSN
	if _, ok := dialect.(migrate.SQLite); ok {
		dsn = dbx.SQLiteDSN(dsn)
	}
	db, err := sql.Open(c.DatabaseDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	return db, repomanager.NewPostgresRepositoryManager(dialect, logger), nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger}

	db, rm, err := OpenDatabase(c, logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	if err := db.PingContext(ctx); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if c.AutoMigrate {
		if err := rm.RunMigrations(ctx, db); err != nil {
			app.close(ctx)
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
	}

	if app.engine, err = rm.Engine(db); err != nil {
		app.close(ctx)
		return nil, err
	}

	var store snapshots.Store = snapshots.NewMemoryStore()
	if c.S3Bucket != "" {
		if store, err = snapshots.NewS3Store(ctx, c); err != nil {
			app.close(ctx)
			return nil, err
		}
	} else {
		logger.Warn(ctx, "no snapshot bucket configured, keeping snapshots in memory")
	}

	var publisher events.Publisher = events.Nop{}
	if c.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(c.AMQPURL, c.AMQPExchange)
		if err != nil {
			app.close(ctx)
			return nil, err
		}
		app.closers = append(app.closers, p)
		publisher = p
	}

	var listingCache cache.ListingCache = cache.Nop{}
	if c.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, c.RedisAddr, c.ListingCacheTTL)
		if err != nil {
			app.close(ctx)
			return nil, err
		}
		app.closers = append(app.closers, rc)
		listingCache = rc
	}

	app.userService = services.NewUserService(db, rm, c, logger)
	app.tournamentService = services.NewTournamentService(db, rm, store, publisher, listingCache, logger)

	return app, nil
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "db close failed", "error", err)
		}
	}
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, app.tournamentService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.engine, gs.DefaultCheckInterval)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}
