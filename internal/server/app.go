// Package server wires the configuration, database, services and
// transports together and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/config"
	"github.com/dmitrijs2005/apikit/internal/server/httpapi"
	"github.com/dmitrijs2005/apikit/internal/server/mail"
	"github.com/dmitrijs2005/apikit/internal/server/passwords"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/apikit/internal/server/services"
	"github.com/dmitrijs2005/apikit/internal/server/throttle"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/apikit/internal/server/grpc"
)

const dbPingTimeout = 5 * time.Second

type App struct {
	config      *config.Config
	logger      *logging.SlogLogger
	db          *sql.DB
	redis       *redis.Client
	authService *services.AuthService
	userService *services.UserService
	router      *gin.Engine
}

// NewApp opens the database, applies migrations and builds the services
// and the HTTP router. Optional backends (Redis, S3) are only set up when
// configured.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.Env, os.Stdout)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}
	if err := app.initServices(ctx, rm); err != nil {
		app.close()
		return nil, err
	}

	return app, nil
}

func (app *App) initServices(ctx context.Context, rm repomanager.RepositoryManager) error {
	c := app.config

	hasher, err := passwords.NewHasher(passwords.DefaultConfig())
	if err != nil {
		return fmt.Errorf("hasher init error: %w", err)
	}

	sender, err := mail.New(mailSettings(c), app.logger)
	if err != nil {
		return fmt.Errorf("mail init error: %w", err)
	}
	mailer := mail.NewService(sender, c.DefaultFromEmail)

	store, err := newObjectStorage(ctx, c)
	if err != nil {
		return fmt.Errorf("storage init error: %w", err)
	}

	global, sensitive, err := throttlePolicies(c)
	if err != nil {
		return fmt.Errorf("throttle config error: %w", err)
	}

	var limiter httpapi.RateLimiter
	if c.RedisAddr != "" {
		app.redis = newRedisClient(c)
		limiter = throttle.New(app.redis)
	} else {
		app.logger.Warn(ctx, "REDIS_ADDR is empty, throttling disabled")
	}

	app.authService = services.NewAuthService(app.db, rm, hasher, mailer, c, app.logger)
	app.userService = services.NewUserService(app.db, rm, hasher, mailer, store, c, app.logger)

	if !c.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	app.router = httpapi.NewRouter(httpapi.Options{
		Logger:       app.logger,
		Auth:         app.authService,
		Users:        app.userService,
		DB:           app.db,
		Limiter:      limiter,
		AllowedHosts: c.AllowedHosts,
		CORSOrigins:  c.CORSAllowedOrigins,
		Global:       global,
		Sensitive:    sensitive,
	})

	return nil
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
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(app.logger.Slog().Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "HTTP server error", "error", err)
		}
		cancelFunc()
		return
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}
	app.logger.Info(ctx, "HTTP server stopped")
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCHealthAddr, app.logger)
	// The database was reachable when the app was built.
	s.SetServing(true)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// shuts the servers down and releases the connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCHealthAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
