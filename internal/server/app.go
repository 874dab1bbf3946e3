// Package server wires the Conduit server together: configuration, the
// database pool and migrations, the shared state, and the HTTP and gRPC
// transports. It also handles graceful shutdown and signer reloads.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/conduit/internal/logging"
	"github.com/dmitrijs2005/conduit/internal/server/auth"
	"github.com/dmitrijs2005/conduit/internal/server/avatars"
	"github.com/dmitrijs2005/conduit/internal/server/config"
	"github.com/dmitrijs2005/conduit/internal/server/ratelimit"
	"github.com/dmitrijs2005/conduit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/conduit/internal/server/rest"
	"github.com/dmitrijs2005/conduit/internal/server/state"

	gs "github.com/dmitrijs2005/conduit/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	state      *state.ServerState
	repos      repomanager.RepositoryManager
	passwords  *auth.PasswordCredential
	limiter    ratelimit.Limiter
	avatars    *avatars.Store
	redis      *ratelimit.RedisCounter
	loadConfig func() (*config.Config, error)
}

func newSigner(c *config.Config) *auth.Signer {
	return auth.NewSigner([]byte(c.SecretKey), c.TokenValidityDuration, c.TokenIssuer)
}

// NewApp opens the database, applies migrations and builds the shared
// state. Optional backends (Redis, S3) are only set up when configured.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	if c.SecretKey == "" {
		logger.Warn(ctx, "secret key is empty, token issuance will fail")
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app := &App{
		config:     c,
		logger:     logger,
		state:      state.New(db, newSigner(c)),
		repos:      repos,
		passwords:  auth.NewPasswordCredential(c.BcryptCost, c.MaxConcurrentHashes),
		limiter:    ratelimit.Noop{},
		loadConfig: config.Load,
	}

	if c.RedisAddr != "" {
		rc, err := ratelimit.NewRedisCounter(ctx, c.RedisAddr)
		if err != nil {
			_ = app.state.Close()
			return nil, err
		}
		app.redis = rc
		app.limiter = ratelimit.NewRedisLimiter(rc, c.LoginRateLimit, logger)
	}

	if c.S3Bucket != "" {
		store, err := avatars.New(ctx, c)
		if err != nil {
			app.close(ctx)
			return nil, err
		}
		app.avatars = store
	}

	return app, nil
}

func (app *App) avatarPresigner() rest.AvatarPresigner {
	if app.avatars == nil {
		return nil
	}
	return app.avatars
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				if sig == syscall.SIGHUP {
					app.reloadSigner(ctx)
					continue
				}
				cancelFunc()
				return
			}
		}
	}()
}

// reloadSigner re-reads the configuration and swaps in a signer built from
// it. Tokens issued under the previous key stop verifying. If the
// configuration cannot be loaded or has no secret key, the current signer
// stays in place.
func (app *App) reloadSigner(ctx context.Context) {
	c, err := app.loadConfig()
	if err != nil {
		app.logger.Error(ctx, "signer reload failed, keeping current signer", "error", err)
		return
	}
	if c.SecretKey == "" {
		app.logger.Error(ctx, "signer reload refused: secret key is empty, keeping current signer")
		return
	}
	app.state.ReplaceSigner(newSigner(c))
	app.logger.Info(ctx, "signer reloaded", "issuer", c.TokenIssuer, "validity", c.TokenValidityDuration)
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	var presigner gs.AvatarPresigner
	if p := app.avatarPresigner(); p != nil {
		presigner = p
	}

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, gs.Deps{
		State:     app.state,
		Repos:     app.repos,
		Passwords: app.passwords,
		Limiter:   app.limiter,
		Avatars:   presigner,
		Logger:    app.logger,
	})

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := rest.NewHandlers(rest.Deps{
		State:        app.state,
		Repos:        app.repos,
		Passwords:    app.passwords,
		Limiter:      app.limiter,
		Avatars:      app.avatarPresigner(),
		CookieSecure: app.config.CookieSecure,
		CookieTTL:    app.config.TokenValidityDuration,
		Logger:       app.logger,
	})

	if err := rest.NewServer(app.config.EndpointAddrHTTP, h, app.logger).Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close(ctx context.Context) {
	if err := app.state.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "closing redis", "error", err)
		}
	}
}

// Run serves both transports until a termination signal arrives or either
// server fails, then releases the shared state.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}
