// Package server initializes and runs the gophauth server: it picks the
// storage backend, wires the services and runs the HTTP and gRPC
// transports plus the refresh token janitor until a signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	hasher      *cryptox.Argon2Hasher
	authService *services.AuthService
	userService *services.UserService
}

// openRepositories returns the memory backend for an empty DSN and the
// PostgreSQL one otherwise.
var openRepositories = func(ctx context.Context, dsn string) (repomanager.RepositoryManager, error) {
	if dsn == "" {
		return repomanager.NewMemoryRepositoryManager(), nil
	}
	return repomanager.OpenPostgres(ctx, dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogFormat, c.LogLevel)

	rm, err := openRepositories(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	hasher := cryptox.NewArgon2Hasher(cryptox.DefaultParams)
	codec := auth.NewCodec([]byte(c.SecretKey), c.AccessTokenTTL)

	return &App{
		config:      c,
		logger:      logger,
		repos:       rm,
		hasher:      hasher,
		authService: services.NewAuthService(rm, hasher, codec, c.RefreshTokenTTL(), logger),
		userService: services.NewUserService(rm, hasher, logger),
	}, nil
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.authService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.authService, app.userService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) seed(ctx context.Context) error {
	if !app.config.SeedUsers {
		return nil
	}
	n, err := services.Seed(ctx, app.repos.Users(), app.hasher, app.logger, services.DemoUsers)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	app.logger.Info(ctx, "Demo users ready", "created", n)
	return nil
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// waits for every component to stop and closes the storage.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	defer func() {
		if err := app.repos.Close(); err != nil {
			app.logger.Error(ctx, "close storage", "error", err)
		}
	}()

	if err := app.seed(ctx); err != nil {
		return err
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if app.config.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	if app.config.HTTPAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}

	if app.config.SweepInterval > 0 {
		janitor := services.NewTokenJanitor(app.repos.RefreshTokens(), app.config.SweepInterval, app.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = janitor.Run(ctx)
		}()
	}

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	return nil
}
