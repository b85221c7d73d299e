// Package httpapi exposes the authentication and user management services
// over HTTP using echo. Every response uses the envelope
// {success, message, data}.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 5 * time.Second

// AuthService is the token lifecycle used by the handlers.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	RefreshAccessToken(ctx context.Context, value string) (*services.TokenPair, error)
	Logout(ctx context.Context, value string) error
	LogoutAll(ctx context.Context, userID int64) (int, error)
	Authenticate(ctx context.Context, accessToken string) (*models.Identity, error)
}

// UserService is the user management used by the handlers.
type UserService interface {
	List(ctx context.Context, p services.ListParams) (*services.UserList, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, requester *models.Identity, in services.RegisterInput) (*models.User, error)
	Update(ctx context.Context, requester *models.Identity, id int64, in services.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, requester *models.Identity, id int64) error
}

type Server struct {
	address string
	echo    *echo.Echo
	auth    AuthService
	users   UserService
	logger  logging.Logger
}

func NewServer(address string, l logging.Logger, as AuthService, us UserService) *Server {
	s := &Server{
		address: address,
		echo:    echo.New(),
		auth:    as,
		users:   us,
		logger:  l.With("module", "http_server"),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.echo.Use(s.requestLogger)
	s.echo.Use(middleware.Recover())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)

	a := s.echo.Group("/auth")
	a.POST("/login", s.login)
	a.POST("/register", s.register)
	a.POST("/refresh", s.refresh)
	a.POST("/logout", s.logout)
	a.POST("/logout-all", s.logoutAll, s.requireAuth)
	a.GET("/me", s.me, s.requireAuth)

	u := s.echo.Group("/users", s.requireAuth)
	u.GET("", s.listUsers)
	u.GET("/:id", s.getUser)
	u.POST("", s.createUser)
	u.PUT("/:id", s.updateUser)
	u.DELETE("/:id", s.deleteUser, requireRole(models.RoleAdmin))
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves until ctx is done and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	return ok(c, http.StatusOK, "ok", nil)
}
