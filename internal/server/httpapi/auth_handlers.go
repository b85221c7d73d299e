package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r registerRequest) input() services.RegisterInput {
	return services.RegisterInput{Name: r.Name, Email: r.Email, Password: r.Password, Role: r.Role}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	return nil
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	res, err := s.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "login successful", res)
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := req.input()
	if err := services.CheckSelfRegistration(in); err != nil {
		return err
	}

	res, err := s.auth.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "registration successful", res)
}

func (s *Server) refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token is required")
	}

	pair, err := s.auth.RefreshAccessToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "token refreshed", pair)
}

func (s *Server) logout(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := s.auth.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "logged out", nil)
}

func (s *Server) logoutAll(c echo.Context) error {
	id := identity(c)
	if id == nil {
		return common.ErrUnauthenticated
	}

	n, err := s.auth.LogoutAll(c.Request().Context(), id.ID)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "logged out from all sessions", map[string]int{"revoked": n})
}

func (s *Server) me(c echo.Context) error {
	id := identity(c)
	if id == nil {
		return common.ErrUnauthenticated
	}
	return ok(c, http.StatusOK, "", id)
}
