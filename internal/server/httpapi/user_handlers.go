package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/labstack/echo/v4"
)

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}

func queryInt(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return n, nil
}

// listParams reads ?page=&limit=&role=&name=&email=&active=&sort=&order=.
func listParams(c echo.Context) (services.ListParams, error) {
	var p services.ListParams
	var err error

	if p.Page, err = queryInt(c, "page"); err != nil {
		return p, err
	}
	if p.Limit, err = queryInt(c, "limit"); err != nil {
		return p, err
	}

	p.Filter = users.Filter{
		Role:  models.Role(c.QueryParam("role")),
		Name:  c.QueryParam("name"),
		Email: c.QueryParam("email"),
	}
	if v := c.QueryParam("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return p, echo.NewHTTPError(http.StatusBadRequest, "invalid active")
		}
		p.Filter.Active = &active
	}

	p.SortBy = c.QueryParam("sort")
	switch c.QueryParam("order") {
	case "", "asc":
	case "desc":
		p.Desc = true
	default:
		return p, echo.NewHTTPError(http.StatusBadRequest, "order must be asc or desc")
	}
	return p, nil
}

func (s *Server) listUsers(c echo.Context) error {
	p, err := listParams(c)
	if err != nil {
		return err
	}

	list, err := s.users.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", list)
}

func (s *Server) getUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	u, err := s.users.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", u)
}

func (s *Server) createUser(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	u, err := s.users.Create(c.Request().Context(), identity(c), req.input())
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, "user created", u)
}

func (s *Server) updateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	u, err := s.users.Update(c.Request().Context(), identity(c), id, services.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Active:   req.Active,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "user updated", u)
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := s.users.Delete(c.Request().Context(), identity(c), id); err != nil {
		return err
	}
	return ok(c, http.StatusOK, "user deleted", nil)
}
