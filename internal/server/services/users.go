package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListParams selects a page of users.
type ListParams struct {
	Filter users.Filter
	SortBy string
	Desc   bool
	Page   int // 1-based, DefaultPage when < 1
	Limit  int // DefaultLimit when < 1, capped at MaxLimit
}

type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type UserList struct {
	Users      []*models.User `json:"users"`
	Pagination Pagination     `json:"pagination"`
}

// UserUpdate is the caller-facing partial update. Password is plain text
// and hashed before it reaches the repository.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
	Active   *bool
}

// UserService manages users on behalf of an authenticated requester.
type UserService struct {
	users  users.Repository
	tokens refreshtokens.Repository
	hasher PasswordHasher
	now    func() time.Time
	log    logging.Logger
}

type UserOption func(*UserService)

// WithUserClock replaces time.Now for CreatedAt stamps.
func WithUserClock(now func() time.Time) UserOption {
	return func(s *UserService) { s.now = now }
}

func NewUserService(m repomanager.RepositoryManager, hasher PasswordHasher, log logging.Logger, opts ...UserOption) *UserService {
	s := &UserService{
		users:  m.Users(),
		tokens: m.RefreshTokens(),
		hasher: hasher,
		now:    time.Now,
		log:    log.With("module", "user_service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *UserService) List(ctx context.Context, p ListParams) (*UserList, error) {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	p.Limit = min(p.Limit, MaxLimit)

	if p.SortBy != "" && !slices.Contains(users.SortFields, p.SortBy) {
		return nil, validationError("cannot sort by %q", p.SortBy)
	}
	if p.Filter.Role != "" && !p.Filter.Role.Valid() {
		return nil, validationError("unknown role %q", p.Filter.Role)
	}

	total, err := s.users.Count(ctx, p.Filter)
	if err != nil {
		return nil, s.internal(ctx, "count users", err)
	}

	list, err := s.users.List(ctx, users.ListQuery{
		Filter: p.Filter,
		SortBy: p.SortBy,
		Desc:   p.Desc,
		Offset: (p.Page - 1) * p.Limit,
		Limit:  p.Limit,
	})
	if err != nil {
		return nil, s.internal(ctx, "list users", err)
	}
	if list == nil {
		list = []*models.User{}
	}

	pages := (total + p.Limit - 1) / p.Limit
	return &UserList{
		Users: list,
		Pagination: Pagination{
			Page:        p.Page,
			Limit:       p.Limit,
			Total:       total,
			TotalPages:  pages,
			HasNextPage: p.Page < pages,
			HasPrevPage: p.Page > 1,
		},
	}, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("user %d: %w", id, common.ErrorNotFound)
		}
		return nil, s.internal(ctx, "find user", err)
	}
	return u, nil
}

// Create adds a user. Only admins may create admins.
func (s *UserService) Create(ctx context.Context, requester *models.Identity, in RegisterInput) (*models.User, error) {
	if err := auth.Authorize(requester); err != nil {
		return nil, err
	}

	role, err := parseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if role == models.RoleAdmin && requester.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can create admins", common.ErrForbidden)
	}

	email := normalizeEmail(in.Email)
	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "hash password", err)
	}

	u, err := s.users.Create(ctx, &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrEmailAlreadyExists
		}
		return nil, s.internal(ctx, "create user", err)
	}

	s.log.Info(ctx, "user created", "user_id", u.ID, "by", requester.ID)
	return u, nil
}

// Update applies the set fields of in to user id. Non-admins may only
// update themselves and may not change their role; repeating the current
// role is accepted.
func (s *UserService) Update(ctx context.Context, requester *models.Identity, id int64, in UserUpdate) (*models.User, error) {
	if err := auth.Authorize(requester); err != nil {
		return nil, err
	}

	isAdmin := requester.Role == models.RoleAdmin
	if !isAdmin && requester.ID != id {
		return nil, fmt.Errorf("%w: cannot update another user", common.ErrForbidden)
	}
	if !isAdmin && in.Role != nil {
		cur, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if role, err := models.ParseRole(*in.Role); err != nil || role != cur.Role {
			return nil, fmt.Errorf("%w: cannot change role", common.ErrForbidden)
		}
		in.Role = nil
	}

	patch, err := s.buildPatch(ctx, in)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	u, err := s.users.Update(ctx, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return nil, fmt.Errorf("user %d: %w", id, common.ErrorNotFound)
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, common.ErrEmailAlreadyExists
		}
		return nil, s.internal(ctx, "update user", err)
	}

	s.log.Info(ctx, "user updated", "user_id", id, "by", requester.ID)
	return u, nil
}

// Delete removes user id and then revokes its refresh tokens. Admins only,
// and never on themselves. Nothing is revoked when the user cannot be
// deleted.
func (s *UserService) Delete(ctx context.Context, requester *models.Identity, id int64) error {
	if err := auth.Authorize(requester, models.RoleAdmin); err != nil {
		return err
	}
	if requester.ID == id {
		return fmt.Errorf("%w: cannot delete yourself", common.ErrForbidden)
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("user %d: %w", id, common.ErrorNotFound)
		}
		return s.internal(ctx, "delete user", err)
	}

	// postgres cascades, the memory store keeps the records
	if _, err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		return s.internal(ctx, "revoke refresh tokens", err)
	}

	s.log.Info(ctx, "user deleted", "user_id", id, "by", requester.ID)
	return nil
}

func (s *UserService) buildPatch(ctx context.Context, in UserUpdate) (models.UserPatch, error) {
	var p models.UserPatch

	if in.Name != nil {
		if err := validateName(*in.Name); err != nil {
			return p, err
		}
		name := strings.TrimSpace(*in.Name)
		p.Name = &name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return p, err
		}
		p.Email = &email
	}
	if in.Role != nil {
		role, err := models.ParseRole(*in.Role)
		if err != nil {
			return p, validationError("%v", err)
		}
		p.Role = &role
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return p, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return p, s.internal(ctx, "hash password", err)
		}
		p.PasswordHash = &hash
	}
	p.Active = in.Active

	return p, nil
}

func (s *UserService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, op, "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}
