// Package users is the user directory: lookup by email or id plus the
// management operations behind the /users API.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores users. Emails are compared exactly, so callers
// normalise them first. Create and Update return common.ErrorAlreadyExists
// for a taken email; lookups return common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q ListQuery) ([]*models.User, error)
	Count(ctx context.Context, f Filter) (int, error)
}

// Filter narrows List and Count. Name and Email match case-insensitive
// substrings; zero values disable a condition.
type Filter struct {
	Role   models.Role
	Name   string
	Email  string
	Active *bool
}

// Sortable fields.
const (
	SortByID        = "id"
	SortByName      = "name"
	SortByEmail     = "email"
	SortByRole      = "role"
	SortByCreatedAt = "created_at"
)

// SortFields lists the values accepted in ListQuery.SortBy.
var SortFields = []string{SortByID, SortByName, SortByEmail, SortByRole, SortByCreatedAt}

type ListQuery struct {
	Filter
	SortBy string // one of SortFields, id when empty
	Desc   bool
	Offset int
	Limit  int // no limit when <= 0
}
