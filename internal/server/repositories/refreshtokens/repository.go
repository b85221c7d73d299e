// Package refreshtokens stores server-side refresh token records and
// implements their single-use rotation.
package refreshtokens

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository is the refresh token store. Lookups return copies; records
// change only through the methods below.
type Repository interface {
	// Create issues a record with a fresh random value expiring at now+ttl.
	Create(ctx context.Context, userID int64, ttl time.Duration, now time.Time) (*models.RefreshToken, error)
	// FindByValue returns common.ErrorNotFound when no record has value.
	FindByValue(ctx context.Context, value string) (*models.RefreshToken, error)
	// Revoke marks the record revoked and reports whether it exists.
	Revoke(ctx context.Context, value string) (bool, error)
	// RevokeAllForUser revokes every unrevoked record of userID and
	// returns how many changed.
	RevokeAllForUser(ctx context.Context, userID int64) (int, error)
	// MarkReplaced links value to its successor newID and revokes it. It
	// reports false when the record is missing or already replaced.
	MarkReplaced(ctx context.Context, value string, newID int64) (bool, error)
	// Rotate creates the successor of value and marks value replaced as a
	// single step. It fails with common.ErrorNotFound,
	// common.ErrRefreshTokenReused or common.ErrRefreshTokenInvalid and then
	// changes nothing.
	Rotate(ctx context.Context, value string, ttl time.Duration, now time.Time) (*models.RefreshToken, error)
	// SweepExpired deletes records with ExpiresAt before now.
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// maxValueAttempts bounds regeneration after a value collision.
const maxValueAttempts = 5

var errValueExhausted = errors.New("could not generate a unique refresh token value")

// newValue produces refresh token values; tests replace it to force
// collisions.
var newValue = func() (string, error) {
	return common.MakeRandHexString(common.RefreshTokenBytes)
}
