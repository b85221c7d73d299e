package auth

import (
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Authorize decides whether identity may act when one of allowed is
// required. A nil identity is ErrUnauthenticated. Roles are hierarchical:
// the identity passes when its rank reaches the lowest rank among allowed,
// so an admin satisfies a user-only requirement. No allowed roles means
// any authenticated identity with a known role passes. Unknown roles in
// allowed are ignored.
func Authorize(identity *models.Identity, allowed ...models.Role) error {
	if identity == nil {
		return common.ErrUnauthenticated
	}
	if !identity.Role.Valid() {
		return common.ErrInsufficientRole
	}
	if len(allowed) == 0 {
		return nil
	}

	var required models.Role
	for _, r := range allowed {
		if r.Valid() && (required == "" || r.Rank() < required.Rank()) {
			required = r
		}
	}
	if required == "" || !identity.Role.AtLeast(required) {
		return common.ErrInsufficientRole
	}
	return nil
}
