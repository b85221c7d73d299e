package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// SeedUser is a demo account created at startup.
type SeedUser struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
}

// DemoUsers are the accounts created when seeding is enabled.
var DemoUsers = []SeedUser{
	{Name: "Sofía Morales", Email: "sofia.morales@example.com", Password: "adminSecure!2024", Role: models.RoleAdmin},
	{Name: "Carlos Herrera", Email: "carlos.herrera@example.com", Password: "userPass123", Role: models.RoleUser},
	{Name: "Valentina Rojas", Email: "valentina.rojas@example.com", Password: "userPass456", Role: models.RoleUser},
}

// Seed creates the given users, skipping emails that already exist, and
// returns how many were created.
func Seed(ctx context.Context, repo users.Repository, hasher PasswordHasher, log logging.Logger, seed []SeedUser) (int, error) {
	created := 0
	for _, su := range seed {
		hash, err := hasher.Hash(su.Password)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", su.Email, err)
		}

		u, err := repo.Create(ctx, &models.User{
			Name:         su.Name,
			Email:        normalizeEmail(su.Email),
			PasswordHash: hash,
			Role:         su.Role,
			Active:       true,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				continue
			}
			return created, fmt.Errorf("create %s: %w", su.Email, err)
		}

		created++
		log.Info(ctx, "seeded user", "user_id", u.ID, "email", u.Email, "role", u.Role)
	}
	return created, nil
}
