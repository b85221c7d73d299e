// Package services contains server-side business logic. This file implements
// AuthService: login, registration, refresh-token rotation and logout.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) (bool, error)
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

// AuthResult is returned by Login and Register.
type AuthResult struct {
	TokenPair
	User *models.User `json:"user"`
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string // user when empty
}

// AuthService provides the token lifecycle:
// - Login / Register: verify or create the user and start a new session chain
// - RefreshAccessToken: rotate a refresh token and mint a new access token
// - Logout / LogoutAll: revoke one or every refresh token
type AuthService struct {
	users      users.Repository
	tokens     refreshtokens.Repository
	hasher     PasswordHasher
	codec      *auth.Codec
	refreshTTL time.Duration
	now        func() time.Time
	locks      *userLocks
	log        logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

type AuthOption func(*AuthService)

// WithAuthClock replaces time.Now for refresh token bookkeeping.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService wires AuthService to the repositories of m.
func NewAuthService(m repomanager.RepositoryManager, hasher PasswordHasher, codec *auth.Codec,
	refreshTTL time.Duration, log logging.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:      m.Users(),
		tokens:     m.RefreshTokens(),
		hasher:     hasher,
		codec:      codec,
		refreshTTL: refreshTTL,
		now:        time.Now,
		locks:      newUserLocks(),
		log:        log.With("module", "auth_service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login checks the credentials and starts a new session chain, revoking
// every refresh token the user held before. Unknown email and wrong password
// both yield ErrInvalidCredentials; an inactive account is reported only
// after the password matched.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// keep the response time close to the wrong-password path
			_, _ = s.hasher.Verify(s.dummy(), password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "find user by email", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, s.internal(ctx, "verify password", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, common.ErrAccountInactive
	}

	pair, err := s.startChain(ctx, user, true)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &AuthResult{TokenPair: *pair, User: user}, nil
}

// Register creates an active user and starts its first session chain.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.newUser(ctx, in)
	if err != nil {
		return nil, err
	}

	pair, err := s.startChain(ctx, user, false)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return &AuthResult{TokenPair: *pair, User: user}, nil
}

// RefreshAccessToken exchanges a refresh token for a new pair. The presented
// token is consumed: presenting it again yields ErrRefreshTokenReused, which
// callers may answer with LogoutAll. If rotation fails the presented token
// stays usable.
func (s *AuthService) RefreshAccessToken(ctx context.Context, value string) (*TokenPair, error) {
	if value == "" {
		return nil, common.ErrRefreshTokenNotFound
	}

	found, err := s.findToken(ctx, value)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(found.UserID)
	defer unlock()

	now := s.now()

	// re-read under the user lock, a concurrent refresh may have rotated it
	token, err := s.findToken(ctx, value)
	if err != nil {
		return nil, err
	}
	if token.IsReplaced() {
		s.log.Warn(ctx, "refresh token reuse detected", "user_id", token.UserID, "token_id", token.ID)
		return nil, common.ErrRefreshTokenReused
	}
	if !token.IsValid(now) {
		return nil, common.ErrRefreshTokenInvalid
	}

	user, err := s.users.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserInactiveOrMissing
		}
		return nil, s.internal(ctx, "find token owner", err)
	}
	if !user.Active {
		return nil, common.ErrUserInactiveOrMissing
	}

	access, accessExp, err := s.codec.Issue(user.Identity())
	if err != nil {
		return nil, s.internal(ctx, "issue access token", err)
	}

	next, err := s.tokens.Rotate(ctx, value, s.refreshTTL, now)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRefreshTokenReused):
			s.log.Warn(ctx, "refresh token reuse detected", "user_id", token.UserID, "token_id", token.ID)
			return nil, common.ErrRefreshTokenReused
		case errors.Is(err, common.ErrRefreshTokenInvalid):
			return nil, common.ErrRefreshTokenInvalid
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrRefreshTokenNotFound
		}
		return nil, s.internal(ctx, "rotate refresh token", err)
	}

	s.log.Debug(ctx, "refresh token rotated", "user_id", user.ID, "from", token.ID, "to", next.ID)
	return &TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          next.Value,
		RefreshTokenExpiresAt: next.ExpiresAt,
	}, nil
}

// Logout revokes one refresh token. Unknown or empty values are ignored.
func (s *AuthService) Logout(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	found, err := s.tokens.Revoke(ctx, value)
	if err != nil {
		return s.internal(ctx, "revoke refresh token", err)
	}
	if found {
		s.log.Debug(ctx, "refresh token revoked")
	}
	return nil
}

// LogoutAll revokes every refresh token of userID and returns how many
// were still active.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) (int, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	n, err := s.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, s.internal(ctx, "revoke user refresh tokens", err)
	}
	s.log.Info(ctx, "user logged out everywhere", "user_id", userID, "revoked", n)
	return n, nil
}

// Authenticate decodes an access token into the caller identity.
func (s *AuthService) Authenticate(_ context.Context, accessToken string) (*models.Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, common.ErrUnauthenticated
	}
	claims, err := s.codec.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	id := claims.Identity()
	return &id, nil
}

// IssueForUser starts a new session chain for an already authenticated user,
// replacing the chains it had.
func (s *AuthService) IssueForUser(ctx context.Context, userID int64) (*AuthResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserInactiveOrMissing
		}
		return nil, s.internal(ctx, "find user", err)
	}
	if !user.Active {
		return nil, common.ErrUserInactiveOrMissing
	}

	pair, err := s.startChain(ctx, user, true)
	if err != nil {
		return nil, err
	}
	return &AuthResult{TokenPair: *pair, User: user}, nil
}

// --- helpers below ---

// newUser validates in and persists the user with a hashed password.
func (s *AuthService) newUser(ctx context.Context, in RegisterInput) (*models.User, error) {
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
	role, err := parseRole(in.Role)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "hash password", err)
	}

	user, err := s.users.Create(ctx, &models.User{
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
	return user, nil
}

// startChain issues a new refresh token and access token for user. With
// revokePrior every earlier refresh token of the user is revoked first.
func (s *AuthService) startChain(ctx context.Context, user *models.User, revokePrior bool) (*TokenPair, error) {
	unlock := s.locks.Lock(user.ID)
	defer unlock()

	now := s.now()

	if revokePrior {
		n, err := s.tokens.RevokeAllForUser(ctx, user.ID)
		if err != nil {
			return nil, s.internal(ctx, "revoke prior refresh tokens", err)
		}
		if n > 0 {
			s.log.Debug(ctx, "prior refresh tokens revoked", "user_id", user.ID, "count", n)
		}
	}

	refresh, err := s.tokens.Create(ctx, user.ID, s.refreshTTL, now)
	if err != nil {
		return nil, s.internal(ctx, "create refresh token", err)
	}

	access, accessExp, err := s.codec.Issue(user.Identity())
	if err != nil {
		return nil, s.internal(ctx, "issue access token", err)
	}

	return &TokenPair{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          refresh.Value,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
	}, nil
}

func (s *AuthService) findToken(ctx context.Context, value string) (*models.RefreshToken, error) {
	token, err := s.tokens.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshTokenNotFound
		}
		return nil, s.internal(ctx, "find refresh token", err)
	}
	return token, nil
}

// dummy is a valid hash of a random secret, verified against when the
// email is unknown.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		secret, err := common.MakeRandHexString(16)
		if err != nil {
			secret = "gophauth"
		}
		s.dummyHash, _ = s.hasher.Hash(secret)
	})
	return s.dummyHash
}

func (s *AuthService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, op, "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}
