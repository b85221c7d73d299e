package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHasher = cryptox.NewArgon2Hasher(cryptox.Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	m := repomanager.NewMemoryRepositoryManager()
	_, err := services.Seed(context.Background(), m.Users(), testHasher, logging.Nop(), services.DemoUsers)
	require.NoError(t, err)

	codec := auth.NewCodec([]byte("http-test-secret"), 15*time.Minute)
	as := services.NewAuthService(m, testHasher, codec, 7*24*time.Hour, logging.Nop())
	us := services.NewUserService(m, testHasher, logging.Nop())

	return NewServer(":0", logging.Nop(), as, us).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any, token string) (int, response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec.Code, resp
}

func login(t *testing.T, h http.Handler, email, password string) services.AuthResult {
	t.Helper()
	code, resp := do(t, h, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, code, resp.Message)

	var res services.AuthResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	return res
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	code, resp := do(t, h, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}

func TestLogin(t *testing.T) {
	h := newTestServer(t)

	res := login(t, h, "carlos.herrera@example.com", "userPass123")
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "Carlos Herrera", res.User.Name)

	code, resp := do(t, h, http.MethodPost, "/auth/login", map[string]string{"email": "carlos.herrera@example.com", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)
	assert.Equal(t, common.ErrInvalidCredentials.Error(), resp.Message)

	code, _ = do(t, h, http.MethodPost, "/auth/login", map[string]string{"email": "carlos.herrera@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLogin_MalformedBody(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"malformed request body"}`, rec.Body.String())
}

func TestRegister(t *testing.T) {
	h := newTestServer(t)

	code, resp := do(t, h, http.MethodPost, "/auth/register",
		map[string]string{"name": "Ana Pérez", "email": "ana@example.com", "password": "s3cret!"}, "")
	require.Equal(t, http.StatusCreated, code, resp.Message)

	var res services.AuthResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.NotContains(t, string(resp.Data), "argon2id", "password hash is never serialised")

	code, _ = do(t, h, http.MethodPost, "/auth/register",
		map[string]string{"name": "Ana Again", "email": "ana@example.com", "password": "s3cret!"}, "")
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, h, http.MethodPost, "/auth/register",
		map[string]string{"name": "Mallory", "email": "mallory@example.com", "password": "s3cret!", "role": "admin"}, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, h, http.MethodPost, "/auth/register",
		map[string]string{"name": "Bad", "email": "bad", "password": "s3cret!"}, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRefresh(t *testing.T) {
	h := newTestServer(t)
	res := login(t, h, "carlos.herrera@example.com", "userPass123")

	code, _ := do(t, h, http.MethodPost, "/auth/refresh", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := do(t, h, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": res.RefreshToken}, "")
	require.Equal(t, http.StatusOK, code, resp.Message)
	var pair services.TokenPair
	require.NoError(t, json.Unmarshal(resp.Data, &pair))
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)

	code, resp = do(t, h, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": res.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, common.ErrRefreshTokenReused.Error(), resp.Message)

	code, _ = do(t, h, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": "unknown"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestMeAndLogoutAll(t *testing.T) {
	h := newTestServer(t)
	res := login(t, h, "sofia.morales@example.com", "adminSecure!2024")

	code, _ := do(t, h, http.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = do(t, h, http.MethodGet, "/auth/me", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := do(t, h, http.MethodGet, "/auth/me", nil, res.AccessToken)
	require.Equal(t, http.StatusOK, code)
	var id models.Identity
	require.NoError(t, json.Unmarshal(resp.Data, &id))
	assert.Equal(t, models.Identity{ID: res.User.ID, Email: "sofia.morales@example.com", Role: models.RoleAdmin}, id)

	code, resp = do(t, h, http.MethodPost, "/auth/logout-all", nil, res.AccessToken)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"revoked":1}`, string(resp.Data))

	code, _ = do(t, h, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": res.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogout(t *testing.T) {
	h := newTestServer(t)
	res := login(t, h, "carlos.herrera@example.com", "userPass123")

	code, _ := do(t, h, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": res.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodPost, "/auth/logout", map[string]string{"refreshToken": res.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": res.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUsersEndpoints(t *testing.T) {
	h := newTestServer(t)
	admin := login(t, h, "sofia.morales@example.com", "adminSecure!2024")
	user := login(t, h, "carlos.herrera@example.com", "userPass123")

	code, _ := do(t, h, http.MethodGet, "/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := do(t, h, http.MethodGet, "/users?limit=2&sort=name&order=desc", nil, user.AccessToken)
	require.Equal(t, http.StatusOK, code)
	var list services.UserList
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list.Users, 2)
	assert.Equal(t, "Valentina Rojas", list.Users[0].Name)
	assert.Equal(t, services.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2, HasNextPage: true}, list.Pagination)

	code, _ = do(t, h, http.MethodGet, "/users?order=sideways", nil, user.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodGet, "/users/abc", nil, user.AccessToken)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, h, http.MethodGet, "/users/999", nil, user.AccessToken)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodPost, "/users",
		map[string]string{"name": "New Admin", "email": "new.admin@example.com", "password": "s3cret!", "role": "admin"}, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = do(t, h, http.MethodPost, "/users",
		map[string]string{"name": "New Admin", "email": "new.admin@example.com", "password": "s3cret!", "role": "admin"}, admin.AccessToken)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var created models.User
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	code, _ = do(t, h, http.MethodPut, "/users/"+itoa(created.ID), map[string]string{"name": "Hijack"}, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = do(t, h, http.MethodPut, "/users/"+itoa(user.User.ID), map[string]string{"name": "Carlos H."}, user.AccessToken)
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, _ = do(t, h, http.MethodDelete, "/users/"+itoa(created.ID), nil, user.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, h, http.MethodDelete, "/users/"+itoa(admin.User.ID), nil, admin.AccessToken)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, h, http.MethodDelete, "/users/"+itoa(created.ID), nil, admin.AccessToken)
	assert.Equal(t, http.StatusOK, code)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t)
	code, resp := do(t, h, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
}

// failingAuth returns err from every call.
type failingAuth struct {
	AuthService
	err error
}

func (f failingAuth) Login(context.Context, string, string) (*services.AuthResult, error) {
	return nil, f.err
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := NewServer(":0", logging.Nop(), failingAuth{err: errors.New("pq: connection refused")}, nil).Handler()

	code, resp := do(t, h, http.MethodPost, "/auth/login", map[string]string{"email": "a@b.c", "password": "x"}, "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", resp.Message)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrAccountInactive, http.StatusUnauthorized},
		{common.ErrUserInactiveOrMissing, http.StatusUnauthorized},
		{common.ErrInsufficientRole, http.StatusForbidden},
		{common.ErrEmailAlreadyExists, http.StatusConflict},
		{errors.Join(errors.New("ctx"), common.ErrorNotFound), http.StatusNotFound},
		{common.ErrorInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := statusFor(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// requestIDAuth records the request id seen by the service.
type requestIDAuth struct {
	AuthService
	got *string
}

func (a requestIDAuth) Login(ctx context.Context, _, _ string) (*services.AuthResult, error) {
	*a.got = logging.RequestID(ctx)
	return nil, common.ErrInvalidCredentials
}

func TestRequestIDReachesServices(t *testing.T) {
	var got string
	h := NewServer(":0", logging.Nop(), requestIDAuth{got: &got}, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"a@b.c","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, got)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), got)
}
