package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

const refreshTTL = 7 * 24 * time.Hour

// cheap parameters keep the tests fast
var testHasher = cryptox.NewArgon2Hasher(cryptox.Params{
	Memory:      64,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  8,
	KeyLength:   16,
})

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// captureLogger records entries for assertions.
type captureLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  []any
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, args: append(append([]any{}, l.fields...), args...)})
}

func (l *captureLogger) Debug(_ context.Context, msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(_ context.Context, msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(_ context.Context, msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(_ context.Context, msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) With(args ...any) logging.Logger {
	return &captureLogger{mu: l.mu, entries: l.entries, fields: append(append([]any{}, l.fields...), args...)}
}

func (l *captureLogger) byLevel(level string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range *l.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

// fakeManager serves arbitrary repositories.
type fakeManager struct {
	users  users.Repository
	tokens refreshtokens.Repository
}

func (m *fakeManager) RunMigrations(context.Context) error     { return nil }
func (m *fakeManager) Users() users.Repository                 { return m.users }
func (m *fakeManager) RefreshTokens() refreshtokens.Repository { return m.tokens }
func (m *fakeManager) Close() error                            { return nil }

var _ repomanager.RepositoryManager = (*fakeManager)(nil)

type fixture struct {
	clock  *testClock
	log    *captureLogger
	users  *users.MemoryRepository
	tokens *refreshtokens.MemoryRepository
	codec  *auth.Codec
	auth   *AuthService
	svc    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:  newTestClock(),
		log:    newCaptureLogger(),
		users:  users.NewMemoryRepository(),
		tokens: refreshtokens.NewMemoryRepository(),
	}
	m := &fakeManager{users: f.users, tokens: f.tokens}
	f.codec = auth.NewCodec([]byte("test-secret"), 15*time.Minute, auth.WithClock(f.clock.Now))
	f.auth = NewAuthService(m, testHasher, f.codec, refreshTTL, f.log, WithAuthClock(f.clock.Now))
	f.svc = NewUserService(m, testHasher, f.log, WithUserClock(f.clock.Now))
	return f
}

// addUser stores a user with a hashed password.
func (f *fixture) addUser(t *testing.T, name, email, password string, role models.Role, active bool) *models.User {
	t.Helper()
	hash, err := testHasher.Hash(password)
	require.NoError(t, err)
	u, err := f.users.Create(context.Background(), &models.User{
		Name: name, Email: email, PasswordHash: hash, Role: role, Active: active, CreatedAt: f.clock.Now(),
	})
	require.NoError(t, err)
	return u
}
