package refreshtokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0  = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	ttl = 7 * 24 * time.Hour
)

// stubValues makes newValue return vals in order for the duration of the test.
func stubValues(t *testing.T, vals ...string) {
	t.Helper()
	orig := newValue
	t.Cleanup(func() { newValue = orig })

	i := 0
	newValue = func() (string, error) {
		if i >= len(vals) {
			return "", errors.New("no more values")
		}
		v := vals[i]
		i++
		return v, nil
	}
}

func TestMemory_CreateAndFind(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	tok, err := r.Create(ctx, 7, ttl, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), tok.ID)
	assert.Equal(t, int64(7), tok.UserID)
	assert.Len(t, tok.Value, 64)
	assert.Equal(t, t0, tok.IssuedAt)
	assert.Equal(t, t0.Add(ttl), tok.ExpiresAt)
	assert.False(t, tok.Revoked)
	assert.Nil(t, tok.ReplacedBy)

	got, err := r.FindByValue(ctx, tok.Value)
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	_, err = r.FindByValue(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_IDsAreMonotonic(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		tok, err := r.Create(ctx, 1, ttl, t0)
		require.NoError(t, err)
		assert.Greater(t, tok.ID, last)
		last = tok.ID
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	tok, err := r.Create(ctx, 1, ttl, t0)
	require.NoError(t, err)
	tok.Revoked = true

	got, err := r.FindByValue(ctx, tok.Value)
	require.NoError(t, err)
	assert.False(t, got.Revoked, "caller mutations must not leak into the store")
}

func TestMemory_TenThousandUniqueValues(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		tok, err := r.Create(ctx, int64(i%50+1), ttl, t0)
		require.NoError(t, err)
		_, dup := seen[tok.Value]
		require.False(t, dup, "duplicate value at %d", i)
		seen[tok.Value] = struct{}{}
	}
	assert.Equal(t, 10000, r.Len())
}

func TestMemory_CollisionRegenerates(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	stubValues(t, "aaaa", "aaaa", "aaaa", "bbbb")

	first, err := r.Create(ctx, 1, ttl, t0)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", first.Value)

	second, err := r.Create(ctx, 1, ttl, t0)
	require.NoError(t, err)
	assert.Equal(t, "bbbb", second.Value)
}

func TestMemory_CollisionExhausted(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	stubValues(t, "x", "x", "x", "x", "x", "x")

	_, err := r.Create(ctx, 1, ttl, t0)
	require.NoError(t, err)

	_, err = r.Create(ctx, 1, ttl, t0)
	assert.ErrorIs(t, err, errValueExhausted)
	assert.Equal(t, 1, r.Len())
}

func TestMemory_RevokeIsIdempotent(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	tok, err := r.Create(ctx, 1, ttl, t0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		found, err := r.Revoke(ctx, tok.Value)
		require.NoError(t, err)
		assert.True(t, found)
	}

	got, _ := r.FindByValue(ctx, tok.Value)
	assert.True(t, got.Revoked)
	assert.False(t, got.IsValid(t0))

	found, err := r.Revoke(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_RevokeAllForUser(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	a, _ := r.Create(ctx, 1, ttl, t0)
	b, _ := r.Create(ctx, 1, ttl, t0)
	other, _ := r.Create(ctx, 2, ttl, t0)
	_, _ = r.Revoke(ctx, a.Value)

	n, err := r.RevokeAllForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "already revoked records are not counted")

	got, _ := r.FindByValue(ctx, b.Value)
	assert.True(t, got.Revoked)
	got, _ = r.FindByValue(ctx, other.Value)
	assert.False(t, got.Revoked, "other users keep their sessions")

	n, err = r.RevokeAllForUser(ctx, 99)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemory_MarkReplacedOnce(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	tok, _ := r.Create(ctx, 1, ttl, t0)

	ok, err := r.MarkReplaced(ctx, tok.Value, 42)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.MarkReplaced(ctx, tok.Value, 43)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := r.FindByValue(ctx, tok.Value)
	require.NotNil(t, got.ReplacedBy)
	assert.Equal(t, int64(42), *got.ReplacedBy)
	assert.True(t, got.Revoked)

	ok, err = r.MarkReplaced(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_RotateChain(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	a, _ := r.Create(ctx, 5, ttl, t0)
	later := t0.Add(time.Hour)

	b, err := r.Rotate(ctx, a.Value, ttl, later)
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.UserID)
	assert.Equal(t, later.Add(ttl), b.ExpiresAt)
	assert.NotEqual(t, a.Value, b.Value)

	oldA, _ := r.FindByValue(ctx, a.Value)
	require.NotNil(t, oldA.ReplacedBy)
	assert.Equal(t, b.ID, *oldA.ReplacedBy)
	assert.True(t, oldA.Revoked)

	_, err = r.Rotate(ctx, a.Value, ttl, later)
	assert.ErrorIs(t, err, common.ErrRefreshTokenReused)

	c, err := r.Rotate(ctx, b.Value, ttl, later)
	require.NoError(t, err)
	assert.NotEqual(t, b.Value, c.Value)
}

func TestMemory_RotateRejects(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	_, err := r.Rotate(ctx, "missing", ttl, t0)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	revoked, _ := r.Create(ctx, 1, ttl, t0)
	_, _ = r.Revoke(ctx, revoked.Value)
	_, err = r.Rotate(ctx, revoked.Value, ttl, t0)
	assert.ErrorIs(t, err, common.ErrRefreshTokenInvalid)

	expired, _ := r.Create(ctx, 1, ttl, t0)
	_, err = r.Rotate(ctx, expired.Value, ttl, t0.Add(8*24*time.Hour))
	assert.ErrorIs(t, err, common.ErrRefreshTokenInvalid)

	assert.Equal(t, 2, r.Len(), "failed rotations create nothing")
}

func TestMemory_RotateFailureLeavesOldUsable(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	a, _ := r.Create(ctx, 1, ttl, t0)
	stubValues(t, a.Value, a.Value, a.Value, a.Value, a.Value)

	_, err := r.Rotate(ctx, a.Value, ttl, t0)
	require.ErrorIs(t, err, errValueExhausted)

	got, _ := r.FindByValue(ctx, a.Value)
	assert.Nil(t, got.ReplacedBy)
	assert.True(t, got.IsValid(t0))
}

func TestMemory_ConcurrentRotateHasOneWinner(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	a, _ := r.Create(ctx, 1, ttl, t0)

	const n = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		reused  int
		unknown []error
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := r.Rotate(ctx, a.Value, ttl, t0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, common.ErrRefreshTokenReused):
				reused++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, unknown)
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, reused)
	assert.Equal(t, 2, r.Len())
}

func TestMemory_SweepExpired(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	old, _ := r.Create(ctx, 1, time.Hour, t0)
	fresh, _ := r.Create(ctx, 1, ttl, t0)
	edge, _ := r.Create(ctx, 2, 2*time.Hour, t0)

	n, err := r.SweepExpired(ctx, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "records expiring exactly now are kept")

	_, err = r.FindByValue(ctx, old.Value)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.FindByValue(ctx, fresh.Value)
	assert.NoError(t, err)
	_, err = r.FindByValue(ctx, edge.Value)
	assert.NoError(t, err)

	revoked, err := r.RevokeAllForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, revoked, "swept records leave the user index")
}
