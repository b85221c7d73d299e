package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// MemoryRepository keeps records in an id-keyed map with value and user
// indexes. All methods are safe for concurrent use.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*models.RefreshToken
	byValue map[string]int64
	byUser  map[int64]map[int64]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[int64]*models.RefreshToken),
		byValue: make(map[string]int64),
		byUser:  make(map[int64]map[int64]struct{}),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, userID int64, ttl time.Duration, now time.Time) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.insertLocked(userID, ttl, now)
	if err != nil {
		return nil, err
	}
	return clone(t), nil
}

func (r *MemoryRepository) FindByValue(ctx context.Context, value string) (*models.RefreshToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.lookupLocked(value)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(t), nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, value string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.lookupLocked(value)
	if !ok {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

func (r *MemoryRepository) RevokeAllForUser(ctx context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id := range r.byUser[userID] {
		if t := r.byID[id]; !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) MarkReplaced(ctx context.Context, value string, newID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.lookupLocked(value)
	if !ok || t.ReplacedBy != nil {
		return false, nil
	}
	markReplaced(t, newID)
	return true, nil
}

func (r *MemoryRepository) Rotate(ctx context.Context, value string, ttl time.Duration, now time.Time) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.lookupLocked(value)
	if !ok {
		return nil, common.ErrorNotFound
	}
	if old.ReplacedBy != nil {
		return nil, common.ErrRefreshTokenReused
	}
	if !old.IsValid(now) {
		return nil, common.ErrRefreshTokenInvalid
	}

	next, err := r.insertLocked(old.UserID, ttl, now)
	if err != nil {
		return nil, err
	}
	markReplaced(old, next.ID)
	return clone(next), nil
}

func (r *MemoryRepository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, t := range r.byID {
		if !t.ExpiresAt.Before(now) {
			continue
		}
		delete(r.byID, id)
		delete(r.byValue, t.Value)
		if ids := r.byUser[t.UserID]; ids != nil {
			delete(ids, id)
			if len(ids) == 0 {
				delete(r.byUser, t.UserID)
			}
		}
		n++
	}
	return n, nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryRepository) lookupLocked(value string) (*models.RefreshToken, bool) {
	id, ok := r.byValue[value]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

func (r *MemoryRepository) insertLocked(userID int64, ttl time.Duration, now time.Time) (*models.RefreshToken, error) {
	value, err := r.uniqueValueLocked()
	if err != nil {
		return nil, err
	}

	r.nextID++
	t := &models.RefreshToken{
		ID:        r.nextID,
		UserID:    userID,
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	r.byID[t.ID] = t
	r.byValue[value] = t.ID
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[int64]struct{})
	}
	r.byUser[userID][t.ID] = struct{}{}
	return t, nil
}

func (r *MemoryRepository) uniqueValueLocked() (string, error) {
	for i := 0; i < maxValueAttempts; i++ {
		v, err := newValue()
		if err != nil {
			return "", err
		}
		if _, taken := r.byValue[v]; !taken {
			return v, nil
		}
	}
	return "", errValueExhausted
}

func markReplaced(t *models.RefreshToken, newID int64) {
	id := newID
	t.ReplacedBy = &id
	t.Revoked = true
}

func clone(t *models.RefreshToken) *models.RefreshToken {
	c := *t
	if t.ReplacedBy != nil {
		id := *t.ReplacedBy
		c.ReplacedBy = &id
	}
	return &c
}
