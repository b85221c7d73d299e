package users

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// MemoryRepository keeps users in process memory with an email index.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*models.User
	byEmail map[string]int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[int64]*models.User),
		byEmail: make(map[string]int64),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return nil, common.ErrorAlreadyExists
	}

	r.nextID++
	u := *user
	u.ID = r.nextID
	r.byID[u.ID] = &u
	r.byEmail[u.Email] = u.ID

	out := u
	return &out, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}

	next := cur.Apply(patch)
	if next.Email != cur.Email {
		if _, taken := r.byEmail[next.Email]; taken {
			return nil, common.ErrorAlreadyExists
		}
		delete(r.byEmail, cur.Email)
		r.byEmail[next.Email] = id
	}
	*cur = next

	out := next
	return &out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	delete(r.byEmail, u.Email)
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, q ListQuery) ([]*models.User, error) {
	r.mu.RLock()
	matched := r.filterLocked(q.Filter)
	r.mu.RUnlock()

	less := compareBy(q.SortBy)
	slices.SortStableFunc(matched, func(a, b *models.User) int {
		c := less(a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if q.Desc {
			return -c
		}
		return c
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []*models.User{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (r *MemoryRepository) Count(ctx context.Context, f Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.filterLocked(f)), nil
}

// filterLocked returns copies of the users matching f.
func (r *MemoryRepository) filterLocked(f Filter) []*models.User {
	name := strings.ToLower(f.Name)
	email := strings.ToLower(f.Email)

	out := make([]*models.User, 0, len(r.byID))
	for _, u := range r.byID {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(u.Name), name) {
			continue
		}
		if email != "" && !strings.Contains(strings.ToLower(u.Email), email) {
			continue
		}
		if f.Active != nil && u.Active != *f.Active {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	return out
}

func compareBy(field string) func(a, b *models.User) int {
	switch field {
	case SortByName:
		return func(a, b *models.User) int { return cmp.Compare(a.Name, b.Name) }
	case SortByEmail:
		return func(a, b *models.User) int { return cmp.Compare(a.Email, b.Email) }
	case SortByRole:
		return func(a, b *models.User) int { return cmp.Compare(a.Role, b.Role) }
	case SortByCreatedAt:
		return func(a, b *models.User) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return func(a, b *models.User) int { return cmp.Compare(a.ID, b.ID) }
	}
}
