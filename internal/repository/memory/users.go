package memory

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/repository"
)

// Users implements the user repository.
type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	u.ID = r.s.nextID("users")
	now := r.s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (r *Users) mutate(id uint64, fn func(u *model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}

func (r *Users) UpdateProfile(_ context.Context, id uint64, first, last, phone string) error {
	return r.mutate(id, func(u *model.User) {
		u.FirstName, u.LastName, u.Phone = first, last, phone
	})
}

func (r *Users) UpdateRole(_ context.Context, id uint64, role authz.Role) error {
	return r.mutate(id, func(u *model.User) { u.Role = role })
}

func (r *Users) SetActive(_ context.Context, id uint64, active bool) error {
	return r.mutate(id, func(u *model.User) { u.IsActive = active })
}

func (r *Users) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	return r.mutate(id, func(u *model.User) {
		t := at.UTC()
		u.LastLoginAt = &t
	})
}

// Tokens implements the refresh token repository.
type Tokens struct{ s *Store }

func (r *Tokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tokens[tokenHash]; ok {
		return repository.ErrDuplicate
	}
	r.s.tokens[tokenHash] = refreshRow{userID: userID, expiresAt: exp.UTC()}
	return nil
}

func (r *Tokens) ConsumeRefresh(_ context.Context, tokenHash string) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.tokens[tokenHash]
	if !ok || row.revoked || r.s.now().After(row.expiresAt) {
		return 0, repository.ErrNotFound
	}
	row.revoked = true
	r.s.tokens[tokenHash] = row
	return row.userID, nil
}

func (r *Tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for h, row := range r.s.tokens {
		if row.userID == userID {
			row.revoked = true
			r.s.tokens[h] = row
		}
	}
	return nil
}
