package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/model"
)

// UserRepo persists accounts.  Stored role labels pass through Roles so
// legacy values (crew, staff) surface as canonical roles.
type UserRepo struct {
	DB    *sql.DB
	Roles authz.RoleMapping
}

func NewUserRepo(db *sql.DB, roles authz.RoleMapping) *UserRepo {
	return &UserRepo{DB: db, Roles: roles}
}

const userColumns = "id,email,password_hash,first_name,last_name,phone,role,is_active,last_login_at,created_at,updated_at"

// Create inserts u and fills in its ID.  A taken email yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, first_name, last_name, phone, role, is_active) VALUES (?,?,?,?,?,?,?)",
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, string(u.Role), u.IsActive)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	var (
		u     model.User
		role  string
		login sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone,
		&role, &u.IsActive, &login, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, translate(err)
	}
	if u.Role, err = r.Roles.Resolve(role); err != nil {
		return model.User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	if login.Valid {
		t := login.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// UpdateProfile overwrites the editable profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, first, last, phone string) error {
	return r.execOne(ctx, "UPDATE users SET first_name=?, last_name=?, phone=? WHERE id=?", first, last, phone, id)
}

// UpdateRole stores a canonical role label.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role authz.Role) error {
	return r.execOne(ctx, "UPDATE users SET role=? WHERE id=?", string(role), id)
}

// SetActive enables or disables an account.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	return r.execOne(ctx, "UPDATE users SET is_active=? WHERE id=?", active, id)
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	return r.execOne(ctx, "UPDATE users SET last_login_at=? WHERE id=?", at.UTC(), id)
}

// execOne runs an UPDATE addressed by id.  MySQL reports zero affected rows
// when values are unchanged, so a miss is confirmed with a lookup.
func (r *UserRepo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	id := args[len(args)-1]
	var one int
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", id).Scan(&one); err != nil {
		return translate(err)
	}
	return nil
}
