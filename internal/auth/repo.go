package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vlady-pos/vlady-pos/internal/platform/db"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// ErrDuplicateUser indicates the national ID or email is already registered.
var ErrDuplicateUser = shared.Errorf(shared.ErrDuplicate, "The national ID or email is already registered.")

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user User) (int64, error)
}

// PGRepository implements Repository using PostgreSQL. It runs against a
// pool or a transaction.
type PGRepository struct {
	q db.Querier
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{q: q}
}

const userColumns = `id, national_id, first_name, last_name, phone, email, password_hash, role, is_active, created_at`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// LockActive takes a share lock on an active user row so the account cannot
// be deactivated while the surrounding transaction is open.
func (r *PGRepository) LockActive(ctx context.Context, id int64) (*User, error) {
	return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active FOR SHARE`, id)
}

// Create inserts a user and returns its id.
func (r *PGRepository) Create(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `INSERT INTO users (national_id, first_name, last_name, phone, email, password_hash, role, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE) RETURNING id`,
		user.NationalID, user.FirstName, user.LastName, user.Phone, user.Email, user.PasswordHash, user.Role,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrDuplicateUser
		}
		return 0, err
	}
	return id, nil
}

func (r *PGRepository) scanOne(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.NationalID, &u.FirstName, &u.LastName, &u.Phone, &u.Email,
		&u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
