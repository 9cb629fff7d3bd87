package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RoleChangeGuard inspects the target user and the current admin count and
// returns an error to veto the change. It runs inside the same transaction
// that performs the update, with the target row locked, so the count cannot
// go stale between check and write.
type RoleChangeGuard func(target *domain.User, adminCount int) error

// UserRepository defines persistence access for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	CountAdmins(ctx context.Context) (int, error)
	ChangeRole(ctx context.Context, id string, newRole domain.Role, guard RoleChangeGuard) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func (r *userRepository) CountAdmins(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users WHERE role=$1`
	var count int
	if err := r.pool.QueryRow(ctx, query, domain.RoleAdmin).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ChangeRole updates a user's role inside a single transaction. The target
// row is locked FOR UPDATE, and the admin count locks every admin row, so
// two concurrent demotions serialize and the second sees the first's result.
func (r *userRepository) ChangeRole(ctx context.Context, id string, newRole domain.Role, guard RoleChangeGuard) (*domain.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const lockQuery = `SELECT ` + userColumns + ` FROM users WHERE id=$1 FOR UPDATE`
	target, err := scanUser(tx.QueryRow(ctx, lockQuery, id))
	if err != nil {
		return nil, err
	}

	const countQuery = `
        SELECT COUNT(*) FROM (
            SELECT id FROM users WHERE role=$1 FOR UPDATE
        ) AS admins`
	var adminCount int
	if err := tx.QueryRow(ctx, countQuery, domain.RoleAdmin).Scan(&adminCount); err != nil {
		return nil, err
	}

	if guard != nil {
		if err := guard(target, adminCount); err != nil {
			return nil, err
		}
	}

	const updateQuery = `
        UPDATE users SET role=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, updateQuery, newRole, id).Scan(&target.UpdatedAt); err != nil {
		return nil, err
	}
	target.Role = newRole

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return target, nil
}
