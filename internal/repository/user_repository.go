package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miskyy7507/vibezone/internal/models"
)

const uniqueViolation = "23505"

type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, profile_id, login, password_hash, role, active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.ProfileID,
		user.Login,
		user.PasswordHash,
		user.Role,
		user.Active,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrLoginTaken
	}
	return err
}

func (r *PostgresUserRepository) FindByLogin(ctx context.Context, login string) (models.User, error) {
	const query = `
		SELECT id, profile_id, login, password_hash, role, active, created_at, updated_at
		FROM users WHERE login = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, login))
}

func (r *PostgresUserRepository) GetByProfileID(ctx context.Context, profileID string) (models.User, error) {
	const query = `
		SELECT id, profile_id, login, password_hash, role, active, created_at, updated_at
		FROM users WHERE profile_id = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, profileID))
}

func (r *PostgresUserRepository) Deactivate(ctx context.Context, profileID string) error {
	const query = `
		UPDATE users SET active = FALSE, updated_at = NOW() WHERE profile_id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, profileID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) SetRole(ctx context.Context, login string, role models.UserRole) error {
	const query = `
		UPDATE users SET role = $2, updated_at = NOW() WHERE login = $1
	`
	cmd, err := r.pool.Exec(ctx, query, login, role)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.ProfileID,
		&user.Login,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
