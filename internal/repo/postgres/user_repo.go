package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `
telegram_id, username, first_name, last_name, subscribed, registered_at, last_active`

// Upsert creates the user on first contact and refreshes profile fields
// on every later one. Subscription state survives the refresh.
func (r *UserRepo) Upsert(ctx context.Context, telegramID int64, username, firstName, lastName string) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return model.User{}, fmt.Errorf("invalid telegram id")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO users (telegram_id, username, first_name, last_name, subscribed, registered_at, last_active)
VALUES ($1, $2, $3, $4, FALSE, NOW(), NOW())
ON CONFLICT (telegram_id) DO UPDATE
SET username = EXCLUDED.username,
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	last_active = NOW()
RETURNING`+userColumns, telegramID, username, firstName, lastName)

	user, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("upsert user: %w", err)
	}

	return user, nil
}

func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return model.User{}, fmt.Errorf("invalid telegram id")
	}

	row := r.pool.QueryRow(ctx, `
SELECT`+userColumns+`
FROM users
WHERE telegram_id = $1
`, telegramID)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func (r *UserRepo) SetSubscribed(ctx context.Context, telegramID int64, subscribed bool) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return fmt.Errorf("invalid telegram id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users SET subscribed = $2, last_active = NOW() WHERE telegram_id = $1
`, telegramID, subscribed)
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepo) TouchActivity(ctx context.Context, telegramID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return fmt.Errorf("invalid telegram id")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users SET last_active = NOW() WHERE telegram_id = $1
`, telegramID); err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}

	return nil
}

func (r *UserRepo) ListSubscribed(ctx context.Context) ([]model.User, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+userColumns+`
FROM users
WHERE subscribed = TRUE
ORDER BY telegram_id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list subscribed users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	return users, nil
}

func (r *UserRepo) CountAll(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (r *UserRepo) CountSubscribed(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE subscribed = TRUE`)
}

func (r *UserRepo) count(ctx context.Context, query string) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var n int
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return n, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Subscribed,
		&user.RegisteredAt,
		&user.LastActive,
	)
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}
