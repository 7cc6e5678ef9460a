package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
)

var (
	ErrModeratorNotFound = errors.New("moderator not found")
	ErrModeratorExists   = errors.New("moderator already exists")
)

type ModeratorRepo struct {
	pool *pgxpool.Pool
}

type ModeratorStats struct {
	TotalDecisions int
	Approved       int
	Rejected       int
	Blocked        int
}

func NewModeratorRepo(pool *pgxpool.Pool) *ModeratorRepo {
	return &ModeratorRepo{pool: pool}
}

const moderatorColumns = `
id, telegram_id, username, first_name, active, added_at, moderation_count`

func (r *ModeratorRepo) Create(ctx context.Context, telegramID int64, username, firstName string) (model.Moderator, error) {
	if r.pool == nil {
		return model.Moderator{}, fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return model.Moderator{}, fmt.Errorf("invalid telegram id")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO moderators (telegram_id, username, first_name, active, added_at, moderation_count)
VALUES ($1, $2, $3, TRUE, NOW(), 0)
RETURNING`+moderatorColumns, telegramID, username, firstName)

	mod, err := scanModerator(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Moderator{}, ErrModeratorExists
		}
		return model.Moderator{}, fmt.Errorf("create moderator: %w", err)
	}

	return mod, nil
}

func (r *ModeratorRepo) Delete(ctx context.Context, telegramID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return fmt.Errorf("invalid telegram id")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM moderators WHERE telegram_id = $1
`, telegramID)
	if err != nil {
		return fmt.Errorf("delete moderator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrModeratorNotFound
	}

	return nil
}

func (r *ModeratorRepo) SetActive(ctx context.Context, telegramID int64, active bool) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return fmt.Errorf("invalid telegram id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE moderators SET active = $2 WHERE telegram_id = $1
`, telegramID, active)
	if err != nil {
		return fmt.Errorf("set moderator active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrModeratorNotFound
	}

	return nil
}

func (r *ModeratorRepo) GetByTelegramID(ctx context.Context, telegramID int64) (model.Moderator, error) {
	if r.pool == nil {
		return model.Moderator{}, fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return model.Moderator{}, fmt.Errorf("invalid telegram id")
	}

	row := r.pool.QueryRow(ctx, `
SELECT`+moderatorColumns+`
FROM moderators
WHERE telegram_id = $1
`, telegramID)

	mod, err := scanModerator(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Moderator{}, ErrModeratorNotFound
		}
		return model.Moderator{}, fmt.Errorf("get moderator: %w", err)
	}

	return mod, nil
}

// ListActive returns the broadcast group for the fan-out. The roster is
// computed at call time, so deactivation takes effect immediately.
func (r *ModeratorRepo) ListActive(ctx context.Context) ([]model.Moderator, error) {
	return r.list(ctx, `
SELECT`+moderatorColumns+`
FROM moderators
WHERE active = TRUE
ORDER BY added_at DESC, id DESC
`)
}

func (r *ModeratorRepo) ListAll(ctx context.Context) ([]model.Moderator, error) {
	return r.list(ctx, `
SELECT`+moderatorColumns+`
FROM moderators
ORDER BY added_at DESC, id DESC
`)
}

func (r *ModeratorRepo) CountActive(ctx context.Context) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var count int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM moderators WHERE active = TRUE
`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active moderators: %w", err)
	}

	return count, nil
}

func (r *ModeratorRepo) Stats(ctx context.Context, telegramID int64) (ModeratorStats, error) {
	if r.pool == nil {
		return ModeratorStats{}, fmt.Errorf("postgres pool is nil")
	}
	if telegramID <= 0 {
		return ModeratorStats{}, fmt.Errorf("invalid telegram id")
	}

	var stats ModeratorStats
	if err := r.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'APPROVED'),
	COUNT(*) FILTER (WHERE status = 'REJECTED'),
	COUNT(*) FILTER (WHERE status = 'BLOCKED')
FROM images
WHERE moderated_by = $1
`, telegramID).Scan(&stats.TotalDecisions, &stats.Approved, &stats.Rejected, &stats.Blocked); err != nil {
		return ModeratorStats{}, fmt.Errorf("moderator stats: %w", err)
	}

	return stats, nil
}

func (r *ModeratorRepo) list(ctx context.Context, query string) ([]model.Moderator, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list moderators: %w", err)
	}
	defer rows.Close()

	var moderators []model.Moderator
	for rows.Next() {
		mod, err := scanModerator(rows)
		if err != nil {
			return nil, fmt.Errorf("scan moderator row: %w", err)
		}
		moderators = append(moderators, mod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderator rows: %w", err)
	}

	return moderators, nil
}

func scanModerator(row pgx.Row) (model.Moderator, error) {
	var mod model.Moderator
	err := row.Scan(
		&mod.ID,
		&mod.TelegramID,
		&mod.Username,
		&mod.FirstName,
		&mod.Active,
		&mod.AddedAt,
		&mod.ModerationCount,
	)
	if err != nil {
		return model.Moderator{}, err
	}
	return mod, nil
}
