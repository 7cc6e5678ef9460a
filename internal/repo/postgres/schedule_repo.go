package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
)

var ErrScheduleNotFound = errors.New("schedule not found")

type ScheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

const scheduleColumns = `
id, user_id, cron_expr, description, active, created_at, last_executed, execution_count`

// CreateReplacingActive inserts a new active schedule and deactivates
// every prior schedule of the user in the same transaction, keeping the
// one-active-schedule-per-user invariant.
func (r *ScheduleRepo) CreateReplacingActive(ctx context.Context, userID int64, cronExpr, description string) (model.Schedule, error) {
	if r.pool == nil {
		return model.Schedule{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || cronExpr == "" {
		return model.Schedule{}, fmt.Errorf("invalid schedule payload")
	}

	var created model.Schedule
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
UPDATE schedules SET active = FALSE WHERE user_id = $1 AND active = TRUE
`, userID); err != nil {
			return fmt.Errorf("deactivate prior schedules: %w", err)
		}

		row := tx.QueryRow(ctx, `
INSERT INTO schedules (user_id, cron_expr, description, active, created_at, execution_count)
VALUES ($1, $2, $3, TRUE, NOW(), 0)
RETURNING`+scheduleColumns, userID, cronExpr, description)

		var err error
		created, err = scanSchedule(row)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Schedule{}, err
	}

	return created, nil
}

func (r *ScheduleRepo) ListActive(ctx context.Context) ([]model.Schedule, error) {
	return r.list(ctx, `
SELECT`+scheduleColumns+`
FROM schedules
WHERE active = TRUE
ORDER BY id ASC
`)
}

func (r *ScheduleRepo) ListByUser(ctx context.Context, userID int64) ([]model.Schedule, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}
	return r.list(ctx, `
SELECT`+scheduleColumns+`
FROM schedules
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
`, userID)
}

func (r *ScheduleRepo) GetActiveByUser(ctx context.Context, userID int64) (model.Schedule, error) {
	if r.pool == nil {
		return model.Schedule{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return model.Schedule{}, fmt.Errorf("invalid user id")
	}

	row := r.pool.QueryRow(ctx, `
SELECT`+scheduleColumns+`
FROM schedules
WHERE user_id = $1 AND active = TRUE
ORDER BY created_at DESC, id DESC
LIMIT 1
`, userID)

	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Schedule{}, ErrScheduleNotFound
		}
		return model.Schedule{}, fmt.Errorf("get active schedule: %w", err)
	}

	return schedule, nil
}

func (r *ScheduleRepo) Deactivate(ctx context.Context, scheduleID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if scheduleID <= 0 {
		return fmt.Errorf("invalid schedule id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE schedules SET active = FALSE WHERE id = $1
`, scheduleID)
	if err != nil {
		return fmt.Errorf("deactivate schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}

	return nil
}

func (r *ScheduleRepo) DeactivateByUser(ctx context.Context, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE schedules SET active = FALSE WHERE user_id = $1 AND active = TRUE
`, userID); err != nil {
		return fmt.Errorf("deactivate user schedules: %w", err)
	}

	return nil
}

func (r *ScheduleRepo) MarkExecuted(ctx context.Context, scheduleID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if scheduleID <= 0 {
		return fmt.Errorf("invalid schedule id")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE schedules
SET last_executed = NOW(),
	execution_count = execution_count + 1
WHERE id = $1
`, scheduleID)
	if err != nil {
		return fmt.Errorf("mark schedule executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}

	return nil
}

func (r *ScheduleRepo) list(ctx context.Context, query string, args ...any) ([]model.Schedule, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []model.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule row: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule rows: %w", err)
	}

	return schedules, nil
}

func scanSchedule(row pgx.Row) (model.Schedule, error) {
	var schedule model.Schedule
	err := row.Scan(
		&schedule.ID,
		&schedule.UserID,
		&schedule.CronExpr,
		&schedule.Description,
		&schedule.Active,
		&schedule.CreatedAt,
		&schedule.LastExecuted,
		&schedule.ExecutionCount,
	)
	if err != nil {
		return model.Schedule{}, err
	}
	return schedule, nil
}
