package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
	"github.com/ivankudzin/wolfpost/internal/domain/model"
)

var (
	ErrImageNotFound = errors.New("image not found")

	// ErrAlreadyDecided means the image has already left PENDING. The
	// status guard in Moderate turns every late decision into this
	// error, which callers treat as a no-op.
	ErrAlreadyDecided = errors.New("image already decided")
)

type ImageRepo struct {
	pool *pgxpool.Pool
}

type ImageStats struct {
	Total    int
	Pending  int
	Approved int
	Rejected int
	Blocked  int
}

func NewImageRepo(pool *pgxpool.Pool) *ImageRepo {
	return &ImageRepo{pool: pool}
}

const imageColumns = `
id, file_name, object_key, file_size, mime_type, uploaded_by, status,
uploaded_at, moderated_at, moderated_by, moderation_reason, send_count, last_sent`

func (r *ImageRepo) Create(ctx context.Context, img model.Image) (model.Image, error) {
	if r.pool == nil {
		return model.Image{}, fmt.Errorf("postgres pool is nil")
	}
	if img.UploadedBy <= 0 || img.ObjectKey == "" {
		return model.Image{}, fmt.Errorf("invalid image payload")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO images (
	file_name, object_key, file_size, mime_type, uploaded_by, status, uploaded_at, send_count
) VALUES ($1, $2, $3, $4, $5, 'PENDING', NOW(), 0)
RETURNING`+imageColumns, img.FileName, img.ObjectKey, img.FileSize, img.MimeType, img.UploadedBy)

	created, err := scanImage(row)
	if err != nil {
		return model.Image{}, fmt.Errorf("create image: %w", err)
	}

	return created, nil
}

func (r *ImageRepo) GetByID(ctx context.Context, imageID int64) (model.Image, error) {
	if r.pool == nil {
		return model.Image{}, fmt.Errorf("postgres pool is nil")
	}
	if imageID <= 0 {
		return model.Image{}, fmt.Errorf("invalid image id")
	}

	row := r.pool.QueryRow(ctx, `
SELECT`+imageColumns+`
FROM images
WHERE id = $1
`, imageID)

	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Image{}, ErrImageNotFound
		}
		return model.Image{}, fmt.Errorf("get image by id: %w", err)
	}

	return img, nil
}

// Moderate commits a moderation decision as a single transaction: a
// compare-and-swap on status guarded by status = 'PENDING', plus the
// moderator counter increment. The first committed decision wins; any
// later one gets ErrAlreadyDecided and changes nothing.
func (r *ImageRepo) Moderate(ctx context.Context, imageID, moderatorTGID int64, status enums.ImageStatus, reason *string) (model.Image, error) {
	if r.pool == nil {
		return model.Image{}, fmt.Errorf("postgres pool is nil")
	}
	if imageID <= 0 {
		return model.Image{}, fmt.Errorf("invalid image id")
	}
	if !status.Terminal() {
		return model.Image{}, fmt.Errorf("non-terminal moderation status %q", status)
	}

	var updated model.Image
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var moderatorID int64
		err := tx.QueryRow(ctx, `
SELECT id FROM moderators WHERE telegram_id = $1
`, moderatorTGID).Scan(&moderatorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrModeratorNotFound
			}
			return fmt.Errorf("resolve moderator: %w", err)
		}

		row := tx.QueryRow(ctx, `
UPDATE images
SET status = $2,
	moderated_by = $3,
	moderated_at = NOW(),
	moderation_reason = $4
WHERE id = $1 AND status = 'PENDING'
RETURNING`+imageColumns, imageID, string(status), moderatorTGID, reason)

		updated, err = scanImage(row)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("moderate image: %w", err)
			}

			var exists bool
			if err := tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM images WHERE id = $1)
`, imageID).Scan(&exists); err != nil {
				return fmt.Errorf("check image existence: %w", err)
			}
			if !exists {
				return ErrImageNotFound
			}
			return ErrAlreadyDecided
		}

		if _, err := tx.Exec(ctx, `
UPDATE moderators
SET moderation_count = moderation_count + 1
WHERE id = $1
`, moderatorID); err != nil {
			return fmt.Errorf("increment moderation count: %w", err)
		}

		return nil
	})
	if err != nil {
		return model.Image{}, err
	}

	return updated, nil
}

// AcquireNextApproved atomically selects and marks the next image to
// distribute: never-sent first, then least recently sent, ties broken
// by upload order. FOR UPDATE SKIP LOCKED keeps two concurrent dispatch
// ticks from picking the same row.
func (r *ImageRepo) AcquireNextApproved(ctx context.Context) (model.Image, error) {
	if r.pool == nil {
		return model.Image{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
WITH candidate AS (
	SELECT id
	FROM images
	WHERE status = 'APPROVED'
	ORDER BY last_sent ASC NULLS FIRST, uploaded_at ASC, id ASC
	FOR UPDATE SKIP LOCKED
	LIMIT 1
)
UPDATE images i
SET send_count = i.send_count + 1,
	last_sent = NOW()
FROM candidate
WHERE i.id = candidate.id
RETURNING i.id, i.file_name, i.object_key, i.file_size, i.mime_type, i.uploaded_by, i.status,
	i.uploaded_at, i.moderated_at, i.moderated_by, i.moderation_reason, i.send_count, i.last_sent
`)

	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Image{}, ErrImageNotFound
		}
		return model.Image{}, fmt.Errorf("acquire next approved image: %w", err)
	}

	return img, nil
}

func (r *ImageRepo) ListByStatus(ctx context.Context, status enums.ImageStatus) ([]model.Image, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+imageColumns+`
FROM images
WHERE status = $1
ORDER BY uploaded_at ASC, id ASC
`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list images by status: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}

	return images, nil
}

func (r *ImageRepo) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Image, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT`+imageColumns+`
FROM images
WHERE status = 'PENDING' AND uploaded_at < $1
ORDER BY uploaded_at ASC, id ASC
`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale pending images: %w", err)
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}

	return images, nil
}

func (r *ImageRepo) CountByUploaderSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	var count int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM images
WHERE uploaded_by = $1 AND uploaded_at > $2
`, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count uploads since: %w", err)
	}

	return count, nil
}

func (r *ImageRepo) CountByUploaderAndStatus(ctx context.Context, userID int64, status enums.ImageStatus) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	var count int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM images
WHERE uploaded_by = $1 AND status = $2
`, userID, string(status)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count uploads by status: %w", err)
	}

	return count, nil
}

func (r *ImageRepo) CountByUploader(ctx context.Context, userID int64) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	var count int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM images
WHERE uploaded_by = $1
`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count uploads: %w", err)
	}

	return count, nil
}

func (r *ImageRepo) Stats(ctx context.Context) (ImageStats, error) {
	if r.pool == nil {
		return ImageStats{}, fmt.Errorf("postgres pool is nil")
	}

	var stats ImageStats
	if err := r.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'PENDING'),
	COUNT(*) FILTER (WHERE status = 'APPROVED'),
	COUNT(*) FILTER (WHERE status = 'REJECTED'),
	COUNT(*) FILTER (WHERE status = 'BLOCKED')
FROM images
`).Scan(&stats.Total, &stats.Pending, &stats.Approved, &stats.Rejected, &stats.Blocked); err != nil {
		return ImageStats{}, fmt.Errorf("image stats: %w", err)
	}

	return stats, nil
}

func scanImage(row pgx.Row) (model.Image, error) {
	var (
		img    model.Image
		status string
	)
	err := row.Scan(
		&img.ID,
		&img.FileName,
		&img.ObjectKey,
		&img.FileSize,
		&img.MimeType,
		&img.UploadedBy,
		&status,
		&img.UploadedAt,
		&img.ModeratedAt,
		&img.ModeratedBy,
		&img.ModerationReason,
		&img.SendCount,
		&img.LastSent,
	)
	if err != nil {
		return model.Image{}, err
	}
	img.Status = enums.ImageStatus(status)
	return img, nil
}
