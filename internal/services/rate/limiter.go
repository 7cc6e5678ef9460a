package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
)

const uploadHourWindow = time.Hour

// ErrQuotaExceeded matches any QuotaError via errors.Is.
var ErrQuotaExceeded = errors.New("upload quota exceeded")

type QuotaKind string

const (
	QuotaHourly  QuotaKind = "hourly"
	QuotaPending QuotaKind = "pending"
)

// QuotaError reports which arm of the upload quota blocked the request.
type QuotaError struct {
	Kind       QuotaKind
	Limit      int
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("upload quota exceeded: %s limit %d", e.Kind, e.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

type WindowStore interface {
	ChargeUpload(ctx context.Context, userID int64, window time.Duration) (int64, time.Duration, error)
	UploadState(ctx context.Context, userID int64) (int64, time.Duration, error)
}

type PendingCounter interface {
	CountByUploaderAndStatus(ctx context.Context, uploaderID int64, status enums.ImageStatus) (int, error)
}

type Limiter struct {
	store      WindowStore
	pending    PendingCounter
	perHour    int
	maxPending int
}

func NewLimiter(store WindowStore, pending PendingCounter, perHour, maxPending int) *Limiter {
	if perHour < 0 {
		perHour = 0
	}
	if maxPending < 0 {
		maxPending = 0
	}

	return &Limiter{
		store:      store,
		pending:    pending,
		perHour:    perHour,
		maxPending: maxPending,
	}
}

// CheckUpload checks the pending backlog and then charges one upload
// against the hourly window. The backlog arm goes first so a blocked
// backlog does not burn window slots.
func (l *Limiter) CheckUpload(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return fmt.Errorf("rate limiter store is nil")
	}
	if l.pending == nil {
		return fmt.Errorf("rate limiter pending counter is nil")
	}

	if l.maxPending > 0 {
		pending, err := l.pending.CountByUploaderAndStatus(ctx, userID, enums.ImageStatusPending)
		if err != nil {
			return err
		}
		if pending >= l.maxPending {
			return &QuotaError{Kind: QuotaPending, Limit: l.maxPending}
		}
	}

	if l.perHour > 0 {
		count, ttl, err := l.store.ChargeUpload(ctx, userID, uploadHourWindow)
		if err != nil {
			return err
		}
		if count > int64(l.perHour) {
			return &QuotaError{Kind: QuotaHourly, Limit: l.perHour, RetryAfter: ttl}
		}
	}

	return nil
}

// RetryAfterUpload reports how long the user has to wait before the
// hourly window frees a slot, without charging an upload.
func (l *Limiter) RetryAfterUpload(ctx context.Context, userID int64) (time.Duration, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}
	if l.perHour <= 0 {
		return 0, nil
	}

	count, ttl, err := l.store.UploadState(ctx, userID)
	if err != nil {
		return 0, err
	}
	if count >= int64(l.perHour) {
		return ttl, nil
	}

	return 0, nil
}
