package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
)

const timestampLayout = "02.01.2006 15:04"

type PendingLister interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]model.Image, error)
}

type ModeratorLister interface {
	ListActive(ctx context.Context) ([]model.Moderator, error)
}

type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Job nudges the active moderators about the pending backlog. A zero
// staleAge covers every pending image; a positive one narrows the nudge
// to images that sat unreviewed at least that long.
type Job struct {
	pending    PendingLister
	moderators ModeratorLister
	sender     Sender
	staleAge   time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func New(pending PendingLister, moderators ModeratorLister, sender Sender, staleAge time.Duration, logger *zap.Logger) *Job {
	if staleAge < 0 {
		staleAge = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		pending:    pending,
		moderators: moderators,
		sender:     sender,
		staleAge:   staleAge,
		now:        time.Now,
		logger:     logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	if j.pending == nil || j.moderators == nil || j.sender == nil {
		return fmt.Errorf("reminder dependencies are not configured")
	}

	cutoff := j.now().Add(-j.staleAge)
	stale, err := j.pending.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list stale pending images: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	roster, err := j.moderators.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active moderators: %w", err)
	}
	if len(roster) == 0 {
		j.logger.Warn("no active moderators to remind", zap.Int("pending", len(stale)))
		return nil
	}

	oldest := stale[0].UploadedAt
	for _, img := range stale[1:] {
		if img.UploadedAt.Before(oldest) {
			oldest = img.UploadedAt
		}
	}

	text := fmt.Sprintf(
		"⏰ <b>Напоминание о модерации</b>\n\n"+
			"📸 Ожидает модерации: %d изображений\n"+
			"🕐 Самое старое загружено: %s\n\n"+
			"Пожалуйста, проверьте новые изображения в боте.",
		len(stale),
		oldest.Format(timestampLayout),
	)

	notified := 0
	for _, mod := range roster {
		if err := j.sender.SendText(ctx, mod.TelegramID, text); err != nil {
			j.logger.Error("reminder delivery failed",
				zap.Int64("moderator_id", mod.TelegramID),
				zap.Error(err),
			)
			continue
		}
		notified++
	}

	j.logger.Info("moderation reminder sent",
		zap.Int("pending", len(stale)),
		zap.Int("moderators", notified),
	)

	return nil
}
