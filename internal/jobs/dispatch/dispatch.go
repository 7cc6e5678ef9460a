package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
	imagesvc "github.com/ivankudzin/wolfpost/internal/services/images"
)

type Schedules interface {
	ListActive(ctx context.Context) ([]model.Schedule, error)
	IsDue(schedule model.Schedule, now time.Time) bool
	MarkExecuted(ctx context.Context, scheduleID int64) error
}

type Images interface {
	SelectNextImage(ctx context.Context) (model.Image, error)
	Payload(ctx context.Context, img model.Image) ([]byte, error)
}

type Deliverer interface {
	SendImageToUser(ctx context.Context, userID int64, img model.Image, data []byte) error
}

// Job walks the active schedules once per tick and delivers the next
// approved image to everyone whose schedule fired.
type Job struct {
	schedules Schedules
	images    Images
	deliverer Deliverer
	now       func() time.Time
	logger    *zap.Logger
}

func New(schedules Schedules, images Images, deliverer Deliverer, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		schedules: schedules,
		images:    images,
		deliverer: deliverer,
		now:       time.Now,
		logger:    logger,
	}
}

// Run performs a single dispatch pass. A failure on one schedule is
// logged and does not stop the others. Schedules that could not be
// served keep their last_executed untouched and fire again next tick.
func (j *Job) Run(ctx context.Context) error {
	if j.schedules == nil || j.images == nil || j.deliverer == nil {
		return fmt.Errorf("dispatch dependencies are not configured")
	}

	active, err := j.schedules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active schedules: %w", err)
	}

	now := j.now()
	for _, schedule := range active {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !j.schedules.IsDue(schedule, now) {
			continue
		}

		if err := j.dispatchOne(ctx, schedule); err != nil {
			j.logger.Error("dispatch failed for schedule",
				zap.Int64("schedule_id", schedule.ID),
				zap.Int64("user_id", schedule.UserID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (j *Job) dispatchOne(ctx context.Context, schedule model.Schedule) error {
	img, err := j.images.SelectNextImage(ctx)
	if err != nil {
		if errors.Is(err, imagesvc.ErrNoApprovedImages) {
			j.logger.Warn("no approved images to dispatch",
				zap.Int64("schedule_id", schedule.ID),
			)
			return nil
		}
		return fmt.Errorf("select next image: %w", err)
	}

	data, err := j.images.Payload(ctx, img)
	if err != nil {
		return fmt.Errorf("fetch image payload: %w", err)
	}

	if err := j.deliverer.SendImageToUser(ctx, schedule.UserID, img, data); err != nil {
		return fmt.Errorf("deliver image: %w", err)
	}

	if err := j.schedules.MarkExecuted(ctx, schedule.ID); err != nil {
		return fmt.Errorf("mark schedule executed: %w", err)
	}

	j.logger.Info("scheduled image delivered",
		zap.Int64("schedule_id", schedule.ID),
		zap.Int64("user_id", schedule.UserID),
		zap.Int64("image_id", img.ID),
	)

	return nil
}
