package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
	"github.com/ivankudzin/wolfpost/internal/domain/model"
	imagesvc "github.com/ivankudzin/wolfpost/internal/services/images"
)

type schedulesStub struct {
	active []model.Schedule
	due    map[int64]bool
	marked []int64
}

func (s *schedulesStub) ListActive(_ context.Context) ([]model.Schedule, error) {
	return s.active, nil
}

func (s *schedulesStub) IsDue(schedule model.Schedule, _ time.Time) bool {
	return s.due[schedule.ID]
}

func (s *schedulesStub) MarkExecuted(_ context.Context, scheduleID int64) error {
	s.marked = append(s.marked, scheduleID)
	return nil
}

type imagesStub struct {
	img       model.Image
	selectErr error
	selected  int
}

func (s *imagesStub) SelectNextImage(_ context.Context) (model.Image, error) {
	if s.selectErr != nil {
		return model.Image{}, s.selectErr
	}
	s.selected++
	return s.img, nil
}

func (s *imagesStub) Payload(_ context.Context, _ model.Image) ([]byte, error) {
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

type delivererStub struct {
	delivered map[int64]int
	failFor   map[int64]bool
}

func newDelivererStub() *delivererStub {
	return &delivererStub{delivered: map[int64]int{}, failFor: map[int64]bool{}}
}

func (s *delivererStub) SendImageToUser(_ context.Context, userID int64, _ model.Image, _ []byte) error {
	if s.failFor[userID] {
		return fmt.Errorf("chat %d unreachable", userID)
	}
	s.delivered[userID]++
	return nil
}

func TestRunDeliversToDueSchedulesOnly(t *testing.T) {
	schedules := &schedulesStub{
		active: []model.Schedule{
			{ID: 1, UserID: 100},
			{ID: 2, UserID: 200},
		},
		due: map[int64]bool{1: true},
	}
	images := &imagesStub{img: model.Image{ID: 5, Status: enums.ImageStatusApproved}}
	deliverer := newDelivererStub()

	job := New(schedules, images, deliverer, zap.NewNop())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if deliverer.delivered[100] != 1 {
		t.Fatalf("expected delivery to due schedule user, got %v", deliverer.delivered)
	}
	if deliverer.delivered[200] != 0 {
		t.Fatalf("expected no delivery to idle schedule user, got %v", deliverer.delivered)
	}
	if len(schedules.marked) != 1 || schedules.marked[0] != 1 {
		t.Fatalf("expected only the served schedule marked, got %v", schedules.marked)
	}
}

func TestRunLeavesScheduleUnmarkedOnEmptyPool(t *testing.T) {
	schedules := &schedulesStub{
		active: []model.Schedule{{ID: 1, UserID: 100}},
		due:    map[int64]bool{1: true},
	}
	images := &imagesStub{selectErr: imagesvc.ErrNoApprovedImages}
	deliverer := newDelivererStub()

	job := New(schedules, images, deliverer, zap.NewNop())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run with empty pool: %v", err)
	}

	if len(schedules.marked) != 0 {
		t.Fatalf("empty pool must not consume the fire, marked: %v", schedules.marked)
	}
	if len(deliverer.delivered) != 0 {
		t.Fatalf("expected no deliveries, got %v", deliverer.delivered)
	}
}

func TestRunIsolatesFailingSchedule(t *testing.T) {
	schedules := &schedulesStub{
		active: []model.Schedule{
			{ID: 1, UserID: 100},
			{ID: 2, UserID: 200},
			{ID: 3, UserID: 300},
		},
		due: map[int64]bool{1: true, 2: true, 3: true},
	}
	images := &imagesStub{img: model.Image{ID: 5, Status: enums.ImageStatusApproved}}
	deliverer := newDelivererStub()
	deliverer.failFor[200] = true

	job := New(schedules, images, deliverer, zap.NewNop())
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if deliverer.delivered[100] != 1 || deliverer.delivered[300] != 1 {
		t.Fatalf("expected healthy schedules served, got %v", deliverer.delivered)
	}
	if len(schedules.marked) != 2 {
		t.Fatalf("failed schedule must stay unmarked, marked: %v", schedules.marked)
	}
	for _, id := range schedules.marked {
		if id == 2 {
			t.Fatalf("failed schedule 2 must not be marked executed")
		}
	}
}
