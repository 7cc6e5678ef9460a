package schedules

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
)

type storeStub struct {
	active  map[int64]model.Schedule
	created []model.Schedule
}

func newStoreStub() *storeStub {
	return &storeStub{active: map[int64]model.Schedule{}}
}

func (s *storeStub) CreateReplacingActive(_ context.Context, userID int64, cronExpr, description string) (model.Schedule, error) {
	schedule := model.Schedule{
		ID:          int64(len(s.created) + 1),
		UserID:      userID,
		CronExpr:    cronExpr,
		Description: description,
		Active:      true,
		CreatedAt:   time.Now(),
	}
	s.active[userID] = schedule
	s.created = append(s.created, schedule)
	return schedule, nil
}

func (s *storeStub) ListActive(_ context.Context) ([]model.Schedule, error) {
	var out []model.Schedule
	for _, schedule := range s.active {
		out = append(out, schedule)
	}
	return out, nil
}

func (s *storeStub) GetActiveByUser(_ context.Context, userID int64) (model.Schedule, error) {
	schedule, ok := s.active[userID]
	if !ok {
		return model.Schedule{}, pgrepo.ErrScheduleNotFound
	}
	return schedule, nil
}

func (s *storeStub) Deactivate(_ context.Context, _ int64) error { return nil }

func (s *storeStub) DeactivateByUser(_ context.Context, userID int64) error {
	delete(s.active, userID)
	return nil
}

func (s *storeStub) MarkExecuted(_ context.Context, _ int64) error { return nil }

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := NewService(newStoreStub(), zap.NewNop())

	_, err := svc.Create(context.Background(), 42, "every_5m")
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestCreateCustomValidatesExpression(t *testing.T) {
	svc := NewService(newStoreStub(), zap.NewNop())

	_, err := svc.CreateCustom(context.Background(), 42, "not a cron", "сломанное")
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}

	created, err := svc.CreateCustom(context.Background(), 42, "0 30 8 * * MON", "по понедельникам")
	if err != nil {
		t.Fatalf("valid custom schedule: %v", err)
	}
	if created.CronExpr != "0 30 8 * * MON" {
		t.Fatalf("unexpected stored expression: %q", created.CronExpr)
	}
}

func TestCreateReplacesActiveSchedule(t *testing.T) {
	store := newStoreStub()
	svc := NewService(store, zap.NewNop())

	if _, err := svc.Create(context.Background(), 42, "daily_9"); err != nil {
		t.Fatalf("first schedule: %v", err)
	}
	if _, err := svc.Create(context.Background(), 42, "hourly"); err != nil {
		t.Fatalf("second schedule: %v", err)
	}

	active, err := store.GetActiveByUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.CronExpr != predefined["hourly"] {
		t.Fatalf("expected hourly expression active, got %q", active.CronExpr)
	}
}

func TestCreateDefaultKeepsExistingSchedule(t *testing.T) {
	store := newStoreStub()
	svc := NewService(store, zap.NewNop())

	first, err := svc.Create(context.Background(), 42, "daily_18")
	if err != nil {
		t.Fatalf("explicit schedule: %v", err)
	}

	got, err := svc.CreateDefault(context.Background(), 42)
	if err != nil {
		t.Fatalf("create default: %v", err)
	}
	if got.CronExpr != first.CronExpr {
		t.Fatalf("default must not replace an existing schedule, got %q", got.CronExpr)
	}

	fresh, err := svc.CreateDefault(context.Background(), 77)
	if err != nil {
		t.Fatalf("create default for fresh user: %v", err)
	}
	if fresh.CronExpr != predefined[DefaultType] {
		t.Fatalf("expected default expression, got %q", fresh.CronExpr)
	}
}

func TestIsDueAfterScheduledFire(t *testing.T) {
	svc := NewService(newStoreStub(), zap.NewNop())

	yesterdayNoon := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	schedule := model.Schedule{
		ID:           1,
		CronExpr:     "0 0 12 * * ?",
		LastExecuted: &yesterdayNoon,
	}

	if !svc.IsDue(schedule, time.Date(2024, 5, 2, 12, 1, 0, 0, time.UTC)) {
		t.Fatalf("expected due one minute after the fire time")
	}
	if svc.IsDue(schedule, time.Date(2024, 5, 2, 11, 59, 0, 0, time.UTC)) {
		t.Fatalf("expected not due one minute before the fire time")
	}
}

func TestIsDueNeverExecutedUsesLookback(t *testing.T) {
	svc := NewService(newStoreStub(), zap.NewNop())

	schedule := model.Schedule{ID: 1, CronExpr: "0 0 12 * * ?"}

	if !svc.IsDue(schedule, time.Date(2024, 5, 2, 12, 0, 30, 0, time.UTC)) {
		t.Fatalf("expected due within a minute of the fire time")
	}
	if svc.IsDue(schedule, time.Date(2024, 5, 2, 12, 5, 0, 0, time.UTC)) {
		t.Fatalf("expected not due once the lookback window passed")
	}
}

func TestIsDueUnparseableExpression(t *testing.T) {
	svc := NewService(newStoreStub(), zap.NewNop())

	schedule := model.Schedule{ID: 1, CronExpr: "garbage"}
	if svc.IsDue(schedule, time.Now()) {
		t.Fatalf("unparseable expression must never be due")
	}
}

func TestPredefinedExpressionsParse(t *testing.T) {
	for name, expr := range predefined {
		if !Validate(expr) {
			t.Fatalf("predefined schedule %q has invalid expression %q", name, expr)
		}
	}
}
