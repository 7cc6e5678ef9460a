package schedules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
)

var (
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrUnknownType     = errors.New("unknown schedule type")
	ErrNotFound        = errors.New("schedule not found")
)

// DefaultType is assigned to fresh subscribers who never picked one.
const DefaultType = "daily_12"

// Six-field expressions with a seconds column, ? allowed in day fields.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var predefined = map[string]string{
	"daily_9":     "0 0 9 * * ?",
	"daily_12":    "0 0 12 * * ?",
	"daily_18":    "0 0 18 * * ?",
	"workdays":    "0 0 12 * * MON-FRI",
	"weekends":    "0 0 10 * * SAT,SUN",
	"twice_daily": "0 0 9,18 * * ?",
	"hourly":      "0 0 * * * ?",
	"every_2h":    "0 0 */2 * * ?",
}

var descriptions = map[string]string{
	"daily_9":     "Каждый день в 9:00",
	"daily_12":    "Каждый день в 12:00",
	"daily_18":    "Каждый день в 18:00",
	"workdays":    "Рабочие дни (Пн-Пт) в 12:00",
	"weekends":    "Выходные (Сб-Вс) в 10:00",
	"twice_daily": "Два раза в день (9:00 и 18:00)",
	"hourly":      "Каждый час",
	"every_2h":    "Каждые 2 часа",
}

type Store interface {
	CreateReplacingActive(ctx context.Context, userID int64, cronExpr, description string) (model.Schedule, error)
	ListActive(ctx context.Context) ([]model.Schedule, error)
	GetActiveByUser(ctx context.Context, userID int64) (model.Schedule, error)
	Deactivate(ctx context.Context, scheduleID int64) error
	DeactivateByUser(ctx context.Context, userID int64) error
	MarkExecuted(ctx context.Context, scheduleID int64) error
}

type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Create activates a predefined schedule for the user, replacing any
// earlier active one.
func (s *Service) Create(ctx context.Context, userID int64, scheduleType string) (model.Schedule, error) {
	if s.store == nil {
		return model.Schedule{}, fmt.Errorf("schedule store is nil")
	}

	expr, ok := predefined[scheduleType]
	if !ok {
		return model.Schedule{}, ErrUnknownType
	}

	created, err := s.store.CreateReplacingActive(ctx, userID, expr, descriptions[scheduleType])
	if err != nil {
		return model.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}

	s.logger.Info("schedule created",
		zap.Int64("user_id", userID),
		zap.String("type", scheduleType),
		zap.String("cron", expr),
	)

	return created, nil
}

// CreateCustom activates a user-supplied cron expression after
// validating it.
func (s *Service) CreateCustom(ctx context.Context, userID int64, cronExpr, description string) (model.Schedule, error) {
	if s.store == nil {
		return model.Schedule{}, fmt.Errorf("schedule store is nil")
	}

	cronExpr = strings.TrimSpace(cronExpr)
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return model.Schedule{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	created, err := s.store.CreateReplacingActive(ctx, userID, cronExpr, description)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("create custom schedule: %w", err)
	}

	s.logger.Info("custom schedule created",
		zap.Int64("user_id", userID),
		zap.String("cron", cronExpr),
	)

	return created, nil
}

// CreateDefault gives a new subscriber the default schedule unless one
// is already active.
func (s *Service) CreateDefault(ctx context.Context, userID int64) (model.Schedule, error) {
	if s.store == nil {
		return model.Schedule{}, fmt.Errorf("schedule store is nil")
	}

	if existing, err := s.store.GetActiveByUser(ctx, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, pgrepo.ErrScheduleNotFound) {
		return model.Schedule{}, fmt.Errorf("lookup active schedule: %w", err)
	}

	return s.Create(ctx, userID, DefaultType)
}

func (s *Service) ActiveForUser(ctx context.Context, userID int64) (model.Schedule, error) {
	if s.store == nil {
		return model.Schedule{}, fmt.Errorf("schedule store is nil")
	}

	schedule, err := s.store.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrScheduleNotFound) {
			return model.Schedule{}, ErrNotFound
		}
		return model.Schedule{}, fmt.Errorf("get active schedule: %w", err)
	}

	return schedule, nil
}

func (s *Service) ListActive(ctx context.Context) ([]model.Schedule, error) {
	if s.store == nil {
		return nil, fmt.Errorf("schedule store is nil")
	}
	return s.store.ListActive(ctx)
}

func (s *Service) DeactivateForUser(ctx context.Context, userID int64) error {
	if s.store == nil {
		return fmt.Errorf("schedule store is nil")
	}
	return s.store.DeactivateByUser(ctx, userID)
}

func (s *Service) MarkExecuted(ctx context.Context, scheduleID int64) error {
	if s.store == nil {
		return fmt.Errorf("schedule store is nil")
	}
	return s.store.MarkExecuted(ctx, scheduleID)
}

// IsDue reports whether the schedule has a fire time that already
// passed. A schedule that never fired is checked against a one minute
// lookback so the fire landing exactly on the current tick counts.
func (s *Service) IsDue(schedule model.Schedule, now time.Time) bool {
	parsed, err := cronParser.Parse(schedule.CronExpr)
	if err != nil {
		s.logger.Error("unparseable cron expression on stored schedule",
			zap.Int64("schedule_id", schedule.ID),
			zap.String("cron", schedule.CronExpr),
			zap.Error(err),
		)
		return false
	}

	from := now.Add(-time.Minute)
	if schedule.LastExecuted != nil {
		from = *schedule.LastExecuted
	}

	next := parsed.Next(from)
	return !next.IsZero() && !next.After(now)
}

// NextExecution returns the next fire time after now, or zero when the
// expression cannot be parsed.
func (s *Service) NextExecution(schedule model.Schedule, now time.Time) time.Time {
	parsed, err := cronParser.Parse(schedule.CronExpr)
	if err != nil {
		return time.Time{}
	}
	return parsed.Next(now)
}

// Validate reports whether the expression is an acceptable schedule.
func Validate(cronExpr string) bool {
	_, err := cronParser.Parse(strings.TrimSpace(cronExpr))
	return err == nil
}

// AvailableTypes lists the predefined schedule types with their
// human-readable descriptions.
func AvailableTypes() map[string]string {
	out := make(map[string]string, len(descriptions))
	for k, v := range descriptions {
		out[k] = v
	}
	return out
}
