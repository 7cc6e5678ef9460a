package users

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrValidation = errors.New("validation error")
)

type Store interface {
	Upsert(ctx context.Context, telegramID int64, username, firstName, lastName string) (model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error)
	SetSubscribed(ctx context.Context, telegramID int64, subscribed bool) error
	TouchActivity(ctx context.Context, telegramID int64) error
	ListSubscribed(ctx context.Context) ([]model.User, error)
	CountAll(ctx context.Context) (int, error)
	CountSubscribed(ctx context.Context) (int, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{store: store, logger: logger}
}

// FindOrCreate registers the user on first contact and refreshes the
// profile fields on every later one.
func (s *Service) FindOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (model.User, error) {
	if s.store == nil {
		return model.User{}, fmt.Errorf("user store is nil")
	}
	if telegramID <= 0 {
		return model.User{}, ErrValidation
	}

	return s.store.Upsert(ctx, telegramID, username, firstName, lastName)
}

func (s *Service) Get(ctx context.Context, telegramID int64) (model.User, error) {
	if s.store == nil {
		return model.User{}, fmt.Errorf("user store is nil")
	}
	if telegramID <= 0 {
		return model.User{}, ErrValidation
	}

	user, err := s.store.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func (s *Service) Subscribe(ctx context.Context, telegramID int64) error {
	return s.setSubscribed(ctx, telegramID, true)
}

func (s *Service) Unsubscribe(ctx context.Context, telegramID int64) error {
	return s.setSubscribed(ctx, telegramID, false)
}

func (s *Service) setSubscribed(ctx context.Context, telegramID int64, subscribed bool) error {
	if s.store == nil {
		return fmt.Errorf("user store is nil")
	}
	if telegramID <= 0 {
		return ErrValidation
	}

	if err := s.store.SetSubscribed(ctx, telegramID, subscribed); err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set subscription: %w", err)
	}

	s.logger.Info("subscription changed",
		zap.Int64("telegram_id", telegramID),
		zap.Bool("subscribed", subscribed),
	)

	return nil
}

// UpdateActivity failures are deliberately swallowed: activity is a
// best-effort signal.
func (s *Service) UpdateActivity(ctx context.Context, telegramID int64) {
	if s.store == nil || telegramID <= 0 {
		return
	}
	if err := s.store.TouchActivity(ctx, telegramID); err != nil {
		s.logger.Warn("touch activity failed", zap.Int64("telegram_id", telegramID), zap.Error(err))
	}
}

func (s *Service) ListSubscribed(ctx context.Context) ([]model.User, error) {
	if s.store == nil {
		return nil, fmt.Errorf("user store is nil")
	}
	return s.store.ListSubscribed(ctx)
}

func (s *Service) Counts(ctx context.Context) (total, subscribed int, err error) {
	if s.store == nil {
		return 0, 0, fmt.Errorf("user store is nil")
	}

	total, err = s.store.CountAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count users: %w", err)
	}
	subscribed, err = s.store.CountSubscribed(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count subscribed users: %w", err)
	}

	return total, subscribed, nil
}
