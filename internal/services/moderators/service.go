package moderators

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
)

var (
	ErrNotFound      = errors.New("moderator not found")
	ErrAlreadyExists = errors.New("moderator already exists")
	ErrValidation    = errors.New("validation error")
)

type Store interface {
	Create(ctx context.Context, telegramID int64, username, firstName string) (model.Moderator, error)
	Delete(ctx context.Context, telegramID int64) error
	SetActive(ctx context.Context, telegramID int64, active bool) error
	GetByTelegramID(ctx context.Context, telegramID int64) (model.Moderator, error)
	ListActive(ctx context.Context) ([]model.Moderator, error)
	ListAll(ctx context.Context) ([]model.Moderator, error)
	Stats(ctx context.Context, telegramID int64) (pgrepo.ModeratorStats, error)
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

func (s *Service) Add(ctx context.Context, telegramID int64, username, firstName string) (model.Moderator, error) {
	if s.store == nil {
		return model.Moderator{}, fmt.Errorf("moderator store is nil")
	}
	if telegramID <= 0 {
		return model.Moderator{}, ErrValidation
	}

	mod, err := s.store.Create(ctx, telegramID, username, firstName)
	if err != nil {
		if errors.Is(err, pgrepo.ErrModeratorExists) {
			return model.Moderator{}, ErrAlreadyExists
		}
		return model.Moderator{}, fmt.Errorf("create moderator: %w", err)
	}

	s.logger.Info("moderator added",
		zap.Int64("telegram_id", telegramID),
		zap.String("username", username),
	)

	return mod, nil
}

func (s *Service) Remove(ctx context.Context, telegramID int64) error {
	if s.store == nil {
		return fmt.Errorf("moderator store is nil")
	}
	if telegramID <= 0 {
		return ErrValidation
	}

	if err := s.store.Delete(ctx, telegramID); err != nil {
		if errors.Is(err, pgrepo.ErrModeratorNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete moderator: %w", err)
	}

	s.logger.Info("moderator removed", zap.Int64("telegram_id", telegramID))
	return nil
}

func (s *Service) SetActive(ctx context.Context, telegramID int64, active bool) error {
	if s.store == nil {
		return fmt.Errorf("moderator store is nil")
	}
	if telegramID <= 0 {
		return ErrValidation
	}

	if err := s.store.SetActive(ctx, telegramID, active); err != nil {
		if errors.Is(err, pgrepo.ErrModeratorNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set moderator activity: %w", err)
	}

	s.logger.Info("moderator activity changed",
		zap.Int64("telegram_id", telegramID),
		zap.Bool("active", active),
	)

	return nil
}

func (s *Service) Get(ctx context.Context, telegramID int64) (model.Moderator, error) {
	if s.store == nil {
		return model.Moderator{}, fmt.Errorf("moderator store is nil")
	}
	if telegramID <= 0 {
		return model.Moderator{}, ErrValidation
	}

	mod, err := s.store.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrModeratorNotFound) {
			return model.Moderator{}, ErrNotFound
		}
		return model.Moderator{}, fmt.Errorf("get moderator: %w", err)
	}

	return mod, nil
}

func (s *Service) ListActive(ctx context.Context) ([]model.Moderator, error) {
	if s.store == nil {
		return nil, fmt.Errorf("moderator store is nil")
	}
	return s.store.ListActive(ctx)
}

func (s *Service) ListAll(ctx context.Context) ([]model.Moderator, error) {
	if s.store == nil {
		return nil, fmt.Errorf("moderator store is nil")
	}
	return s.store.ListAll(ctx)
}

func (s *Service) Stats(ctx context.Context, telegramID int64) (pgrepo.ModeratorStats, error) {
	if s.store == nil {
		return pgrepo.ModeratorStats{}, fmt.Errorf("moderator store is nil")
	}
	if telegramID <= 0 {
		return pgrepo.ModeratorStats{}, ErrValidation
	}

	stats, err := s.store.Stats(ctx, telegramID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrModeratorNotFound) {
			return pgrepo.ModeratorStats{}, ErrNotFound
		}
		return pgrepo.ModeratorStats{}, fmt.Errorf("moderator stats: %w", err)
	}

	return stats, nil
}

// ExportCSV streams the whole roster as CSV for offline review.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	if s.store == nil {
		return fmt.Errorf("moderator store is nil")
	}
	if w == nil {
		return ErrValidation
	}

	roster, err := s.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list moderators: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"telegram_id", "username", "first_name", "active", "added_at", "moderation_count"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, mod := range roster {
		record := []string{
			strconv.FormatInt(mod.TelegramID, 10),
			mod.Username,
			mod.FirstName,
			strconv.FormatBool(mod.Active),
			mod.AddedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(mod.ModerationCount),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return nil
}
