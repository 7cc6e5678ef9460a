package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
)

const dateLayout = "02.01.2006"

type Subscribers interface {
	ListSubscribed(ctx context.Context) ([]model.User, error)
}

type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, data []byte, fileName, caption string) error
}

type Service struct {
	subscribers Subscribers
	sender      Sender
	logger      *zap.Logger
	delay       time.Duration
	now         func() time.Time
}

func NewService(subscribers Subscribers, sender Sender, logger *zap.Logger, delay time.Duration) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		subscribers: subscribers,
		sender:      sender,
		logger:      logger,
		delay:       delay,
		now:         time.Now,
	}
}

// SendImageToUser delivers a single distribution photo. Delivery
// failures are reported, not fatal.
func (s *Service) SendImageToUser(ctx context.Context, userID int64, img model.Image, data []byte) error {
	if s.sender == nil {
		return fmt.Errorf("sender is nil")
	}

	caption := fmt.Sprintf(
		"🐺 <b>Картинка дня!</b>\n\n📅 %s\n💝 Наслаждайтесь!",
		s.now().Format(dateLayout),
	)

	if err := s.sender.SendPhoto(ctx, userID, data, img.FileName, caption); err != nil {
		return fmt.Errorf("send image to user %d: %w", userID, err)
	}

	s.logger.Debug("image delivered",
		zap.Int64("image_id", img.ID),
		zap.Int64("user_id", userID),
	)

	return nil
}

// BroadcastToSubscribers sends the message to every subscriber, pausing
// between sends so the transport rate limit is not tripped. One failed
// recipient does not stop the rest. Returns sent and failed counts.
func (s *Service) BroadcastToSubscribers(ctx context.Context, text string) (sent, failed int, err error) {
	if s.subscribers == nil || s.sender == nil {
		return 0, 0, fmt.Errorf("notify dependencies are not configured")
	}

	recipients, err := s.subscribers.ListSubscribed(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list subscribers: %w", err)
	}

	s.logger.Info("broadcast started", zap.Int("recipients", len(recipients)))

	for i, user := range recipients {
		if err := ctx.Err(); err != nil {
			return sent, failed, err
		}

		if err := s.sender.SendText(ctx, user.TelegramID, text); err != nil {
			s.logger.Error("broadcast delivery failed",
				zap.Int64("user_id", user.TelegramID),
				zap.Error(err),
			)
			failed++
		} else {
			sent++
		}

		if s.delay > 0 && i < len(recipients)-1 {
			select {
			case <-ctx.Done():
				return sent, failed, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	s.logger.Info("broadcast finished", zap.Int("sent", sent), zap.Int("failed", failed))
	return sent, failed, nil
}
