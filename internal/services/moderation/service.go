package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
	"github.com/ivankudzin/wolfpost/internal/domain/model"
	pgrepo "github.com/ivankudzin/wolfpost/internal/repo/postgres"
)

var (
	ErrImageNotFound  = errors.New("image not found")
	ErrAlreadyDecided = errors.New("image already decided")
	ErrNotModerator   = errors.New("not a moderator")
)

const timestampLayout = "02.01.2006 15:04"

type ImageStore interface {
	GetByID(ctx context.Context, imageID int64) (model.Image, error)
	Moderate(ctx context.Context, imageID, moderatorTGID int64, status enums.ImageStatus, reason *string) (model.Image, error)
	CountByUploader(ctx context.Context, userID int64) (int, error)
	CountByUploaderAndStatus(ctx context.Context, userID int64, status enums.ImageStatus) (int, error)
	Stats(ctx context.Context) (pgrepo.ImageStats, error)
}

type ModeratorStore interface {
	ListActive(ctx context.Context) ([]model.Moderator, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (model.Moderator, error)
	CountActive(ctx context.Context) (int, error)
}

type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (model.User, error)
}

type Payloads interface {
	Payload(ctx context.Context, img model.Image) ([]byte, error)
}

type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendModerationPhoto(ctx context.Context, chatID int64, data []byte, fileName, caption string, imageID int64) error
}

type Stats struct {
	Pending          int
	Approved         int
	Rejected         int
	Blocked          int
	ActiveModerators int
}

type Service struct {
	images     ImageStore
	moderators ModeratorStore
	users      UserStore
	payloads   Payloads
	sender     Sender
	logger     *zap.Logger
}

func NewService(images ImageStore, moderators ModeratorStore, users UserStore, payloads Payloads, sender Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		images:     images,
		moderators: moderators,
		users:      users,
		payloads:   payloads,
		sender:     sender,
		logger:     logger,
	}
}

func (s *Service) IsModerator(ctx context.Context, telegramID int64) (bool, error) {
	if s.moderators == nil {
		return false, fmt.Errorf("moderator store is nil")
	}

	mod, err := s.moderators.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrModeratorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup moderator: %w", err)
	}

	return mod.Active, nil
}

// SubmitForModeration fans the pending image out to every active
// moderator. A failed send to one moderator does not stop delivery to
// the rest.
func (s *Service) SubmitForModeration(ctx context.Context, img model.Image) error {
	if s.moderators == nil || s.payloads == nil || s.sender == nil {
		return fmt.Errorf("moderation dependencies are not configured")
	}

	roster, err := s.moderators.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active moderators: %w", err)
	}
	if len(roster) == 0 {
		s.logger.Warn("no active moderators for pending image", zap.Int64("image_id", img.ID))
		return nil
	}

	data, err := s.payloads.Payload(ctx, img)
	if err != nil {
		return fmt.Errorf("fetch image payload: %w", err)
	}

	caption := s.moderationCaption(ctx, img)

	delivered := 0
	for _, mod := range roster {
		if err := s.sender.SendModerationPhoto(ctx, mod.TelegramID, data, img.FileName, caption, img.ID); err != nil {
			s.logger.Error("send image to moderator failed",
				zap.Int64("image_id", img.ID),
				zap.Int64("moderator_id", mod.TelegramID),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	s.logger.Info("image submitted for moderation",
		zap.Int64("image_id", img.ID),
		zap.Int("moderators", len(roster)),
		zap.Int("delivered", delivered),
	)

	return nil
}

// Decide applies a terminal moderation status to a pending image. The
// first decision wins: later calls for the same image return
// ErrAlreadyDecided and change nothing.
func (s *Service) Decide(ctx context.Context, imageID, moderatorTGID int64, status enums.ImageStatus, reason *string) (model.Image, error) {
	if s.images == nil {
		return model.Image{}, fmt.Errorf("image store is nil")
	}

	updated, err := s.images.Moderate(ctx, imageID, moderatorTGID, status, reason)
	if err != nil {
		switch {
		case errors.Is(err, pgrepo.ErrImageNotFound):
			s.logger.Warn("moderation target missing", zap.Int64("image_id", imageID))
			return model.Image{}, ErrImageNotFound
		case errors.Is(err, pgrepo.ErrAlreadyDecided):
			s.logger.Warn("image already decided",
				zap.Int64("image_id", imageID),
				zap.Int64("moderator_id", moderatorTGID),
			)
			return model.Image{}, ErrAlreadyDecided
		case errors.Is(err, pgrepo.ErrModeratorNotFound):
			return model.Image{}, ErrNotModerator
		}
		return model.Image{}, fmt.Errorf("apply moderation decision: %w", err)
	}

	s.logger.Info("moderation decision applied",
		zap.Int64("image_id", imageID),
		zap.Int64("moderator_id", moderatorTGID),
		zap.String("status", updated.Status.String()),
	)

	s.notifyUploader(ctx, updated)
	s.notifyModerator(ctx, moderatorTGID, updated)

	return updated, nil
}

// AutoApprove approves a pending image on behalf of the most recently
// added active moderator. Used when the roster should not be bothered.
func (s *Service) AutoApprove(ctx context.Context, imageID int64) (model.Image, error) {
	if s.moderators == nil {
		return model.Image{}, fmt.Errorf("moderator store is nil")
	}

	roster, err := s.moderators.ListActive(ctx)
	if err != nil {
		return model.Image{}, fmt.Errorf("list active moderators: %w", err)
	}
	if len(roster) == 0 {
		return model.Image{}, ErrNotModerator
	}

	return s.Decide(ctx, imageID, roster[0].TelegramID, enums.ImageStatusApproved, nil)
}

// Details sends an extended report on an image and its uploader to the
// requesting moderator.
func (s *Service) Details(ctx context.Context, imageID, moderatorTGID int64) error {
	if s.images == nil || s.sender == nil {
		return fmt.Errorf("moderation dependencies are not configured")
	}

	img, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrImageNotFound) {
			return s.sender.SendText(ctx, moderatorTGID, "❌ Изображение не найдено или уже удалено.")
		}
		return fmt.Errorf("get image: %w", err)
	}

	uploaded, err := s.images.CountByUploader(ctx, img.UploadedBy)
	if err != nil {
		return fmt.Errorf("count uploads: %w", err)
	}
	approved, err := s.images.CountByUploaderAndStatus(ctx, img.UploadedBy, enums.ImageStatusApproved)
	if err != nil {
		return fmt.Errorf("count approved uploads: %w", err)
	}

	uploader := s.uploaderOf(ctx, img)
	subscribedText := "Нет"
	if uploader.Subscribed {
		subscribedText = "Да"
	}

	text := fmt.Sprintf(
		"🔍 <b>Детальная информация</b>\n\n"+
			"📸 <b>Изображение #%d</b>\n"+
			"📅 Загружено: %s\n"+
			"📏 Размер: %d байт (%.1f КБ)\n"+
			"🗂 MIME тип: %s\n"+
			"📂 Имя файла: %s\n\n"+
			"👤 <b>Пользователь:</b>\n"+
			"🆔 ID: %d\n"+
			"👤 Имя: %s\n"+
			"📊 Всего загрузил: %d\n"+
			"✅ Одобрено: %d\n"+
			"📅 Регистрация: %s\n"+
			"📱 Подписан: %s",
		img.ID,
		img.UploadedAt.Format(timestampLayout),
		img.FileSize,
		float64(img.FileSize)/1024.0,
		img.MimeType,
		img.FileName,
		img.UploadedBy,
		uploader.DisplayName(),
		uploaded,
		approved,
		uploader.RegisteredAt.Format(timestampLayout),
		subscribedText,
	)

	return s.sender.SendText(ctx, moderatorTGID, text)
}

func (s *Service) ModerationStats(ctx context.Context) (Stats, error) {
	if s.images == nil || s.moderators == nil {
		return Stats{}, fmt.Errorf("moderation dependencies are not configured")
	}

	imageStats, err := s.images.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("image stats: %w", err)
	}
	activeModerators, err := s.moderators.CountActive(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count active moderators: %w", err)
	}

	return Stats{
		Pending:          imageStats.Pending,
		Approved:         imageStats.Approved,
		Rejected:         imageStats.Rejected,
		Blocked:          imageStats.Blocked,
		ActiveModerators: activeModerators,
	}, nil
}

func (s *Service) moderationCaption(ctx context.Context, img model.Image) string {
	uploader := s.uploaderOf(ctx, img)

	return fmt.Sprintf(
		"🔍 <b>Модерация изображения</b>\n\n"+
			"📸 <b>ID:</b> %d\n"+
			"👤 <b>От пользователя:</b> %s\n"+
			"📅 <b>Загружено:</b> %s\n"+
			"📏 <b>Размер:</b> %.1f КБ\n"+
			"🗂 <b>Тип:</b> %s\n\n"+
			"❓ <b>Одобрить изображение для рассылки?</b>",
		img.ID,
		uploader.DisplayName(),
		img.UploadedAt.Format(timestampLayout),
		float64(img.FileSize)/1024.0,
		img.MimeType,
	)
}

func (s *Service) uploaderOf(ctx context.Context, img model.Image) model.User {
	if s.users != nil {
		if user, err := s.users.GetByTelegramID(ctx, img.UploadedBy); err == nil {
			return user
		}
	}
	return model.User{TelegramID: img.UploadedBy, RegisteredAt: time.Time{}}
}

// Notification failures are logged and swallowed: the decision is
// already committed.
func (s *Service) notifyUploader(ctx context.Context, img model.Image) {
	if s.sender == nil {
		return
	}

	var text string
	switch img.Status {
	case enums.ImageStatusApproved:
		text = fmt.Sprintf(
			"✅ <b>Ваше изображение одобрено!</b>\n\n"+
				"📸 Изображение #%d прошло модерацию и добавлено в общую коллекцию.\n"+
				"Теперь оно может быть отправлено другим пользователям!\n\n"+
				"🎉 Спасибо за вклад в развитие бота!",
			img.ID,
		)
	case enums.ImageStatusRejected:
		reason := "Изображение не соответствует требованиям."
		if img.ModerationReason != nil && *img.ModerationReason != "" {
			reason = "Причина: " + *img.ModerationReason
		}
		text = fmt.Sprintf(
			"❌ <b>Ваше изображение отклонено</b>\n\n"+
				"📸 Изображение #%d не прошло модерацию.\n"+
				"%s\n\n"+
				"💡 Попробуйте загрузить другое изображение волка лучшего качества.",
			img.ID, reason,
		)
	case enums.ImageStatusBlocked:
		reason := "Обнаружено нарушение правил."
		if img.ModerationReason != nil && *img.ModerationReason != "" {
			reason = "Причина: " + *img.ModerationReason
		}
		text = fmt.Sprintf(
			"🚫 <b>Ваше изображение заблокировано</b>\n\n"+
				"📸 Изображение #%d нарушает правила сообщества.\n"+
				"%s\n\n"+
				"⚠️ Повторные нарушения могут привести к ограничению функций бота.",
			img.ID, reason,
		)
	default:
		return
	}

	if err := s.sender.SendText(ctx, img.UploadedBy, text); err != nil {
		s.logger.Error("notify uploader failed",
			zap.Int64("user_id", img.UploadedBy),
			zap.Int64("image_id", img.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) notifyModerator(ctx context.Context, moderatorTGID int64, img model.Image) {
	if s.sender == nil {
		return
	}

	var statusText string
	switch img.Status {
	case enums.ImageStatusApproved:
		statusText = "✅ одобрено"
	case enums.ImageStatusRejected:
		statusText = "❌ отклонено"
	case enums.ImageStatusBlocked:
		statusText = "🚫 заблокировано"
	default:
		statusText = "обработано"
	}

	count := 0
	if s.moderators != nil {
		if mod, err := s.moderators.GetByTelegramID(ctx, moderatorTGID); err == nil {
			count = mod.ModerationCount
		}
	}

	uploader := s.uploaderOf(ctx, img)
	text := fmt.Sprintf(
		"👍 <b>Решение принято</b>\n\n"+
			"📸 Изображение #%d %s\n"+
			"👤 От пользователя: %s\n"+
			"📊 Ваших модераций: %d",
		img.ID, statusText, uploader.DisplayName(), count,
	)

	if err := s.sender.SendText(ctx, moderatorTGID, text); err != nil {
		s.logger.Error("notify moderator failed",
			zap.Int64("moderator_id", moderatorTGID),
			zap.Int64("image_id", img.ID),
			zap.Error(err),
		)
	}
}
