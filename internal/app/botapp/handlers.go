package botapp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ivankudzin/wolfpost/internal/domain/enums"
	tginfra "github.com/ivankudzin/wolfpost/internal/infra/telegram"
	imagesvc "github.com/ivankudzin/wolfpost/internal/services/images"
	modsvc "github.com/ivankudzin/wolfpost/internal/services/moderation"
	ratesvc "github.com/ivankudzin/wolfpost/internal/services/rate"
	schedsvc "github.com/ivankudzin/wolfpost/internal/services/schedules"
)

const (
	rejectedReason = "Отклонено модератором"
	blockedReason  = "Нарушение правил сообщества"
)

func (a *App) handleCommand(ctx context.Context, update tginfra.CommandUpdate) error {
	if a.bot == nil {
		return nil
	}

	user, err := a.userService.FindOrCreate(ctx, update.UserID, update.Username, update.FirstName, update.LastName)
	if err != nil {
		a.logger.Error("register user failed", zap.Int64("user_id", update.UserID), zap.Error(err))
		return nil
	}

	command := strings.ToLower(strings.TrimSpace(update.Command))

	if scheduleType, ok := strings.CutPrefix(command, "set_"); ok {
		return a.handleSetSchedule(ctx, update.ChatID, user.TelegramID, scheduleType)
	}

	switch command {
	case "start":
		return a.bot.SendText(ctx, update.ChatID, welcomeText(user))
	case "help":
		return a.bot.SendText(ctx, update.ChatID, helpText)
	case "subscribe":
		if user.Subscribed {
			return a.bot.SendText(ctx, update.ChatID, alreadySubscribedText)
		}
		if err := a.userService.Subscribe(ctx, user.TelegramID); err != nil {
			return err
		}
		if _, err := a.scheduleService.CreateDefault(ctx, user.TelegramID); err != nil {
			a.logger.Error("create default schedule failed", zap.Int64("user_id", user.TelegramID), zap.Error(err))
		}
		return a.bot.SendText(ctx, update.ChatID, subscribedText)
	case "unsubscribe":
		if !user.Subscribed {
			return a.bot.SendText(ctx, update.ChatID, notSubscribedText)
		}
		if err := a.userService.Unsubscribe(ctx, user.TelegramID); err != nil {
			return err
		}
		if err := a.scheduleService.DeactivateForUser(ctx, user.TelegramID); err != nil {
			a.logger.Error("deactivate schedules failed", zap.Int64("user_id", user.TelegramID), zap.Error(err))
		}
		return a.bot.SendText(ctx, update.ChatID, unsubscribedText)
	case "schedule":
		return a.bot.SendText(ctx, update.ChatID, scheduleText)
	case "upload":
		return a.bot.SendText(ctx, update.ChatID, uploadText)
	case "status":
		uploaded, err := a.imageService.UploadedCount(ctx, user.TelegramID)
		if err != nil {
			return err
		}
		return a.bot.SendText(ctx, update.ChatID, statusText(user, uploaded))
	case "announce":
		return a.handleAnnounce(ctx, update)
	default:
		return a.bot.SendText(ctx, update.ChatID, unknownCommandText(command))
	}
}

func (a *App) handleSetSchedule(ctx context.Context, chatID, userID int64, scheduleType string) error {
	created, err := a.scheduleService.Create(ctx, userID, scheduleType)
	if err != nil {
		if errors.Is(err, schedsvc.ErrUnknownType) {
			return a.bot.SendText(ctx, chatID, scheduleText)
		}
		return err
	}

	return a.bot.SendText(ctx, chatID, scheduleSetText(created.Description))
}

// handleAnnounce broadcasts the command arguments to every subscriber.
// Moderator-only.
func (a *App) handleAnnounce(ctx context.Context, update tginfra.CommandUpdate) error {
	isModerator, err := a.moderationService.IsModerator(ctx, update.UserID)
	if err != nil {
		return err
	}
	if !isModerator {
		return a.bot.SendText(ctx, update.ChatID, noRightsText)
	}

	text := strings.TrimSpace(update.Args)
	if text == "" {
		return a.bot.SendText(ctx, update.ChatID, "✏️ Использование: /announce <текст рассылки>")
	}

	a.startBroadcast(ctx, update.ChatID, text)

	return a.bot.SendText(ctx, update.ChatID, "📣 Рассылка запущена, итоги придут отдельным сообщением.")
}

// startBroadcast runs the throttled subscriber broadcast off the update
// loop. A long subscriber list must not stall uploads and callbacks, so
// the handler only kicks it off and the totals arrive as a follow-up.
func (a *App) startBroadcast(ctx context.Context, reportChatID int64, text string) {
	go func() {
		sent, failed, err := a.notifyService.BroadcastToSubscribers(ctx, text)
		if err != nil {
			a.logger.Error("broadcast failed", zap.Error(err))
			return
		}

		report := fmt.Sprintf("📣 Рассылка завершена: доставлено %d, ошибок %d.", sent, failed)
		if err := a.bot.SendText(ctx, reportChatID, report); err != nil {
			a.logger.Warn("broadcast report failed", zap.Int64("chat_id", reportChatID), zap.Error(err))
		}
	}()
}

func (a *App) handlePhoto(ctx context.Context, update tginfra.PhotoUpdate) error {
	if a.bot == nil {
		return nil
	}

	user, err := a.userService.FindOrCreate(ctx, update.UserID, update.Username, update.FirstName, update.LastName)
	if err != nil {
		a.logger.Error("register user failed", zap.Int64("user_id", update.UserID), zap.Error(err))
		return a.bot.SendText(ctx, update.ChatID, photoFailedText)
	}

	if max := a.cfg.Bot.MaxFileSize; max > 0 && update.FileSize > max {
		return a.bot.SendText(ctx, update.ChatID, fileTooLargeText(update.FileSize, max))
	}

	if err := a.limiter.CheckUpload(ctx, user.TelegramID); err != nil {
		var quota *ratesvc.QuotaError
		if errors.As(err, &quota) {
			switch quota.Kind {
			case ratesvc.QuotaHourly:
				return a.bot.SendText(ctx, update.ChatID, hourlyLimitText(quota.Limit))
			case ratesvc.QuotaPending:
				return a.bot.SendText(ctx, update.ChatID, pendingLimitText(quota.Limit))
			}
		}
		return err
	}

	data, err := a.bot.DownloadPhoto(ctx, update.FileID)
	if err != nil {
		a.logger.Error("download photo failed", zap.Int64("user_id", user.TelegramID), zap.Error(err))
		return a.bot.SendText(ctx, update.ChatID, "❌ Не удалось загрузить фотографию. Попробуйте еще раз.")
	}

	img, err := a.imageService.Save(ctx, user.TelegramID, update.FileID+".jpg", data)
	if err != nil {
		switch {
		case errors.Is(err, imagesvc.ErrFileTooLarge):
			return a.bot.SendText(ctx, update.ChatID, fileTooLargeText(int64(len(data)), a.cfg.Bot.MaxFileSize))
		case errors.Is(err, imagesvc.ErrUnsupportedMime):
			return a.bot.SendText(ctx, update.ChatID, unsupportedFormatText)
		}
		a.logger.Error("save image failed", zap.Int64("user_id", user.TelegramID), zap.Error(err))
		return a.bot.SendText(ctx, update.ChatID, photoFailedText)
	}

	if err := a.moderationService.SubmitForModeration(ctx, img); err != nil {
		a.logger.Error("submit for moderation failed", zap.Int64("image_id", img.ID), zap.Error(err))
	}

	return a.bot.SendText(ctx, update.ChatID, uploadAcceptedText(img.FileSize, img.UploadedAt))
}

func (a *App) handleText(ctx context.Context, update tginfra.TextUpdate) error {
	if a.bot == nil {
		return nil
	}

	a.userService.UpdateActivity(ctx, update.UserID)
	return nil
}

func (a *App) handleCallback(ctx context.Context, update tginfra.CallbackUpdate) error {
	if a.bot == nil {
		return nil
	}

	a.userService.UpdateActivity(ctx, update.UserID)

	isModerator, err := a.moderationService.IsModerator(ctx, update.UserID)
	if err != nil {
		a.logger.Error("moderator check failed", zap.Int64("user_id", update.UserID), zap.Error(err))
		return a.bot.AnswerCallback(ctx, update.CallbackID, "❌ Произошла ошибка при обработке запроса.", true)
	}
	if !isModerator {
		return a.bot.AnswerCallback(ctx, update.CallbackID, noRightsText, true)
	}

	action, imageID, err := parseModerationCallback(update.Data)
	if err != nil {
		if errors.Is(err, errBadImageID) {
			return a.bot.AnswerCallback(ctx, update.CallbackID, badImageIDText, true)
		}
		return a.bot.AnswerCallback(ctx, update.CallbackID, badCallbackFmt, true)
	}

	switch action {
	case "approve":
		return a.applyDecision(ctx, update, imageID, enums.ImageStatusApproved, nil, "✅ Изображение одобрено!")
	case "reject":
		reason := rejectedReason
		return a.applyDecision(ctx, update, imageID, enums.ImageStatusRejected, &reason, "❌ Изображение отклонено!")
	case "block":
		reason := blockedReason
		return a.applyDecision(ctx, update, imageID, enums.ImageStatusBlocked, &reason, "🚫 Изображение заблокировано!")
	case "details":
		if err := a.moderationService.Details(ctx, imageID, update.UserID); err != nil {
			a.logger.Error("send image details failed", zap.Int64("image_id", imageID), zap.Error(err))
			return a.bot.AnswerCallback(ctx, update.CallbackID, "❌ Произошла ошибка при обработке запроса.", true)
		}
		return a.bot.AnswerCallback(ctx, update.CallbackID, "ℹ️ Детали отправлены отдельным сообщением.", false)
	default:
		return a.bot.AnswerCallback(ctx, update.CallbackID, "❌ Неизвестное действие модерации.", true)
	}
}

func (a *App) applyDecision(ctx context.Context, update tginfra.CallbackUpdate, imageID int64, status enums.ImageStatus, reason *string, confirmation string) error {
	_, err := a.moderationService.Decide(ctx, imageID, update.UserID, status, reason)
	if err != nil {
		switch {
		case errors.Is(err, modsvc.ErrAlreadyDecided):
			if err := a.bot.MarkKeyboardProcessed(ctx, update.ChatID, update.MessageID); err != nil {
				a.logger.Warn("mark keyboard processed failed", zap.Error(err))
			}
			return a.bot.AnswerCallback(ctx, update.CallbackID, "ℹ️ Изображение уже обработано другим модератором.", true)
		case errors.Is(err, modsvc.ErrImageNotFound):
			return a.bot.AnswerCallback(ctx, update.CallbackID, badImageIDText, true)
		case errors.Is(err, modsvc.ErrNotModerator):
			return a.bot.AnswerCallback(ctx, update.CallbackID, noRightsText, true)
		}
		a.logger.Error("moderation decision failed",
			zap.Int64("image_id", imageID),
			zap.Int64("moderator_id", update.UserID),
			zap.Error(err),
		)
		return a.bot.AnswerCallback(ctx, update.CallbackID, "❌ Произошла ошибка при обработке запроса.", true)
	}

	if err := a.bot.MarkKeyboardProcessed(ctx, update.ChatID, update.MessageID); err != nil {
		a.logger.Warn("mark keyboard processed failed", zap.Error(err))
	}

	return a.bot.AnswerCallback(ctx, update.CallbackID, confirmation, false)
}

var (
	errBadCallback = errors.New("malformed callback data")
	errBadImageID  = errors.New("malformed image id")
)

// parseModerationCallback splits callback payloads of the form
// moderate_<action>_<imageID>.
func parseModerationCallback(data string) (string, int64, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(data), "moderate_")
	if !ok {
		return "", 0, errBadCallback
	}

	idx := strings.LastIndexByte(rest, '_')
	if idx <= 0 || idx == len(rest)-1 {
		return "", 0, errBadCallback
	}

	action := rest[:idx]
	imageID, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil || imageID <= 0 {
		return "", 0, errBadImageID
	}

	return action, imageID, nil
}
