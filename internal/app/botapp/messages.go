package botapp

import (
	"fmt"
	"time"

	"github.com/ivankudzin/wolfpost/internal/domain/model"
)

const (
	helpText = "🤖 <b>Список команд:</b>\n\n" +
		"/start - Начать работу с ботом\n" +
		"/help - Показать эту справку\n" +
		"/subscribe - Подписаться на рассылку\n" +
		"/unsubscribe - Отписаться от рассылки\n" +
		"/schedule - Настроить расписание\n" +
		"/upload - Загрузить картинку волка\n" +
		"/status - Показать мой статус\n\n" +
		"📸 Чтобы загрузить картинку, просто отправь фото в чат!\n\n" +
		"❓ Если нужна помощь, обратись к администратору."

	scheduleText = "⏰ <b>Настройка расписания</b>\n\n" +
		"Доступные варианты:\n" +
		"• Каждый день в 9:00 - /set_daily_9\n" +
		"• Каждый день в 12:00 - /set_daily_12\n" +
		"• Каждый день в 18:00 - /set_daily_18\n" +
		"• Только по рабочим дням в 12:00 - /set_workdays\n" +
		"• Только по выходным в 10:00 - /set_weekends\n" +
		"• Два раза в день - /set_twice_daily\n" +
		"• Каждый час - /set_hourly\n" +
		"• Каждые 2 часа - /set_every_2h\n\n" +
		"🔧 Для настройки своего расписания обратитесь к администратору."

	uploadText = "📸 <b>Загрузка изображения</b>\n\n" +
		"Отправьте фотографию волка в чат, и она будет добавлена на модерацию.\n\n" +
		"⚠️ <b>Требования:</b>\n" +
		"• Размер файла не более 10 МБ\n" +
		"• Только изображения волков\n" +
		"• Качественные фотографии\n\n" +
		"После модерации ваша картинка будет добавлена в общую базу."

	alreadySubscribedText = "✅ Вы уже подписаны на рассылку картинок волков!"

	subscribedText = "🎉 <b>Поздравляем!</b>\n\n" +
		"Вы успешно подписались на рассылку картинок волков!\n" +
		"По умолчанию картинки будут приходить каждый день в 12:00.\n\n" +
		"Используйте /schedule для настройки персонального расписания."

	notSubscribedText = "ℹ️ Вы уже отписаны от рассылки."

	unsubscribedText = "😢 Вы отписались от рассылки картинок волков.\n\n" +
		"Чтобы снова подписаться, используйте команду /subscribe"

	photoFailedText = "❌ Произошла ошибка при обработке фотографии. " +
		"Пожалуйста, попробуйте еще раз позже."

	unsupportedFormatText = "❌ Неподдерживаемый формат изображения. " +
		"Поддерживаются: JPG, PNG, WebP"

	noRightsText   = "❌ У вас нет прав для выполнения этого действия."
	badCallbackFmt = "❌ Некорректный формат команды."
	badImageIDText = "❌ Некорректный ID изображения."
)

func welcomeText(user model.User) string {
	return fmt.Sprintf(
		"🐺 <b>Добро пожаловать в Wolf Bot!</b>\n\n"+
			"Привет, %s! Я бот для организации картинок волков.\n\n"+
			"🔧 <b>Мои возможности:</b>\n"+
			"• Отправка картинок волков по расписанию\n"+
			"• Загрузка новых изображений\n"+
			"• Настройка персонального расписания\n\n"+
			"📝 Используй /help для просмотра всех команд",
		user.DisplayName(),
	)
}

func statusText(user model.User, uploaded int) string {
	subscription := "❌ Не подписан"
	if user.Subscribed {
		subscription = "✅ Подписан"
	}

	return fmt.Sprintf(
		"👤 <b>Ваш статус</b>\n\n"+
			"Имя: %s\n"+
			"Подписка: %s\n"+
			"Загружено картинок: %d\n"+
			"Дата регистрации: %s",
		user.DisplayName(),
		subscription,
		uploaded,
		user.RegisteredAt.Format("02.01.2006"),
	)
}

func uploadAcceptedText(size int64, at time.Time) string {
	return fmt.Sprintf(
		"✅ <b>Фотография загружена!</b>\n\n"+
			"📸 Размер: %.1f КБ\n"+
			"🔍 Статус: Ожидает модерации\n"+
			"⏳ Время загрузки: %s\n\n"+
			"Ваша фотография будет проверена модераторами и, "+
			"при одобрении, добавлена в общую коллекцию.",
		float64(size)/1024.0,
		at.Format("02.01.2006 15:04"),
	)
}

func hourlyLimitText(limit int) string {
	return fmt.Sprintf(
		"⚠️ Превышен лимит загрузки изображений.\n"+
			"Максимум %d изображений в час.\n"+
			"Попробуйте позже.",
		limit,
	)
}

func pendingLimitText(limit int) string {
	return fmt.Sprintf(
		"⏳ У вас слишком много изображений ожидает модерации (%d).\n"+
			"Дождитесь проверки уже загруженных изображений.",
		limit,
	)
}

func fileTooLargeText(size, max int64) string {
	return fmt.Sprintf(
		"❌ Размер файла слишком большой (%.1f МБ). Максимальный размер: %.1f МБ",
		float64(size)/1024.0/1024.0,
		float64(max)/1024.0/1024.0,
	)
}

func unknownCommandText(command string) string {
	return fmt.Sprintf(
		"❓ Неизвестная команда: /%s\n\nИспользуйте /help для просмотра доступных команд.",
		command,
	)
}

func scheduleSetText(description string) string {
	return fmt.Sprintf(
		"⏰ <b>Расписание обновлено</b>\n\nНовое расписание: %s",
		description,
	)
}
