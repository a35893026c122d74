package usecase

import (
	"fmt"

	"site-creator/internal/domain"
)

const (
	workingText = "🚀 Отлично! Начинаю создавать ваш сайт, это займёт немного времени…"
	apologyText = "😔 Не удалось создать сайт. Пожалуйста, попробуйте ещё раз через минуту или опишите идею чуть иначе."

	transportDetail = "Не удалось связаться с сервисом создания сайтов"
	malformedDetail = "Сервис вернул некорректный ответ"
	serviceDetail   = "Сервис создания сайтов временно недоступен"
)

func createdText(name, url string) string {
	return fmt.Sprintf("✅ Сайт «%s» создан и доступен по адресу: %s", name, url)
}

func templateChosenText(name string) string {
	return fmt.Sprintf("📋 Вы выбрали шаблон «%s». Создаю сайт по шаблону.", name)
}

func createdNotification(name string) domain.Notification {
	return domain.Notification{
		Title:       "✅ Сайт создан",
		Description: fmt.Sprintf("Проект «%s» добавлен в «Мои сайты»", name),
		Variant:     domain.VariantDefault,
	}
}

func failedNotification(err *Error) domain.Notification {
	return domain.Notification{
		Title:       "❌ Ошибка создания сайта",
		Description: err.Detail,
		Variant:     domain.VariantDestructive,
	}
}
