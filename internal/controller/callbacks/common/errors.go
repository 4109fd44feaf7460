package common

import (
	"errors"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

// Общие ошибки для обработчиков
var (
	ErrNoMessage = errors.New("no message in callback")
	ErrForbidden = errors.New("action is not allowed for this user")
)

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	var unavailable *negotiation.SlotUnavailableError
	switch {
	case errors.As(err, &unavailable):
		return "😔 Это время уже занято"
	case errors.Is(err, service.ErrUserNotFound):
		return "❌ Пользователь не найден. Используйте /start"
	case errors.Is(err, service.ErrNotCoach):
		return "❌ Эта функция доступна только коучам. Стать коучем: /becomecoach"
	case errors.Is(err, ErrForbidden), errors.Is(err, service.ErrForbidden):
		return "❌ У вас нет доступа к этому действию"
	case errors.Is(err, ErrNoMessage):
		return "❌ Ошибка обработки сообщения"
	case errors.Is(err, callbacktypes.ErrInvalidFormat):
		return "❌ Неверный формат данных"
	case errors.Is(err, negotiation.ErrNotFound):
		return "❌ Предложение не найдено"
	case errors.Is(err, negotiation.ErrNegotiationClosed):
		return "ℹ️ Это предложение уже закрыто"
	case errors.Is(err, negotiation.ErrInvalidTransition):
		return "ℹ️ Решение по этому конфликту уже принято"
	case errors.Is(err, negotiation.ErrSlotNotOffered):
		return "❌ Это время не предлагалось"
	case errors.Is(err, negotiation.ErrDeclineNotAllowed):
		return "❌ Отказаться нельзя, выберите одно из предложенных времён"
	case errors.Is(err, negotiation.ErrNoAlternatives):
		return "😔 Нет свободного времени для предложения. Расширьте рабочие часы или отмените сессию"
	case errors.Is(err, negotiation.ErrDeliveryFailed):
		return "⚠️ Решение сохранено, но клиент не получил сообщение. Повторите отправку в /pending"
	case errors.Is(err, negotiation.ErrCoachNotFound):
		return "❌ Коуч не найден"
	case errors.Is(err, negotiation.ErrSessionNotFound), errors.Is(err, service.ErrSessionNotFound):
		return "❌ Сессия не найдена"
	case errors.Is(err, negotiation.ErrExistingUnresolved):
		return "⏳ Существующая сессия сама ждёт решения конфликта. Сначала разрешите его через /pending"
	case errors.Is(err, negotiation.ErrInvalidResolution):
		return "❌ Такое решение сейчас недоступно"
	case errors.Is(err, service.ErrTimezoneConflict):
		return "❌ В новом часовом поясе у клиента окажутся две сессии в один день. Сначала перенесите одну из них"
	case errors.Is(err, model.ErrSlotTaken):
		return "😔 Время уже занято, попробуйте ещё раз"
	case errors.Is(err, model.ErrInvalidRequest):
		return "❌ Неверные параметры сессии"
	case errors.Is(err, model.ErrInvalidAvailability):
		return "❌ Неверный формат рабочих часов. Пример: /hours mon 09:00-13:00,14:00-18:00"
	case errors.Is(err, service.ErrInvalidTimezone):
		return "❌ Неизвестный часовой пояс. Пример: /timezone Europe/Moscow"
	case errors.Is(err, service.ErrDateInPast):
		return "❌ Нельзя выбрать дату в прошлом"
	case errors.Is(err, service.ErrNotBlocked):
		return "ℹ️ Этот день не был заблокирован"
	case errors.Is(err, service.ErrInvalidSeries):
		return "❌ Неверные параметры серии"
	default:
		return "❌ Произошла ошибка"
	}
}
