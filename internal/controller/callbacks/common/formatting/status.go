package formatting

import (
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
)

// StatusDisplay emoji и подпись статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

func (d StatusDisplay) String() string {
	return d.Emoji + " " + d.Text
}

// SessionStatus отображение статуса сессии с учётом тега переговоров
func SessionStatus(s *model.Session) StatusDisplay {
	switch s.Negotiation.Kind {
	case model.NegotiationTagPendingReschedule:
		return StatusDisplay{"🔄", "Ждёт переноса"}
	case model.NegotiationTagRejected:
		return StatusDisplay{"🚫", "Перенос отклонён"}
	}

	displays := map[model.SessionStatus]StatusDisplay{
		model.SessionStatusProposed:          {"📨", "Предложена"},
		model.SessionStatusScheduled:         {"✅", "Запланирована"},
		model.SessionStatusPendingResolution: {"⏳", "Конфликт"},
		model.SessionStatusCancelled:         {"❌", "Отменена"},
	}
	if display, ok := displays[s.Status]; ok {
		return display
	}
	return StatusDisplay{"❓", "Неизвестно"}
}

// PendingStatus отображение строки списка неразрешённых конфликтов
func PendingStatus(status negotiation.PendingStatus) StatusDisplay {
	switch status {
	case negotiation.PendingNeedsResolution:
		return StatusDisplay{"⚠️", "Нужно решение"}
	case negotiation.PendingAwaitingClient:
		return StatusDisplay{"⏳", "Ждём ответа клиента"}
	case negotiation.PendingDeclined:
		return StatusDisplay{"🚫", "Клиент отказался"}
	case negotiation.PendingOrphaned:
		return StatusDisplay{"👻", "Без переговоров"}
	default:
		return StatusDisplay{"❓", "Неизвестно"}
	}
}

// ConflictType описание типа конфликта
func ConflictType(t model.ConflictType) string {
	switch t {
	case model.ConflictTypeOverlap:
		return "пересекается с другой сессией"
	case model.ConflictTypeDailyLimit:
		return "у клиента уже есть сессия в этот день"
	default:
		return string(t)
	}
}

// SessionType название типа сессии
func SessionType(t model.SessionType) string {
	switch t {
	case model.SessionTypeTraining:
		return "Тренировка"
	case model.SessionTypeNutrition:
		return "Питание"
	case model.SessionTypeCheckIn:
		return "Чек-ин"
	case model.SessionTypeConsultation:
		return "Консультация"
	default:
		return "Сессия"
	}
}
