package keyboard

import (
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
)

const slotsPerRow = 2

// Conflict варианты разрешения конфликта для коуча.
// Без canReschedule кнопка переноса существующей сессии не показывается.
func Conflict(neg *model.Negotiation, canReschedule bool) *models.InlineKeyboardMarkup {
	return conflictRows(NewBuilder(), neg, canReschedule).Build()
}

func conflictRows(b *Builder, neg *model.Negotiation, canReschedule bool) *Builder {
	b.Row(Button("📅 Предложить новому клиенту другое время", callbacktypes.Negotiation(callbacktypes.ResolveIncoming, neg.ID)))
	if canReschedule {
		b.Row(Button("🔄 Попросить перенести существующую сессию", callbacktypes.Negotiation(callbacktypes.ResolveExisting, neg.ID)))
	}
	return b.Row(Button("❌ Отменить новую сессию", callbacktypes.Negotiation(callbacktypes.ResolveCancel, neg.ID)))
}

// Proposal кнопки выбора времени для клиента. Показываются только слоты из show,
// индекс в callback data указывает на позицию слота в предложении.
func Proposal(neg *model.Negotiation, show []time.Time, loc *time.Location) *models.InlineKeyboardMarkup {
	offer := neg.Payload.Offer()

	buttons := make([]models.InlineKeyboardButton, 0, len(show))
	for i, slot := range offer.AvailableSlots {
		if !containsTime(show, slot) {
			continue
		}
		buttons = append(buttons, Button(formatting.FormatDateTime(slot, loc), callbacktypes.Slot(neg.ID, i)))
	}

	b := NewBuilder().Grid(slotsPerRow, buttons...)
	if offer.Mode.AllowsDecline() {
		b.Row(Button("🚫 Отказаться", callbacktypes.Negotiation(callbacktypes.Decline, neg.ID)))
	}
	return b.Build()
}

// Pending действия для строки списка неразрешённых конфликтов
func Pending(item *negotiation.PendingItem) *models.InlineKeyboardMarkup {
	b := NewBuilder()
	switch item.Status {
	case negotiation.PendingNeedsResolution:
		conflictRows(b, item.Negotiation, item.CanReschedule)
	case negotiation.PendingAwaitingClient:
		b.Row(
			Button("📨 Отправить повторно", callbacktypes.Negotiation(callbacktypes.Redeliver, item.Negotiation.ID)),
			Button("🗑 Закрыть", callbacktypes.Negotiation(callbacktypes.Discard, item.Negotiation.ID)),
		)
	case negotiation.PendingDeclined:
		b.Row(Button("🗑 Закрыть конфликт", callbacktypes.Negotiation(callbacktypes.Discard, item.Negotiation.ID)))
	case negotiation.PendingOrphaned:
		if item.Session != nil {
			b.Row(Button("❌ Отменить сессию", callbacktypes.Session(item.Session.ID)))
		}
	}
	return b.Build()
}

// CancelSessions кнопки отмены для списка сессий
func CancelSessions(sessions []model.Session, loc *time.Location) *models.InlineKeyboardMarkup {
	buttons := make([]models.InlineKeyboardButton, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		if s.Status != model.SessionStatusScheduled {
			continue
		}
		buttons = append(buttons, Button("❌ "+formatting.FormatDateTime(s.ScheduledAt, loc), callbacktypes.Session(s.ID)))
	}
	return NewBuilder().Grid(slotsPerRow, buttons...).Build()
}

func containsTime(ts []time.Time, t time.Time) bool {
	for _, x := range ts {
		if x.Equal(t) {
			return true
		}
	}
	return false
}
