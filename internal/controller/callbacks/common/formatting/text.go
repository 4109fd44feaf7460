package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/proposal"
)

// SessionLine строка списка сессий
func SessionLine(s *model.Session, client *model.User, loc *time.Location) string {
	return fmt.Sprintf("%s %s %s · %s · %s",
		SessionStatus(s).Emoji,
		FormatDateTime(s.ScheduledAt, loc),
		FormatDuration(s.DurationMinutes),
		client.DisplayName(),
		SessionType(s.SessionType),
	)
}

// ConflictText сообщение коучу о конфликте при записи клиента
func ConflictText(res *negotiation.ProposeResult, incoming, existingClient *model.User, loc *time.Location) string {
	c := res.Conflict
	var sb strings.Builder

	fmt.Fprintf(&sb, "⚠️ Конфликт: %s\n\n", ConflictType(c.Type))
	fmt.Fprintf(&sb, "Новая сессия: %s, %s (%s)\n",
		incoming.DisplayName(),
		FormatDateTime(c.Proposed.ScheduledAt, loc),
		FormatDuration(c.Proposed.DurationMinutes),
	)
	fmt.Fprintf(&sb, "Уже записан: %s, %s %s\n\n",
		existingClient.DisplayName(),
		FormatDateTime(c.Existing.ScheduledAt, loc),
		FormatTimeRange(c.Existing.ScheduledAt, c.Existing.End(), loc),
	)

	switch {
	case res.NoWorkingHours:
		sb.WriteString("Рабочие часы не настроены, рекомендаций нет. Настройте их командой /hours.\n")
	case len(c.Recommendations) == 0:
		sb.WriteString("Свободного времени в ближайшие дни не найдено.\n")
	default:
		sb.WriteString("Свободное время рядом:\n")
		for _, slot := range c.Recommendations {
			fmt.Fprintf(&sb, " • %s\n", FormatDateTime(slot, loc))
		}
	}

	sb.WriteString("\nКак разрешить конфликт?")
	return sb.String()
}

// ProposalText сообщение клиенту с предложением выбрать время
func ProposalText(neg *model.Negotiation, coach *model.User, loc *time.Location) string {
	offer := neg.Payload.Offer()
	var sb strings.Builder

	switch neg.Payload.Kind() {
	case proposal.KindReschedule:
		fmt.Fprintf(&sb, "🔄 %s просит перенести сессию\n\n", coach.DisplayName())
	default:
		fmt.Fprintf(&sb, "📅 %s предлагает другое время для сессии\n\n", coach.DisplayName())
	}
	if offer.Text != "" {
		sb.WriteString(offer.Text)
		sb.WriteString("\n\n")
	}
	fmt.Fprintf(&sb, "Исходное время: %s\n", FormatDateTime(offer.OriginalTime, loc))

	if offer.Mode.AllowsDecline() {
		sb.WriteString("Выберите новое время или откажитесь:")
	} else {
		sb.WriteString("Выберите новое время:")
	}
	return sb.String()
}

// SlotTakenText ответ клиенту, если выбранное время успели занять
func SlotTakenText(slot time.Time, remaining int, loc *time.Location) string {
	if remaining == 0 {
		return fmt.Sprintf("😔 Время %s уже занято, других вариантов не осталось. Коуч свяжется с вами.", FormatDateTime(slot, loc))
	}
	return fmt.Sprintf("😔 Время %s уже занято. Осталось %d %s, выберите другое:",
		FormatDateTime(slot, loc), remaining, PluralizeSlots(remaining))
}

// AcceptedText уведомление коучу о принятом предложении
func AcceptedText(client *model.User, session *model.Session, loc *time.Location) string {
	if session == nil {
		return fmt.Sprintf("✅ %s принял предложение", client.DisplayName())
	}
	return fmt.Sprintf("✅ %s выбрал время: %s (%s)",
		client.DisplayName(), FormatDateTime(session.ScheduledAt, loc), FormatDuration(session.DurationMinutes))
}

// DeclinedText уведомление коучу об отказе клиента
func DeclinedText(client *model.User) string {
	return fmt.Sprintf("🚫 %s отказался от предложения. Закройте конфликт в /pending.", client.DisplayName())
}

// ReminderText напоминание коучу о переговорах без движения
func ReminderText(neg *model.Negotiation, client *model.User, loc *time.Location) string {
	if neg.State == model.NegotiationConflictDetected {
		return fmt.Sprintf("⏰ Конфликт с %s от %s всё ещё ждёт вашего решения. Откройте /pending.",
			client.DisplayName(), FormatDateTime(neg.CreatedAt, loc))
	}
	return fmt.Sprintf("⏰ %s не ответил на предложение от %s. Можно отправить его повторно в /pending.",
		client.DisplayName(), FormatDateTime(neg.UpdatedAt, loc))
}

// PendingItemText описание неразрешённого конфликта для /pending
func PendingItemText(item *negotiation.PendingItem, client *model.User, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(PendingStatus(item.Status).String())
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Клиент: %s\n", client.DisplayName())
	if item.Session != nil {
		fmt.Fprintf(&sb, "Время: %s (%s)\n", FormatDateTime(item.Session.ScheduledAt, loc), FormatDuration(item.Session.DurationMinutes))
	}
	if item.Negotiation != nil {
		fmt.Fprintf(&sb, "Причина: %s\n", ConflictType(item.Negotiation.ConflictType))
		fmt.Fprintf(&sb, "Обновлено: %s", FormatDateTime(item.Negotiation.UpdatedAt, loc))
	}
	return strings.TrimRight(sb.String(), "\n")
}
