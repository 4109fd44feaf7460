package handlers

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

const hoursUsage = "Использование:\n" +
	"/hours - показать рабочие часы\n" +
	"/hours mon 09:00-13:00,14:00-18:00 - задать часы на понедельник\n" +
	"/hours sun off - сделать воскресенье выходным"

// handleHours показывает или меняет недельный шаблон рабочих часов
func (h *Handlers) handleHours(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}

	switch len(args) {
	case 0:
		template, err := h.availabilityService.GetWeeklyTemplate(ctx, coach.ID)
		if err != nil {
			h.replyError(ctx, b, msg.Chat.ID, err, hoursUsage)
			return
		}
		h.sendMessage(ctx, b, msg.Chat.ID, templateText(template, coach.Location())+"\n\n"+hoursUsage, nil)
		return
	case 2:
	default:
		h.replyError(ctx, b, msg.Chat.ID, ErrBadArgs, hoursUsage)
		return
	}

	weekday, err := model.ParseWeekday(args[0])
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, fmt.Errorf("%w: %w", ErrBadArgs, err), hoursUsage)
		return
	}
	slots, err := h.availabilityService.SetDayTemplate(ctx, coach.ID, weekday, args[1])
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, hoursUsage)
		return
	}

	if len(slots) == 0 {
		h.sendMessage(ctx, b, msg.Chat.ID, fmt.Sprintf("✅ %s теперь выходной", formatting.WeekdayName(weekday)), nil)
		return
	}
	h.sendMessage(ctx, b, msg.Chat.ID, fmt.Sprintf("✅ %s: %s", formatting.WeekdayName(weekday), rangesText(slots)), nil)
}

// templateText недельный шаблон по дням с понедельника
func templateText(template []model.AvailabilitySlot, loc *time.Location) string {
	byDay := make(map[time.Weekday][]model.AvailabilitySlot)
	for _, s := range template {
		if s.IsActive {
			byDay[time.Weekday(s.Weekday)] = append(byDay[time.Weekday(s.Weekday)], s)
		}
	}
	if len(byDay) == 0 {
		return "🕘 Рабочие часы не настроены"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🕘 Рабочие часы (%s):\n", loc)
	for i := range 7 {
		wd := time.Weekday((i + 1) % 7)
		slots := byDay[wd]
		if len(slots) == 0 {
			fmt.Fprintf(&sb, "%s: выходной\n", formatting.WeekdayShort(wd))
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", formatting.WeekdayShort(wd), rangesText(slots))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func rangesText(slots []model.AvailabilitySlot) string {
	sorted := slices.Clone(slots)
	slices.SortFunc(sorted, func(a, b model.AvailabilitySlot) int { return int(a.Start) - int(b.Start) })

	parts := make([]string, 0, len(sorted))
	for _, s := range sorted {
		parts = append(parts, s.Start.String()+"-"+s.End.String())
	}
	return strings.Join(parts, ", ")
}

const blockUsage = "Использование: /block 2026-10-20 [причина]"

// handleBlock закрывает день целиком
func (h *Handlers) handleBlock(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}
	if len(args) == 0 {
		h.replyError(ctx, b, msg.Chat.ID, ErrBadArgs, blockUsage)
		return
	}

	date, err := model.ParseDate(args[0])
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, fmt.Errorf("%w: %w", ErrBadArgs, err), blockUsage)
		return
	}
	reason := strings.Join(args[1:], " ")

	if _, err := h.availabilityService.BlockDate(ctx, coach.ID, date, reason); err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, blockUsage)
		return
	}
	h.sendMessage(ctx, b, msg.Chat.ID, "🚫 День закрыт: "+formatting.FormatDateWithWeekday(date), nil)
}

const unblockUsage = "Использование: /unblock 2026-10-20"

// handleUnblock снова открывает закрытый день
func (h *Handlers) handleUnblock(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}
	if len(args) != 1 {
		h.replyError(ctx, b, msg.Chat.ID, ErrBadArgs, unblockUsage)
		return
	}

	date, err := model.ParseDate(args[0])
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, fmt.Errorf("%w: %w", ErrBadArgs, err), unblockUsage)
		return
	}
	if err := h.availabilityService.UnblockDate(ctx, coach.ID, date); err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, unblockUsage)
		return
	}
	h.sendMessage(ctx, b, msg.Chat.ID, "✅ День открыт: "+formatting.FormatDateWithWeekday(date), nil)
}

// handleBlocked список предстоящих закрытых дней
func (h *Handlers) handleBlocked(ctx context.Context, b *bot.Bot, msg *models.Message, _ []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}

	blocked, err := h.availabilityService.UpcomingBlockedDates(ctx, coach.ID)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, "")
		return
	}
	if len(blocked) == 0 {
		h.sendMessage(ctx, b, msg.Chat.ID, "📅 Закрытых дней нет", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("🚫 Закрытые дни:\n")
	for _, d := range blocked {
		sb.WriteString("• " + formatting.FormatDateWithWeekday(d.Date))
		if d.Reason != "" {
			sb.WriteString(" - " + d.Reason)
		}
		sb.WriteString("\n")
	}
	h.sendMessage(ctx, b, msg.Chat.ID, strings.TrimRight(sb.String(), "\n"), nil)
}

const slotsUsage = "Использование: /slots [2026-10-20] [минуты]"

// handleSlots свободное время коуча на день
func (h *Handlers) handleSlots(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}
	if len(args) > 2 {
		h.replyError(ctx, b, msg.Chat.ID, ErrBadArgs, slotsUsage)
		return
	}

	loc := coach.Location()
	date, err := parseOptionalDate(args, 0, model.DateOf(h.now(), loc))
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, slotsUsage)
		return
	}
	minutes := DefaultSessionMinutes
	if len(args) == 2 {
		if minutes, err = parseMinutes(args[1]); err != nil {
			h.replyError(ctx, b, msg.Chat.ID, err, slotsUsage)
			return
		}
	}

	free, err := h.availabilityService.FreeSlots(ctx, coach.ID, date, minutes)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, slotsUsage)
		return
	}
	h.sendMessage(ctx, b, msg.Chat.ID, freeSlotsText(date, minutes, free, loc), nil)
}

func freeSlotsText(date model.Date, minutes int, free []time.Time, loc *time.Location) string {
	header := fmt.Sprintf("🟢 %s, сессия %s", formatting.FormatDateWithWeekday(date), formatting.FormatDuration(minutes))
	if len(free) == 0 {
		return header + "\n\nСвободного времени нет"
	}

	shown := free[:min(len(free), MaxListedSlots)]
	times := make([]string, 0, len(shown))
	for _, t := range shown {
		times = append(times, formatting.FormatTime(t, loc))
	}
	text := fmt.Sprintf("%s\n\n%d %s: %s", header, len(free), formatting.PluralizeSlots(len(free)), strings.Join(times, ", "))
	if len(free) > len(shown) {
		text += ", …"
	}
	return text
}
