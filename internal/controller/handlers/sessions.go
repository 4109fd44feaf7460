package handlers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common/keyboard"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/render"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

const bookUsage = "Использование: /book <@клиент|id> <ГГГГ-ММ-ДД> <ЧЧ:ММ> [минуты] [тип]\n" +
	"Например: /book @anna 2026-10-20 10:00 60 training\n" +
	"Типы: training, nutrition, check_in, consultation, other"

// handleBook записывает клиента. Конфликт не блокирует запись: коуч получает варианты решения.
func (h *Handlers) handleBook(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}

	a, err := parseBookArgs(args)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, bookUsage)
		return
	}
	client, err := h.userService.FindClient(ctx, a.ClientRef)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, bookUsage)
		return
	}

	loc := coach.Location()
	res, err := h.negotiator.Propose(ctx, model.SessionRequest{
		CoachID:         coach.ID,
		ClientID:        client.ID,
		ScheduledAt:     a.Date.At(a.Start, loc),
		DurationMinutes: a.Minutes,
		SessionType:     a.SessionType,
	})
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, bookUsage)
		return
	}

	switch res.Outcome {
	case scheduling.OutcomeFree:
		h.sendMessage(ctx, b, msg.Chat.ID, "✅ Сессия создана\n\n"+formatting.SessionLine(res.Session, client, loc), nil)
	case scheduling.OutcomeAlreadyScheduled:
		h.sendMessage(ctx, b, msg.Chat.ID, "ℹ️ Клиент уже записан на это время\n\n"+formatting.SessionLine(res.Session, client, loc), nil)
	default:
		h.sendConflict(ctx, b, msg.Chat.ID, coach, client, res)
	}
}

// sendConflict сообщение о конфликте с кнопками выбора решения
func (h *Handlers) sendConflict(ctx context.Context, b *bot.Bot, chatID int64, coach, incoming *model.User, res *negotiation.ProposeResult) {
	existingClient := h.user(ctx, res.Conflict.Existing.ClientID)
	text := formatting.ConflictText(res, incoming, existingClient, coach.Location())
	canReschedule := negotiation.Reschedulable(&res.Conflict.Existing, coach.ID)
	h.sendMessage(ctx, b, chatID, text, keyboard.Conflict(res.Negotiation, canReschedule))
}

const seriesUsage = "Использование: /series <@клиент|id> <дни> <ЧЧ:ММ> <недель> [минуты] [тип]\n" +
	"Например: /series @anna mon,thu 18:00 8 60"

// handleSeries регулярные сессии по дням недели на несколько недель вперёд
func (h *Handlers) handleSeries(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}

	a, err := parseSeriesArgs(args)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, seriesUsage)
		return
	}
	client, err := h.userService.FindClient(ctx, a.ClientRef)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, seriesUsage)
		return
	}

	result, err := h.sessionService.CreateRecurringSeries(ctx, service.SeriesRequest{
		CoachID:         coach.ID,
		ClientID:        client.ID,
		Weekdays:        a.Weekdays,
		Start:           a.Start,
		Weeks:           a.Weeks,
		DurationMinutes: a.Minutes,
		SessionType:     a.SessionType,
	})
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, seriesUsage)
		return
	}

	h.sendMessage(ctx, b, msg.Chat.ID, seriesText(result, client, a.Weeks), nil)
	for _, o := range result.Occurrences {
		if o.Err == nil && o.Result.Outcome == scheduling.OutcomeConflict {
			h.sendConflict(ctx, b, msg.Chat.ID, coach, client, o.Result)
		}
	}
}

func seriesText(result *service.SeriesResult, client *model.User, weeks int) string {
	created := result.Count(scheduling.OutcomeFree)
	existing := result.Count(scheduling.OutcomeAlreadyScheduled)
	conflicts := result.Count(scheduling.OutcomeConflict)

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔁 Серия для %s на %d %s\n\n", client.DisplayName(), weeks, formatting.PluralizeWeeks(weeks))
	fmt.Fprintf(&sb, "✅ Создано: %d %s\n", created, formatting.PluralizeSessions(created))
	if existing > 0 {
		fmt.Fprintf(&sb, "ℹ️ Уже были: %d\n", existing)
	}
	if conflicts > 0 {
		fmt.Fprintf(&sb, "⚠️ %d %s, решения ниже\n", conflicts, formatting.PluralizeConflicts(conflicts))
	}
	if failed := result.Failed(); failed > 0 {
		fmt.Fprintf(&sb, "❌ Не удалось: %d\n", failed)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// handlePending все неразрешённые конфликты коуча, по сообщению на каждый
func (h *Handlers) handlePending(ctx context.Context, b *bot.Bot, msg *models.Message, _ []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}

	items, err := h.negotiator.Pending(ctx, coach.ID)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, "")
		return
	}
	if len(items) == 0 {
		h.sendMessage(ctx, b, msg.Chat.ID, "✨ Неразрешённых конфликтов нет", nil)
		return
	}

	h.sendMessage(ctx, b, msg.Chat.ID, fmt.Sprintf("⚠️ %d %s:", len(items), formatting.PluralizeConflicts(len(items))), nil)
	loc := coach.Location()
	for i := range items {
		item := &items[i]
		client := h.user(ctx, pendingClientID(item))
		h.sendMessage(ctx, b, msg.Chat.ID, formatting.PendingItemText(item, client, loc), keyboard.Pending(item))
	}
}

func pendingClientID(item *negotiation.PendingItem) int64 {
	if item.Negotiation != nil {
		return item.Negotiation.IncomingClientID
	}
	return item.Session.ClientID
}

// handleSessions ближайшие сессии: у коуча его расписание, у клиента его записи
func (h *Handlers) handleSessions(ctx context.Context, b *bot.Bot, msg *models.Message, _ []string) {
	user, ok := h.requireUser(ctx, b, msg)
	if !ok {
		return
	}

	var (
		sessions []model.Session
		err      error
	)
	if user.IsCoach {
		sessions, err = h.sessionService.Upcoming(ctx, user.ID, UpcomingDays)
	} else {
		sessions, err = h.sessionService.ClientSessions(ctx, user.ID)
	}
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, "")
		return
	}
	if len(sessions) == 0 {
		h.sendMessage(ctx, b, msg.Chat.ID, "📭 Ближайших сессий нет", nil)
		return
	}

	loc := user.Location()
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 Ближайшие %s:\n\n", formatting.PluralizeSessions(len(sessions)))
	for i := range sessions {
		s := &sessions[i]
		other := s.ClientID
		if !user.IsCoach {
			other = s.CoachID
		}
		sb.WriteString(formatting.SessionLine(s, h.user(ctx, other), loc))
		sb.WriteString("\n")
	}
	h.sendMessage(ctx, b, msg.Chat.ID, strings.TrimRight(sb.String(), "\n"), keyboard.CancelSessions(sessions, loc))
}

const weekUsage = "Использование: /week [2026-10-20]"

// handleWeek расписание недели картинкой
func (h *Handlers) handleWeek(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	coach, ok := h.requireCoach(ctx, b, msg)
	if !ok {
		return
	}
	if len(args) > 1 {
		h.replyError(ctx, b, msg.Chat.ID, ErrBadArgs, weekUsage)
		return
	}

	loc := coach.Location()
	now := h.now()
	day, err := parseOptionalDate(args, 0, model.DateOf(now, loc))
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, weekUsage)
		return
	}

	sessions, monday, err := h.sessionService.Week(ctx, coach.ID, day, loc)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, weekUsage)
		return
	}
	template, err := h.availabilityService.GetWeeklyTemplate(ctx, coach.ID)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, weekUsage)
		return
	}
	blocked, err := h.availabilityService.GetBlockedDates(ctx, coach.ID)
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, weekUsage)
		return
	}

	names := make(map[int64]string)
	for _, s := range sessions {
		if _, ok := names[s.ClientID]; !ok {
			names[s.ClientID] = h.user(ctx, s.ClientID).DisplayName()
		}
	}

	imageData, err := render.WeekImage(render.Week{
		Start:       monday,
		Location:    loc,
		Now:         now,
		Template:    template,
		Blocked:     blocked,
		Sessions:    sessions,
		ClientNames: names,
	})
	if err != nil {
		h.logger.Error("Failed to render week", zap.Int64("coach_id", coach.ID), zap.Error(err))
		h.sendError(ctx, b, msg.Chat.ID, "❌ Не удалось построить расписание")
		return
	}

	caption := fmt.Sprintf("🗓 Неделя с %s, %d %s",
		formatting.FormatDate(monday), len(sessions), formatting.PluralizeSessions(len(sessions)))
	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  msg.Chat.ID,
		Photo:   &models.InputFileUpload{Filename: "week.png", Data: bytes.NewReader(imageData)},
		Caption: caption,
	})
	if err != nil {
		h.logger.Error("Failed to send week image", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

// user пользователь для подписи в сообщениях; при ошибке заглушка с id
func (h *Handlers) user(ctx context.Context, id int64) *model.User {
	u, err := h.userService.GetByID(ctx, id)
	if err != nil {
		h.logger.Warn("Failed to get user", zap.Int64("user_id", id), zap.Error(err))
	}
	if u == nil {
		return &model.User{ID: id, FirstName: fmt.Sprintf("#%d", id)}
	}
	return u
}
