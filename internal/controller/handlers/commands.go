package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type commandFunc func(ctx context.Context, b *bot.Bot, msg *models.Message, args []string)

func (h *Handlers) commands() map[string]commandFunc {
	return map[string]commandFunc{
		"start":       h.handleStart,
		"help":        h.handleHelp,
		"becomecoach": h.handleBecomeCoach,
		"timezone":    h.handleTimezone,
		"hours":       h.handleHours,
		"block":       h.handleBlock,
		"unblock":     h.handleUnblock,
		"blocked":     h.handleBlocked,
		"slots":       h.handleSlots,
		"book":        h.handleBook,
		"series":      h.handleSeries,
		"pending":     h.handlePending,
		"sessions":    h.handleSessions,
		"week":        h.handleWeek,
	}
}

// HandleCommand разбирает команду из текста сообщения и вызывает её обработчик
func (h *Handlers) HandleCommand(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	name, args := splitCommand(msg.Text)
	handler, ok := h.commands()[name]
	if !ok {
		h.sendMessage(ctx, b, msg.Chat.ID, "🤔 Неизвестная команда. Список команд: /help", nil)
		return
	}

	h.logger.Info("Command received",
		zap.String("command", name),
		zap.Int64("telegram_id", msg.From.ID),
		zap.Int("args", len(args)),
	)
	handler(ctx, b, msg, args)
}

// handleStart регистрирует пользователя
func (h *Handlers) handleStart(ctx context.Context, b *bot.Bot, msg *models.Message, _ []string) {
	user := msg.From

	registeredUser, err := h.userService.RegisterUser(
		ctx,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LanguageCode,
	)
	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		h.sendError(ctx, b, msg.Chat.ID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Это бот для расписания сессий с коучем. Когда коуч запишет вас или попросит "+
			"перенести сессию, здесь появится сообщение с вариантами времени.\n\n"+
			"/sessions - Мои сессии\n"+
			"/timezone - Часовой пояс\n"+
			"/help - Справка\n\n"+
			"Вы коуч? /becomecoach",
		registeredUser.DisplayName(),
	)
	h.sendMessage(ctx, b, msg.Chat.ID, welcomeText, nil)
}

const helpText = "📚 Справка по командам:\n\n" +
	"Для всех:\n" +
	"/start - Начать работу с ботом\n" +
	"/sessions - Ближайшие сессии\n" +
	"/timezone <IANA> - Часовой пояс, например Europe/Moscow\n\n" +
	"Для коучей:\n" +
	"/becomecoach - Стать коучем\n" +
	"/hours [день диапазоны|off] - Рабочие часы, например /hours mon 09:00-13:00,14:00-18:00\n" +
	"/block <ГГГГ-ММ-ДД> [причина] - Закрыть день\n" +
	"/unblock <ГГГГ-ММ-ДД> - Открыть день\n" +
	"/blocked - Закрытые дни\n" +
	"/slots [ГГГГ-ММ-ДД] [минуты] - Свободное время\n" +
	"/book <@клиент|id> <ГГГГ-ММ-ДД> <ЧЧ:ММ> [минуты] [тип] - Записать клиента\n" +
	"/series <@клиент|id> <mon,thu> <ЧЧ:ММ> <недель> [минуты] [тип] - Регулярные сессии\n" +
	"/pending - Неразрешённые конфликты\n" +
	"/week [ГГГГ-ММ-ДД] - Неделя картинкой"

// handleHelp показывает справку
func (h *Handlers) handleHelp(ctx context.Context, b *bot.Bot, msg *models.Message, _ []string) {
	h.sendMessage(ctx, b, msg.Chat.ID, helpText, nil)
}

// handleBecomeCoach включает пользователю функции коуча
func (h *Handlers) handleBecomeCoach(ctx context.Context, b *bot.Bot, msg *models.Message, _ []string) {
	user, ok := h.requireUser(ctx, b, msg)
	if !ok {
		return
	}
	if user.IsCoach {
		h.sendMessage(ctx, b, msg.Chat.ID, "ℹ️ Вы уже коуч", nil)
		return
	}

	if _, err := h.userService.MakeCoach(ctx, user.ID); err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, "")
		return
	}

	h.sendMessage(ctx, b, msg.Chat.ID,
		"🎉 Теперь вы коуч!\n\n"+
			"1. Укажите часовой пояс: /timezone Europe/Moscow\n"+
			"2. Настройте рабочие часы: /hours mon 09:00-18:00\n"+
			"3. Записывайте клиентов: /book @username 2026-10-20 10:00",
		nil)
}

// handleTimezone показывает или меняет часовой пояс
func (h *Handlers) handleTimezone(ctx context.Context, b *bot.Bot, msg *models.Message, args []string) {
	const usage = "Использование: /timezone Europe/Moscow"

	user, ok := h.requireUser(ctx, b, msg)
	if !ok {
		return
	}
	if len(args) == 0 {
		h.sendMessage(ctx, b, msg.Chat.ID, fmt.Sprintf("🌍 Ваш часовой пояс: %s\n\n%s", user.Location(), usage), nil)
		return
	}
	if len(args) != 1 {
		h.replyError(ctx, b, msg.Chat.ID, ErrBadArgs, usage)
		return
	}

	updated, err := h.userService.SetTimezone(ctx, user.ID, args[0])
	if err != nil {
		h.replyError(ctx, b, msg.Chat.ID, err, usage)
		return
	}
	h.sendMessage(ctx, b, msg.Chat.ID, "✅ Часовой пояс: "+updated.Timezone, nil)
}
