package controller

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks"
	"github.com/Freeeeeet/coach_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

type BotController struct {
	bot             *bot.Bot
	handlers        *handlers.Handlers
	callbackHandler *callbacks.Handler
	logger          *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	userService *service.UserService,
	availabilityService *service.AvailabilityService,
	sessionService *service.SessionService,
	negotiator *negotiation.Negotiator,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:             botInstance,
		handlers:        handlers.NewHandlers(userService, availabilityService, sessionService, negotiator, logger),
		callbackHandler: callbacks.NewHandler(userService, sessionService, negotiator, logger),
		logger:          logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	// Все команды разбираются одним обработчиком, аргументы идут после имени команды
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/", bot.MatchTypePrefix, c.handlers.HandleCommand)

	// Обработчик нажатий на inline кнопки
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.callbackHandler.HandleCallbackQuery)

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "help", Description: "❓ Справка по командам"},
		{Command: "sessions", Description: "📅 Ближайшие сессии"},
		{Command: "pending", Description: "⚠️ Неразрешённые конфликты (коуч)"},
		{Command: "week", Description: "🗓 Неделя картинкой (коуч)"},
		{Command: "slots", Description: "🟢 Свободное время (коуч)"},
		{Command: "hours", Description: "🕘 Рабочие часы (коуч)"},
		{Command: "blocked", Description: "🚫 Закрытые дни (коуч)"},
		{Command: "timezone", Description: "🌍 Часовой пояс"},
		{Command: "becomecoach", Description: "🎓 Стать коучем"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота и блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}
