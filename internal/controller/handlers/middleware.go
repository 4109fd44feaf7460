package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// requireUser проверяет что пользователь существует
// Возвращает user и true если OK, nil и false если нет
func (h *Handlers) requireUser(ctx context.Context, b *bot.Bot, msg *models.Message) (*model.User, bool) {
	telegramID := msg.From.ID
	user, err := h.userService.GetByTelegramID(ctx, telegramID)

	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		h.sendError(ctx, b, msg.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return nil, false
	}

	if user == nil {
		h.sendError(ctx, b, msg.Chat.ID, "❌ Пользователь не найден. Используйте /start для регистрации.")
		return nil, false
	}

	return user, true
}

// requireCoach проверяет что пользователь является коучем
func (h *Handlers) requireCoach(ctx context.Context, b *bot.Bot, msg *models.Message) (*model.User, bool) {
	user, ok := h.requireUser(ctx, b, msg)
	if !ok {
		return nil, false
	}

	if !user.IsCoach {
		h.sendError(ctx, b, msg.Chat.ID, "❌ Эта команда доступна только коучам.\n\nСтать коучем: /becomecoach")
		return nil, false
	}

	return user, true
}

// sendError отправляет сообщение об ошибке и логирует если не удалось
func (h *Handlers) sendError(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		h.logger.Error("Failed to send error message",
			zap.Int64("chat_id", chatID),
			zap.String("text", text),
			zap.Error(err),
		)
	}
}

// replyError отвечает на ошибку сервиса: для ErrBadArgs показывает подсказку usage
func (h *Handlers) replyError(ctx context.Context, b *bot.Bot, chatID int64, err error, usage string) {
	if errors.Is(err, ErrBadArgs) {
		h.sendError(ctx, b, chatID, "❌ Неверные аргументы.\n\n"+usage)
		return
	}
	h.logger.Warn("Command failed", zap.Int64("chat_id", chatID), zap.Error(err))
	h.sendError(ctx, b, chatID, common.ErrorMessage(err))
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
