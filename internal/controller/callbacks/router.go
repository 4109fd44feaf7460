package callbacks

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common"
)

// HandleCallbackQuery точка входа для всех callback query
func (h *Handler) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.Route(ctx, b, update.CallbackQuery)
}

// Route разбирает callback data и вызывает обработчик действия
func (h *Handler) Route(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery) {
	data := callback.Data
	h.logger.Info("Routing callback",
		zap.String("data", data),
		zap.Int64("telegram_id", callback.From.ID),
	)

	hc := common.NewHandlerContext(ctx, b, callback)

	d, err := callbacktypes.Parse(data)
	if err != nil {
		h.logger.Warn("Unknown callback", zap.String("data", data), zap.Error(err))
		hc.Answer(common.ErrorMessage(err))
		return
	}

	if err := hc.LoadUser(h.users); err != nil {
		h.logger.Error("Failed to load user",
			zap.Int64("telegram_id", hc.TelegramID),
			zap.Error(err))
		hc.AnswerAlert(common.ErrorMessage(err))
		return
	}

	switch d.Action {
	case callbacktypes.ResolveIncoming, callbacktypes.ResolveExisting, callbacktypes.ResolveCancel:
		h.handleResolve(hc, d)
	case callbacktypes.AcceptSlot:
		h.handleAccept(hc, d)
	case callbacktypes.Decline:
		h.handleDecline(hc, d)
	case callbacktypes.Redeliver:
		h.handleRedeliver(hc, d)
	case callbacktypes.Discard:
		h.handleDiscard(hc, d)
	case callbacktypes.CancelSession:
		h.handleCancelSession(hc, d)
	}
}
