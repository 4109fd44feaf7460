package callbacks

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common"
	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/coach_scheduler/internal/controller/callbacks/common/keyboard"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
)

// coachNegotiation переговоры, которыми управляет текущий пользователь-коуч
func (h *Handler) coachNegotiation(hc *common.HandlerContext, d callbacktypes.Data) (*model.Negotiation, error) {
	neg, err := h.negotiator.Get(hc.Ctx, d.NegotiationID)
	if err != nil {
		return nil, err
	}
	if neg.CoachID != hc.User.ID {
		return nil, common.ErrForbidden
	}
	return neg, nil
}

// recipientNegotiation переговоры, предложение по которым адресовано текущему пользователю
func (h *Handler) recipientNegotiation(hc *common.HandlerContext, d callbacktypes.Data) (*model.Negotiation, error) {
	neg, err := h.negotiator.Get(hc.Ctx, d.NegotiationID)
	if err != nil {
		return nil, err
	}
	if neg.RecipientClientID == nil || *neg.RecipientClientID != hc.User.ID {
		return nil, common.ErrForbidden
	}
	return neg, nil
}

func (h *Handler) fail(hc *common.HandlerContext, op string, err error) {
	h.logger.Warn("Callback failed",
		zap.String("op", op),
		zap.String("data", hc.Callback.Data),
		zap.Int64("user_id", hc.User.ID),
		zap.Error(err),
	)
	hc.AnswerAlert(common.ErrorMessage(err))
}

func (h *Handler) edit(hc *common.HandlerContext, text string) {
	if err := hc.EditMessage(text, nil); err != nil {
		h.logger.Warn("Failed to edit message", zap.Int64("chat_id", hc.ChatID), zap.Error(err))
	}
}

// handleResolve выбор коуча: предложить новое время, попросить о переносе или отменить
func (h *Handler) handleResolve(hc *common.HandlerContext, d callbacktypes.Data) {
	neg, err := h.coachNegotiation(hc, d)
	if err != nil {
		h.fail(hc, "resolve", err)
		return
	}

	res := resolutionFor(d.Action, neg)
	updated, err := h.negotiator.Resolve(hc.Ctx, neg.ID, res)
	switch {
	case errors.Is(err, negotiation.ErrDeliveryFailed) && updated != nil:
		hc.Answer("")
		if editErr := hc.EditMessage(common.ErrorMessage(err), keyboard.Pending(&negotiation.PendingItem{
			Status:      negotiation.PendingAwaitingClient,
			Negotiation: updated,
		})); editErr != nil {
			h.logger.Warn("Failed to edit message", zap.Error(editErr))
		}
		return
	case err != nil:
		h.fail(hc, "resolve", err)
		return
	}

	hc.Answer("")
	if updated.State == model.NegotiationAbandoned {
		h.edit(hc, "❌ Новая сессия отменена, конфликт закрыт")
		return
	}

	recipient, err := h.users.GetByID(hc.Ctx, *updated.RecipientClientID)
	if err != nil {
		h.logger.Error("Failed to get recipient", zap.Error(err))
	}
	slots := len(updated.Payload.Offer().AvailableSlots)
	h.edit(hc, fmt.Sprintf("📨 Предложение отправлено: %s, %d %s на выбор",
		recipient.DisplayName(), slots, formatting.PluralizeSlots(slots)))
}

// handleAccept клиент выбрал одно из предложенных времён
func (h *Handler) handleAccept(hc *common.HandlerContext, d callbacktypes.Data) {
	neg, err := h.recipientNegotiation(hc, d)
	if err != nil {
		h.fail(hc, "accept", err)
		return
	}

	offer := neg.Payload.Offer()
	if d.SlotIndex >= len(offer.AvailableSlots) {
		h.fail(hc, "accept", negotiation.ErrSlotNotOffered)
		return
	}
	slot := offer.AvailableSlots[d.SlotIndex]
	loc := hc.User.Location()

	result, err := h.negotiator.Accept(hc.Ctx, neg.ID, slot)
	var unavailable *negotiation.SlotUnavailableError
	switch {
	case errors.As(err, &unavailable):
		hc.AnswerAlert(common.ErrorMessage(err))
		if editErr := hc.EditMessage(
			formatting.SlotTakenText(slot, len(unavailable.Remaining), loc),
			keyboard.Proposal(neg, unavailable.Remaining, loc),
		); editErr != nil {
			h.logger.Warn("Failed to edit message", zap.Error(editErr))
		}
		return
	case err != nil:
		h.fail(hc, "accept", err)
		return
	}

	hc.Answer("✅ Готово")
	h.edit(hc, fmt.Sprintf("✅ Сессия назначена: %s (%s)",
		formatting.FormatDateTime(result.Session.ScheduledAt, loc),
		formatting.FormatDuration(result.Session.DurationMinutes),
	))
}

// handleDecline клиент отказался от предложения
func (h *Handler) handleDecline(hc *common.HandlerContext, d callbacktypes.Data) {
	neg, err := h.recipientNegotiation(hc, d)
	if err != nil {
		h.fail(hc, "decline", err)
		return
	}
	if _, err := h.negotiator.Decline(hc.Ctx, neg.ID); err != nil {
		h.fail(hc, "decline", err)
		return
	}

	hc.Answer("")
	h.edit(hc, "🚫 Вы отказались от предложения. Коуч получит уведомление.")
}

// handleRedeliver повторная отправка предложения клиенту
func (h *Handler) handleRedeliver(hc *common.HandlerContext, d callbacktypes.Data) {
	neg, err := h.coachNegotiation(hc, d)
	if err != nil {
		h.fail(hc, "redeliver", err)
		return
	}
	if _, err := h.negotiator.Redeliver(hc.Ctx, neg.ID); err != nil {
		h.fail(hc, "redeliver", err)
		return
	}
	hc.Answer("📨 Предложение отправлено повторно")
}

// handleDiscard ручное закрытие конфликта коучем
func (h *Handler) handleDiscard(hc *common.HandlerContext, d callbacktypes.Data) {
	neg, err := h.coachNegotiation(hc, d)
	if err != nil {
		h.fail(hc, "discard", err)
		return
	}
	if _, err := h.negotiator.Discard(hc.Ctx, neg.ID); err != nil {
		h.fail(hc, "discard", err)
		return
	}

	hc.Answer("")
	h.edit(hc, "🗑 Конфликт закрыт")
}

// handleCancelSession отмена сессии коучем или клиентом
func (h *Handler) handleCancelSession(hc *common.HandlerContext, d callbacktypes.Data) {
	sess, err := h.sessions.CancelSession(hc.Ctx, hc.User.ID, d.SessionID, "")
	if err != nil {
		h.fail(hc, "cancel_session", err)
		return
	}

	hc.Answer("")
	h.edit(hc, fmt.Sprintf("❌ Сессия %s отменена", formatting.FormatDateTime(sess.ScheduledAt, hc.User.Location())))
}

// resolutionFor решение коуча для нажатой кнопки. Получатель предложения может отказаться
// в обоих вариантах, чтобы переговоры не зависали без ответа.
func resolutionFor(action callbacktypes.Action, neg *model.Negotiation) model.Resolution {
	switch action {
	case callbacktypes.ResolveIncoming:
		return model.Resolution{Action: model.ResolutionProposeNewTime, AllowDecline: true}
	case callbacktypes.ResolveExisting:
		target := neg.ExistingSessionID
		return model.Resolution{
			Action:          model.ResolutionRescheduleExisting,
			TargetSessionID: &target,
			AllowDecline:    true,
		}
	default:
		return model.Resolution{Action: model.ResolutionCancel}
	}
}
