package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/proposal"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
)

// AcceptResult итог принятия предложения
type AcceptResult struct {
	Negotiation *model.Negotiation
	Session     *model.Session // сессия в выбранное время
	// Promoted заглушка входящего клиента, ставшая сессией после переноса существующей
	Promoted *model.Session
	// AlreadyAccepted повторное принятие того же слота, ничего не изменено
	AlreadyAccepted bool
}

// Accept применяет выбор клиента. Слот перепроверяется внутри транзакции;
// если он занят, возвращается *SlotUnavailableError с оставшимися свободными слотами
// и ничего не меняется. Повторное принятие того же слота возвращает ту же сессию.
func (n *Negotiator) Accept(ctx context.Context, id uuid.UUID, slot time.Time) (*AcceptResult, error) {
	slot = slot.UTC()

	var result *AcceptResult
	err := n.tx.WithinTx(ctx, func(ctx context.Context) error {
		neg, err := n.lockNegotiation(ctx, id)
		if err != nil {
			return err
		}

		if neg.State == model.NegotiationAccepted {
			if neg.AcceptedSlot == nil || !neg.AcceptedSlot.Equal(slot) || neg.ResultSessionID == nil {
				return fmt.Errorf("%w: another slot was accepted", ErrNegotiationClosed)
			}
			session, err := n.sessions.GetByID(ctx, *neg.ResultSessionID)
			if err != nil {
				return fmt.Errorf("get accepted session: %w", err)
			}
			result = &AcceptResult{Negotiation: neg, Session: session, AlreadyAccepted: true}
			return nil
		}
		if err := checkOpen(neg); err != nil {
			return err
		}
		if !neg.Payload.Offer().HasSlot(slot) {
			return ErrSlotNotOffered
		}

		cal, err := n.loadCalendar(ctx, neg.CoachID)
		if err != nil {
			return err
		}

		result = &AcceptResult{Negotiation: neg}
		switch p := neg.Payload.(type) {
		case *proposal.NewSession:
			result.Session, err = n.acceptNewSession(ctx, cal, neg, p, slot)
		case *proposal.Reschedule:
			result.Session, result.Promoted, err = n.acceptReschedule(ctx, cal, neg, p, slot)
		default:
			err = fmt.Errorf("%w: %T", proposal.ErrUnknownKind, neg.Payload)
		}
		if err != nil {
			return err
		}

		sessionID := result.Session.ID
		neg.AcceptedSlot = &slot
		neg.ResultSessionID = &sessionID
		return n.transition(ctx, neg, model.NegotiationAccepted)
	})
	if err != nil {
		var unavailable *SlotUnavailableError
		if errors.As(err, &unavailable) {
			n.metrics.IncStaleAccept()
			n.logger.Warn("Accepted slot is no longer available",
				zap.Stringer("negotiation_id", id),
				zap.Time("slot", slot),
				zap.Int("remaining", len(unavailable.Remaining)),
			)
			return nil, err
		}
		n.logger.Error("Failed to accept proposal", zap.Stringer("negotiation_id", id), zap.Error(err))
		return nil, err
	}

	if !result.AlreadyAccepted {
		n.metrics.ObserveTransition(string(model.NegotiationAccepted))
		n.logger.Info("Proposal accepted",
			zap.Stringer("negotiation_id", id),
			zap.Int64("session_id", result.Session.ID),
			zap.Time("slot", slot),
			zap.Bool("promoted", result.Promoted != nil),
		)
	}
	return result, nil
}

// acceptNewSession заглушка входящего клиента становится сессией в выбранное время.
// Если заглушки уже нет, сессия создаётся только после проверки, что клиент ещё не записан.
func (n *Negotiator) acceptNewSession(ctx context.Context, cal *calendar, neg *model.Negotiation, p *proposal.NewSession, slot time.Time) (*model.Session, error) {
	req := model.SessionRequest{
		CoachID:         p.Data.CoachID,
		ClientID:        p.Data.ClientID,
		ScheduledAt:     slot,
		DurationMinutes: p.Data.DurationMinutes,
		SessionType:     model.ParseSessionType(p.Data.SessionType),
	}

	var placeholder *model.Session
	if neg.PendingSessionID != nil {
		s, err := n.sessions.GetByIDForUpdate(ctx, *neg.PendingSessionID)
		if err != nil {
			return nil, fmt.Errorf("get pending session: %w", err)
		}
		if s != nil && s.Status == model.SessionStatusCancelled {
			return nil, fmt.Errorf("%w: pending session was cancelled", ErrNegotiationClosed)
		}
		placeholder = s
	}

	offer := p.Offer()
	from, to := spanOf(cal.loc, offer.AvailableSlots...)
	existing, err := n.sessions.ListForCheck(ctx, req.CoachID, []int64{req.ClientID}, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var opts []scheduling.CheckOption
	if placeholder != nil {
		opts = append(opts, scheduling.IgnoreSessions(placeholder.ID))
	}

	check := scheduling.Check(req, existing, cal.loc, opts...)
	switch {
	case check.Outcome == scheduling.OutcomeAlreadyScheduled:
		// клиент уже записан ровно на это время, вторую сессию не создаём
		if placeholder != nil {
			if err := n.sessions.Delete(ctx, placeholder.ID); err != nil {
				return nil, fmt.Errorf("delete pending session: %w", err)
			}
		}
		return check.Existing, nil
	case check.Outcome == scheduling.OutcomeConflict, !slot.After(n.now()):
		return nil, n.unavailable(cal, req, offer, slot, existing, opts...)
	}

	remaining := n.remainingSlots(cal, req, offer, slot, existing, opts...)
	now := n.now()

	if placeholder != nil {
		placeholder.ScheduledAt = slot
		placeholder.Status = model.SessionStatusScheduled
		placeholder.InviteSent = true
		placeholder.Negotiation = model.NegotiationTag{Kind: model.NegotiationTagNone}
		placeholder.CancellationReason = nil
		placeholder.UpdatedAt = now
		if err := n.sessions.Update(ctx, placeholder); err != nil {
			return nil, storeError("update pending session", err, slot, remaining)
		}
		return placeholder, nil
	}

	session := n.newSession(req, model.SessionStatusScheduled)
	session.InviteSent = true
	if err := n.sessions.Create(ctx, session); err != nil {
		return nil, storeError("create session", err, slot, remaining)
	}
	return session, nil
}

// acceptReschedule существующая сессия переносится на выбранное время.
// Заглушка входящего клиента становится сессией, если её время теперь свободно.
func (n *Negotiator) acceptReschedule(ctx context.Context, cal *calendar, neg *model.Negotiation, p *proposal.Reschedule, slot time.Time) (*model.Session, *model.Session, error) {
	existing, err := n.sessions.GetByIDForUpdate(ctx, p.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("get existing session: %w", err)
	}
	if existing == nil {
		return nil, nil, fmt.Errorf("%w: session %d", ErrSessionNotFound, p.SessionID)
	}
	if !existing.IsActive() {
		return nil, nil, fmt.Errorf("%w: session %d was cancelled", ErrNegotiationClosed, p.SessionID)
	}
	if existing.Status == model.SessionStatusPendingResolution {
		return nil, nil, fmt.Errorf("%w: session %d", ErrExistingUnresolved, p.SessionID)
	}

	placeholder, err := n.lockPlaceholder(ctx, neg)
	if err != nil {
		return nil, nil, err
	}

	offer := p.Offer()
	span := append([]time.Time{existing.ScheduledAt}, offer.AvailableSlots...)
	if placeholder != nil {
		span = append(span, placeholder.ScheduledAt)
	}
	from, to := spanOf(cal.loc, span...)
	sessions, err := n.sessions.ListForCheck(ctx, neg.CoachID, []int64{existing.ClientID, neg.IncomingClientID}, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list sessions: %w", err)
	}

	req := existing.Request().At(slot)
	ignoreExisting := scheduling.IgnoreSessions(existing.ID)
	if scheduling.Check(req, sessions, cal.loc, ignoreExisting).Outcome != scheduling.OutcomeFree || !slot.After(n.now()) {
		return nil, nil, n.unavailable(cal, req, offer, slot, sessions, ignoreExisting)
	}
	remaining := n.remainingSlots(cal, req, offer, slot, sessions, ignoreExisting)

	now := n.now()
	existing.ScheduledAt = slot
	existing.Status = model.SessionStatusScheduled
	existing.Negotiation = model.NegotiationTag{Kind: model.NegotiationTagNone}
	existing.CancellationReason = nil
	existing.InviteSent = true
	existing.UpdatedAt = now
	if err := n.sessions.Update(ctx, existing); err != nil {
		return nil, nil, storeError("update existing session", err, slot, remaining)
	}

	if placeholder == nil || placeholder.Status != model.SessionStatusPendingResolution {
		return existing, nil, nil
	}

	check := scheduling.Check(placeholder.Request(), sessions, cal.loc,
		scheduling.IgnoreSessions(placeholder.ID, existing.ID),
		scheduling.Reserve(req),
	)
	if check.Outcome != scheduling.OutcomeFree {
		n.logger.Warn("Pending session still conflicts after reschedule",
			zap.Stringer("negotiation_id", neg.ID),
			zap.Int64("session_id", placeholder.ID),
		)
		return existing, nil, nil
	}

	placeholder.Status = model.SessionStatusScheduled
	placeholder.Negotiation = model.NegotiationTag{Kind: model.NegotiationTagNone}
	placeholder.UpdatedAt = now
	if err := n.sessions.Update(ctx, placeholder); err != nil {
		return nil, nil, fmt.Errorf("promote pending session: %w", err)
	}
	if err := n.publish(ctx, sessionEvent(placeholder, now)); err != nil {
		return nil, nil, err
	}
	return existing, placeholder, nil
}

// Decline отказ клиента. Разрешён только для предложений в режиме confirm.
// Время сессии не меняется, на ней остаются тег rejected и причина reschedule_rejected.
func (n *Negotiator) Decline(ctx context.Context, id uuid.UUID) (*model.Negotiation, error) {
	var neg *model.Negotiation
	var changed bool
	err := n.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		neg, err = n.lockNegotiation(ctx, id)
		if err != nil {
			return err
		}
		if neg.State == model.NegotiationDeclined {
			return nil
		}
		if err := checkOpen(neg); err != nil {
			return err
		}
		if !neg.Payload.Offer().Mode.AllowsDecline() {
			return ErrDeclineNotAllowed
		}

		var target *int64
		switch p := neg.Payload.(type) {
		case *proposal.Reschedule:
			target = &p.SessionID
		case *proposal.NewSession:
			target = neg.PendingSessionID
		}
		if target != nil {
			session, err := n.sessions.GetByIDForUpdate(ctx, *target)
			if err != nil {
				return fmt.Errorf("get session: %w", err)
			}
			if session != nil {
				reason := model.CancellationReasonRescheduleRejected
				session.Negotiation = model.NegotiationTag{Kind: model.NegotiationTagRejected}
				session.CancellationReason = &reason
				session.UpdatedAt = n.now()
				if err := n.sessions.Update(ctx, session); err != nil {
					return fmt.Errorf("update session: %w", err)
				}
			}
		}

		changed = true
		return n.transition(ctx, neg, model.NegotiationDeclined)
	})
	if err != nil {
		n.logger.Error("Failed to decline proposal", zap.Stringer("negotiation_id", id), zap.Error(err))
		return nil, err
	}

	if changed {
		n.metrics.ObserveTransition(string(model.NegotiationDeclined))
		n.logger.Info("Proposal declined", zap.Stringer("negotiation_id", id))
	}
	return neg, nil
}

// Discard ручная очистка: удаляет заглушку входящего клиента, снимает просьбу о переносе
// с существующей сессии и закрывает переговоры как abandoned.
func (n *Negotiator) Discard(ctx context.Context, id uuid.UUID) (*model.Negotiation, error) {
	var neg *model.Negotiation
	var changed bool
	err := n.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		neg, err = n.lockNegotiation(ctx, id)
		if err != nil {
			return err
		}
		switch neg.State {
		case model.NegotiationAbandoned:
			return nil
		case model.NegotiationAccepted:
			return fmt.Errorf("%w: negotiation is accepted", ErrNegotiationClosed)
		}
		changed = true
		return n.abandon(ctx, neg)
	})
	if err != nil {
		n.logger.Error("Failed to discard negotiation", zap.Stringer("negotiation_id", id), zap.Error(err))
		return nil, err
	}

	if changed {
		n.metrics.ObserveTransition(string(model.NegotiationAbandoned))
		n.logger.Info("Negotiation discarded", zap.Stringer("negotiation_id", id))
	}
	return neg, nil
}

// abandon удаляет заглушку, снимает тег pending_reschedule и закрывает переговоры
func (n *Negotiator) abandon(ctx context.Context, neg *model.Negotiation) error {
	placeholder, err := n.lockPlaceholder(ctx, neg)
	if err != nil {
		return err
	}
	if placeholder != nil && placeholder.Status == model.SessionStatusPendingResolution {
		if err := n.sessions.Delete(ctx, placeholder.ID); err != nil {
			return fmt.Errorf("delete pending session: %w", err)
		}
	}

	existing, err := n.sessions.GetByIDForUpdate(ctx, neg.ExistingSessionID)
	if err != nil {
		return fmt.Errorf("get existing session: %w", err)
	}
	if existing != nil && existing.Negotiation.Kind == model.NegotiationTagPendingReschedule &&
		existing.Negotiation.TargetClientID != nil && *existing.Negotiation.TargetClientID == neg.IncomingClientID {
		existing.Negotiation = model.NegotiationTag{Kind: model.NegotiationTagNone}
		existing.UpdatedAt = n.now()
		if err := n.sessions.Update(ctx, existing); err != nil {
			return fmt.Errorf("update existing session: %w", err)
		}
	}

	return n.transition(ctx, neg, model.NegotiationAbandoned)
}

// checkOpen предложение должно быть отправлено и ещё ждать ответа
func checkOpen(neg *model.Negotiation) error {
	if neg.State.IsProposalSent() {
		if neg.Payload == nil {
			return fmt.Errorf("%w: negotiation %s has no proposal", proposal.ErrInvalidPayload, neg.ID)
		}
		return nil
	}
	if neg.State == model.NegotiationConflictDetected {
		return fmt.Errorf("%w: proposal was not sent yet", ErrInvalidTransition)
	}
	return fmt.Errorf("%w: negotiation is %s", ErrNegotiationClosed, neg.State)
}

// remainingSlots предложенные слоты, кроме taken, которые всё ещё свободны
func (n *Negotiator) remainingSlots(cal *calendar, req model.SessionRequest, offer proposal.Details, taken time.Time, existing []model.Session, opts ...scheduling.CheckOption) []time.Time {
	now := n.now()
	var out []time.Time
	for _, s := range offer.AvailableSlots {
		if s.Equal(taken) || !s.After(now) {
			continue
		}
		if scheduling.Check(req.At(s), existing, cal.loc, opts...).Outcome == scheduling.OutcomeFree {
			out = append(out, s)
		}
	}
	return out
}

func (n *Negotiator) unavailable(cal *calendar, req model.SessionRequest, offer proposal.Details, slot time.Time, existing []model.Session, opts ...scheduling.CheckOption) error {
	return &SlotUnavailableError{
		Slot:      slot,
		Remaining: n.remainingSlots(cal, req, offer, slot, existing, opts...),
	}
}

// storeError ограничение хранилища на пересечение тоже означает, что слот занят
func storeError(op string, err error, slot time.Time, remaining []time.Time) error {
	if errors.Is(err, model.ErrSlotTaken) {
		return &SlotUnavailableError{Slot: slot, Remaining: remaining}
	}
	return fmt.Errorf("%s: %w", op, err)
}
