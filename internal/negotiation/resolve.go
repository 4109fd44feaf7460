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

// Resolve применяет выбранный коучем способ разрешения конфликта.
// Изменения сессий и переговоров фиксируются до отправки сообщения клиенту.
// Если отправка не удалась, возвращаются сохранённые переговоры и ошибка ErrDeliveryFailed:
// состояние уже зафиксировано, повторить отправку можно через Redeliver.
func (n *Negotiator) Resolve(ctx context.Context, id uuid.UUID, res model.Resolution) (*model.Negotiation, error) {
	var neg *model.Negotiation
	err := n.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		neg, err = n.lockNegotiation(ctx, id)
		if err != nil {
			return err
		}
		if neg.State != model.NegotiationConflictDetected {
			return fmt.Errorf("%w: negotiation is %s", ErrInvalidTransition, neg.State)
		}

		switch res.Action {
		case model.ResolutionCancel:
			return n.abandon(ctx, neg)
		case model.ResolutionProposeNewTime:
			return n.proposeToIncoming(ctx, neg, res)
		case model.ResolutionRescheduleExisting:
			return n.proposeToExisting(ctx, neg, res)
		default:
			return fmt.Errorf("%w: unknown action %q", ErrInvalidResolution, res.Action)
		}
	})
	if err != nil {
		if !errors.Is(err, ErrNoAlternatives) {
			n.logger.Error("Failed to resolve conflict",
				zap.Stringer("negotiation_id", id),
				zap.String("action", string(res.Action)),
				zap.Error(err),
			)
		}
		return nil, err
	}

	n.metrics.ObserveTransition(string(neg.State))
	n.logger.Info("Conflict resolution chosen",
		zap.Stringer("negotiation_id", neg.ID),
		zap.Int64("coach_id", neg.CoachID),
		zap.String("action", string(res.Action)),
		zap.String("state", string(neg.State)),
	)

	if neg.State.IsProposalSent() {
		if err := n.deliver(ctx, neg); err != nil {
			return neg, err
		}
	}
	return neg, nil
}

// Redeliver повторно отправляет открытое предложение
func (n *Negotiator) Redeliver(ctx context.Context, id uuid.UUID) (*model.Negotiation, error) {
	neg, err := n.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !neg.State.IsProposalSent() {
		return nil, fmt.Errorf("%w: negotiation is %s", ErrNegotiationClosed, neg.State)
	}
	if err := n.deliver(ctx, neg); err != nil {
		return neg, err
	}
	return neg, nil
}

// deliver отправляет предложение получателю. Вызывается только после коммита.
func (n *Negotiator) deliver(ctx context.Context, neg *model.Negotiation) error {
	var err error
	if n.messenger == nil {
		err = errors.New("messenger is not configured")
	} else {
		err = n.messenger.DeliverProposal(ctx, neg)
	}
	n.metrics.ObserveDelivery(err)
	if err != nil {
		n.logger.Warn("Failed to deliver proposal",
			zap.Stringer("negotiation_id", neg.ID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	if !neg.InviteSent {
		if err := n.negotiations.MarkInviteSent(ctx, neg.ID); err != nil {
			n.logger.Error("Failed to mark invite sent", zap.Stringer("negotiation_id", neg.ID), zap.Error(err))
			return fmt.Errorf("mark invite sent: %w", err)
		}
		neg.InviteSent = true
	}
	return nil
}

// proposeToIncoming входящему клиенту предлагается другое время.
// Заглушка остаётся в pending_resolution до ответа клиента.
func (n *Negotiator) proposeToIncoming(ctx context.Context, neg *model.Negotiation, res model.Resolution) error {
	placeholder, err := n.lockPlaceholder(ctx, neg)
	if err != nil {
		return err
	}
	if placeholder == nil {
		return fmt.Errorf("%w: pending session of negotiation %s", ErrSessionNotFound, neg.ID)
	}

	cal, err := n.loadCalendar(ctx, neg.CoachID)
	if err != nil {
		return err
	}

	req := placeholder.Request()
	slots, err := n.candidateSlots(ctx, cal, req, res.ProposedSlots, []int64{req.ClientID}, scheduling.IgnoreSessions(placeholder.ID))
	if err != nil {
		return err
	}

	placeholder.InviteSent = true
	placeholder.UpdatedAt = n.now()
	if err := n.sessions.Update(ctx, placeholder); err != nil {
		return fmt.Errorf("update pending session: %w", err)
	}

	neg.Payload = &proposal.NewSession{
		Details: proposalDetails(placeholder.ScheduledAt, slots, res, defaultIncomingText),
		Data: proposal.SessionData{
			ClientID:        placeholder.ClientID,
			CoachID:         placeholder.CoachID,
			DurationMinutes: placeholder.DurationMinutes,
			SessionType:     string(placeholder.SessionType),
		},
	}
	recipient := neg.IncomingClientID
	neg.RecipientClientID = &recipient

	return n.transition(ctx, neg, model.NegotiationProposalSentToIncoming)
}

// proposeToExisting владельца существующей сессии просят перенести её.
// Заглушка входящего клиента продолжает занимать своё время.
func (n *Negotiator) proposeToExisting(ctx context.Context, neg *model.Negotiation, res model.Resolution) error {
	existing, err := n.sessions.GetByIDForUpdate(ctx, neg.ExistingSessionID)
	if err != nil {
		return fmt.Errorf("get existing session: %w", err)
	}
	if existing == nil || !existing.IsActive() {
		return fmt.Errorf("%w: existing session %d", ErrSessionNotFound, neg.ExistingSessionID)
	}
	if existing.CoachID != neg.CoachID {
		return fmt.Errorf("%w: existing session belongs to another coach", ErrInvalidResolution)
	}
	if existing.Status == model.SessionStatusPendingResolution {
		return fmt.Errorf("%w: session %d", ErrExistingUnresolved, existing.ID)
	}
	if res.TargetSessionID != nil && *res.TargetSessionID != existing.ID {
		return fmt.Errorf("%w: target session %d is not part of the conflict", ErrInvalidResolution, *res.TargetSessionID)
	}

	cal, err := n.loadCalendar(ctx, neg.CoachID)
	if err != nil {
		return err
	}

	req := existing.Request()
	clients := []int64{existing.ClientID, neg.IncomingClientID}
	slots, err := n.candidateSlots(ctx, cal, req, res.ProposedSlots, clients, scheduling.IgnoreSessions(existing.ID))
	if err != nil {
		return err
	}

	existing.Negotiation = model.PendingReschedule(neg.IncomingClientID)
	existing.InviteSent = true
	existing.UpdatedAt = n.now()
	if err := n.sessions.Update(ctx, existing); err != nil {
		return fmt.Errorf("update existing session: %w", err)
	}

	neg.Payload = &proposal.Reschedule{
		Details:   proposalDetails(existing.ScheduledAt, slots, res, defaultExistingText),
		SessionID: existing.ID,
	}
	recipient := existing.ClientID
	neg.RecipientClientID = &recipient

	return n.transition(ctx, neg, model.NegotiationProposalSentToExisting)
}

// Reschedulable можно ли в переговорах коуча coachID просить владельца сессии s перенести её.
// Заглушка чужого конфликта переносится только через свои переговоры.
func Reschedulable(s *model.Session, coachID int64) bool {
	return s != nil && s.IsActive() && s.CoachID == coachID && s.Status != model.SessionStatusPendingResolution
}

// candidateSlots слоты для предложения: выбранные коучем (после проверки) или рекомендованные
func (n *Negotiator) candidateSlots(
	ctx context.Context,
	cal *calendar,
	req model.SessionRequest,
	requested []time.Time,
	clientIDs []int64,
	opts ...scheduling.CheckOption,
) ([]time.Time, error) {
	if len(requested) > 0 {
		from, to := spanOf(cal.loc, requested...)
		existing, err := n.sessions.ListForCheck(ctx, req.CoachID, clientIDs, from, to)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}

		now := n.now()
		slots := make([]time.Time, 0, len(requested))
		for _, s := range requested {
			if !s.After(now) {
				return nil, fmt.Errorf("%w: slot %s is in the past", ErrInvalidResolution, s.UTC().Format(time.RFC3339))
			}
			if scheduling.Check(req.At(s), existing, cal.loc, opts...).Outcome != scheduling.OutcomeFree {
				return nil, fmt.Errorf("%w: slot %s is not free", ErrInvalidResolution, s.UTC().Format(time.RFC3339))
			}
			slots = append(slots, s.UTC())
		}
		return slots, nil
	}

	from, to := n.window(cal.loc, req.ScheduledAt)
	existing, err := n.sessions.ListForCheck(ctx, req.CoachID, clientIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	slots := utcSlots(n.recommender.Recommend(cal.enum, req, existing, opts...))
	if len(slots) == 0 {
		return nil, ErrNoAlternatives
	}
	return slots, nil
}

func proposalDetails(original time.Time, slots []time.Time, res model.Resolution, fallbackText string) proposal.Details {
	mode := proposal.ModeSelect
	if res.AllowDecline {
		mode = proposal.ModeConfirm
	}
	text := res.Text
	if text == "" {
		text = fallbackText
	}
	return proposal.Details{
		OriginalTime:   original.UTC(),
		AvailableSlots: slots,
		Mode:           mode,
		Text:           text,
	}
}

// lockPlaceholder заглушка входящего клиента, nil если её уже нет или она отменена
func (n *Negotiator) lockPlaceholder(ctx context.Context, neg *model.Negotiation) (*model.Session, error) {
	if neg.PendingSessionID == nil {
		return nil, nil
	}
	s, err := n.sessions.GetByIDForUpdate(ctx, *neg.PendingSessionID)
	if err != nil {
		return nil, fmt.Errorf("get pending session: %w", err)
	}
	if s == nil || s.Status == model.SessionStatusCancelled {
		return nil, nil
	}
	return s, nil
}
