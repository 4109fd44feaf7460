// Package negotiation ведёт переговоры о разрешении конфликтов расписания:
// сохраняет конфликтную сессию, отправляет клиенту предложение другого времени
// и применяет его ответ. Каждый шаг выполняется в одной транзакции хранилища,
// сообщение клиенту отправляется только после коммита.
package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/events"
	"github.com/Freeeeeet/coach_scheduler/internal/metrics"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
)

const (
	defaultIncomingText = "Выбранное время уже занято. Выберите, пожалуйста, другое время для сессии."
	defaultExistingText = "Коуч просит перенести вашу сессию на другое время."
)

// Dependencies зависимости Negotiator. Publisher, Metrics, Logger и Now необязательны.
type Dependencies struct {
	Sessions     SessionStore
	Availability AvailabilityStore
	Negotiations NegotiationStore
	Users        UserDirectory
	Tx           Transactor
	Messenger    Messenger
	Publisher    Publisher
	Recommender  *scheduling.Recommender
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Now          func() time.Time
}

type Negotiator struct {
	sessions     SessionStore
	availability AvailabilityStore
	negotiations NegotiationStore
	users        UserDirectory
	tx           Transactor
	messenger    Messenger
	publisher    Publisher
	recommender  *scheduling.Recommender
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

func New(deps Dependencies) *Negotiator {
	n := &Negotiator{
		sessions:     deps.Sessions,
		availability: deps.Availability,
		negotiations: deps.Negotiations,
		users:        deps.Users,
		tx:           deps.Tx,
		messenger:    deps.Messenger,
		publisher:    deps.Publisher,
		recommender:  deps.Recommender,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		now:          deps.Now,
	}
	if n.recommender == nil {
		n.recommender = scheduling.NewRecommender(0, 0)
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// ProposeResult результат предложения новой сессии
type ProposeResult struct {
	Outcome     scheduling.Outcome
	Session     *model.Session     // созданная сессия, уже существующая или заглушка pending_resolution
	Negotiation *model.Negotiation // только при конфликте
	Conflict    *model.Conflict    // только при конфликте, вместе с рекомендациями
	// NoWorkingHours у коуча не настроены рабочие часы, поэтому рекомендаций нет
	NoWorkingHours bool
}

// Propose проверяет предложенную коучем сессию и сохраняет её.
// Свободное время: сессия создаётся со статусом scheduled.
// Клиент уже записан на это время: возвращается существующая сессия, ничего не пишется.
// Конфликт: в одной транзакции создаются заглушка pending_resolution и переговоры conflict_detected.
func (n *Negotiator) Propose(ctx context.Context, req model.SessionRequest) (*ProposeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.ScheduledAt = req.ScheduledAt.UTC()

	cal, err := n.loadCalendar(ctx, req.CoachID)
	if err != nil {
		return nil, err
	}

	var result *ProposeResult
	err = n.tx.WithinTx(ctx, func(ctx context.Context) error {
		from, to := n.window(cal.loc, req.ScheduledAt)
		existing, err := n.sessions.ListForCheck(ctx, req.CoachID, []int64{req.ClientID}, from, to)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		check := scheduling.Check(req, existing, cal.loc)
		switch check.Outcome {
		case scheduling.OutcomeAlreadyScheduled:
			result = &ProposeResult{Outcome: check.Outcome, Session: check.Existing}
			return nil

		case scheduling.OutcomeFree:
			session := n.newSession(req, model.SessionStatusScheduled)
			if err := n.sessions.Create(ctx, session); err != nil {
				return fmt.Errorf("create session: %w", err)
			}
			if err := n.publish(ctx, sessionEvent(session, n.now())); err != nil {
				return err
			}
			result = &ProposeResult{Outcome: check.Outcome, Session: session}
			return nil
		}

		// Сохраняем конфликтную сессию, чтобы она не потерялась до решения коуча
		conflict := check.Conflict
		conflict.Recommendations = utcSlots(n.recommender.Recommend(cal.enum, req, existing))

		placeholder := n.newSession(req, model.SessionStatusPendingResolution)
		if err := n.sessions.Create(ctx, placeholder); err != nil {
			return fmt.Errorf("create pending session: %w", err)
		}

		now := n.now()
		neg := &model.Negotiation{
			ID:                uuid.New(),
			CoachID:           req.CoachID,
			IncomingClientID:  req.ClientID,
			PendingSessionID:  &placeholder.ID,
			ExistingSessionID: conflict.Existing.ID,
			ConflictType:      conflict.Type,
			State:             model.NegotiationConflictDetected,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := n.negotiations.Create(ctx, neg); err != nil {
			return fmt.Errorf("create negotiation: %w", err)
		}
		if err := n.publish(ctx, negotiationEvent(neg)); err != nil {
			return err
		}

		result = &ProposeResult{
			Outcome:        check.Outcome,
			Session:        placeholder,
			Negotiation:    neg,
			Conflict:       conflict,
			NoWorkingHours: !cal.enum.HasTemplate(),
		}
		return nil
	})
	if err != nil {
		n.logger.Error("Failed to propose session",
			zap.Int64("coach_id", req.CoachID),
			zap.Int64("client_id", req.ClientID),
			zap.Time("scheduled_at", req.ScheduledAt),
			zap.Error(err),
		)
		return nil, err
	}

	n.metrics.ObserveProposal(result.Outcome.String())
	if result.Conflict != nil {
		n.metrics.ObserveConflict(string(result.Conflict.Type))
		n.metrics.ObserveTransition(string(model.NegotiationConflictDetected))
	}

	n.logger.Info("Session proposed",
		zap.Int64("coach_id", req.CoachID),
		zap.Int64("client_id", req.ClientID),
		zap.Time("scheduled_at", req.ScheduledAt),
		zap.Stringer("outcome", result.Outcome),
		zap.Int64("session_id", result.Session.ID),
	)

	return result, nil
}

// Stale открытые переговоры, которые не менялись дольше age
func (n *Negotiator) Stale(ctx context.Context, age time.Duration) ([]model.Negotiation, error) {
	negs, err := n.negotiations.ListStale(ctx, n.now().Add(-age))
	if err != nil {
		return nil, fmt.Errorf("list stale negotiations: %w", err)
	}
	return negs, nil
}

// Get возвращает переговоры по id
func (n *Negotiator) Get(ctx context.Context, id uuid.UUID) (*model.Negotiation, error) {
	neg, err := n.negotiations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get negotiation: %w", err)
	}
	if neg == nil {
		return nil, ErrNotFound
	}
	return neg, nil
}

type calendar struct {
	coach *model.User
	loc   *time.Location
	enum  *scheduling.Enumerator
}

// loadCalendar читает часовой пояс, шаблон и блокировки коуча
func (n *Negotiator) loadCalendar(ctx context.Context, coachID int64) (*calendar, error) {
	coach, err := n.users.GetByID(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get coach: %w", err)
	}
	if coach == nil || !coach.IsCoach {
		return nil, ErrCoachNotFound
	}

	template, err := n.availability.GetWeeklyTemplate(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get weekly template: %w", err)
	}
	blocked, err := n.availability.GetBlockedDates(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get blocked dates: %w", err)
	}

	loc := coach.Location()
	return &calendar{
		coach: coach,
		loc:   loc,
		enum:  scheduling.NewEnumerator(template, blocked, loc, n.now()),
	}, nil
}

// window интервал сессий, нужный для проверки и подбора рекомендаций начиная с дня start
func (n *Negotiator) window(loc *time.Location, start time.Time) (time.Time, time.Time) {
	day := model.DateOf(start, loc)
	return day.Midnight(loc), day.AddDays(n.recommender.WindowDays + 1).Midnight(loc)
}

// spanOf интервал от начала самого раннего дня до конца самого позднего
func spanOf(loc *time.Location, times ...time.Time) (time.Time, time.Time) {
	first, last := times[0], times[0]
	for _, t := range times[1:] {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	return model.DateOf(first, loc).Midnight(loc), model.DateOf(last, loc).AddDays(1).Midnight(loc)
}

func (n *Negotiator) newSession(req model.SessionRequest, status model.SessionStatus) *model.Session {
	now := n.now()
	sessionType := req.SessionType
	if sessionType == "" {
		sessionType = model.SessionTypeTraining
	}
	return &model.Session{
		CoachID:         req.CoachID,
		ClientID:        req.ClientID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Status:          status,
		SessionType:     sessionType,
		Negotiation:     model.NegotiationTag{Kind: model.NegotiationTagNone},
		SeriesID:        req.SeriesID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// transition переводит переговоры в next, сохраняет и публикует событие
func (n *Negotiator) transition(ctx context.Context, neg *model.Negotiation, next model.NegotiationState) error {
	if !neg.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, neg.State, next)
	}
	neg.State = next
	neg.UpdatedAt = n.now()
	if err := n.negotiations.Update(ctx, neg); err != nil {
		return fmt.Errorf("update negotiation: %w", err)
	}
	return n.publish(ctx, negotiationEvent(neg))
}

func (n *Negotiator) publish(ctx context.Context, e events.Event) error {
	if n.publisher == nil {
		return nil
	}
	if err := n.publisher.Publish(ctx, e); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// lockNegotiation читает переговоры с блокировкой строки
func (n *Negotiator) lockNegotiation(ctx context.Context, id uuid.UUID) (*model.Negotiation, error) {
	neg, err := n.negotiations.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get negotiation: %w", err)
	}
	if neg == nil {
		return nil, ErrNotFound
	}
	return neg, nil
}

func negotiationEvent(neg *model.Negotiation) events.Event {
	kind := events.KindConflictDetected
	switch neg.State {
	case model.NegotiationProposalSentToIncoming, model.NegotiationProposalSentToExisting:
		kind = events.KindProposalSent
	case model.NegotiationAccepted:
		kind = events.KindAccepted
	case model.NegotiationDeclined:
		kind = events.KindDeclined
	case model.NegotiationAbandoned:
		kind = events.KindAbandoned
	}

	id := neg.ID
	e := events.Event{
		Kind:          kind,
		NegotiationID: &id,
		CoachID:       neg.CoachID,
		ClientID:      neg.IncomingClientID,
		State:         string(neg.State),
		At:            neg.UpdatedAt,
	}
	if neg.RecipientClientID != nil {
		e.ClientID = *neg.RecipientClientID
	}
	switch {
	case neg.ResultSessionID != nil:
		sid := *neg.ResultSessionID
		e.SessionID = &sid
	case neg.PendingSessionID != nil:
		sid := *neg.PendingSessionID
		e.SessionID = &sid
	}
	return e
}

func sessionEvent(s *model.Session, at time.Time) events.Event {
	id := s.ID
	return events.Event{
		Kind:      events.KindSessionScheduled,
		SessionID: &id,
		CoachID:   s.CoachID,
		ClientID:  s.ClientID,
		State:     string(s.Status),
		At:        at,
	}
}

func utcSlots(slots []time.Time) []time.Time {
	if len(slots) == 0 {
		return nil
	}
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.UTC()
	}
	return out
}
