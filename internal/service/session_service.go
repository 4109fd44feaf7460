package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
)

// MaxSeriesWeeks предел длины регулярной серии
const MaxSeriesWeeks = 26

type SessionStore interface {
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Session, error)
	Update(ctx context.Context, s *model.Session) error
	ListByCoach(ctx context.Context, coachID int64, from, to time.Time) ([]model.Session, error)
	ListByClient(ctx context.Context, clientID int64, from time.Time) ([]model.Session, error)
}

// Proposer создаёт сессию с проверкой конфликтов
type Proposer interface {
	Propose(ctx context.Context, req model.SessionRequest) (*negotiation.ProposeResult, error)
}

type SessionService struct {
	sessions SessionStore
	users    negotiation.UserDirectory
	proposer Proposer
	tx       negotiation.Transactor
	now      func() time.Time
	logger   *zap.Logger
}

func NewSessionService(
	sessions SessionStore,
	users negotiation.UserDirectory,
	proposer Proposer,
	tx negotiation.Transactor,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		proposer: proposer,
		tx:       tx,
		now:      time.Now,
		logger:   logger,
	}
}

// Upcoming сессии коуча на ближайшие days дней
func (s *SessionService) Upcoming(ctx context.Context, coachID int64, days int) ([]model.Session, error) {
	now := s.now()
	sessions, err := s.sessions.ListByCoach(ctx, coachID, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("list upcoming sessions: %w", err)
	}
	return sessions, nil
}

// Week сессии коуча с понедельника недели, в которую попадает day
func (s *SessionService) Week(ctx context.Context, coachID int64, day model.Date, loc *time.Location) ([]model.Session, model.Date, error) {
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDays(-offset)
	sessions, err := s.sessions.ListByCoach(ctx, coachID, monday.Midnight(loc), monday.AddDays(7).Midnight(loc))
	if err != nil {
		return nil, monday, fmt.Errorf("list week sessions: %w", err)
	}
	return sessions, monday, nil
}

// ClientSessions будущие сессии клиента у всех коучей
func (s *SessionService) ClientSessions(ctx context.Context, clientID int64) ([]model.Session, error) {
	sessions, err := s.sessions.ListByClient(ctx, clientID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list client sessions: %w", err)
	}
	return sessions, nil
}

// CancelSession отменяет сессию по просьбе коуча или клиента.
// Отменённая сессия освобождает время и перестаёт участвовать в проверках.
func (s *SessionService) CancelSession(ctx context.Context, actorID, sessionID int64, reason string) (*model.Session, error) {
	var sess *model.Session
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		if sess == nil {
			return fmt.Errorf("%w: %d", ErrSessionNotFound, sessionID)
		}
		if sess.CoachID != actorID && sess.ClientID != actorID {
			return ErrForbidden
		}
		if !sess.IsActive() {
			return nil
		}

		sess.Status = model.SessionStatusCancelled
		if reason != "" {
			sess.CancellationReason = &reason
		}
		sess.UpdatedAt = s.now()
		if err := s.sessions.Update(ctx, sess); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Session cancelled",
		zap.Int64("session_id", sess.ID),
		zap.Int64("actor_id", actorID),
	)
	return sess, nil
}

// SeriesRequest регулярная сессия: по выбранным дням недели в одно и то же локальное время коуча
type SeriesRequest struct {
	CoachID         int64
	ClientID        int64
	Weekdays        []time.Weekday
	Start           model.TimeOfDay
	Weeks           int
	DurationMinutes int
	SessionType     model.SessionType
}

// SeriesOccurrence результат одной сессии серии
type SeriesOccurrence struct {
	At     time.Time
	Result *negotiation.ProposeResult
	Err    error
}

type SeriesResult struct {
	SeriesID    uuid.UUID
	Occurrences []SeriesOccurrence
}

// Count количество сессий серии с указанным исходом
func (r *SeriesResult) Count(outcome scheduling.Outcome) int {
	n := 0
	for _, o := range r.Occurrences {
		if o.Err == nil && o.Result.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed количество сессий, которые не удалось обработать
func (r *SeriesResult) Failed() int {
	n := 0
	for _, o := range r.Occurrences {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// CreateRecurringSeries создаёт серию сессий. Каждая проходит обычную проверку конфликтов:
// свободные записываются сразу, конфликтные становятся переговорами.
// Ошибка одной сессии не прерывает серию и сохраняется в её результате.
func (s *SessionService) CreateRecurringSeries(ctx context.Context, req SeriesRequest) (*SeriesResult, error) {
	if len(req.Weekdays) == 0 {
		return nil, fmt.Errorf("%w: no weekdays", ErrInvalidSeries)
	}
	if req.Weeks <= 0 || req.Weeks > MaxSeriesWeeks {
		return nil, fmt.Errorf("%w: weeks must be in 1..%d", ErrInvalidSeries, MaxSeriesWeeks)
	}
	if !req.Start.Valid() || req.Start == model.MinutesPerDay {
		return nil, fmt.Errorf("%w: start %s", ErrInvalidSeries, req.Start)
	}

	coach, err := s.users.GetByID(ctx, req.CoachID)
	if err != nil {
		return nil, fmt.Errorf("get coach: %w", err)
	}
	if coach == nil || !coach.IsCoach {
		return nil, fmt.Errorf("%w: %d", ErrNotCoach, req.CoachID)
	}

	seriesID := uuid.New()
	result := &SeriesResult{SeriesID: seriesID}
	for _, at := range seriesTimes(req, coach.Location(), s.now()) {
		occ := SeriesOccurrence{At: at}
		occ.Result, occ.Err = s.proposer.Propose(ctx, model.SessionRequest{
			CoachID:         req.CoachID,
			ClientID:        req.ClientID,
			ScheduledAt:     at,
			DurationMinutes: req.DurationMinutes,
			SessionType:     req.SessionType,
			SeriesID:        &seriesID,
		})
		if errors.Is(occ.Err, model.ErrInvalidRequest) {
			return nil, occ.Err
		}
		result.Occurrences = append(result.Occurrences, occ)
	}

	s.logger.Info("Recurring series created",
		zap.Stringer("series_id", seriesID),
		zap.Int64("coach_id", req.CoachID),
		zap.Int64("client_id", req.ClientID),
		zap.Int("scheduled", result.Count(scheduling.OutcomeFree)),
		zap.Int("conflicts", result.Count(scheduling.OutcomeConflict)),
		zap.Int("failed", result.Failed()),
	)
	return result, nil
}

// seriesTimes моменты сессий серии в ближайшие weeks недель, начиная с сегодняшнего дня коуча
func seriesTimes(req SeriesRequest, loc *time.Location, now time.Time) []time.Time {
	today := model.DateOf(now, loc)
	end := today.AddDays(req.Weeks * 7)

	var out []time.Time
	for d := today; d.Before(end); d = d.AddDays(1) {
		if !slices.Contains(req.Weekdays, d.Weekday()) {
			continue
		}
		at := d.At(req.Start, loc)
		if at.After(now) {
			out = append(out, at.UTC())
		}
	}
	return out
}
