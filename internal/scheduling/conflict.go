package scheduling

import (
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// Outcome результат проверки предлагаемой сессии
type Outcome int

const (
	OutcomeFree             Outcome = iota // время свободно
	OutcomeAlreadyScheduled                // у клиента уже есть сессия ровно в это время
	OutcomeConflict                        // пересечение или дневной лимит клиента
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFree:
		return "free"
	case OutcomeAlreadyScheduled:
		return "already_scheduled"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// CheckResult итог работы детектора
type CheckResult struct {
	Outcome  Outcome
	Existing *model.Session // для AlreadyScheduled и Conflict
	Conflict *model.Conflict
}

type checkOptions struct {
	ignore   map[int64]struct{}
	reserved []model.Session
}

// CheckOption настройка проверки
type CheckOption func(*checkOptions)

// IgnoreSessions исключает сессии из проверки (например, переносимую сессию)
func IgnoreSessions(ids ...int64) CheckOption {
	return func(o *checkOptions) {
		for _, id := range ids {
			o.ignore[id] = struct{}{}
		}
	}
}

// Reserve добавляет к существующим сессиям ещё не сохранённый запрос,
// чтобы его время считалось занятым
func Reserve(req model.SessionRequest) CheckOption {
	return func(o *checkOptions) {
		o.reserved = append(o.reserved, model.Session{
			CoachID:         req.CoachID,
			ClientID:        req.ClientID,
			ScheduledAt:     req.ScheduledAt,
			DurationMinutes: req.DurationMinutes,
			Status:          model.SessionStatusScheduled,
			SessionType:     req.SessionType,
		})
	}
}

// Overlaps проверяет пересечение полуинтервалов [aStart, aEnd) и [bStart, bEnd).
// Сессии встык не пересекаются, пустой интервал не пересекается ни с чем.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if !aStart.Before(aEnd) || !bStart.Before(bEnd) {
		return false
	}
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// SessionsOverlap пересечение двух сессий одного коуча; сессия не пересекается сама с собой
func SessionsOverlap(a, b *model.Session) bool {
	if a.ID != 0 && a.ID == b.ID {
		return false
	}
	return Overlaps(a.ScheduledAt, a.End(), b.ScheduledAt, b.End())
}

// Check классифицирует предлагаемую сессию относительно существующих.
// Дни сравниваются как календарные даты в часовом поясе коуча loc.
// Порядок правил: точное совпадение у того же клиента с тем же коучем, пересечение у коуча,
// дневной лимит клиента. Срабатывает первое подходящее.
func Check(req model.SessionRequest, existing []model.Session, loc *time.Location, opts ...CheckOption) CheckResult {
	o := checkOptions{ignore: make(map[int64]struct{})}
	for _, opt := range opts {
		opt(&o)
	}
	if loc == nil {
		loc = time.UTC
	}

	day := model.DateOf(req.ScheduledAt, loc)
	reqEnd := req.End()

	candidates := make([]model.Session, 0, len(existing)+len(o.reserved))
	candidates = append(candidates, existing...)
	candidates = append(candidates, o.reserved...)

	sameDay := make([]*model.Session, 0, len(candidates))
	for i := range candidates {
		s := &candidates[i]
		if !s.IsActive() {
			continue
		}
		if _, skip := o.ignore[s.ID]; skip && s.ID != 0 {
			continue
		}
		if model.DateOf(s.ScheduledAt, loc) != day {
			continue
		}
		sameDay = append(sameDay, s)
	}

	for _, s := range sameDay {
		if s.CoachID == req.CoachID && s.ClientID == req.ClientID && s.ScheduledAt.Equal(req.ScheduledAt) {
			existingCopy := *s
			return CheckResult{Outcome: OutcomeAlreadyScheduled, Existing: &existingCopy}
		}
	}

	for _, s := range sameDay {
		if s.CoachID != req.CoachID {
			continue
		}
		if Overlaps(req.ScheduledAt, reqEnd, s.ScheduledAt, s.End()) {
			return conflictResult(model.ConflictTypeOverlap, s, req)
		}
	}

	for _, s := range sameDay {
		if s.ClientID == req.ClientID {
			return conflictResult(model.ConflictTypeDailyLimit, s, req)
		}
	}

	return CheckResult{Outcome: OutcomeFree}
}

func conflictResult(kind model.ConflictType, s *model.Session, req model.SessionRequest) CheckResult {
	existingCopy := *s
	return CheckResult{
		Outcome:  OutcomeConflict,
		Existing: &existingCopy,
		Conflict: &model.Conflict{
			Type:     kind,
			Existing: existingCopy,
			Proposed: req,
		},
	}
}
