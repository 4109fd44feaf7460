package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
)

const (
	coachID  = int64(1)
	clientID = int64(2)
)

// monday понедельник в часовом поясе коуча (Europe/Moscow в тестах)
var monday = model.Date{Year: 2026, Month: time.October, Day: 19}

type memUsers struct {
	byID   map[int64]*model.User
	nextID int64
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[int64]*model.User), nextID: 100}
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) Update(_ context.Context, u *model.User) error {
	if _, ok := m.byID[u.ID]; !ok {
		return errors.New("no such user")
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByTelegramID(_ context.Context, tgID int64) (*model.User, error) {
	for _, u := range m.byID {
		if u.TelegramID == tgID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.byID {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

type memAvailability struct {
	template     map[int64][]model.AvailabilitySlot
	blocked      map[int64][]model.BlockedDate
	templateHits int
	failSet      error
}

func newMemAvailability() *memAvailability {
	return &memAvailability{
		template: make(map[int64][]model.AvailabilitySlot),
		blocked:  make(map[int64][]model.BlockedDate),
	}
}

func (m *memAvailability) GetWeeklyTemplate(_ context.Context, coachID int64) ([]model.AvailabilitySlot, error) {
	m.templateHits++
	return m.template[coachID], nil
}

func (m *memAvailability) SetWeeklyTemplate(_ context.Context, coachID int64, wd time.Weekday, slots []model.AvailabilitySlot) error {
	if m.failSet != nil {
		return m.failSet
	}
	var kept []model.AvailabilitySlot
	for _, s := range m.template[coachID] {
		if s.Weekday != int(wd) {
			kept = append(kept, s)
		}
	}
	for _, s := range slots {
		s.CoachID = coachID
		kept = append(kept, s)
	}
	m.template[coachID] = kept
	return nil
}

func (m *memAvailability) GetBlockedDates(_ context.Context, coachID int64) ([]model.BlockedDate, error) {
	return m.blocked[coachID], nil
}

func (m *memAvailability) ListUpcomingBlockedDates(_ context.Context, coachID int64, today model.Date) ([]model.BlockedDate, error) {
	var out []model.BlockedDate
	for _, b := range m.blocked[coachID] {
		if !b.Date.Before(today) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memAvailability) BlockDate(_ context.Context, b *model.BlockedDate) error {
	m.blocked[b.CoachID] = append(m.blocked[b.CoachID], *b)
	return nil
}

func (m *memAvailability) UnblockDate(_ context.Context, coachID int64, date model.Date) (bool, error) {
	for i, b := range m.blocked[coachID] {
		if b.Date == date {
			m.blocked[coachID] = append(m.blocked[coachID][:i], m.blocked[coachID][i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memSessions struct {
	byID map[int64]*model.Session
}

func (m *memSessions) GetByIDForUpdate(_ context.Context, id int64) (*model.Session, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Update(_ context.Context, s *model.Session) error {
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSessions) ListByCoach(_ context.Context, coachID int64, from, to time.Time) ([]model.Session, error) {
	var out []model.Session
	for _, s := range m.byID {
		if s.CoachID == coachID && s.IsActive() && !s.ScheduledAt.Before(from) && s.ScheduledAt.Before(to) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSessions) ListByClient(_ context.Context, clientID int64, from time.Time) ([]model.Session, error) {
	var out []model.Session
	for _, s := range m.byID {
		if s.ClientID == clientID && s.IsActive() && !s.ScheduledAt.Before(from) {
			out = append(out, *s)
		}
	}
	return out, nil
}

// memDates запоминает пересчёты календарных дней сессий
type memDates struct {
	calls []int64
	from  time.Time
	err   error
}

func (m *memDates) RecomputeLocalDates(_ context.Context, coachID int64, from time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.calls = append(m.calls, coachID)
	m.from = from
	return 1, nil
}

// passTx выполняет fn без настоящей транзакции
type passTx struct{ calls int }

func (p *passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

// fakeProposer отвечает конфликтом на времена из conflicts
type fakeProposer struct {
	requests  []model.SessionRequest
	conflicts map[time.Time]bool
	err       error
}

func (p *fakeProposer) Propose(_ context.Context, req model.SessionRequest) (*negotiation.ProposeResult, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if p.conflicts[req.ScheduledAt] {
		return &negotiation.ProposeResult{Outcome: scheduling.OutcomeConflict}, nil
	}
	return &negotiation.ProposeResult{
		Outcome: scheduling.OutcomeFree,
		Session: &model.Session{CoachID: req.CoachID, ClientID: req.ClientID, ScheduledAt: req.ScheduledAt, SeriesID: req.SeriesID},
	}, nil
}

func moscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	return loc
}

func seedUsers(users *memUsers) {
	users.byID[coachID] = &model.User{ID: coachID, TelegramID: 1001, Username: "coach", IsCoach: true, Timezone: "Europe/Moscow"}
	users.byID[clientID] = &model.User{ID: clientID, TelegramID: 1002, Username: "Anna", FirstName: "Anna", Timezone: "UTC"}
}

func nopLogger() *zap.Logger { return zap.NewNop() }
