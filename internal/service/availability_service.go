package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/config"
	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
)

// DefaultTemplateCacheSize количество коучей, чьи шаблоны держатся в памяти
const DefaultTemplateCacheSize = 256

type AvailabilityStore interface {
	GetWeeklyTemplate(ctx context.Context, coachID int64) ([]model.AvailabilitySlot, error)
	SetWeeklyTemplate(ctx context.Context, coachID int64, weekday time.Weekday, slots []model.AvailabilitySlot) error
	GetBlockedDates(ctx context.Context, coachID int64) ([]model.BlockedDate, error)
	ListUpcomingBlockedDates(ctx context.Context, coachID int64, today model.Date) ([]model.BlockedDate, error)
	BlockDate(ctx context.Context, b *model.BlockedDate) error
	UnblockDate(ctx context.Context, coachID int64, date model.Date) (bool, error)
}

type SessionLister interface {
	ListByCoach(ctx context.Context, coachID int64, from, to time.Time) ([]model.Session, error)
}

// AvailabilityService рабочие часы и блокировки коуча.
// Шаблон кешируется в LRU и сбрасывается при каждой записи через этот сервис.
type AvailabilityService struct {
	store    AvailabilityStore
	sessions SessionLister
	users    negotiation.UserDirectory
	tx       negotiation.Transactor
	cache    *lru.Cache[int64, []model.AvailabilitySlot]
	now      func() time.Time
	logger   *zap.Logger
}

func NewAvailabilityService(
	store AvailabilityStore,
	sessions SessionLister,
	users negotiation.UserDirectory,
	tx negotiation.Transactor,
	logger *zap.Logger,
	cacheSize int,
) (*AvailabilityService, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultTemplateCacheSize
	}
	cache, err := lru.New[int64, []model.AvailabilitySlot](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create template cache: %w", err)
	}
	return &AvailabilityService{
		store:    store,
		sessions: sessions,
		users:    users,
		tx:       tx,
		cache:    cache,
		now:      time.Now,
		logger:   logger,
	}, nil
}

// GetWeeklyTemplate шаблон коуча, из кеша если он там есть
func (s *AvailabilityService) GetWeeklyTemplate(ctx context.Context, coachID int64) ([]model.AvailabilitySlot, error) {
	if slots, ok := s.cache.Get(coachID); ok {
		return slices.Clone(slots), nil
	}

	slots, err := s.store.GetWeeklyTemplate(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get weekly template: %w", err)
	}
	s.cache.Add(coachID, slots)
	return slices.Clone(slots), nil
}

// GetBlockedDates все заблокированные даты коуча
func (s *AvailabilityService) GetBlockedDates(ctx context.Context, coachID int64) ([]model.BlockedDate, error) {
	return s.store.GetBlockedDates(ctx, coachID)
}

// SetDayTemplate задаёт рабочие часы дня строкой "09:00-12:00,14:00-18:00" или "off"
func (s *AvailabilityService) SetDayTemplate(ctx context.Context, coachID int64, weekday time.Weekday, spec string) ([]model.AvailabilitySlot, error) {
	slots, err := ParseDaySpec(spec)
	if err != nil {
		return nil, err
	}
	if err := s.SetDay(ctx, coachID, weekday, slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// SetDay заменяет интервалы одного дня недели
func (s *AvailabilityService) SetDay(ctx context.Context, coachID int64, weekday time.Weekday, slots []model.AvailabilitySlot) error {
	return s.replaceDays(ctx, coachID, map[time.Weekday][]model.AvailabilitySlot{weekday: slots})
}

// ImportTemplate применяет YAML-файл шаблона. Дни, которых нет в файле, не меняются.
func (s *AvailabilityService) ImportTemplate(ctx context.Context, coachID int64, r io.Reader) (*config.WeeklyTemplate, error) {
	tpl, err := config.ParseTemplate(r)
	if err != nil {
		return nil, err
	}
	days, err := tpl.Slots()
	if err != nil {
		return nil, err
	}
	if err := s.replaceDays(ctx, coachID, days); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *AvailabilityService) replaceDays(ctx context.Context, coachID int64, days map[time.Weekday][]model.AvailabilitySlot) error {
	if _, err := s.coach(ctx, coachID); err != nil {
		return err
	}
	for wd, slots := range days {
		for i := range slots {
			slots[i].Weekday = int(wd)
			if err := slots[i].Validate(); err != nil {
				return err
			}
		}
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for wd, slots := range days {
			if err := s.store.SetWeeklyTemplate(ctx, coachID, wd, slots); err != nil {
				return err
			}
		}
		return nil
	})
	s.cache.Remove(coachID)
	if err != nil {
		s.logger.Error("Failed to update weekly template", zap.Int64("coach_id", coachID), zap.Error(err))
		return fmt.Errorf("set weekly template: %w", err)
	}

	s.logger.Info("Weekly template updated", zap.Int64("coach_id", coachID), zap.Int("days", len(days)))
	return nil
}

// BlockDate блокирует день целиком. Прошедшие даты (по часовому поясу коуча) не принимаются.
func (s *AvailabilityService) BlockDate(ctx context.Context, coachID int64, date model.Date, reason string) (*model.BlockedDate, error) {
	coach, err := s.coach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if date.Before(model.DateOf(s.now(), coach.Location())) {
		return nil, fmt.Errorf("%w: %s", ErrDateInPast, date)
	}

	b := &model.BlockedDate{CoachID: coachID, Date: date, Reason: strings.TrimSpace(reason)}
	if err := s.store.BlockDate(ctx, b); err != nil {
		return nil, fmt.Errorf("block date: %w", err)
	}

	s.logger.Info("Date blocked", zap.Int64("coach_id", coachID), zap.Stringer("date", date))
	return b, nil
}

// UnblockDate снимает блокировку
func (s *AvailabilityService) UnblockDate(ctx context.Context, coachID int64, date model.Date) error {
	ok, err := s.store.UnblockDate(ctx, coachID, date)
	if err != nil {
		return fmt.Errorf("unblock date: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotBlocked, date)
	}
	s.logger.Info("Date unblocked", zap.Int64("coach_id", coachID), zap.Stringer("date", date))
	return nil
}

// UpcomingBlockedDates блокировки начиная с сегодняшнего дня коуча
func (s *AvailabilityService) UpcomingBlockedDates(ctx context.Context, coachID int64) ([]model.BlockedDate, error) {
	coach, err := s.coach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	return s.store.ListUpcomingBlockedDates(ctx, coachID, model.DateOf(s.now(), coach.Location()))
}

// FreeSlots времена начала в день date, куда помещается сессия длительностью minutes
// и которые не пересекаются с сессиями коуча
func (s *AvailabilityService) FreeSlots(ctx context.Context, coachID int64, date model.Date, minutes int) ([]time.Time, error) {
	enum, err := s.enumerator(ctx, coachID)
	if err != nil {
		return nil, err
	}

	loc := enum.Location()
	sessions, err := s.sessions.ListByCoach(ctx, coachID, date.Midnight(loc), date.AddDays(1).Midnight(loc))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	length := time.Duration(minutes) * time.Minute
	var free []time.Time
	for _, start := range enum.ForDate(date) {
		if !enum.Fits(start, length) {
			continue
		}
		busy := slices.ContainsFunc(sessions, func(sess model.Session) bool {
			return sess.IsActive() && scheduling.Overlaps(start, start.Add(length), sess.ScheduledAt, sess.End())
		})
		if !busy {
			free = append(free, start)
		}
	}
	return free, nil
}

// RecurringTimes времена начала для регулярной сессии по дням недели:
// при intersect только общие для всех дней, иначе доступные хотя бы в один
func (s *AvailabilityService) RecurringTimes(ctx context.Context, coachID int64, weekdays []time.Weekday, intersect bool) ([]model.TimeOfDay, error) {
	enum, err := s.enumerator(ctx, coachID)
	if err != nil {
		return nil, err
	}
	byDay := enum.WeekdayTimes(weekdays)
	if intersect {
		return scheduling.IntersectTimes(byDay), nil
	}
	return scheduling.UnionTimes(byDay), nil
}

func (s *AvailabilityService) enumerator(ctx context.Context, coachID int64) (*scheduling.Enumerator, error) {
	coach, err := s.coach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	template, err := s.GetWeeklyTemplate(ctx, coachID)
	if err != nil {
		return nil, err
	}
	blocked, err := s.store.GetBlockedDates(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get blocked dates: %w", err)
	}
	return scheduling.NewEnumerator(template, blocked, coach.Location(), s.now()), nil
}

func (s *AvailabilityService) coach(ctx context.Context, coachID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, coachID)
	if err != nil {
		return nil, fmt.Errorf("get coach: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, coachID)
	}
	if !user.IsCoach {
		return nil, fmt.Errorf("%w: %d", ErrNotCoach, coachID)
	}
	return user, nil
}

// ParseDaySpec разбирает "09:00-12:00,14:00-18:00"; "off" и "-" означают выходной
func ParseDaySpec(spec string) ([]model.AvailabilitySlot, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty working hours", model.ErrInvalidAvailability)
	}
	if strings.EqualFold(spec, "off") || spec == "-" {
		return nil, nil
	}

	var slots []model.AvailabilitySlot
	for part := range strings.SplitSeq(spec, ",") {
		start, end, err := model.ParseRange(part)
		if err != nil {
			return nil, err
		}
		slots = append(slots, model.AvailabilitySlot{Start: start, End: end, IsActive: true})
	}
	slices.SortFunc(slots, func(a, b model.AvailabilitySlot) int { return int(a.Start - b.Start) })
	return slots, nil
}
