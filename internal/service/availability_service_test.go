package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

type availabilityFixture struct {
	svc      *AvailabilityService
	store    *memAvailability
	sessions *memSessions
	tx       *passTx
	loc      *time.Location
}

func newAvailabilityFixture(t *testing.T) *availabilityFixture {
	t.Helper()
	loc := moscow(t)

	users := newMemUsers()
	seedUsers(users)
	f := &availabilityFixture{
		store:    newMemAvailability(),
		sessions: &memSessions{byID: make(map[int64]*model.Session)},
		tx:       &passTx{},
		loc:      loc,
	}
	svc, err := NewAvailabilityService(f.store, f.sessions, users, f.tx, nopLogger(), 0)
	require.NoError(t, err)
	svc.now = func() time.Time { return monday.AddDays(-1).At(model.NewTimeOfDay(12, 0), loc) }
	f.svc = svc
	return f
}

func TestTemplateCache(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetDayTemplate(ctx, coachID, time.Monday, "09:00-12:00")
	require.NoError(t, err)

	first, err := f.svc.GetWeeklyTemplate(ctx, coachID)
	require.NoError(t, err)
	_, err = f.svc.GetWeeklyTemplate(ctx, coachID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.templateHits)
	require.Len(t, first, 1)

	// изменение возвращённого среза не портит кеш
	first[0].End = model.NewTimeOfDay(23, 0)
	again, err := f.svc.GetWeeklyTemplate(ctx, coachID)
	require.NoError(t, err)
	assert.Equal(t, model.NewTimeOfDay(12, 0), again[0].End)

	_, err = f.svc.SetDayTemplate(ctx, coachID, time.Tuesday, "10:00-11:00")
	require.NoError(t, err)
	updated, err := f.svc.GetWeeklyTemplate(ctx, coachID)
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	assert.Equal(t, 2, f.store.templateHits)
}

func TestSetDayTemplate(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	slots, err := f.svc.SetDayTemplate(ctx, coachID, time.Monday, "14:00-18:00, 09:00-12:00")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, model.NewTimeOfDay(9, 0), slots[0].Start)
	assert.Equal(t, int(time.Monday), f.store.template[coachID][0].Weekday)
	assert.Equal(t, 1, f.tx.calls)

	_, err = f.svc.SetDayTemplate(ctx, coachID, time.Monday, "off")
	require.NoError(t, err)
	assert.Empty(t, f.store.template[coachID])

	_, err = f.svc.SetDayTemplate(ctx, coachID, time.Monday, "12:00-09:00")
	assert.ErrorIs(t, err, model.ErrInvalidAvailability)

	_, err = f.svc.SetDayTemplate(ctx, clientID, time.Monday, "09:00-10:00")
	assert.ErrorIs(t, err, ErrNotCoach)
}

func TestSetDayTemplateStoreFailureDropsCache(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetWeeklyTemplate(ctx, coachID)
	require.NoError(t, err)

	f.store.failSet = errors.New("disk full")
	_, err = f.svc.SetDayTemplate(ctx, coachID, time.Monday, "09:00-10:00")
	require.Error(t, err)

	_, err = f.svc.GetWeeklyTemplate(ctx, coachID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.templateHits)
}

func TestImportTemplate(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetDayTemplate(ctx, coachID, time.Friday, "09:00-10:00")
	require.NoError(t, err)

	tpl, err := f.svc.ImportTemplate(ctx, coachID, strings.NewReader(`
timezone: Europe/Moscow
days:
  monday: ["09:00-12:00"]
  wednesday: ["10:00-12:00", "15:00-16:00"]
`))
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", tpl.Timezone)

	slots, err := f.svc.GetWeeklyTemplate(ctx, coachID)
	require.NoError(t, err)
	assert.Len(t, slots, 4, "friday is kept, monday and wednesday are added")
}

func TestBlockDateUsesCoachCalendar(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	// 22:30 UTC в воскресенье это уже понедельник в Москве
	f.svc.now = func() time.Time { return time.Date(2026, time.October, 18, 22, 30, 0, 0, time.UTC) }

	_, err := f.svc.BlockDate(ctx, coachID, monday.AddDays(-1), "")
	assert.ErrorIs(t, err, ErrDateInPast)

	b, err := f.svc.BlockDate(ctx, coachID, monday, "  отпуск ")
	require.NoError(t, err)
	assert.Equal(t, "отпуск", b.Reason)

	upcoming, err := f.svc.UpcomingBlockedDates(ctx, coachID)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, monday, upcoming[0].Date)

	require.NoError(t, f.svc.UnblockDate(ctx, coachID, monday))
	assert.ErrorIs(t, f.svc.UnblockDate(ctx, coachID, monday), ErrNotBlocked)
}

func TestFreeSlots(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetDayTemplate(ctx, coachID, time.Monday, "09:00-12:00")
	require.NoError(t, err)
	f.sessions.byID[1] = &model.Session{
		ID:              1,
		CoachID:         coachID,
		ClientID:        clientID,
		ScheduledAt:     monday.At(model.NewTimeOfDay(10, 0), f.loc).UTC(),
		DurationMinutes: 60,
		Status:          model.SessionStatusScheduled,
	}

	free, err := f.svc.FreeSlots(ctx, coachID, monday, 60)
	require.NoError(t, err)
	require.Len(t, free, 2)
	assert.True(t, monday.At(model.NewTimeOfDay(9, 0), f.loc).Equal(free[0]))
	assert.True(t, monday.At(model.NewTimeOfDay(11, 0), f.loc).Equal(free[1]))

	_, err = f.svc.BlockDate(ctx, coachID, monday, "")
	require.NoError(t, err)
	free, err = f.svc.FreeSlots(ctx, coachID, monday, 60)
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestRecurringTimes(t *testing.T) {
	f := newAvailabilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.SetDayTemplate(ctx, coachID, time.Monday, "09:00-11:00")
	require.NoError(t, err)
	_, err = f.svc.SetDayTemplate(ctx, coachID, time.Wednesday, "10:00-12:00")
	require.NoError(t, err)

	days := []time.Weekday{time.Monday, time.Wednesday}

	common, err := f.svc.RecurringTimes(ctx, coachID, days, true)
	require.NoError(t, err)
	assert.Equal(t, []model.TimeOfDay{model.NewTimeOfDay(10, 0), model.NewTimeOfDay(10, 30)}, common)

	union, err := f.svc.RecurringTimes(ctx, coachID, days, false)
	require.NoError(t, err)
	assert.Len(t, union, 6)
	assert.Equal(t, model.NewTimeOfDay(9, 0), union[0])
	assert.Equal(t, model.NewTimeOfDay(11, 30), union[5])
}

func TestParseDaySpec(t *testing.T) {
	slots, err := ParseDaySpec("-")
	require.NoError(t, err)
	assert.Nil(t, slots)

	_, err = ParseDaySpec("  ")
	assert.ErrorIs(t, err, model.ErrInvalidAvailability)

	_, err = ParseDaySpec("09:00-10:00,bad")
	assert.ErrorIs(t, err, model.ErrInvalidAvailability)
}
