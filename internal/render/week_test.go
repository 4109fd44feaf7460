package render

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

var monday = model.Date{Year: 2026, Month: time.October, Day: 19}

func sampleWeek() Week {
	return Week{
		Start:    monday,
		Location: time.UTC,
		Now:      monday.AddDays(2).At(model.NewTimeOfDay(10, 15), time.UTC),
		Template: []model.AvailabilitySlot{
			{Weekday: int(time.Monday), Start: model.NewTimeOfDay(9, 0), End: model.NewTimeOfDay(12, 0), IsActive: true},
			{Weekday: int(time.Wednesday), Start: model.NewTimeOfDay(14, 0), End: model.NewTimeOfDay(18, 0), IsActive: true},
		},
		Blocked: []model.BlockedDate{{Date: monday.AddDays(4)}},
		Sessions: []model.Session{
			{ClientID: 10, ScheduledAt: monday.At(model.NewTimeOfDay(10, 0), time.UTC), DurationMinutes: 60, Status: model.SessionStatusScheduled},
			{ClientID: 20, ScheduledAt: monday.At(model.NewTimeOfDay(10, 30), time.UTC), DurationMinutes: 60, Status: model.SessionStatusPendingResolution},
			{ClientID: 30, ScheduledAt: monday.AddDays(1).At(model.NewTimeOfDay(7, 0), time.UTC), DurationMinutes: 30, Status: model.SessionStatusCancelled},
		},
		ClientNames: map[int64]string{10: "Анна", 20: "Борис Длинноимённый"},
	}
}

func TestWeekImage(t *testing.T) {
	data, err := WeekImage(sampleWeek())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, imageWidth, img.Bounds().Dx())
	assert.Equal(t, imageHeight, img.Bounds().Dy())
}

func TestWeekImageRequiresStart(t *testing.T) {
	_, err := WeekImage(Week{})
	assert.Error(t, err)
}

func TestCalculateHourRange(t *testing.T) {
	hours := calculateHourRange(sampleWeek())
	// рабочие часы 09-18, отменённая сессия в 07:00 не учитывается
	assert.Equal(t, 8, hours.start)
	assert.Equal(t, 19, hours.end)
	assert.Equal(t, 11, hours.total)

	empty := calculateHourRange(Week{Location: time.UTC})
	assert.Equal(t, defaultMinHour-hourPadding, empty.start)
	assert.Equal(t, defaultMaxHour+hourPadding, empty.end)
}

func TestSessionColor(t *testing.T) {
	assert.Equal(t, sessionPendingColor, sessionColor(model.Session{Status: model.SessionStatusPendingResolution}))
	assert.Equal(t, sessionRescheduleColor, sessionColor(model.Session{
		Status:      model.SessionStatusScheduled,
		Negotiation: model.PendingReschedule(5),
	}))
	assert.Equal(t, sessionScheduledColor, sessionColor(model.Session{Status: model.SessionStatusScheduled}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Анна", truncate("Анна", 14))
	assert.Equal(t, "Борис", truncate("Борис", 5))
	assert.Equal(t, "Бор…", truncate("Борис", 4))
	assert.Equal(t, 5, len([]rune(truncate("Борис Длинный", 5))))
}
