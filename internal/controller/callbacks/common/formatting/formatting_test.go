package formatting

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/negotiation"
	"github.com/Freeeeeet/coach_scheduler/internal/proposal"
	"github.com/Freeeeeet/coach_scheduler/internal/scheduling"
)

func moscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return loc
}

func TestFormatDateTime(t *testing.T) {
	at := time.Date(2026, time.October, 19, 7, 30, 0, 0, time.UTC)
	assert.Equal(t, "Пн 19.10 10:30", FormatDateTime(at, moscow(t)))
	assert.Equal(t, "Пн 19.10 07:30", FormatDateTime(at, time.UTC))
	assert.Equal(t, "10:30-11:30", FormatTimeRange(at, at.Add(time.Hour), moscow(t)))
}

func TestFormatDate(t *testing.T) {
	d := model.Date{Year: 2026, Month: time.October, Day: 5}
	assert.Equal(t, "05.10.2026", FormatDate(d))
	assert.Equal(t, "05.10.2026 (Понедельник)", FormatDateWithWeekday(d))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45 мин", FormatDuration(45))
	assert.Equal(t, "1 ч", FormatDuration(60))
	assert.Equal(t, "1 ч 30 мин", FormatDuration(90))
}

func TestPluralize(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "сессия"},
		{2, "сессии"},
		{5, "сессий"},
		{11, "сессий"},
		{12, "сессий"},
		{21, "сессия"},
		{24, "сессии"},
		{111, "сессий"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PluralizeSessions(tt.n), tt.n)
	}
	assert.Equal(t, "недели", PluralizeWeeks(3))
}

func TestSessionStatusPrefersNegotiationTag(t *testing.T) {
	s := &model.Session{Status: model.SessionStatusScheduled}
	assert.Equal(t, "✅", SessionStatus(s).Emoji)

	s.Negotiation = model.PendingReschedule(7)
	assert.Equal(t, "🔄", SessionStatus(s).Emoji)
}

func TestConflictText(t *testing.T) {
	loc := moscow(t)
	existingAt := time.Date(2026, time.October, 19, 7, 0, 0, 0, time.UTC)
	res := &negotiation.ProposeResult{
		Outcome: scheduling.OutcomeConflict,
		Conflict: &model.Conflict{
			Type:     model.ConflictTypeOverlap,
			Existing: model.Session{ScheduledAt: existingAt, DurationMinutes: 60},
			Proposed: model.SessionRequest{ScheduledAt: existingAt.Add(30 * time.Minute), DurationMinutes: 60},
			Recommendations: []time.Time{
				existingAt.Add(time.Hour),
			},
		},
	}

	text := ConflictText(res, &model.User{FirstName: "Boris"}, &model.User{FirstName: "Anna"}, loc)
	assert.Contains(t, text, "пересекается")
	assert.Contains(t, text, "Boris, Пн 19.10 10:30")
	assert.Contains(t, text, "Anna, Пн 19.10 10:00 10:00-11:00")
	assert.Contains(t, text, " • Пн 19.10 11:00")

	res.NoWorkingHours = true
	assert.Contains(t, ConflictText(res, &model.User{}, &model.User{}, loc), "/hours")
}

func TestProposalText(t *testing.T) {
	neg := &model.Negotiation{
		ID: uuid.New(),
		Payload: &proposal.Reschedule{
			Details: proposal.Details{
				OriginalTime:   time.Date(2026, time.October, 19, 7, 0, 0, 0, time.UTC),
				AvailableSlots: []time.Time{time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC)},
				Mode:           proposal.ModeConfirm,
				Text:           "Нужно сдвинуть",
			},
			SessionID: 5,
		},
	}

	text := ProposalText(neg, &model.User{FirstName: "Coach"}, moscow(t))
	assert.Contains(t, text, "Coach просит перенести")
	assert.Contains(t, text, "Нужно сдвинуть")
	assert.Contains(t, text, "Исходное время: Пн 19.10 10:00")
	assert.Contains(t, text, "откажитесь")
}

func TestSlotTakenText(t *testing.T) {
	at := time.Date(2026, time.October, 19, 7, 0, 0, 0, time.UTC)
	assert.Contains(t, SlotTakenText(at, 2, time.UTC), "Осталось 2 слота")
	assert.Contains(t, SlotTakenText(at, 0, time.UTC), "других вариантов не осталось")
}
