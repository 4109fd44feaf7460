package repository

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

func TestPgTimeRoundTrip(t *testing.T) {
	for _, tod := range []model.TimeOfDay{0, model.NewTimeOfDay(9, 30), model.MinutesPerDay} {
		pg := toPgTime(tod)
		require.True(t, pg.Valid)
		assert.Equal(t, tod, fromPgTime(pg))
	}
	assert.Equal(t, int64(9*3600+30*60)*1_000_000, toPgTime(model.NewTimeOfDay(9, 30)).Microseconds)
}

func TestTagKind(t *testing.T) {
	assert.Equal(t, "none", tagKind(model.NegotiationTag{}))
	assert.Equal(t, "pending_reschedule", tagKind(model.PendingReschedule(5)))
}

func TestEncodePayloadNil(t *testing.T) {
	b, err := encodePayload(nil)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestMapSlotError(t *testing.T) {
	err := mapSlotError(&pgconn.PgError{Code: "23P01", ConstraintName: "sessions_no_overlap"})
	assert.ErrorIs(t, err, model.ErrSlotTaken)

	err = mapSlotError(&pgconn.PgError{Code: "23505", ConstraintName: "sessions_client_daily_limit"})
	assert.ErrorIs(t, err, model.ErrSlotTaken)

	err = mapSlotError(&pgconn.PgError{Code: "23503"})
	assert.NotErrorIs(t, err, model.ErrSlotTaken)
}
