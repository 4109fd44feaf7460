package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/base"
)

// AvailabilityRepository шаблон рабочих часов и заблокированные даты коуча
type AvailabilityRepository struct {
	*base.Repository
}

func NewAvailabilityRepository(pool *pgxpool.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{Repository: base.NewRepository(pool)}
}

// GetWeeklyTemplate все интервалы шаблона коуча
func (r *AvailabilityRepository) GetWeeklyTemplate(ctx context.Context, coachID int64) ([]model.AvailabilitySlot, error) {
	query := `
		SELECT id, coach_id, day_of_week, start_time, end_time, is_active, created_at
		FROM availability_slots
		WHERE coach_id = $1
		ORDER BY day_of_week, start_time
	`

	rows, err := r.Query(ctx, query, coachID)
	if err != nil {
		return nil, fmt.Errorf("get weekly template: %w", err)
	}
	defer rows.Close()

	var slots []model.AvailabilitySlot
	for rows.Next() {
		var (
			slot       model.AvailabilitySlot
			start, end pgtype.Time
		)
		err := rows.Scan(
			&slot.ID,
			&slot.CoachID,
			&slot.Weekday,
			&start,
			&end,
			&slot.IsActive,
			&slot.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan availability slot: %w", err)
		}
		slot.Start = fromPgTime(start)
		slot.End = fromPgTime(end)
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability slots: %w", err)
	}

	return slots, nil
}

// SetWeeklyTemplate заменяет интервалы одного дня недели шаблона. Вызывать внутри транзакции.
func (r *AvailabilityRepository) SetWeeklyTemplate(ctx context.Context, coachID int64, weekday time.Weekday, slots []model.AvailabilitySlot) error {
	_, err := r.ExecAffected(ctx, `DELETE FROM availability_slots WHERE coach_id = $1 AND day_of_week = $2`, coachID, int(weekday))
	if err != nil {
		return fmt.Errorf("clear day template: %w", err)
	}

	query := `
		INSERT INTO availability_slots (coach_id, day_of_week, start_time, end_time, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	for i := range slots {
		slot := &slots[i]
		slot.CoachID = coachID
		slot.Weekday = int(weekday)
		err := r.QueryRow(ctx, query, coachID, slot.Weekday, toPgTime(slot.Start), toPgTime(slot.End), slot.IsActive).
			Scan(&slot.ID, &slot.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert availability slot: %w", err)
		}
	}
	return nil
}

// GetBlockedDates все заблокированные даты коуча
func (r *AvailabilityRepository) GetBlockedDates(ctx context.Context, coachID int64) ([]model.BlockedDate, error) {
	query := `
		SELECT id, coach_id, blocked_date, reason, created_at
		FROM blocked_dates
		WHERE coach_id = $1
		ORDER BY blocked_date
	`
	return r.listBlocked(ctx, query, coachID)
}

// ListUpcomingBlockedDates заблокированные даты начиная с today
func (r *AvailabilityRepository) ListUpcomingBlockedDates(ctx context.Context, coachID int64, today model.Date) ([]model.BlockedDate, error) {
	query := `
		SELECT id, coach_id, blocked_date, reason, created_at
		FROM blocked_dates
		WHERE coach_id = $1 AND blocked_date >= $2
		ORDER BY blocked_date
	`
	return r.listBlocked(ctx, query, coachID, today.Midnight(time.UTC))
}

// BlockDate блокирует дату; повторная блокировка обновляет причину
func (r *AvailabilityRepository) BlockDate(ctx context.Context, b *model.BlockedDate) error {
	query := `
		INSERT INTO blocked_dates (coach_id, blocked_date, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (coach_id, blocked_date) DO UPDATE SET reason = EXCLUDED.reason
		RETURNING id, created_at
	`
	err := r.QueryRow(ctx, query, b.CoachID, b.Date.Midnight(time.UTC), b.Reason).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("block date: %w", err)
	}
	return nil
}

// UnblockDate снимает блокировку, false если дата не была заблокирована
func (r *AvailabilityRepository) UnblockDate(ctx context.Context, coachID int64, date model.Date) (bool, error) {
	affected, err := r.ExecAffected(ctx,
		`DELETE FROM blocked_dates WHERE coach_id = $1 AND blocked_date = $2`,
		coachID, date.Midnight(time.UTC),
	)
	if err != nil {
		return false, fmt.Errorf("unblock date: %w", err)
	}
	return affected > 0, nil
}

func (r *AvailabilityRepository) listBlocked(ctx context.Context, query string, args ...any) ([]model.BlockedDate, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blocked dates: %w", err)
	}
	defer rows.Close()

	var dates []model.BlockedDate
	for rows.Next() {
		var (
			b   model.BlockedDate
			day time.Time
		)
		if err := rows.Scan(&b.ID, &b.CoachID, &day, &b.Reason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blocked date: %w", err)
		}
		b.Date = model.DateOf(day, time.UTC)
		dates = append(dates, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked dates: %w", err)
	}
	return dates, nil
}

func toPgTime(t model.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

func fromPgTime(t pgtype.Time) model.TimeOfDay {
	if !t.Valid {
		return 0
	}
	return model.TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}
