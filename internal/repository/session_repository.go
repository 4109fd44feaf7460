package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/base"
)

const sessionColumns = `
	id, coach_id, client_id, scheduled_at, duration_minutes, status, session_type,
	invite_sent, cancellation_reason, negotiation_kind, negotiation_target_client_id,
	series_id, created_at, updated_at`

// localDateExpr календарный день сессии в часовом поясе коуча
const localDateExpr = `(($3::timestamptz) AT TIME ZONE COALESCE((SELECT timezone FROM users WHERE id = $1), 'UTC'))::date`

// SessionRepository хранит сессии коучей.
// Пересечения и дневной лимит дополнительно защищены ограничениями базы,
// их нарушение возвращается как model.ErrSlotTaken.
type SessionRepository struct {
	*base.Repository
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт сессию
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (
			coach_id, client_id, scheduled_at, duration_minutes, ends_at, local_date,
			status, session_type, invite_sent, cancellation_reason,
			negotiation_kind, negotiation_target_client_id, series_id
		)
		VALUES ($1, $2, $3, $4, $5, ` + localDateExpr + `, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		s.CoachID,
		s.ClientID,
		s.ScheduledAt.UTC(),
		s.DurationMinutes,
		s.End().UTC(),
		s.Status,
		s.SessionType,
		s.InviteSent,
		s.CancellationReason,
		tagKind(s.Negotiation),
		s.Negotiation.TargetClientID,
		s.SeriesID,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create session: %w", mapSlotError(err))
	}

	return nil
}

// Update сохраняет все изменяемые поля сессии
func (r *SessionRepository) Update(ctx context.Context, s *model.Session) error {
	query := `
		UPDATE sessions
		SET scheduled_at = $3,
		    duration_minutes = $4,
		    ends_at = $5,
		    local_date = ` + localDateExpr + `,
		    status = $6,
		    session_type = $7,
		    invite_sent = $8,
		    cancellation_reason = $9,
		    negotiation_kind = $10,
		    negotiation_target_client_id = $11,
		    series_id = $12,
		    updated_at = NOW()
		WHERE coach_id = $1 AND id = $2
		RETURNING updated_at
	`

	err := r.QueryRow(
		ctx, query,
		s.CoachID,
		s.ID,
		s.ScheduledAt.UTC(),
		s.DurationMinutes,
		s.End().UTC(),
		s.Status,
		s.SessionType,
		s.InviteSent,
		s.CancellationReason,
		tagKind(s.Negotiation),
		s.Negotiation.TargetClientID,
		s.SeriesID,
	).Scan(&s.UpdatedAt)

	if base.IsNotFound(err) {
		return fmt.Errorf("update session: session %d not found", s.ID)
	}
	if err != nil {
		return fmt.Errorf("update session: %w", mapSlotError(err))
	}

	return nil
}

// RecomputeLocalDates пересчитывает local_date сессий коуча начиная с from
// по часовому поясу, который сейчас записан у коуча
func (r *SessionRepository) RecomputeLocalDates(ctx context.Context, coachID int64, from time.Time) (int64, error) {
	query := `
		UPDATE sessions s
		SET local_date = (s.scheduled_at AT TIME ZONE COALESCE(u.timezone, 'UTC'))::date
		FROM users u
		WHERE u.id = s.coach_id AND s.coach_id = $1 AND s.scheduled_at >= $2
	`
	n, err := r.ExecAffected(ctx, query, coachID, from.UTC())
	if err != nil {
		return 0, fmt.Errorf("recompute local dates: %w", mapSlotError(err))
	}
	return n, nil
}

// Delete удаляет сессию; используется только для заглушек pending_resolution
func (r *SessionRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.ExecAffected(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// GetByID получает сессию по ID
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.Session, error) {
	s, err := scanSession(r.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get session by id: %w", err)
	}
	return s, nil
}

// GetByIDForUpdate получает сессию с блокировкой строки до конца транзакции
func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Session, error) {
	s, err := scanSession(r.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get session for update: %w", err)
	}
	return s, nil
}

// ListForCheck сессии коуча и указанных клиентов, начинающиеся в [from, to).
// Строки блокируются, чтобы параллельная запись не прошла между проверкой и вставкой.
func (r *SessionRepository) ListForCheck(ctx context.Context, coachID int64, clientIDs []int64, from, to time.Time) ([]model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE (coach_id = $1 OR client_id = ANY($2))
		  AND scheduled_at >= $3 AND scheduled_at < $4
		  AND status <> 'cancelled'
		ORDER BY scheduled_at
		FOR UPDATE
	`
	return r.list(ctx, "list sessions for check", query, coachID, clientIDs, from.UTC(), to.UTC())
}

// ListPendingResolution заглушки коуча, ожидающие разрешения конфликта
func (r *SessionRepository) ListPendingResolution(ctx context.Context, coachID int64) ([]model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE coach_id = $1 AND status = 'pending_resolution'
		ORDER BY scheduled_at
	`
	return r.list(ctx, "list pending sessions", query, coachID)
}

// ListByCoach активные сессии коуча в интервале [from, to)
func (r *SessionRepository) ListByCoach(ctx context.Context, coachID int64, from, to time.Time) ([]model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE coach_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		  AND status <> 'cancelled'
		ORDER BY scheduled_at
	`
	return r.list(ctx, "list coach sessions", query, coachID, from.UTC(), to.UTC())
}

// ListByClient активные сессии клиента начиная с from
func (r *SessionRepository) ListByClient(ctx context.Context, clientID int64, from time.Time) ([]model.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE client_id = $1 AND scheduled_at >= $2 AND status <> 'cancelled'
		ORDER BY scheduled_at
	`
	return r.list(ctx, "list client sessions", query, clientID, from.UTC())
}

// ListBySeries сессии одной серии
func (r *SessionRepository) ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE series_id = $1 ORDER BY scheduled_at`
	return r.list(ctx, "list series sessions", query, seriesID)
}

func (r *SessionRepository) list(ctx context.Context, op, query string, args ...any) ([]model.Session, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s    model.Session
		kind string
	)
	err := row.Scan(
		&s.ID,
		&s.CoachID,
		&s.ClientID,
		&s.ScheduledAt,
		&s.DurationMinutes,
		&s.Status,
		&s.SessionType,
		&s.InviteSent,
		&s.CancellationReason,
		&kind,
		&s.Negotiation.TargetClientID,
		&s.SeriesID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	s.ScheduledAt = s.ScheduledAt.UTC()
	s.Negotiation.Kind = model.NegotiationTagKind(kind)
	return &s, nil
}

func tagKind(t model.NegotiationTag) string {
	if t.IsNone() {
		return string(model.NegotiationTagNone)
	}
	return string(t.Kind)
}

// mapSlotError нарушение exclusion или уникального индекса означает занятый слот
func mapSlotError(err error) error {
	if base.IsConstraintViolation(err, base.ExclusionViolation, base.UniqueViolation) {
		return errors.Join(model.ErrSlotTaken, err)
	}
	return err
}
