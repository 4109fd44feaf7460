package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/proposal"
	"github.com/Freeeeeet/coach_scheduler/internal/repository/base"
)

const negotiationColumns = `
	id, coach_id, incoming_client_id, pending_session_id, existing_session_id,
	conflict_type, recipient_client_id, state, payload, accepted_slot,
	result_session_id, invite_sent, created_at, updated_at`

// NegotiationRepository хранит переговоры; предложение лежит в колонке payload (jsonb)
type NegotiationRepository struct {
	*base.Repository
}

func NewNegotiationRepository(pool *pgxpool.Pool) *NegotiationRepository {
	return &NegotiationRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт запись о переговорах
func (r *NegotiationRepository) Create(ctx context.Context, n *model.Negotiation) error {
	payload, err := encodePayload(n.Payload)
	if err != nil {
		return fmt.Errorf("create negotiation: %w", err)
	}

	query := `
		INSERT INTO negotiations (
			id, coach_id, incoming_client_id, pending_session_id, existing_session_id,
			conflict_type, recipient_client_id, state, payload, accepted_slot,
			result_session_id, invite_sent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	err = r.QueryRow(
		ctx, query,
		n.ID,
		n.CoachID,
		n.IncomingClientID,
		n.PendingSessionID,
		n.ExistingSessionID,
		n.ConflictType,
		n.RecipientClientID,
		n.State,
		payload,
		n.AcceptedSlot,
		n.ResultSessionID,
		n.InviteSent,
	).Scan(&n.CreatedAt, &n.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create negotiation: %w", err)
	}

	return nil
}

// Update сохраняет состояние, предложение и результат переговоров
func (r *NegotiationRepository) Update(ctx context.Context, n *model.Negotiation) error {
	payload, err := encodePayload(n.Payload)
	if err != nil {
		return fmt.Errorf("update negotiation: %w", err)
	}

	query := `
		UPDATE negotiations
		SET pending_session_id = $2,
		    recipient_client_id = $3,
		    state = $4,
		    payload = $5,
		    accepted_slot = $6,
		    result_session_id = $7,
		    invite_sent = $8,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.QueryRow(
		ctx, query,
		n.ID,
		n.PendingSessionID,
		n.RecipientClientID,
		n.State,
		payload,
		n.AcceptedSlot,
		n.ResultSessionID,
		n.InviteSent,
	).Scan(&n.UpdatedAt)

	if base.IsNotFound(err) {
		return fmt.Errorf("update negotiation: negotiation %s not found", n.ID)
	}
	if err != nil {
		return fmt.Errorf("update negotiation: %w", err)
	}

	return nil
}

// MarkInviteSent отмечает доставку предложения
func (r *NegotiationRepository) MarkInviteSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.ExecAffected(ctx, `UPDATE negotiations SET invite_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark invite sent: %w", err)
	}
	return nil
}

// GetByID получает переговоры по ID
func (r *NegotiationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Negotiation, error) {
	n, err := scanNegotiation(r.QueryRow(ctx, `SELECT `+negotiationColumns+` FROM negotiations WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get negotiation by id: %w", err)
	}
	return n, nil
}

// GetByIDForUpdate получает переговоры с блокировкой строки
func (r *NegotiationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Negotiation, error) {
	n, err := scanNegotiation(r.QueryRow(ctx, `SELECT `+negotiationColumns+` FROM negotiations WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("get negotiation for update: %w", err)
	}
	return n, nil
}

// ListOpenByCoach незавершённые переговоры коуча, от старых к новым
func (r *NegotiationRepository) ListOpenByCoach(ctx context.Context, coachID int64) ([]model.Negotiation, error) {
	query := `
		SELECT ` + negotiationColumns + `
		FROM negotiations
		WHERE coach_id = $1 AND state NOT IN ('accepted', 'abandoned')
		ORDER BY created_at
	`
	return r.list(ctx, "list open negotiations", query, coachID)
}

// ListStale переговоры без движения с updatedBefore, ещё ожидающие коуча или клиента
func (r *NegotiationRepository) ListStale(ctx context.Context, updatedBefore time.Time) ([]model.Negotiation, error) {
	query := `
		SELECT ` + negotiationColumns + `
		FROM negotiations
		WHERE state IN ('conflict_detected', 'proposal_sent_to_incoming', 'proposal_sent_to_existing')
		  AND updated_at < $1
		ORDER BY updated_at
	`
	return r.list(ctx, "list stale negotiations", query, updatedBefore.UTC())
}

func (r *NegotiationRepository) list(ctx context.Context, op, query string, args ...any) ([]model.Negotiation, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var negs []model.Negotiation
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		negs = append(negs, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return negs, nil
}

func scanNegotiation(row rowScanner) (*model.Negotiation, error) {
	var (
		n       model.Negotiation
		payload []byte
	)
	err := row.Scan(
		&n.ID,
		&n.CoachID,
		&n.IncomingClientID,
		&n.PendingSessionID,
		&n.ExistingSessionID,
		&n.ConflictType,
		&n.RecipientClientID,
		&n.State,
		&payload,
		&n.AcceptedSlot,
		&n.ResultSessionID,
		&n.InviteSent,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if len(payload) > 0 {
		p, err := proposal.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode payload of negotiation %s: %w", n.ID, err)
		}
		n.Payload = p
	}
	return &n, nil
}

// encodePayload nil пока коуч не выбрал способ разрешения
func encodePayload(p proposal.Payload) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	return proposal.Encode(p)
}
