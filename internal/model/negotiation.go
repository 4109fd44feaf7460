package model

import (
	"time"

	"github.com/Freeeeeet/coach_scheduler/internal/proposal"
	"github.com/google/uuid"
)

type NegotiationState string

const (
	NegotiationConflictDetected       NegotiationState = "conflict_detected"
	NegotiationProposalSentToIncoming NegotiationState = "proposal_sent_to_incoming"
	NegotiationProposalSentToExisting NegotiationState = "proposal_sent_to_existing"
	NegotiationAccepted               NegotiationState = "accepted"
	NegotiationDeclined               NegotiationState = "declined"
	NegotiationAbandoned              NegotiationState = "abandoned"
)

var negotiationTransitions = map[NegotiationState][]NegotiationState{
	NegotiationConflictDetected: {
		NegotiationProposalSentToIncoming,
		NegotiationProposalSentToExisting,
		NegotiationAbandoned,
	},
	NegotiationProposalSentToIncoming: {NegotiationAccepted, NegotiationDeclined, NegotiationAbandoned},
	NegotiationProposalSentToExisting: {NegotiationAccepted, NegotiationDeclined, NegotiationAbandoned},
	NegotiationDeclined:               {NegotiationAbandoned},
}

// CanTransitionTo проверяет допустимость перехода
func (s NegotiationState) CanTransitionTo(next NegotiationState) bool {
	for _, allowed := range negotiationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsProposalSent ждём ответа клиента
func (s NegotiationState) IsProposalSent() bool {
	return s == NegotiationProposalSentToIncoming || s == NegotiationProposalSentToExisting
}

// IsTerminal accepted и abandoned окончательны; declined ещё требует ручной очистки
func (s NegotiationState) IsTerminal() bool {
	return s == NegotiationAccepted || s == NegotiationAbandoned
}

// Negotiation долговременная запись о разрешении одного конфликта
type Negotiation struct {
	ID                uuid.UUID        `json:"id"`
	CoachID           int64            `json:"coach_id"`
	IncomingClientID  int64            `json:"incoming_client_id"`
	PendingSessionID  *int64           `json:"pending_session_id"` // сессия-заглушка в статусе pending_resolution
	ExistingSessionID int64            `json:"existing_session_id"`
	ConflictType      ConflictType     `json:"conflict_type"`
	RecipientClientID *int64           `json:"recipient_client_id"` // кому отправлено предложение
	State             NegotiationState `json:"state"`
	Payload           proposal.Payload `json:"-"`
	AcceptedSlot      *time.Time       `json:"accepted_slot"`
	ResultSessionID   *int64           `json:"result_session_id"`
	InviteSent        bool             `json:"invite_sent"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
