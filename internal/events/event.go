// Package events описывает события переговоров о переносе сессий и
// внутрипроцессную шину, через которую их получают подписчики.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel канал postgres LISTEN/NOTIFY, в который пишутся события
const Channel = "negotiation_events"

type Kind string

const (
	KindConflictDetected Kind = "conflict_detected" // сессия создана с конфликтом
	KindProposalSent     Kind = "proposal_sent"     // клиенту отправлено предложение
	KindAccepted         Kind = "accepted"
	KindDeclined         Kind = "declined"
	KindAbandoned        Kind = "abandoned"
	KindSessionScheduled Kind = "session_scheduled" // сессия создана без конфликта
)

// Event изменение состояния, зафиксированное в хранилище
type Event struct {
	Kind          Kind       `json:"kind"`
	NegotiationID *uuid.UUID `json:"negotiation_id,omitempty"`
	SessionID     *int64     `json:"session_id,omitempty"`
	CoachID       int64      `json:"coach_id"`
	ClientID      int64      `json:"client_id,omitempty"`
	State         string     `json:"state,omitempty"`
	At            time.Time  `json:"at"`
}

// Marshal кодирует событие для pg_notify
func (e Event) Marshal() (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(b), nil
}

// Unmarshal разбирает payload уведомления
func Unmarshal(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if e.Kind == "" {
		return Event{}, fmt.Errorf("unmarshal event: missing kind")
	}
	return e, nil
}
