package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusProposed          SessionStatus = "proposed"           // Предложена клиенту
	SessionStatusScheduled         SessionStatus = "scheduled"          // Запланирована
	SessionStatusPendingResolution SessionStatus = "pending_resolution" // Создана с конфликтом, ждёт разрешения
	SessionStatusCancelled         SessionStatus = "cancelled"          // Отменена
)

type SessionType string

const (
	SessionTypeTraining     SessionType = "training"
	SessionTypeNutrition    SessionType = "nutrition"
	SessionTypeCheckIn      SessionType = "check_in"
	SessionTypeConsultation SessionType = "consultation"
	SessionTypeOther        SessionType = "other"
)

// ParseSessionType разбирает тип сессии, неизвестные значения становятся other
func ParseSessionType(s string) SessionType {
	switch t := SessionType(s); t {
	case SessionTypeTraining, SessionTypeNutrition, SessionTypeCheckIn, SessionTypeConsultation:
		return t
	default:
		return SessionTypeOther
	}
}

// Значение cancellation_reason, которое пишется при отказе клиента переносить сессию
const CancellationReasonRescheduleRejected = "reschedule_rejected"

type NegotiationTagKind string

const (
	NegotiationTagNone              NegotiationTagKind = "none"
	NegotiationTagPendingReschedule NegotiationTagKind = "pending_reschedule" // владельца попросили перенести сессию
	NegotiationTagRejected          NegotiationTagKind = "rejected"           // клиент отказался от переноса
)

// NegotiationTag явное состояние переговоров на записи сессии
type NegotiationTag struct {
	Kind           NegotiationTagKind `json:"kind"`
	TargetClientID *int64             `json:"target_client_id,omitempty"` // для pending_reschedule: клиент, ради которого просят перенос
}

// PendingReschedule создаёт тег "владельца попросили перенести сессию ради клиента clientID"
func PendingReschedule(clientID int64) NegotiationTag {
	return NegotiationTag{Kind: NegotiationTagPendingReschedule, TargetClientID: &clientID}
}

// IsNone проверяет отсутствие переговоров
func (t NegotiationTag) IsNone() bool {
	return t.Kind == "" || t.Kind == NegotiationTagNone
}

type Session struct {
	ID                 int64          `json:"id"`
	CoachID            int64          `json:"coach_id"`
	ClientID           int64          `json:"client_id"`
	ScheduledAt        time.Time      `json:"scheduled_at"` // UTC
	DurationMinutes    int            `json:"duration_minutes"`
	Status             SessionStatus  `json:"status"`
	SessionType        SessionType    `json:"session_type"`
	InviteSent         bool           `json:"invite_sent"`
	CancellationReason *string        `json:"cancellation_reason"`
	Negotiation        NegotiationTag `json:"negotiation"`
	SeriesID           *uuid.UUID     `json:"series_id"` // группа повторяющихся сессий
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Duration длительность сессии
func (s *Session) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// End момент окончания сессии (не включительно)
func (s *Session) End() time.Time {
	return s.ScheduledAt.Add(s.Duration())
}

// IsActive отменённые сессии не участвуют в проверках пересечений и лимитов
func (s *Session) IsActive() bool {
	return s.Status != SessionStatusCancelled
}

var (
	ErrInvalidRequest = errors.New("invalid session request")
	// ErrSlotTaken хранилище отклонило запись из-за пересечения или дневного лимита
	ErrSlotTaken = errors.New("slot already taken")
)

// SessionRequest предлагаемая коучем сессия, ещё не сохранённая
type SessionRequest struct {
	CoachID         int64       `json:"coach_id"`
	ClientID        int64       `json:"client_id"`
	ScheduledAt     time.Time   `json:"scheduled_at"`
	DurationMinutes int         `json:"duration_minutes"`
	SessionType     SessionType `json:"session_type"`
	SeriesID        *uuid.UUID  `json:"series_id,omitempty"` // задаётся для регулярных сессий
}

// Validate отклоняет некорректные запросы до обращения к хранилищу
func (r SessionRequest) Validate() error {
	if r.CoachID <= 0 {
		return fmt.Errorf("%w: coach id is required", ErrInvalidRequest)
	}
	if r.ClientID <= 0 {
		return fmt.Errorf("%w: client id is required", ErrInvalidRequest)
	}
	if r.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: scheduled time is required", ErrInvalidRequest)
	}
	if r.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidRequest, r.DurationMinutes)
	}
	return nil
}

// End момент окончания предлагаемой сессии
func (r SessionRequest) End() time.Time {
	return r.ScheduledAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

// At возвращает копию запроса, перенесённую на другое время
func (r SessionRequest) At(t time.Time) SessionRequest {
	r.ScheduledAt = t
	return r
}

// Request запрос на сессию с теми же участниками, временем и длительностью
func (s *Session) Request() SessionRequest {
	return SessionRequest{
		CoachID:         s.CoachID,
		ClientID:        s.ClientID,
		ScheduledAt:     s.ScheduledAt,
		DurationMinutes: s.DurationMinutes,
		SessionType:     s.SessionType,
		SeriesID:        s.SeriesID,
	}
}
