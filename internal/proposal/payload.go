// Package proposal описывает интерактивное предложение времени, которое
// отправляется клиенту в чат, и его JSON-представление.
package proposal

import (
	"errors"
	"fmt"
	"time"
)

// Kind дискриминатор варианта предложения
type Kind string

const (
	KindNewSession Kind = "new_session_proposal" // сессии ещё нет, клиент выбирает время
	KindReschedule Kind = "reschedule_proposal"  // существующую сессию просят перенести
)

// Mode определяет, может ли клиент отказаться
type Mode string

const (
	ModeSelect  Mode = "select"  // только выбор одного из слотов
	ModeConfirm Mode = "confirm" // выбор слота или отказ
)

// AllowsDecline разрешён ли отказ в этом режиме
func (m Mode) AllowsDecline() bool {
	return m == ModeConfirm
}

func (m Mode) valid() bool {
	return m == ModeSelect || m == ModeConfirm
}

var (
	ErrUnknownKind    = errors.New("unknown proposal type")
	ErrInvalidPayload = errors.New("invalid proposal payload")
)

// SessionData всё, что нужно для создания сессии после выбора слота
type SessionData struct {
	ClientID        int64  `json:"client_id"`
	CoachID         int64  `json:"coach_id"`
	DurationMinutes int    `json:"duration_minutes"`
	SessionType     string `json:"session_type"`
}

// Payload общий интерфейс вариантов предложения
type Payload interface {
	Kind() Kind
	Offer() Details
	Validate() error
}

// Details поля, общие для всех вариантов
type Details struct {
	OriginalTime   time.Time
	AvailableSlots []time.Time
	Mode           Mode
	Text           string
}

// HasSlot проверяет, входит ли слот в список предложенных
func (d Details) HasSlot(slot time.Time) bool {
	for _, s := range d.AvailableSlots {
		if s.Equal(slot) {
			return true
		}
	}
	return false
}

func (d Details) validate() error {
	if d.OriginalTime.IsZero() {
		return fmt.Errorf("%w: original time is required", ErrInvalidPayload)
	}
	if len(d.AvailableSlots) == 0 {
		return fmt.Errorf("%w: at least one slot is required", ErrInvalidPayload)
	}
	for _, s := range d.AvailableSlots {
		if s.IsZero() {
			return fmt.Errorf("%w: empty slot", ErrInvalidPayload)
		}
	}
	if !d.Mode.valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPayload, d.Mode)
	}
	return nil
}

// NewSession предложение клиенту, для которого сессия ещё не создана
type NewSession struct {
	Details
	Data SessionData
}

func (p *NewSession) Kind() Kind     { return KindNewSession }
func (p *NewSession) Offer() Details { return p.Details }

func (p *NewSession) Validate() error {
	if err := p.Details.validate(); err != nil {
		return err
	}
	if p.Data.ClientID <= 0 || p.Data.CoachID <= 0 {
		return fmt.Errorf("%w: proposed session data requires client and coach", ErrInvalidPayload)
	}
	if p.Data.DurationMinutes <= 0 {
		return fmt.Errorf("%w: proposed session duration must be positive", ErrInvalidPayload)
	}
	return nil
}

// Reschedule просьба перенести уже существующую сессию
type Reschedule struct {
	Details
	SessionID int64
}

func (p *Reschedule) Kind() Kind     { return KindReschedule }
func (p *Reschedule) Offer() Details { return p.Details }

func (p *Reschedule) Validate() error {
	if err := p.Details.validate(); err != nil {
		return err
	}
	if p.SessionID <= 0 {
		return fmt.Errorf("%w: session id is required", ErrInvalidPayload)
	}
	return nil
}
