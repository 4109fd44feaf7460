package negotiation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("negotiation not found")
	ErrCoachNotFound     = errors.New("coach not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid negotiation transition")
	ErrNegotiationClosed = errors.New("negotiation already closed")
	ErrSlotNotOffered    = errors.New("slot was not offered")
	ErrDeclineNotAllowed = errors.New("decline is not allowed for this proposal")
	ErrNoAlternatives    = errors.New("no alternative slots available")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrDeliveryFailed    = errors.New("proposal delivery failed")

	// ErrExistingUnresolved существующая сессия сама ждёт разрешения другого конфликта
	ErrExistingUnresolved = errors.New("existing session is pending its own conflict resolution")
)

// SlotUnavailableError выбранный слот занят с момента отправки предложения.
// Remaining содержит ещё свободные слоты из того же предложения.
type SlotUnavailableError struct {
	Slot      time.Time
	Remaining []time.Time
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot %s is no longer available, %d offered slots remain", e.Slot.UTC().Format(time.RFC3339), len(e.Remaining))
}
