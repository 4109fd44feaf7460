// Package callbacktypes описывает формат callback data inline-кнопок бота.
// Telegram ограничивает callback data 64 байтами, поэтому префиксы короткие.
package callbacktypes

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidFormat callback data не удалось разобрать
var ErrInvalidFormat = errors.New("invalid callback format")

type Action string

const (
	// Решение коуча по конфликту
	ResolveIncoming Action = "rs_in" // rs_in:<negotiation>
	ResolveExisting Action = "rs_ex" // rs_ex:<negotiation>
	ResolveCancel   Action = "rs_cx" // rs_cx:<negotiation>

	// Ответ клиента на предложение
	AcceptSlot Action = "pa" // pa:<negotiation>:<slot index>
	Decline    Action = "pd" // pd:<negotiation>

	// Управление открытыми переговорами
	Redeliver Action = "pr" // pr:<negotiation>
	Discard   Action = "px" // px:<negotiation>

	CancelSession Action = "sc" // sc:<session id>
)

// Data разобранная callback data
type Data struct {
	Action        Action
	NegotiationID uuid.UUID
	SlotIndex     int
	SessionID     int64
}

// Negotiation callback data для действия над переговорами
func Negotiation(action Action, id uuid.UUID) string {
	return string(action) + ":" + id.String()
}

// Slot callback data для выбора слота index из предложения
func Slot(id uuid.UUID, index int) string {
	return fmt.Sprintf("%s:%s:%d", AcceptSlot, id, index)
}

// Session callback data для отмены сессии
func Session(id int64) string {
	return string(CancelSession) + ":" + strconv.FormatInt(id, 10)
}

// Parse разбирает callback data
func Parse(data string) (Data, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return Data{}, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
	}

	d := Data{Action: Action(parts[0])}
	switch d.Action {
	case CancelSession:
		if len(parts) != 2 {
			return Data{}, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
		}
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || id <= 0 {
			return Data{}, fmt.Errorf("%w: session id %q", ErrInvalidFormat, parts[1])
		}
		d.SessionID = id
		return d, nil

	case AcceptSlot:
		if len(parts) != 3 {
			return Data{}, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
		}
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 0 {
			return Data{}, fmt.Errorf("%w: slot index %q", ErrInvalidFormat, parts[2])
		}
		d.SlotIndex = idx

	case ResolveIncoming, ResolveExisting, ResolveCancel, Decline, Redeliver, Discard:
		if len(parts) != 2 {
			return Data{}, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
		}

	default:
		return Data{}, fmt.Errorf("%w: unknown action %q", ErrInvalidFormat, parts[0])
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return Data{}, fmt.Errorf("%w: negotiation id %q", ErrInvalidFormat, parts[1])
	}
	d.NegotiationID = id
	return d, nil
}
