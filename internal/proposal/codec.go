package proposal

import (
	"encoding/json"
	"fmt"
	"time"
)

// wirePayload формат, в котором предложение хранится в чате и в базе
type wirePayload struct {
	Type                Kind         `json:"type"`
	SessionID           *int64       `json:"sessionId"`
	OriginalTime        time.Time    `json:"originalTime"`
	AvailableSlots      []time.Time  `json:"availableSlots"`
	Mode                Mode         `json:"mode"`
	Text                string       `json:"text"`
	ProposedSessionData *SessionData `json:"proposedSessionData,omitempty"`
}

// Encode сериализует предложение. Все моменты времени приводятся к UTC
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	d := p.Offer()
	w := wirePayload{
		Type:           p.Kind(),
		OriginalTime:   d.OriginalTime.UTC(),
		AvailableSlots: utcSlots(d.AvailableSlots),
		Mode:           d.Mode,
		Text:           d.Text,
	}

	switch v := p.(type) {
	case *NewSession:
		data := v.Data
		w.ProposedSessionData = &data
	case *Reschedule:
		id := v.SessionID
		w.SessionID = &id
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p)
	}

	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal proposal: %w", err)
	}
	return b, nil
}

// Decode разбирает и валидирует предложение.
// Старый формат reschedule_proposal с sessionId = null и proposedSessionData
// читается как NewSession.
func Decode(b []byte) (Payload, error) {
	var w wirePayload
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	d := Details{
		OriginalTime:   w.OriginalTime.UTC(),
		AvailableSlots: utcSlots(w.AvailableSlots),
		Mode:           w.Mode,
		Text:           w.Text,
	}

	var p Payload
	switch w.Type {
	case KindNewSession:
		if w.SessionID != nil {
			return nil, fmt.Errorf("%w: new session proposal must not reference a session", ErrInvalidPayload)
		}
		if w.ProposedSessionData == nil {
			return nil, fmt.Errorf("%w: proposed session data is required", ErrInvalidPayload)
		}
		p = &NewSession{Details: d, Data: *w.ProposedSessionData}
	case KindReschedule:
		switch {
		case w.SessionID == nil && w.ProposedSessionData != nil:
			p = &NewSession{Details: d, Data: *w.ProposedSessionData}
		case w.SessionID == nil:
			return nil, fmt.Errorf("%w: session id is required", ErrInvalidPayload)
		case w.ProposedSessionData != nil:
			return nil, fmt.Errorf("%w: reschedule proposal must not carry session data", ErrInvalidPayload)
		default:
			p = &Reschedule{Details: d, SessionID: *w.SessionID}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, w.Type)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func utcSlots(slots []time.Time) []time.Time {
	if slots == nil {
		return nil
	}
	out := make([]time.Time, len(slots))
	for i, s := range slots {
		out[i] = s.UTC()
	}
	return out
}
