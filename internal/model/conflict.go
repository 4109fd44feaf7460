package model

import "time"

type ConflictType string

const (
	// ConflictTypeOverlap пересечение с другой сессией коуча
	ConflictTypeOverlap ConflictType = "overlap"
	// ConflictTypeDailyLimit у клиента уже есть сессия в этот день
	ConflictTypeDailyLimit ConflictType = "daily_limit"
)

// Conflict вычисляемый результат проверки, не сохраняется
type Conflict struct {
	Type            ConflictType   `json:"type"`
	Existing        Session        `json:"existing_session"`
	Proposed        SessionRequest `json:"proposed_session"`
	Recommendations []time.Time    `json:"recommendations"`
}

type ResolutionAction string

const (
	ResolutionProposeNewTime     ResolutionAction = "propose_new_time_for_incoming"
	ResolutionRescheduleExisting ResolutionAction = "propose_reschedule_for_existing"
	ResolutionCancel             ResolutionAction = "cancel"
)

// Resolution выбранный коучем способ разрешения конфликта
type Resolution struct {
	Action          ResolutionAction `json:"action"`
	TargetSessionID *int64           `json:"target_session_id,omitempty"`
	ProposedSlots   []time.Time      `json:"proposed_slots"`
	AllowDecline    bool             `json:"allow_decline"`
	Text            string           `json:"text,omitempty"`
}
