package messagequeue

import "time"

// MessagesAddedPayload is the schema for memory.messages.added messages.
type MessagesAddedPayload struct {
	EventID      string    `json:"event_id"       validate:"required"`
	WorkspaceID  string    `json:"workspace_id"   validate:"required"`
	RemoteUserID string    `json:"remote_user_id" validate:"required"`
	SessionID    string    `json:"session_id"     validate:"required"`
	MessageCount int       `json:"message_count"  validate:"gte=0"`
	Dropped      int       `json:"dropped"        validate:"gte=0"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// GraphIngestedPayload is the schema for memory.graph.ingested messages.
type GraphIngestedPayload struct {
	EventID          string    `json:"event_id"                    validate:"required"`
	WorkspaceID      string    `json:"workspace_id"                validate:"required"`
	RemoteUserID     string    `json:"remote_user_id"              validate:"required"`
	DataType         string    `json:"data_type"                   validate:"oneof=text json message"`
	OverflowStrategy string    `json:"overflow_strategy,omitempty" validate:"omitempty,oneof=truncate split fail"`
	OriginalSize     int       `json:"original_size"               validate:"gte=0"`
	IngestedSize     int       `json:"ingested_size"               validate:"gte=0"`
	Chunks           int       `json:"chunks"                      validate:"gte=0"`
	OccurredAt       time.Time `json:"occurred_at"`
}
