package messagequeue

import (
	"strings"
	"testing"
)

const (
	validMessagesAdded = `{"event_id":"e1","workspace_id":"ws","remote_user_id":"ws_u1","session_id":"s1","message_count":2,"dropped":1,"occurred_at":"2025-01-02T03:04:05Z"}`
	validGraphIngested = `{"event_id":"e1","workspace_id":"ws","remote_user_id":"ws_u1","data_type":"text","overflow_strategy":"split","original_size":25000,"ingested_size":24990,"chunks":3}`
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
		wantErr string
	}{
		{"messages added", SubjectMessagesAdded, validMessagesAdded, ""},
		{"graph ingested", SubjectGraphIngested, validGraphIngested, ""},
		{"graph ingested without strategy", SubjectGraphIngested, `{"event_id":"e1","workspace_id":"ws","remote_user_id":"ws_u1","data_type":"json","original_size":10,"ingested_size":10,"chunks":1}`, ""},
		{"unknown subject", "memory.unknown", `{"foo":"bar"}`, ""},
		{"invalid JSON", SubjectMessagesAdded, `{not valid json`, "invalid JSON"},
		{"invalid JSON on unknown subject", "memory.unknown", `nope`, "invalid JSON"},
		{"string payload", SubjectMessagesAdded, `"just a string"`, "schema validation failed"},
		{"count as string", SubjectMessagesAdded, `{"message_count":"two"}`, "schema validation failed"},
		{"chunks as bool", SubjectGraphIngested, `{"chunks":true}`, "schema validation failed"},
		{"empty messages added", SubjectMessagesAdded, `{}`, "schema validation failed"},
		{"empty graph ingested", SubjectGraphIngested, `{}`, "schema validation failed"},
		{"missing session", SubjectMessagesAdded, `{"event_id":"e1","workspace_id":"ws","remote_user_id":"ws_u1","message_count":1}`, "SessionID"},
		{"negative dropped", SubjectMessagesAdded, `{"event_id":"e1","workspace_id":"ws","remote_user_id":"ws_u1","session_id":"s1","dropped":-1}`, "Dropped"},
		{"unknown data type", SubjectGraphIngested, `{"event_id":"e1","workspace_id":"ws","remote_user_id":"ws_u1","data_type":"xml"}`, "DataType"},
		{"unknown strategy", SubjectGraphIngested, `{"event_id":"e1","workspace_id":"ws","remote_user_id":"ws_u1","data_type":"text","overflow_strategy":"drop"}`, "OverflowStrategy"},
		{"negative chunks", SubjectGraphIngested, `{"event_id":"e1","workspace_id":"ws","remote_user_id":"ws_u1","data_type":"text","chunks":-1}`, "Chunks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.subject, []byte(tt.data))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q in error, got: %v", tt.wantErr, err)
			}
		})
	}
}
