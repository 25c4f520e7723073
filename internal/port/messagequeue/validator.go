package messagequeue

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var payloadValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate decodes data into the payload type registered for subject and
// checks its field constraints. Subjects without a payload type only need
// to carry valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	target := payloadFor(subject)
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if err := payloadValidator.Struct(target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}

func payloadFor(subject string) any {
	switch subject {
	case SubjectMessagesAdded:
		return &MessagesAddedPayload{}
	case SubjectGraphIngested:
		return &GraphIngestedPayload{}
	}
	return nil
}
