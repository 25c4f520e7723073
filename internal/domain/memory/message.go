package memory

import "time"

// MessageType is the origin of a chat message in the upstream conversation.
type MessageType string

const (
	MessageHuman     MessageType = "human"
	MessageUser      MessageType = "user"
	MessageAI        MessageType = "ai"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
	MessageTool      MessageType = "tool"
)

// RoleType is the binary role understood by the gateway.
type RoleType string

const (
	RoleUser      RoleType = "user"
	RoleAssistant RoleType = "assistant"
)

// ChatMessage is a message from the upstream conversation. Content is
// usually a string; structured or multimodal content (content blocks, maps)
// is not supported and is dropped during adaptation.
type ChatMessage struct {
	Type      MessageType `json:"type"`
	Content   any         `json:"content"`
	Timestamp time.Time   `json:"timestamp,omitempty"`
}

// MessageMetadata is attached to every message sent to the gateway.
type MessageMetadata struct {
	Timestamp   string      `json:"timestamp"`
	MessageType MessageType `json:"message_type"`
}

// RemoteMessage is a message in the gateway's schema.
type RemoteMessage struct {
	Role     RoleType        `json:"role_type"`
	Content  string          `json:"content"`
	Metadata MessageMetadata `json:"metadata"`
}

// now is replaced in tests.
var now = time.Now

// ToRemoteMessage converts msg into the gateway schema. It returns false when
// the content is not plain text. Human and user messages map to RoleUser;
// every other origin, system and tool included, collapses to RoleAssistant.
func ToRemoteMessage(msg ChatMessage) (RemoteMessage, bool) {
	text, ok := msg.Content.(string)
	if !ok {
		return RemoteMessage{}, false
	}

	role := RoleAssistant
	if msg.Type == MessageHuman || msg.Type == MessageUser {
		role = RoleUser
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = now()
	}

	return RemoteMessage{
		Role:    role,
		Content: text,
		Metadata: MessageMetadata{
			Timestamp:   ts.UTC().Format(time.RFC3339),
			MessageType: msg.Type,
		},
	}, true
}

// AdaptMessages converts msgs and filters out non-textual ones. dropped holds
// the indexes of the messages that could not be converted so the caller can
// report them.
func AdaptMessages(msgs []ChatMessage) (adapted []RemoteMessage, dropped []int) {
	adapted = make([]RemoteMessage, 0, len(msgs))
	for i := range msgs {
		rm, ok := ToRemoteMessage(msgs[i])
		if !ok {
			dropped = append(dropped, i)
			continue
		}
		adapted = append(adapted, rm)
	}
	return adapted, dropped
}

// DeriveQuery picks the search query for a turn: the most recent user
// message, or the last message of any role when no user message exists.
// An empty list yields "".
func DeriveQuery(msgs []RemoteMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}
