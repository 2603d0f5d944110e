package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionType defines the type of action a client requests
type ActionType string

const (
	// Registration actions
	ActionAddUser    ActionType = "add_user"
	ActionAddToGroup ActionType = "add_to_group"

	// Messaging actions
	ActionSendAll            ActionType = "send_all"
	ActionSendPrivateMessage ActionType = "send_private_message"
	ActionSendGroupMessage   ActionType = "send_group_message"
	ActionDeleteMessage      ActionType = "delete_message"

	// Presence actions
	ActionOnline  ActionType = "online"
	ActionOffline ActionType = "offline"
)

// Message is the base structure for all inbound client actions
type Message struct {
	Type      ActionType      `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewMessage creates a message with the given payload
func NewMessage(msgType ActionType, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   data,
	}, nil
}

// ParsePayload unmarshals the message payload into the given value
func (m *Message) ParsePayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// AddUserPayload registers a logical user for this connection
type AddUserPayload struct {
	UserID string `json:"user_id"`
}

// AddToGroupPayload joins the connection's user to a group
type AddToGroupPayload struct {
	GroupID string `json:"group_id"`
}

// SendAllPayload broadcasts a message to every connection
type SendAllPayload struct {
	Message string `json:"message"`
}

// PrivateMessagePayload targets a single user within the caller's tenant
type PrivateMessagePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// GroupMessagePayload targets a group broadcast channel
type GroupMessagePayload struct {
	From      string `json:"from"`
	Group     string `json:"group"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// DeleteMessagePayload propagates a message deletion. SourceID is the group
// id when FromGroup is set, otherwise the destination user id.
type DeleteMessagePayload struct {
	MessageID string `json:"message_id"`
	SourceID  string `json:"source_id"`
	FromGroup bool   `json:"from_group"`
}

// Result is the response sent back for direct request/response actions.
// ID echoes the inbound message id.
type Result struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Roster string `json:"roster,omitempty"`
}
