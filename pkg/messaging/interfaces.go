package messaging

import (
	"chathub/pkg/hub"
	"chathub/pkg/protocol"
)

// Handler handles a specific action type
type Handler interface {
	// Handle processes an action and returns an optional response
	Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error)
	// ActionType returns the type of action this handler processes
	ActionType() protocol.ActionType
}

// Dispatcher dispatches actions to appropriate handlers
type Dispatcher interface {
	// Register registers a handler for an action type
	Register(handler Handler) error
	// Dispatch dispatches an action to the appropriate handler
	Dispatch(sess *hub.Session, msg *protocol.Message) (interface{}, error)
	// HasHandler checks if a handler exists for the action type
	HasHandler(actionType protocol.ActionType) bool
}
