package messaging

import (
	"fmt"
	"sync"

	"chathub/pkg/hub"
	"chathub/pkg/logger"
	"chathub/pkg/protocol"
)

// DispatcherImpl implements the Dispatcher interface
type DispatcherImpl struct {
	handlers map[protocol.ActionType]Handler
	mu       sync.RWMutex
}

// NewDispatcher creates a new action dispatcher
func NewDispatcher() *DispatcherImpl {
	return &DispatcherImpl{
		handlers: make(map[protocol.ActionType]Handler),
	}
}

// Register registers a handler for an action type
func (d *DispatcherImpl) Register(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	actionType := handler.ActionType()
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[actionType]; exists {
		return fmt.Errorf("handler already registered for action type: %s", actionType)
	}

	d.handlers[actionType] = handler
	logger.Get().DebugWith("registered action handler", "action", string(actionType))
	return nil
}

// Dispatch dispatches an action to the appropriate handler
func (d *DispatcherImpl) Dispatch(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	d.mu.RLock()
	handler, exists := d.handlers[msg.Type]
	d.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no handler registered for action type: %s", msg.Type)
	}

	return handler.Handle(sess, msg)
}

// HasHandler checks if a handler exists for the action type
func (d *DispatcherImpl) HasHandler(actionType protocol.ActionType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.handlers[actionType]
	return exists
}
