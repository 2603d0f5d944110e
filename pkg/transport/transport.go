package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chathub/pkg/errors"
	"chathub/pkg/logger"
	"chathub/pkg/protocol"
)

// WebSocket tracks live connections and named broadcast groups, and
// implements the hub's transport contract over gorilla/websocket. Group
// membership kept here is what group sends are delivered against; the hub's
// aggregate state is bookkeeping on top of it.
type WebSocket struct {
	log          *logger.Logger
	sendBuffer   int
	writeTimeout time.Duration

	mu     sync.RWMutex
	conns  map[string]*Conn
	groups map[string]map[string]*Conn
}

// NewWebSocket creates a transport with the given per-connection send
// buffer size and write timeout.
func NewWebSocket(sendBuffer int, writeTimeout time.Duration, log *logger.Logger) *WebSocket {
	if log == nil {
		log = logger.Get()
	}
	if sendBuffer < 1 {
		sendBuffer = 256
	}
	return &WebSocket{
		log:          log,
		sendBuffer:   sendBuffer,
		writeTimeout: writeTimeout,
		conns:        make(map[string]*Conn),
		groups:       make(map[string]map[string]*Conn),
	}
}

// Register wraps an upgraded socket in a Conn with a fresh connection id
// and starts its write pump.
func (t *WebSocket) Register(ws *websocket.Conn) *Conn {
	c := &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, t.sendBuffer),
	}

	t.mu.Lock()
	t.conns[c.id] = c
	t.mu.Unlock()

	go t.writePump(c)

	t.log.DebugWith("connection registered", "connectionID", c.id)
	return c
}

// Unregister drops a connection from the table and from every group it
// still belongs to, then closes it.
func (t *WebSocket) Unregister(connectionID string) {
	t.mu.Lock()
	c, ok := t.conns[connectionID]
	if ok {
		delete(t.conns, connectionID)
	}
	for groupID, members := range t.groups {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(t.groups, groupID)
		}
	}
	t.mu.Unlock()

	if ok {
		c.close()
		t.log.DebugWith("connection unregistered", "connectionID", connectionID)
	}
}

// JoinGroup adds the connection to a named broadcast group, creating the
// group on first join. Unknown connections are ignored.
func (t *WebSocket) JoinGroup(connectionID, groupID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.conns[connectionID]
	if !ok {
		return
	}
	members, ok := t.groups[groupID]
	if !ok {
		members = make(map[string]*Conn)
		t.groups[groupID] = members
	}
	members[connectionID] = c
}

// LeaveGroup removes the connection from a group, discarding the group once
// its last member leaves.
func (t *WebSocket) LeaveGroup(connectionID, groupID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.groups[groupID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(t.groups, groupID)
	}
}

// SendToConnection delivers a named event to one connection.
func (t *WebSocket) SendToConnection(connectionID, event string, args ...any) error {
	t.mu.RLock()
	c, ok := t.conns[connectionID]
	t.mu.RUnlock()

	if !ok {
		return errors.ErrConnectionNotFound
	}
	return c.enqueue(encodeEvent(event, args))
}

// SendRaw delivers an arbitrary JSON payload to one connection. Used for
// direct request/response replies outside the event envelope.
func (t *WebSocket) SendRaw(connectionID string, v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return err
	}

	t.mu.RLock()
	c, ok := t.conns[connectionID]
	t.mu.RUnlock()

	if !ok {
		return errors.ErrConnectionNotFound
	}
	return c.enqueue(frame)
}

// SendToGroup delivers a named event to every member of a group. A full or
// closed member queue is skipped, never fatal for the rest.
func (t *WebSocket) SendToGroup(groupID, event string, args ...any) {
	frame := encodeEvent(event, args)

	t.mu.RLock()
	members := make([]*Conn, 0, len(t.groups[groupID]))
	for _, c := range t.groups[groupID] {
		members = append(members, c)
	}
	t.mu.RUnlock()

	for _, c := range members {
		if err := c.enqueue(frame); err != nil {
			t.log.DebugWith("group send skipped", "group", groupID, "connectionID", c.id, "error", err)
		}
	}
}

// SendToAll delivers a named event to every live connection.
func (t *WebSocket) SendToAll(event string, args ...any) {
	frame := encodeEvent(event, args)

	t.mu.RLock()
	conns := make([]*Conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.RUnlock()

	for _, c := range conns {
		if err := c.enqueue(frame); err != nil {
			t.log.DebugWith("broadcast send skipped", "connectionID", c.id, "error", err)
		}
	}
}

// Count returns the number of live connections.
func (t *WebSocket) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// GroupCount returns the number of active broadcast groups.
func (t *WebSocket) GroupCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.groups)
}

// writePump drains a connection's outbound queue onto the socket. A write
// failure tears the connection down.
func (t *WebSocket) writePump(c *Conn) {
	for frame := range c.send {
		if t.writeTimeout > 0 {
			c.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
			t.log.DebugWith("write failed", "connectionID", c.id, "error", err)
			t.Unregister(c.id)
			break
		}
	}
	c.ws.WriteMessage(websocket.CloseMessage, []byte{})
	c.ws.Close()
}

func encodeEvent(event string, args []any) []byte {
	if args == nil {
		args = []any{}
	}
	frame, err := json.Marshal(protocol.Event{Event: event, Args: args})
	if err != nil {
		// Arguments are strings and bools; marshal cannot fail for them.
		return []byte(`{"event":"` + event + `","args":[]}`)
	}
	return frame
}
