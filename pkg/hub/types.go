package hub

// User is one logical participant inside a tenant. ID is the caller-chosen
// identity and is stable across reconnects; ConnectionID tracks the current
// live transport connection and changes when the user reconnects.
type User struct {
	ID           string
	ConnectionID string
}

// Group is a named broadcast channel scoped to a tenant. Members are value
// snapshots taken at join time: a member's recorded connection id is not
// rewritten when the underlying user reconnects, the user must re-join.
type Group struct {
	ID      string
	Members []User
}

// Transport is the connection-layer contract the hub fans out through.
// Implementations must be safe for concurrent use.
type Transport interface {
	// JoinGroup adds a connection to a named broadcast group.
	JoinGroup(connectionID, groupID string)

	// LeaveGroup removes a connection from a named broadcast group.
	LeaveGroup(connectionID, groupID string)

	// SendToConnection delivers a named event to a single connection.
	SendToConnection(connectionID, event string, args ...any) error

	// SendToGroup delivers a named event to every member of a group.
	SendToGroup(groupID, event string, args ...any)

	// SendToAll delivers a named event to every live connection.
	SendToAll(event string, args ...any)
}

// PresenceRecorder persists user session history. Recording is best effort:
// the hub logs failures and continues.
type PresenceRecorder interface {
	RecordConnect(tenantID, userID, connectionID string) error
	RecordDisconnect(tenantID, userID, connectionID string) error
}
