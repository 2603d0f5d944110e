package protocol

// Event names delivered to connected clients. Names and argument order are
// part of the wire contract and must not change.
const (
	// EventReceiveAll carries (message)
	EventReceiveAll = "ReceiveAll"

	// EventReceivePrivateMessage carries (from_user, message, message_id, timestamp)
	EventReceivePrivateMessage = "ReceivePrivateMessage"

	// EventReceiveGroupMessage carries (from_user, to_group, message, message_id, timestamp)
	EventReceiveGroupMessage = "ReceiveGroupMessage"

	// EventDeleteMessage carries (message_id, source_id, from_group)
	EventDeleteMessage = "DeleteMessage"

	// EventUserConnected carries (user_id)
	EventUserConnected = "UserConnected"

	// EventUserDisconnected carries (user_id)
	EventUserDisconnected = "UserDisconnected"

	// EventResult carries a Result for a direct request/response action
	EventResult = "Result"
)

// Event is the outbound frame written to client connections
type Event struct {
	Event string `json:"event"`
	Args  []any  `json:"args"`
}
