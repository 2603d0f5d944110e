package messaging

import (
	"chathub/pkg/hub"
	"chathub/pkg/protocol"
)

// AddUserHandler registers a logical user and returns the tenant roster
type AddUserHandler struct {
	hub *hub.Hub
}

func NewAddUserHandler(h *hub.Hub) *AddUserHandler {
	return &AddUserHandler{hub: h}
}

func (h *AddUserHandler) ActionType() protocol.ActionType {
	return protocol.ActionAddUser
}

func (h *AddUserHandler) Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	var payload protocol.AddUserPayload
	if err := msg.ParsePayload(&payload); err != nil {
		return nil, err
	}

	roster, err := h.hub.AddUser(sess, payload.UserID)
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// AddToGroupHandler joins the caller to a broadcast group
type AddToGroupHandler struct {
	hub *hub.Hub
}

func NewAddToGroupHandler(h *hub.Hub) *AddToGroupHandler {
	return &AddToGroupHandler{hub: h}
}

func (h *AddToGroupHandler) ActionType() protocol.ActionType {
	return protocol.ActionAddToGroup
}

func (h *AddToGroupHandler) Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	var payload protocol.AddToGroupPayload
	if err := msg.ParsePayload(&payload); err != nil {
		return nil, err
	}
	return nil, h.hub.AddToGroup(sess, payload.GroupID)
}

// SendAllHandler broadcasts to every connected client
type SendAllHandler struct {
	hub *hub.Hub
}

func NewSendAllHandler(h *hub.Hub) *SendAllHandler {
	return &SendAllHandler{hub: h}
}

func (h *SendAllHandler) ActionType() protocol.ActionType {
	return protocol.ActionSendAll
}

func (h *SendAllHandler) Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	var payload protocol.SendAllPayload
	if err := msg.ParsePayload(&payload); err != nil {
		return nil, err
	}
	h.hub.SendAll(sess, payload.Message)
	return nil, nil
}

// PrivateMessageHandler delivers to a single user in the caller's tenant
type PrivateMessageHandler struct {
	hub *hub.Hub
}

func NewPrivateMessageHandler(h *hub.Hub) *PrivateMessageHandler {
	return &PrivateMessageHandler{hub: h}
}

func (h *PrivateMessageHandler) ActionType() protocol.ActionType {
	return protocol.ActionSendPrivateMessage
}

func (h *PrivateMessageHandler) Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	var payload protocol.PrivateMessagePayload
	if err := msg.ParsePayload(&payload); err != nil {
		return nil, err
	}
	return nil, h.hub.SendPrivateMessage(sess, payload.From, payload.To, payload.Message, payload.MessageID)
}

// GroupMessageHandler delivers to a broadcast group
type GroupMessageHandler struct {
	hub *hub.Hub
}

func NewGroupMessageHandler(h *hub.Hub) *GroupMessageHandler {
	return &GroupMessageHandler{hub: h}
}

func (h *GroupMessageHandler) ActionType() protocol.ActionType {
	return protocol.ActionSendGroupMessage
}

func (h *GroupMessageHandler) Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	var payload protocol.GroupMessagePayload
	if err := msg.ParsePayload(&payload); err != nil {
		return nil, err
	}
	h.hub.SendGroupMessage(sess, payload.From, payload.Group, payload.Message, payload.MessageID)
	return nil, nil
}

// DeleteMessageHandler propagates a message deletion notice
type DeleteMessageHandler struct {
	hub *hub.Hub
}

func NewDeleteMessageHandler(h *hub.Hub) *DeleteMessageHandler {
	return &DeleteMessageHandler{hub: h}
}

func (h *DeleteMessageHandler) ActionType() protocol.ActionType {
	return protocol.ActionDeleteMessage
}

func (h *DeleteMessageHandler) Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	var payload protocol.DeleteMessagePayload
	if err := msg.ParsePayload(&payload); err != nil {
		return nil, err
	}
	return nil, h.hub.DeleteMessage(sess, payload.MessageID, payload.SourceID, payload.FromGroup)
}

// OnlineHandler announces the caller's presence to its group peers
type OnlineHandler struct {
	hub *hub.Hub
}

func NewOnlineHandler(h *hub.Hub) *OnlineHandler {
	return &OnlineHandler{hub: h}
}

func (h *OnlineHandler) ActionType() protocol.ActionType {
	return protocol.ActionOnline
}

func (h *OnlineHandler) Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	return nil, h.hub.Online(sess)
}

// OfflineHandler announces the caller's departure to its group peers
type OfflineHandler struct {
	hub *hub.Hub
}

func NewOfflineHandler(h *hub.Hub) *OfflineHandler {
	return &OfflineHandler{hub: h}
}

func (h *OfflineHandler) ActionType() protocol.ActionType {
	return protocol.ActionOffline
}

func (h *OfflineHandler) Handle(sess *hub.Session, msg *protocol.Message) (interface{}, error) {
	return nil, h.hub.Offline(sess)
}

// RegisterAll wires every action handler into the dispatcher
func RegisterAll(d Dispatcher, h *hub.Hub) error {
	handlers := []Handler{
		NewAddUserHandler(h),
		NewAddToGroupHandler(h),
		NewSendAllHandler(h),
		NewPrivateMessageHandler(h),
		NewGroupMessageHandler(h),
		NewDeleteMessageHandler(h),
		NewOnlineHandler(h),
		NewOfflineHandler(h),
	}

	for _, handler := range handlers {
		if err := d.Register(handler); err != nil {
			return err
		}
	}
	return nil
}
