package hub

import (
	stderrors "errors"
	"fmt"
	"time"

	"chathub/pkg/errors"
	"chathub/pkg/logger"
	"chathub/pkg/protocol"
)

// Hub is the routing engine. It validates sessions, mutates tenant state
// through the aggregate's contract and fans deliveries out through the
// transport. Disconnect cleanup is the single place users and empty
// tenants are purged; every other operation only adds or reshapes state.
type Hub struct {
	registry  *Registry
	transport Transport
	recorder  PresenceRecorder
	log       *logger.Logger

	rosterDelimiter string
}

// New creates a hub over the given registry and transport.
func New(registry *Registry, transport Transport, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Get()
	}
	return &Hub{
		registry:        registry,
		transport:       transport,
		log:             log,
		rosterDelimiter: ";",
	}
}

// SetRecorder attaches a presence recorder. Recording stays best effort.
func (h *Hub) SetRecorder(rec PresenceRecorder) {
	h.recorder = rec
}

// SetRosterDelimiter overrides the separator used in AddUser roster
// responses.
func (h *Hub) SetRosterDelimiter(d string) {
	if d != "" {
		h.rosterDelimiter = d
	}
}

// Connect admits a new connection: the session must validate and the
// tenant is registered idempotently. A session whose request carries no
// extractable tenant token is reported as such, distinct from a session
// missing its request metadata or connection id.
func (h *Hub) Connect(s *Session) error {
	if s == nil || s.request == nil || s.connectionID == "" {
		return errors.ErrSessionInvalid
	}

	tenantID := s.TenantID()
	if tenantID == "" {
		return errors.ErrTenantTokenMissing
	}
	h.registry.Add(tenantID)
	h.log.DebugWith("connection admitted", "tenant", tenantID, "connectionID", s.ConnectionID())
	return nil
}

// resolve validates the session and looks its tenant up.
func (h *Hub) resolve(s *Session) (*Tenant, error) {
	if !s.Valid() {
		return nil, errors.ErrSessionInvalid
	}
	t, ok := h.registry.Get(s.TenantID())
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", s.TenantID(), errors.ErrTenantNotFound)
	}
	return t, nil
}

// AddUser registers the caller's logical user id under its tenant,
// reattaching the connection if the id is already known. Returns the
// delimiter-joined ids of all other users reachable through shared groups.
func (h *Hub) AddUser(s *Session, userID string) (string, error) {
	t, err := h.resolve(s)
	if err != nil {
		return "", err
	}

	userID = NormalizeID(userID)
	u, created := t.UpsertUser(userID, s.ConnectionID())
	if created {
		h.log.InfoWith("user registered", "tenant", t.ID(), "user", u.ID, "connectionID", u.ConnectionID)
	} else {
		h.log.InfoWith("user reattached", "tenant", t.ID(), "user", u.ID, "connectionID", u.ConnectionID)
	}

	if h.recorder != nil {
		if err := h.recorder.RecordConnect(t.ID(), u.ID, u.ConnectionID); err != nil {
			h.log.WarnWith("presence record failed", "tenant", t.ID(), "user", u.ID, "error", err)
		}
	}

	roster, err := t.Roster(s.ConnectionID(), h.rosterDelimiter)
	if err != nil {
		return "", fmt.Errorf("roster for %s: %w", u.ID, err)
	}
	return roster, nil
}

// AddToGroup joins the caller's connection to the transport broadcast group
// and records the membership in the tenant aggregate. The two steps are not
// transactional: if the aggregate write fails after the transport join, the
// dangling transport membership is left to the disconnect cleanup.
func (h *Hub) AddToGroup(s *Session, groupID string) error {
	t, err := h.resolve(s)
	if err != nil {
		return err
	}

	groupID = NormalizeID(groupID)
	h.transport.JoinGroup(s.ConnectionID(), groupID)

	if err := t.JoinGroup(groupID, s.ConnectionID()); err != nil {
		h.log.WarnWith("group join not recorded", "tenant", t.ID(), "group", groupID, "error", err)
		return err
	}

	h.log.DebugWith("group joined", "tenant", t.ID(), "group", groupID, "connectionID", s.ConnectionID())
	return nil
}

// SendAll broadcasts a message to every connected client, bypassing tenant
// and group scoping entirely.
func (h *Hub) SendAll(s *Session, message string) {
	h.transport.SendToAll(protocol.EventReceiveAll, message)
}

// SendPrivateMessage resolves the destination user inside the caller's
// tenant and delivers a single targeted event. An unresolved destination is
// a hard failure surfaced to the caller.
func (h *Hub) SendPrivateMessage(s *Session, from, to, message, messageID string) error {
	t, err := h.resolve(s)
	if err != nil {
		return err
	}

	from = NormalizeID(from)
	to = NormalizeID(to)
	messageID = NormalizeID(messageID)

	u, err := t.GetUser(to, false)
	if err != nil {
		return fmt.Errorf("destination %s: %w", to, err)
	}

	return h.transport.SendToConnection(u.ConnectionID,
		protocol.EventReceivePrivateMessage,
		from, message, messageID, timestamp())
}

// SendGroupMessage sends to the transport group channel directly. The
// transport's own membership, established by AddToGroup, is authoritative
// for delivery; no aggregate check happens at send time.
func (h *Hub) SendGroupMessage(s *Session, from, group, message, messageID string) {
	from = NormalizeID(from)
	group = NormalizeID(group)
	messageID = NormalizeID(messageID)

	h.transport.SendToGroup(group,
		protocol.EventReceiveGroupMessage,
		from, group, message, messageID, timestamp())
}

// DeleteMessage propagates a deletion notice. From a group, every member
// except the caller is notified and a missing group is a hard failure.
// Otherwise the single user matching sourceID is targeted, skipping
// silently when that user is the caller or cannot be resolved.
func (h *Hub) DeleteMessage(s *Session, messageID, sourceID string, fromGroup bool) error {
	t, err := h.resolve(s)
	if err != nil {
		return err
	}

	messageID = NormalizeID(messageID)
	sourceID = NormalizeID(sourceID)

	if fromGroup {
		g, ok := t.GetGroup(sourceID)
		if !ok {
			return fmt.Errorf("group %s: %w", sourceID, errors.ErrGroupNotFound)
		}

		for _, m := range g.Members {
			if m.ConnectionID == s.ConnectionID() {
				continue
			}
			if err := h.transport.SendToConnection(m.ConnectionID,
				protocol.EventDeleteMessage, messageID, sourceID, fromGroup); err != nil {
				h.log.DebugWith("delete notice skipped", "tenant", t.ID(), "connectionID", m.ConnectionID, "error", err)
			}
		}
		return nil
	}

	u, err := t.GetUser(sourceID, false)
	if err != nil {
		if stderrors.Is(err, errors.ErrTenantNoUsers) {
			h.log.ErrorWith("delete notice on inconsistent tenant", "tenant", t.ID(), "sourceID", sourceID)
		}
		return nil
	}
	if u.ConnectionID == s.ConnectionID() {
		return nil
	}

	return h.transport.SendToConnection(u.ConnectionID,
		protocol.EventDeleteMessage, messageID, sourceID, fromGroup)
}

// Online broadcasts a presence event to every distinct user reachable
// through the caller's groups, excluding the caller.
func (h *Hub) Online(s *Session) error {
	return h.presence(s, protocol.EventUserConnected)
}

// Offline broadcasts the absence counterpart of Online.
func (h *Hub) Offline(s *Session) error {
	return h.presence(s, protocol.EventUserDisconnected)
}

func (h *Hub) presence(s *Session, event string) error {
	t, err := h.resolve(s)
	if err != nil {
		return err
	}

	logged, err := t.GetUser(s.ConnectionID(), true)
	if err != nil {
		if stderrors.Is(err, errors.ErrTenantNoUsers) {
			h.log.ErrorWith("presence on inconsistent tenant", "tenant", t.ID(), "connectionID", s.ConnectionID())
		}
		return err
	}

	for _, u := range t.DistinctUsers(&logged, false) {
		if err := h.transport.SendToConnection(u.ConnectionID, event, logged.ID); err != nil {
			// One unreachable recipient never aborts delivery to the rest.
			h.log.DebugWith("presence notice skipped", "tenant", t.ID(), "connectionID", u.ConnectionID, "error", err)
		}
	}
	return nil
}

// Disconnect ends a connection's life: presence goes out first, then the
// cascade cleanup purges the user, prunes group state once the tenant has
// no users left, and drops the tenant from the registry when empty.
func (h *Hub) Disconnect(s *Session) error {
	if !s.Valid() {
		return errors.ErrSessionInvalid
	}

	if err := h.Offline(s); err != nil {
		h.log.WarnWith("offline broadcast failed", "connectionID", s.ConnectionID(), "error", err)
	}

	tenantID := s.TenantID()
	t, ok := h.registry.Get(tenantID)
	if !ok {
		return fmt.Errorf("tenant %s: %w", tenantID, errors.ErrTenantNotFound)
	}

	removed, found, empty, err := t.Cleanup(s.ConnectionID(), func(groupID string) {
		h.transport.LeaveGroup(s.ConnectionID(), groupID)
	})
	if err != nil {
		h.log.ErrorWithErr("disconnect cleanup on inconsistent tenant", err, "tenant", tenantID, "connectionID", s.ConnectionID())
		return err
	}

	if found && h.recorder != nil {
		if rerr := h.recorder.RecordDisconnect(tenantID, removed.ID, removed.ConnectionID); rerr != nil {
			h.log.WarnWith("presence record failed", "tenant", tenantID, "user", removed.ID, "error", rerr)
		}
	}

	if empty {
		if h.registry.RemoveIfEmpty(tenantID) {
			h.log.InfoWith("tenant removed", "tenant", tenantID)
		}
	}

	h.log.InfoWith("connection cleaned up", "tenant", tenantID, "connectionID", s.ConnectionID(), "userRemoved", found)
	return nil
}

// Stats summarizes current hub state.
type Stats struct {
	Tenants int `json:"tenants"`
	Users   int `json:"users"`
	Groups  int `json:"groups"`
}

// Snapshot returns current tenant, user and group counts.
func (h *Hub) Snapshot() Stats {
	s := Stats{}
	for _, t := range h.registry.Tenants() {
		s.Tenants++
		s.Users += t.UserCount()
		s.Groups += t.GroupCount()
	}
	return s
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
