package hub

import (
	stderrors "errors"
	"net/http/httptest"
	"testing"

	"chathub/pkg/errors"
	"chathub/pkg/protocol"
)

type sentEvent struct {
	target string // connection or group id
	event  string
	args   []any
}

type fakeTransport struct {
	joins  [][2]string
	leaves [][2]string
	direct []sentEvent
	group  []sentEvent
	all    []sentEvent

	failConns map[string]bool
}

func (f *fakeTransport) JoinGroup(connectionID, groupID string) {
	f.joins = append(f.joins, [2]string{connectionID, groupID})
}

func (f *fakeTransport) LeaveGroup(connectionID, groupID string) {
	f.leaves = append(f.leaves, [2]string{connectionID, groupID})
}

func (f *fakeTransport) SendToConnection(connectionID, event string, args ...any) error {
	if f.failConns[connectionID] {
		return errors.ErrConnectionNotFound
	}
	f.direct = append(f.direct, sentEvent{target: connectionID, event: event, args: args})
	return nil
}

func (f *fakeTransport) SendToGroup(groupID, event string, args ...any) {
	f.group = append(f.group, sentEvent{target: groupID, event: event, args: args})
}

func (f *fakeTransport) SendToAll(event string, args ...any) {
	f.all = append(f.all, sentEvent{event: event, args: args})
}

type fakeRecorder struct {
	connects    [][3]string
	disconnects [][3]string
}

func (f *fakeRecorder) RecordConnect(tenantID, userID, connectionID string) error {
	f.connects = append(f.connects, [3]string{tenantID, userID, connectionID})
	return nil
}

func (f *fakeRecorder) RecordDisconnect(tenantID, userID, connectionID string) error {
	f.disconnects = append(f.disconnects, [3]string{tenantID, userID, connectionID})
	return nil
}

// blockingRecorder parks RecordDisconnect between entered and release so a
// test can interleave hub operations with an in-flight disconnect.
type blockingRecorder struct {
	fakeRecorder
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRecorder) RecordDisconnect(tenantID, userID, connectionID string) error {
	b.entered <- struct{}{}
	<-b.release
	return b.fakeRecorder.RecordDisconnect(tenantID, userID, connectionID)
}

func newTestSession(connectionID, tenant string) *Session {
	r := httptest.NewRequest("GET", "http://example.com/hub/"+tenant, nil)
	return NewSession(connectionID, r)
}

func newTestHub() (*Hub, *Registry, *fakeTransport) {
	registry := NewRegistry()
	ft := &fakeTransport{failConns: make(map[string]bool)}
	return New(registry, ft, nil), registry, ft
}

func TestConnectInvalidSession(t *testing.T) {
	h, _, _ := newTestHub()

	err := h.Connect(NewSession("", nil))
	if !stderrors.Is(err, errors.ErrSessionInvalid) {
		t.Errorf("Expected ErrSessionInvalid, got %v", err)
	}
}

func TestConnectMissingTenantToken(t *testing.T) {
	h, _, _ := newTestHub()

	r := httptest.NewRequest("GET", "http://example.com/chat/acme", nil)
	err := h.Connect(NewSession("c1", r))
	if !stderrors.Is(err, errors.ErrTenantTokenMissing) {
		t.Errorf("Expected ErrTenantTokenMissing, got %v", err)
	}
}

func TestConnectRegistersTenant(t *testing.T) {
	h, registry, _ := newTestHub()

	if err := h.Connect(newTestSession("c1", "acme")); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, ok := registry.Get("ACME"); !ok {
		t.Error("Connect should register the normalized tenant")
	}
}

func TestAddUserReturnsRoster(t *testing.T) {
	h, _, _ := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "acme")
	h.Connect(alice)
	h.Connect(bob)

	if _, err := h.AddUser(alice, "alice"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if _, err := h.AddUser(bob, "bob"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	h.AddToGroup(alice, "devs")
	h.AddToGroup(bob, "devs")

	roster, err := h.AddUser(alice, "alice")
	if err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}
	if roster != "BOB" {
		t.Errorf("Expected roster BOB, got %q", roster)
	}
}

func TestAddUserUnknownTenant(t *testing.T) {
	h, _, _ := newTestHub()

	// No Connect call, so the tenant was never registered.
	_, err := h.AddUser(newTestSession("c1", "acme"), "alice")
	if !stderrors.Is(err, errors.ErrTenantNotFound) {
		t.Errorf("Expected ErrTenantNotFound, got %v", err)
	}
}

func TestAddUserRecordsPresence(t *testing.T) {
	h, _, _ := newTestHub()
	rec := &fakeRecorder{}
	h.SetRecorder(rec)

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")

	if len(rec.connects) != 1 {
		t.Fatalf("Expected 1 connect record, got %d", len(rec.connects))
	}
	if rec.connects[0] != [3]string{"ACME", "ALICE", "c1"} {
		t.Errorf("Unexpected connect record: %v", rec.connects[0])
	}
}

func TestAddToGroupJoinsTransportAndAggregate(t *testing.T) {
	h, registry, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")

	if err := h.AddToGroup(alice, "devs"); err != nil {
		t.Fatalf("AddToGroup failed: %v", err)
	}

	if len(ft.joins) != 1 || ft.joins[0] != [2]string{"c1", "DEVS"} {
		t.Errorf("Unexpected transport joins: %v", ft.joins)
	}

	tn, _ := registry.Get("ACME")
	if _, ok := tn.GetGroup("DEVS"); !ok {
		t.Error("Aggregate should record the DEVS group")
	}
}

func TestAddToGroupBeforeAddUserFails(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)

	if err := h.AddToGroup(alice, "devs"); err == nil {
		t.Error("AddToGroup without a registered user should fail")
	}
	// The transport join is not rolled back; disconnect cleanup handles it.
	if len(ft.joins) != 1 {
		t.Errorf("Expected the transport join to have happened, got %v", ft.joins)
	}
}

func TestSendAll(t *testing.T) {
	h, _, ft := newTestHub()

	h.SendAll(newTestSession("c1", "acme"), "hello")

	if len(ft.all) != 1 {
		t.Fatalf("Expected 1 broadcast, got %d", len(ft.all))
	}
	if ft.all[0].event != protocol.EventReceiveAll {
		t.Errorf("Expected event %s, got %s", protocol.EventReceiveAll, ft.all[0].event)
	}
}

func TestSendPrivateMessage(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "acme")
	h.Connect(alice)
	h.Connect(bob)
	h.AddUser(alice, "alice")
	h.AddUser(bob, "bob")

	if err := h.SendPrivateMessage(alice, "alice", "bob", "hi", "m1"); err != nil {
		t.Fatalf("SendPrivateMessage failed: %v", err)
	}

	if len(ft.direct) != 1 {
		t.Fatalf("Expected 1 direct send, got %d", len(ft.direct))
	}
	sent := ft.direct[0]
	if sent.target != "c2" {
		t.Errorf("Expected delivery to c2, got %s", sent.target)
	}
	if sent.event != protocol.EventReceivePrivateMessage {
		t.Errorf("Unexpected event %s", sent.event)
	}
	if len(sent.args) != 4 || sent.args[0] != "ALICE" || sent.args[1] != "hi" || sent.args[2] != "M1" {
		t.Errorf("Unexpected args: %v", sent.args)
	}
}

func TestSendPrivateMessageUnknownDestination(t *testing.T) {
	h, _, _ := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")

	err := h.SendPrivateMessage(alice, "alice", "ghost", "hi", "m1")
	if !stderrors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestSendGroupMessage(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")
	h.AddToGroup(alice, "devs")

	h.SendGroupMessage(alice, "alice", "devs", "hi all", "m2")

	if len(ft.group) != 1 {
		t.Fatalf("Expected 1 group send, got %d", len(ft.group))
	}
	sent := ft.group[0]
	if sent.target != "DEVS" || sent.event != protocol.EventReceiveGroupMessage {
		t.Errorf("Unexpected group send: %+v", sent)
	}
}

func TestDeleteMessageFromGroup(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "acme")
	h.Connect(alice)
	h.Connect(bob)
	h.AddUser(alice, "alice")
	h.AddUser(bob, "bob")
	h.AddToGroup(alice, "devs")
	h.AddToGroup(bob, "devs")

	if err := h.DeleteMessage(alice, "m1", "devs", true); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}

	// Only BOB is notified; the caller is skipped.
	if len(ft.direct) != 1 || ft.direct[0].target != "c2" {
		t.Errorf("Expected one notice to c2, got %v", ft.direct)
	}
	if ft.direct[0].event != protocol.EventDeleteMessage {
		t.Errorf("Unexpected event %s", ft.direct[0].event)
	}
}

func TestDeleteMessageMissingGroup(t *testing.T) {
	h, _, _ := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")

	err := h.DeleteMessage(alice, "m1", "ghosts", true)
	if !stderrors.Is(err, errors.ErrGroupNotFound) {
		t.Errorf("Expected ErrGroupNotFound, got %v", err)
	}
}

func TestDeleteMessagePrivate(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "acme")
	h.Connect(alice)
	h.Connect(bob)
	h.AddUser(alice, "alice")
	h.AddUser(bob, "bob")

	if err := h.DeleteMessage(alice, "m1", "bob", false); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if len(ft.direct) != 1 || ft.direct[0].target != "c2" {
		t.Errorf("Expected one notice to c2, got %v", ft.direct)
	}
}

func TestDeleteMessagePrivateSkipsSelfAndUnknown(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")

	if err := h.DeleteMessage(alice, "m1", "alice", false); err != nil {
		t.Errorf("Self-targeted delete should be silently skipped, got %v", err)
	}
	if err := h.DeleteMessage(alice, "m1", "ghost", false); err != nil {
		t.Errorf("Unknown target should be silently skipped, got %v", err)
	}
	if len(ft.direct) != 0 {
		t.Errorf("Expected no notices, got %v", ft.direct)
	}
}

func TestDeleteMessagePrivateOnEmptyTenantSkips(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)

	// No user was ever registered: the lookup hits the zero-user state,
	// which is logged but still skipped for the caller.
	if err := h.DeleteMessage(alice, "m1", "bob", false); err != nil {
		t.Errorf("Delete on an empty tenant should be skipped, got %v", err)
	}
	if len(ft.direct) != 0 {
		t.Errorf("Expected no notices, got %v", ft.direct)
	}
}

func TestOnlineNotifiesGroupPeers(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "acme")
	carol := newTestSession("c3", "acme")
	h.Connect(alice)
	h.Connect(bob)
	h.Connect(carol)
	h.AddUser(alice, "alice")
	h.AddUser(bob, "bob")
	h.AddUser(carol, "carol")
	h.AddToGroup(alice, "devs")
	h.AddToGroup(bob, "devs")
	// CAROL never joins a group, so she is unreachable for presence.

	if err := h.Online(alice); err != nil {
		t.Fatalf("Online failed: %v", err)
	}

	if len(ft.direct) != 1 {
		t.Fatalf("Expected 1 presence notice, got %d", len(ft.direct))
	}
	sent := ft.direct[0]
	if sent.target != "c2" || sent.event != protocol.EventUserConnected {
		t.Errorf("Unexpected presence notice: %+v", sent)
	}
	if len(sent.args) != 1 || sent.args[0] != "ALICE" {
		t.Errorf("Unexpected args: %v", sent.args)
	}
}

func TestOnlineUnregisteredConnection(t *testing.T) {
	h, _, _ := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "acme")
	h.Connect(alice)
	h.Connect(bob)
	h.AddUser(alice, "alice")

	err := h.Online(bob)
	if !stderrors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestPresenceSkipsFailingRecipients(t *testing.T) {
	h, _, ft := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "acme")
	carol := newTestSession("c3", "acme")
	h.Connect(alice)
	h.Connect(bob)
	h.Connect(carol)
	h.AddUser(alice, "alice")
	h.AddUser(bob, "bob")
	h.AddUser(carol, "carol")
	h.AddToGroup(alice, "devs")
	h.AddToGroup(bob, "devs")
	h.AddToGroup(carol, "devs")

	ft.failConns["c2"] = true

	if err := h.Online(alice); err != nil {
		t.Fatalf("Online should not fail on a single unreachable peer: %v", err)
	}
	if len(ft.direct) != 1 || ft.direct[0].target != "c3" {
		t.Errorf("Expected delivery to c3 only, got %v", ft.direct)
	}
}

func TestDisconnectCascade(t *testing.T) {
	h, registry, ft := newTestHub()
	rec := &fakeRecorder{}
	h.SetRecorder(rec)

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")
	h.AddToGroup(alice, "devs")

	if err := h.Disconnect(alice); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	if len(ft.leaves) != 1 || ft.leaves[0] != [2]string{"c1", "DEVS"} {
		t.Errorf("Expected transport leave for DEVS, got %v", ft.leaves)
	}
	if _, ok := registry.Get("ACME"); ok {
		t.Error("Empty tenant should be removed from the registry")
	}
	if len(rec.disconnects) != 1 || rec.disconnects[0] != [3]string{"ACME", "ALICE", "c1"} {
		t.Errorf("Unexpected disconnect records: %v", rec.disconnects)
	}
}

func TestDisconnectConcurrentRegistrationKeepsTenant(t *testing.T) {
	h, registry, _ := newTestHub()
	rec := &blockingRecorder{entered: make(chan struct{}), release: make(chan struct{})}
	h.SetRecorder(rec)

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")

	done := make(chan error, 1)
	go func() { done <- h.Disconnect(alice) }()
	<-rec.entered

	// Alice's cleanup already judged the tenant empty; a registration
	// landing now must not be wiped out by the pending removal.
	bob := newTestSession("c2", "acme")
	if err := h.Connect(bob); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, err := h.AddUser(bob, "bob"); err != nil {
		t.Fatalf("AddUser failed: %v", err)
	}

	close(rec.release)
	if err := <-done; err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	tn, ok := registry.Get("ACME")
	if !ok {
		t.Fatal("Tenant with a freshly registered user must survive the disconnect")
	}
	if u, err := tn.GetUser("BOB", false); err != nil {
		t.Errorf("BOB should still be registered: %v", err)
	} else if u.ConnectionID != "c2" {
		t.Errorf("Expected connection c2, got %s", u.ConnectionID)
	}
}

func TestDisconnectKeepsTenantWithRemainingUsers(t *testing.T) {
	h, registry, _ := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "acme")
	h.Connect(alice)
	h.Connect(bob)
	h.AddUser(alice, "alice")
	h.AddUser(bob, "bob")

	if err := h.Disconnect(alice); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	tn, ok := registry.Get("ACME")
	if !ok {
		t.Fatal("Tenant with a remaining user should survive")
	}
	if tn.UserCount() != 1 {
		t.Errorf("Expected 1 user left, got %d", tn.UserCount())
	}
}

func TestDisconnectOnEmptyTenantSurfacesError(t *testing.T) {
	h, _, _ := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)

	err := h.Disconnect(alice)
	if !stderrors.Is(err, errors.ErrTenantNoUsers) {
		t.Errorf("Expected ErrTenantNoUsers, got %v", err)
	}
}

func TestReconnectRoundTrip(t *testing.T) {
	h, registry, _ := newTestHub()

	alice := newTestSession("c1", "acme")
	h.Connect(alice)
	h.AddUser(alice, "alice")
	h.AddToGroup(alice, "devs")
	h.Disconnect(alice)

	// Same user comes back under a fresh connection.
	again := newTestSession("c9", "acme")
	if err := h.Connect(again); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}
	roster, err := h.AddUser(again, "alice")
	if err != nil {
		t.Fatalf("AddUser after reconnect failed: %v", err)
	}
	if roster != "" {
		t.Errorf("Expected empty roster after full cleanup, got %q", roster)
	}

	tn, _ := registry.Get("ACME")
	if tn.UserCount() != 1 || tn.GroupCount() != 0 {
		t.Errorf("Expected fresh state, got users=%d groups=%d", tn.UserCount(), tn.GroupCount())
	}
}

func TestSnapshot(t *testing.T) {
	h, _, _ := newTestHub()

	alice := newTestSession("c1", "acme")
	bob := newTestSession("c2", "globex")
	h.Connect(alice)
	h.Connect(bob)
	h.AddUser(alice, "alice")
	h.AddUser(bob, "bob")
	h.AddToGroup(alice, "devs")

	snap := h.Snapshot()
	if snap.Tenants != 2 || snap.Users != 2 || snap.Groups != 1 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}
}
