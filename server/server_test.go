package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"chathub/pkg/config"
	"chathub/pkg/protocol"
)

func testConfig() *config.ServerConfig {
	cfg := config.DefaultConfig()
	cfg.Database.Type = "none"
	return cfg
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(testConfig())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialHub(t *testing.T, ts *httptest.Server, tenant string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/hub/" + tenant
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendAction(t *testing.T, ws *websocket.Conn, action protocol.ActionType, payload any) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(action, payload)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	return msg
}

func readResult(t *testing.T, ws *websocket.Conn) protocol.Result {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var res protocol.Result
	if err := ws.ReadJSON(&res); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return res
}

func TestServerInitialization(t *testing.T) {
	srv, err := NewServer(testConfig())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if srv == nil {
		t.Fatal("Server should not be nil")
	}
	if srv.Hub() == nil {
		t.Error("Hub should be initialized")
	}
	if srv.dispatcher == nil {
		t.Error("Dispatcher should be initialized")
	}
}

func TestAddUserOverWebSocket(t *testing.T) {
	_, ts := newTestServer(t)
	ws := dialHub(t, ts, "acme")

	msg := sendAction(t, ws, protocol.ActionAddUser, &protocol.AddUserPayload{UserID: "alice"})
	res := readResult(t, ws)

	if res.ID != msg.ID {
		t.Errorf("Result should echo message id %s, got %s", msg.ID, res.ID)
	}
	if !res.OK {
		t.Errorf("Expected OK result, got error %q", res.Error)
	}
	if res.Roster != "" {
		t.Errorf("Expected empty roster for first user, got %q", res.Roster)
	}
}

func TestPrivateMessageOverWebSocket(t *testing.T) {
	_, ts := newTestServer(t)

	alice := dialHub(t, ts, "acme")
	bob := dialHub(t, ts, "acme")

	sendAction(t, alice, protocol.ActionAddUser, &protocol.AddUserPayload{UserID: "alice"})
	readResult(t, alice)
	sendAction(t, bob, protocol.ActionAddUser, &protocol.AddUserPayload{UserID: "bob"})
	readResult(t, bob)

	sendAction(t, alice, protocol.ActionSendPrivateMessage, &protocol.PrivateMessagePayload{
		From: "alice", To: "bob", Message: "hi", MessageID: "m1",
	})
	readResult(t, alice)

	bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev protocol.Event
	if err := bob.ReadJSON(&ev); err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	if ev.Event != protocol.EventReceivePrivateMessage {
		t.Errorf("Expected event %s, got %s", protocol.EventReceivePrivateMessage, ev.Event)
	}
	if len(ev.Args) < 2 || ev.Args[0] != "ALICE" || ev.Args[1] != "hi" {
		t.Errorf("Unexpected args: %v", ev.Args)
	}
}

func TestActionFailureReply(t *testing.T) {
	_, ts := newTestServer(t)
	ws := dialHub(t, ts, "acme")

	sendAction(t, ws, protocol.ActionAddUser, &protocol.AddUserPayload{UserID: "alice"})
	readResult(t, ws)

	sendAction(t, ws, protocol.ActionSendPrivateMessage, &protocol.PrivateMessagePayload{
		From: "alice", To: "ghost", Message: "hi", MessageID: "m1",
	})
	res := readResult(t, ws)
	if res.OK {
		t.Error("Send to unknown user should fail")
	}
	if res.Error == "" {
		t.Error("Failed result should carry an error string")
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] == "" {
		t.Error("Health response should carry a status")
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	ws := dialHub(t, ts, "acme")
	sendAction(t, ws, protocol.ActionAddUser, &protocol.AddUserPayload{UserID: "alice"})
	readResult(t, ws)

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["tenants"].(float64) != 1 {
		t.Errorf("Expected 1 tenant, got %v", body["tenants"])
	}
	if body["users"].(float64) != 1 {
		t.Errorf("Expected 1 user, got %v", body["users"])
	}
}

func TestTenantSessionsWithoutStore(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/tenant/acme/sessions")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a store, got %d", resp.StatusCode)
	}
}

func TestDisconnectCleansUp(t *testing.T) {
	srv, ts := newTestServer(t)

	ws := dialHub(t, ts, "acme")
	sendAction(t, ws, protocol.ActionAddUser, &protocol.AddUserPayload{UserID: "alice"})
	readResult(t, ws)

	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.Hub().Snapshot().Tenants == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("Tenant should be cleaned up after disconnect, snapshot: %+v", srv.Hub().Snapshot())
}
