package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"easychat/internal/auth"
	"easychat/internal/models"

	"github.com/gorilla/websocket"
)

func newTestVerifier(t *testing.T, secret string) *auth.TokenVerifier {
	t.Helper()
	v, err := auth.NewTokenVerifier(auth.TokenConfig{Secret: secret, TokenExpiry: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}
	return v
}

func startTestServer(t *testing.T) (*httptest.Server, *Registry, *mockStore, *auth.TokenVerifier) {
	t.Helper()
	verifier := newTestVerifier(t, "test-secret")
	registry := NewRegistry()
	store := &mockStore{}
	router := NewRouter(registry, store)
	server := NewServer(verifier, registry, router)

	srv := httptest.NewServer(http.HandlerFunc(server.HandleConnections))
	t.Cleanup(srv.Close)
	return srv, registry, store, verifier
}

func wsURL(srv *httptest.Server, token string) string {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func dialUser(t *testing.T, srv *httptest.Server, verifier *auth.TokenVerifier, userID int64, name string) *websocket.Conn {
	t.Helper()
	token, _, err := verifier.Generate(userID, name)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitFor polls cond until it holds or the deadline passes. Handshake
// completion and registry registration are not a single atomic step, so
// tests observing the registry need to wait for the lifecycle hook.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestServer_RejectsMissingToken(t *testing.T) {
	srv, registry, _, _ := startTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	if err == nil {
		t.Fatal("Expected handshake to fail without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %+v", resp)
	}
	if registry.Count() != 0 {
		t.Error("No registry entry may exist after a rejected handshake")
	}
}

func TestServer_RejectsMisSignedToken(t *testing.T) {
	srv, registry, _, _ := startTestServer(t)

	// Token signed with a different key.
	other := newTestVerifier(t, "other-secret")
	token, _, err := other.Generate(1, "mallory")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
	if err == nil {
		t.Fatal("Expected handshake to fail with a mis-signed token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %+v", resp)
	}
	if registry.Count() != 0 {
		t.Error("No registry entry may exist after a rejected handshake")
	}
}

func TestServer_HandshakeRegistersIdentity(t *testing.T) {
	srv, registry, _, verifier := startTestServer(t)

	conn := dialUser(t, srv, verifier, 42, "alice")

	waitFor(t, func() bool {
		c, ok := registry.Lookup(42)
		return ok && c.Identity().UserID == 42 && c.Identity().Name == "alice"
	}, "Connection was not registered with the claimed identity")

	_ = conn.Close()
	waitFor(t, func() bool { return registry.Count() == 0 }, "Registry entry not removed after close")
}

func TestServer_EndToEndPrivateChat(t *testing.T) {
	srv, registry, store, verifier := startTestServer(t)

	alice := dialUser(t, srv, verifier, 1, "alice")
	bob := dialUser(t, srv, verifier, 2, "bob")
	waitFor(t, func() bool { return registry.Count() == 2 }, "Both users must be registered")

	err := alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"PRIVATE_CHAT","receiverId":2,"messageType":"TEXT","content":"hi"}`))
	if err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}

	_ = bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Message
	if err := bob.ReadJSON(&got); err != nil {
		t.Fatalf("Bob did not receive the message: %v", err)
	}
	if got.SenderID != 1 || got.ReceiverID != 2 || got.Content != "hi" || got.MessageType != "TEXT" {
		t.Errorf("Bob got wrong message: %+v", got)
	}
	if got.ID == 0 || got.CreateTime.IsZero() {
		t.Error("Delivered message is missing server-assigned id or timestamp")
	}

	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	var echo models.Message
	if err := alice.ReadJSON(&echo); err != nil {
		t.Fatalf("Alice did not receive the echo: %v", err)
	}
	if echo.ID != got.ID || echo.Content != got.Content {
		t.Errorf("Echo differs from delivered message: %+v vs %+v", echo, got)
	}

	if len(store.savedMessages()) != 1 {
		t.Errorf("Expected exactly 1 persisted message, got %d", len(store.savedMessages()))
	}
}

func TestServer_ReconnectTakesOverDelivery(t *testing.T) {
	srv, registry, _, verifier := startTestServer(t)

	old := dialUser(t, srv, verifier, 1, "alice")
	bob := dialUser(t, srv, verifier, 2, "bob")
	waitFor(t, func() bool { return registry.Count() == 2 }, "Both users must be registered")

	firstConn, _ := registry.Lookup(1)

	// Same user connects again; the registry must resolve to the new
	// connection while the old transport stays open.
	fresh := dialUser(t, srv, verifier, 1, "alice")
	waitFor(t, func() bool {
		c, ok := registry.Lookup(1)
		return ok && c != firstConn
	}, "Registry did not switch to the new connection")

	err := bob.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"PRIVATE_CHAT","receiverId":1,"messageType":"TEXT","content":"still there?"}`))
	if err != nil {
		t.Fatalf("Failed to send frame: %v", err)
	}

	_ = fresh.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.Message
	if err := fresh.ReadJSON(&got); err != nil {
		t.Fatalf("New connection did not receive the message: %v", err)
	}
	if got.Content != "still there?" {
		t.Errorf("Unexpected message on new connection: %+v", got)
	}

	// The superseded connection gets nothing.
	_ = old.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := old.ReadMessage(); err == nil {
		t.Error("Superseded connection must not receive deliveries")
	}

	// Closing the old connection must not evict the new entry.
	_ = old.Close()
	waitFor(t, func() bool {
		c, ok := registry.Lookup(1)
		return ok && c != firstConn
	}, "Closing the old connection evicted the new entry")
}

func TestServer_HeartbeatRoundTrip(t *testing.T) {
	srv, registry, store, verifier := startTestServer(t)

	conn := dialUser(t, srv, verifier, 1, "alice")
	waitFor(t, func() bool { return registry.Count() == 1 }, "User must be registered")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HEARTBEAT_PING"}`)); err != nil {
		t.Fatalf("Failed to send ping: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var pong controlEnvelope
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("Did not receive pong: %v", err)
	}
	if pong.Type != FrameKindHeartbeatPong {
		t.Errorf("Expected HEARTBEAT_PONG, got %s", pong.Type)
	}
	if len(store.savedMessages()) != 0 {
		t.Error("Heartbeat must not persist anything")
	}
}
