package chat

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mchat/global"
	"mchat/tools/security"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &global.Config{
		JWTSecret:      []byte("test-secret"),
		JWTAlg:         "HS256",
		JWTTTL:         time.Minute,
		SendQueueSize:  64,
		WriteWait:      time.Second,
		PongWait:       5 * time.Second,
		PingPeriod:     3 * time.Second,
		StorageTimeout: time.Second,
	}
	srv := NewServer(cfg, newFakeGateway(), nil)

	r := gin.New()
	r.GET("/ws", srv.HandleWS)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialAs(t *testing.T, ts *httptest.Server, srv *Server, userID string) *websocket.Conn {
	t.Helper()
	token, _, err := security.Generate(srv.auth, userID)
	if err != nil {
		t.Fatal(err)
	}
	h := http.Header{"Authorization": {"Bearer " + token}}
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), h)
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn, event string) *Frame {
	t.Helper()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		f, err := ParseFrame(raw)
		if err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if f.Event == event {
			return f
		}
	}
}

func sendWS(t *testing.T, ws *websocket.Conn, event string, data map[string]any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatal(err)
	}
}

func waitRecipients(t *testing.T, srv *Server, room string, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(srv.Router().Rooms().RecipientsOf(room)) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d recipients", room, n)
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	_, ts := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	if err != websocket.ErrBadHandshake {
		t.Fatalf("dial err = %v, want bad handshake", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestHandshakeRejectsForgedToken(t *testing.T) {
	_, ts := newTestServer(t)

	token, _, err := security.Generate(security.DefaultOptions([]byte("wrong-secret")), "mallory")
	if err != nil {
		t.Fatal(err)
	}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts)+"?token="+token, nil)
	if err != websocket.ErrBadHandshake {
		t.Fatalf("dial err = %v, want bad handshake", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestEndToEndMessageDelivery(t *testing.T) {
	srv, ts := newTestServer(t)

	alice := dialAs(t, ts, srv, "alice")
	readEvent(t, alice, EvtOnlineList)

	bob := dialAs(t, ts, srv, "bob")
	readEvent(t, bob, EvtOnlineList)

	// alice sees bob come online
	f := readEvent(t, alice, EvtPresence)
	if f.Data["userId"] != "bob" || f.Data["online"] != true {
		t.Fatalf("presence = %v", f.Data)
	}

	sendWS(t, alice, EvtJoin, map[string]any{"conversationId": "r1"})
	sendWS(t, bob, EvtJoin, map[string]any{"conversationId": "r1"})
	waitRecipients(t, srv, "r1", 2)

	sendWS(t, alice, EvtMessageNew, map[string]any{"conversationId": "r1", "text": "hi"})

	for name, ws := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		f := readEvent(t, ws, EvtMessageNew)
		if f.Data["text"] != "hi" {
			t.Fatalf("%s: text = %v", name, f.Data["text"])
		}
		sender, _ := f.Data["sender"].(map[string]any)
		if sender["id"] != "alice" {
			t.Fatalf("%s: sender = %v", name, sender)
		}
		readBy, _ := f.Data["readBy"].([]any)
		if len(readBy) != 1 || readBy[0] != "alice" {
			t.Fatalf("%s: readBy = %v", name, readBy)
		}
	}
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	srv, ts := newTestServer(t)

	alice := dialAs(t, ts, srv, "alice")
	readEvent(t, alice, EvtOnlineList)

	if err := alice.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}

	// server closes; subsequent reads fail once buffered frames drain
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, _, err := alice.ReadMessage(); err != nil {
			return
		}
	}
	t.Fatal("connection survived a malformed frame")
}

// A peer that stops answering pings is dropped once the pong deadline
// expires.
func TestMissedPongsCloseConnection(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &global.Config{
		JWTSecret:      []byte("test-secret"),
		JWTAlg:         "HS256",
		JWTTTL:         time.Minute,
		SendQueueSize:  8,
		WriteWait:      time.Second,
		PongWait:       200 * time.Millisecond,
		PingPeriod:     100 * time.Millisecond,
		StorageTimeout: time.Second,
	}
	srv := NewServer(cfg, newFakeGateway(), nil)

	r := gin.New()
	r.GET("/ws", srv.HandleWS)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)

	ws := dialAs(t, ts, srv, "alice")
	// swallow pings so no pong ever goes back
	ws.SetPingHandler(func(string) error { return nil })
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				t.Fatal("server kept a connection that never answered pings")
			}
			return
		}
	}
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	srv, ts := newTestServer(t)

	alice := dialAs(t, ts, srv, "alice")
	readEvent(t, alice, EvtOnlineList)

	bob := dialAs(t, ts, srv, "bob")
	readEvent(t, bob, EvtOnlineList)
	readEvent(t, alice, EvtPresence) // bob online

	bob.Close()

	f := readEvent(t, alice, EvtPresence)
	if f.Data["userId"] != "bob" || f.Data["online"] != false {
		t.Fatalf("presence = %v", f.Data)
	}
	if f.Data["lastSeen"] == nil {
		t.Fatal("offline presence must carry lastSeen")
	}
}
