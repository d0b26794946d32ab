package webchat

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/niaga/pkg/transports"
)

func outbound(sessionID, text string) transports.OutboundMessage {
	return transports.OutboundMessage{SessionID: sessionID, Text: text}
}

func dialTest(t *testing.T) (*Transport, *websocket.Conn, string) {
	t.Helper()
	tr := New(Config{AgentID: "shopbot"})
	srv := httptest.NewServer(tr)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var hello serverFrame
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "session" || hello.SessionID == "" {
		t.Fatalf("expected session frame, got %+v", hello)
	}
	return tr, conn, hello.SessionID
}

func TestInboundFrameBecomesMessage(t *testing.T) {
	tr, conn, sessionID := dialTest(t)

	if err := conn.WriteJSON(clientFrame{Type: "message", Text: "berapa harga sepatu ini?", ImageURL: "https://img/shoe.jpg"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case msg := <-tr.Recv():
		if msg.SessionID != sessionID {
			t.Fatalf("session mismatch: %q vs %q", msg.SessionID, sessionID)
		}
		if msg.Text != "berapa harga sepatu ini?" || msg.ImageRef != "https://img/shoe.jpg" {
			t.Fatalf("unexpected message: %+v", msg)
		}
		if msg.Channel != "webchat" || msg.AgentID != "shopbot" {
			t.Fatalf("unexpected routing: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no inbound message")
	}
}

func TestSendReachesClient(t *testing.T) {
	tr, conn, sessionID := dialTest(t)

	if err := tr.Send(outbound(sessionID, "Here are the shoes you asked about.")); err != nil {
		t.Fatalf("send: %v", err)
	}
	var frame serverFrame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Type != "message" || frame.Text != "Here are the shoes you asked about." {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}

func TestSendUnknownSessionFails(t *testing.T) {
	tr, _, _ := dialTest(t)
	if err := tr.Send(outbound("missing-session", "hi")); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestNonMessageFramesIgnored(t *testing.T) {
	tr, conn, _ := dialTest(t)
	if err := conn.WriteJSON(clientFrame{Type: "ping"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case msg := <-tr.Recv():
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
