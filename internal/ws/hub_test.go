package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autorecord/autorecord/internal/status"
	wsHub "github.com/autorecord/autorecord/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func view(users ...string) status.View {
	rows := make([]status.Row, 0, len(users))
	for _, u := range users {
		rows = append(rows, status.Row{Username: u})
	}
	return status.View{Rows: rows, LiveCount: len(rows), GeneratedAt: time.Now()}
}

func startHub(t *testing.T, b *status.Board, interval time.Duration) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(b, interval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateStatus(t *testing.T) {
	b := status.NewBoard()
	b.Publish(view("alice", "bob"))
	wsURL, _, _ := startHub(t, b, time.Hour)

	m := readMessage(t, dial(t, wsURL))
	if m.Event != "status" {
		t.Errorf("event: got %q, want status", m.Event)
	}
	if len(m.Data.Rows) != 2 || m.Data.Rows[0].Username != "alice" {
		t.Errorf("rows: got %+v", m.Data.Rows)
	}
	if m.Data.GeneratedAt == "" {
		t.Error("generated_at: missing")
	}
}

func TestHub_EmptyBoard_EmptyRows(t *testing.T) {
	wsURL, _, _ := startHub(t, status.NewBoard(), time.Hour)
	m := readMessage(t, dial(t, wsURL))
	if m.Data.Rows == nil || len(m.Data.Rows) != 0 {
		t.Errorf("rows: got %#v, want empty", m.Data.Rows)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	b := status.NewBoard()
	wsURL, _, _ := startHub(t, b, testInterval)

	conn := dial(t, wsURL)
	readMessage(t, conn)

	b.Publish(view("carol"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m := readMessage(t, conn)
		if len(m.Data.Rows) == 1 && m.Data.Rows[0].Username == "carol" {
			return
		}
	}
	t.Fatal("no broadcast carried the published view")
}

func TestHub_NotifyBroadcastsImmediately(t *testing.T) {
	b := status.NewBoard()
	wsURL, hub, _ := startHub(t, b, time.Hour)

	conn := dial(t, wsURL)
	readMessage(t, conn)

	b.Publish(view("dave"))
	hub.Notify()

	m := readMessage(t, conn)
	if len(m.Data.Rows) != 1 || m.Data.Rows[0].Username != "dave" {
		t.Errorf("rows: got %+v, want [dave]", m.Data.Rows)
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, status.NewBoard(), time.Hour)

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readMessage(t, conns[i])
	}

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}

	conns[0].Close()
	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 2 {
		t.Errorf("Count after disconnect: got %d, want 2", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, status.NewBoard(), time.Hour)

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(status.NewBoard(), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
