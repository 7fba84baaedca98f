package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestGatewayConnectSendReceive(t *testing.T) {
	serverGot := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		if err := c.Write(ctx, websocket.MessageText, []byte(`{"type":"WELCOME"}`)); err != nil {
			return
		}
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		serverGot <- data
		_ = c.Close(websocket.StatusNormalClosure, "done")
	}))
	defer srv.Close()

	gw := New(wsURL(srv), false, zerolog.Nop())
	opened := make(chan struct{}, 1)
	gw.OnOpen(func() { opened <- struct{}{} })
	closed := make(chan struct{}, 1)
	gw.OnClose(func() { closed <- struct{}{} })
	received := make(chan []byte, 1)
	gw.OnMessage(func(raw []byte) { received <- raw })

	runDone := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { runDone <- gw.Run(ctx) }()

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatalf("open handler never fired")
	}
	if gw.Status() != StatusConnected {
		t.Fatalf("expected connected, got %s", gw.Status())
	}

	select {
	case raw := <-received:
		if !strings.Contains(string(raw), "WELCOME") {
			t.Fatalf("unexpected frame: %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message handler never fired")
	}

	gw.Send(map[string]string{"type": "HELLO"})
	select {
	case raw := <-serverGot:
		var frame map[string]string
		if err := json.Unmarshal(raw, &frame); err != nil || frame["type"] != "HELLO" {
			t.Fatalf("unexpected outbound frame: %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never received frame")
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("close handler never fired")
	}
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return with reconnect disabled")
	}
	if gw.Status() != StatusDisconnected {
		t.Fatalf("expected disconnected, got %s", gw.Status())
	}
}

func TestGatewaySendWhileDisconnected(t *testing.T) {
	gw := New("ws://127.0.0.1:1", false, zerolog.Nop())
	// Must not block or panic; the frame is dropped.
	gw.Send(map[string]string{"type": "HELLO"})
}

func TestGatewayDialFailureNoReconnect(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	gw := New(wsURL(srv), false, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := gw.Run(ctx); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestGatewayRunStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	gw := New(wsURL(srv), true, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- gw.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-runDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}

func TestGatewayUnsubscribe(t *testing.T) {
	gw := New("ws://127.0.0.1:1", false, zerolog.Nop())
	calls := 0
	unsub := gw.OnMessage(func([]byte) { calls++ })
	unsub()
	for _, fn := range gw.snapshotMsgHandlers() {
		fn(nil)
	}
	if calls != 0 {
		t.Fatalf("handler invoked after unsubscribe")
	}
}
