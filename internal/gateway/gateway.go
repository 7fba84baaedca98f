// Package gateway owns the control-channel WebSocket: one logical connection
// to the operator endpoint, subscribe-style hooks for open/message/close, a
// non-blocking send primitive, and reconnect with backoff.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/zoombridge/zoombridge/internal/reconnect"
)

// Status is the connection state of the control channel.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Gateway maintains the control-channel connection.
type Gateway struct {
	url       string
	reconnect bool
	log       zerolog.Logger

	mu            sync.Mutex
	status        Status
	sendCh        chan []byte
	nextSub       int
	msgHandlers   map[int]func(raw []byte)
	openHandlers  map[int]func()
	closeHandlers map[int]func()
}

// New creates a gateway for the given WebSocket URL. When reconnectEnabled
// is false the Run loop returns after the first connection failure.
func New(url string, reconnectEnabled bool, log zerolog.Logger) *Gateway {
	return &Gateway{
		url:           url,
		reconnect:     reconnectEnabled,
		log:           log,
		status:        StatusConnecting,
		msgHandlers:   map[int]func([]byte){},
		openHandlers:  map[int]func(){},
		closeHandlers: map[int]func(){},
	}
}

// Status reports the current connection state.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// OnMessage registers a handler for inbound text frames and returns its
// de-registration func.
func (g *Gateway) OnMessage(fn func(raw []byte)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.msgHandlers[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.msgHandlers, id)
	}
}

// OnOpen registers a handler invoked after each successful connect.
func (g *Gateway) OnOpen(fn func()) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.openHandlers[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.openHandlers, id)
	}
}

// OnClose registers a handler invoked when the connection drops.
func (g *Gateway) OnClose(fn func()) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.closeHandlers[id] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.closeHandlers, id)
	}
}

// Send marshals and queues a frame. When the channel is not open the frame
// is dropped with a warning; Send never blocks and never fails the caller.
func (g *Gateway) Send(v any) {
	g.mu.Lock()
	ch := g.sendCh
	status := g.status
	g.mu.Unlock()
	if status != StatusConnected || ch == nil {
		g.log.Warn().Str("status", string(status)).Msg("send skipped; control channel not open")
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		g.log.Error().Err(err).Msg("marshal outbound frame")
		return
	}
	select {
	case ch <- b:
	default:
		g.log.Warn().Msg("send buffer full; dropping frame")
	}
}

// Run dials the control endpoint and serves the connection until ctx is
// cancelled, reconnecting with the backoff schedule when enabled.
func (g *Gateway) Run(ctx context.Context) error {
	attempt := 0
	for {
		g.setStatus(StatusConnecting)
		connected, err := g.connectAndServe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !g.reconnect {
			return err
		}
		if connected {
			attempt = 0
		}
		delay := reconnect.Delay(attempt)
		attempt++
		g.log.Warn().Dur("backoff", delay).Err(err).Msg("control channel lost; retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// connectAndServe reports whether a connection was established along with
// the error that ended it.
func (g *Gateway) connectAndServe(ctx context.Context) (bool, error) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.log.Info().Str("url", g.url).Msg("connecting to control endpoint")
	ws, _, err := websocket.Dial(connCtx, g.url, nil)
	if err != nil {
		g.setStatus(StatusDisconnected)
		return false, err
	}
	defer func() {
		_ = ws.Close(websocket.StatusInternalError, "closing")
	}()

	sendCh := make(chan []byte, 16)
	g.mu.Lock()
	g.status = StatusConnected
	g.sendCh = sendCh
	g.mu.Unlock()
	g.log.Info().Str("url", g.url).Msg("control channel connected")
	g.notify(g.snapshotHandlers(&g.openHandlers))

	go func() {
		for {
			select {
			case msg := <-sendCh:
				if err := ws.Write(connCtx, websocket.MessageText, msg); err != nil {
					cancel()
					return
				}
			case <-connCtx.Done():
				return
			}
		}
	}()

	for {
		_, data, err := ws.Read(connCtx)
		if err != nil {
			g.mu.Lock()
			g.status = StatusDisconnected
			g.sendCh = nil
			g.mu.Unlock()
			var ce websocket.CloseError
			if errors.As(err, &ce) {
				g.log.Warn().Str("reason", ce.Reason).Msg("control channel closed")
			} else {
				g.log.Error().Err(err).Msg("control channel read error")
			}
			g.notify(g.snapshotHandlers(&g.closeHandlers))
			return true, err
		}
		for _, fn := range g.snapshotMsgHandlers() {
			fn(data)
		}
	}
}

func (g *Gateway) setStatus(s Status) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

func (g *Gateway) snapshotHandlers(m *map[int]func()) []func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]func(), 0, len(*m))
	for _, fn := range *m {
		out = append(out, fn)
	}
	return out
}

func (g *Gateway) snapshotMsgHandlers() []func([]byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]func([]byte), 0, len(g.msgHandlers))
	for _, fn := range g.msgHandlers {
		out = append(out, fn)
	}
	return out
}

func (g *Gateway) notify(handlers []func()) {
	for _, fn := range handlers {
		fn()
	}
}
