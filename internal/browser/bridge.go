// Package browser binds the DOM and SDK capability ports to a page-side shim
// running inside the browser that hosts the meeting client. The shim connects
// over a WebSocket; every port operation becomes a correlated op frame, and
// the shim pushes mutation notifications that feed the session watchers.
package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zoombridge/zoombridge/internal/domerr"
	"github.com/zoombridge/zoombridge/internal/metrics"
)

const defaultOpTimeout = 30 * time.Second

// opRequest is one operation sent to the page shim.
type opRequest struct {
	ID       string   `json:"id"`
	Op       string   `json:"op"`
	Selector string   `json:"selector,omitempty"`
	Ref      string   `json:"ref,omitempty"`
	Name     string   `json:"name,omitempty"`
	Lines    []string `json:"lines,omitempty"`
	Payload  any      `json:"payload,omitempty"`
}

// opResult is the shim's reply, or an unsolicited event when Event is set.
type opResult struct {
	ID        string          `json:"id,omitempty"`
	Event     string          `json:"event,omitempty"`
	OK        bool            `json:"ok"`
	Error     string          `json:"error,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
	Ref       string          `json:"ref,omitempty"`
	Refs      []string        `json:"refs,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// Bridge owns the page connection. At most one shim is attached at a time.
type Bridge struct {
	log       zerolog.Logger
	opTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	pending map[string]chan opResult
	subs    map[int]chan struct{}
	nextSub int
}

// NewBridge creates a bridge with no page attached.
func NewBridge(log zerolog.Logger) *Bridge {
	return &Bridge{
		log:       log,
		opTimeout: defaultOpTimeout,
		pending:   map[string]chan opResult{},
		subs:      map[int]chan struct{}{},
	}
}

// Connected reports whether a page shim is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Handler accepts the page shim WebSocket connection. A second connection is
// rejected while one is active.
func (b *Bridge) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		busy := b.conn != nil
		b.mu.Unlock()
		if busy {
			http.Error(w, "page already connected", http.StatusConflict)
			return
		}

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		b.mu.Lock()
		b.conn = c
		b.connCtx = ctx
		b.mu.Unlock()
		metrics.SetPageConnected(true)
		b.log.Info().Str("remote_addr", r.RemoteAddr).Msg("page shim connected")

		b.readLoop(ctx, c)

		b.detach(c)
		b.log.Warn().Msg("page shim disconnected")
	}
}

func (b *Bridge) readLoop(ctx context.Context, c *websocket.Conn) {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		var res opResult
		if err := json.Unmarshal(data, &res); err != nil {
			b.log.Error().Err(err).Msg("malformed shim frame")
			continue
		}
		if res.Event == "mutation" {
			b.notifyMutation()
			continue
		}
		b.mu.Lock()
		ch, ok := b.pending[res.ID]
		if ok {
			delete(b.pending, res.ID)
		}
		b.mu.Unlock()
		if ok {
			ch <- res
		}
	}
}

func (b *Bridge) detach(c *websocket.Conn) {
	b.mu.Lock()
	if b.conn != c {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	b.connCtx = nil
	pending := b.pending
	b.pending = map[string]chan opResult{}
	b.mu.Unlock()
	metrics.SetPageConnected(false)
	_ = c.Close(websocket.StatusNormalClosure, "")
	for _, ch := range pending {
		ch <- opResult{OK: false, Error: "page disconnected"}
	}
}

func (b *Bridge) notifyMutation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel that ticks on each document mutation reported
// by the shim. The channel is closed when ctx is cancelled.
func (b *Bridge) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(ch)
	}()
	return ch
}

// call sends one op frame and waits for its correlated reply.
func (b *Bridge) call(ctx context.Context, req opRequest) (opResult, error) {
	req.ID = uuid.NewString()

	b.mu.Lock()
	conn := b.conn
	connCtx := b.connCtx
	if conn == nil {
		b.mu.Unlock()
		return opResult{}, domerr.New(domerr.CodeSocketNotConnected, "browser page not connected")
	}
	ch := make(chan opResult, 1)
	b.pending[req.ID] = ch
	b.mu.Unlock()

	frame, err := json.Marshal(req)
	if err != nil {
		b.dropPending(req.ID)
		return opResult{}, err
	}
	if err := conn.Write(connCtx, websocket.MessageText, frame); err != nil {
		b.dropPending(req.ID)
		return opResult{}, domerr.New(domerr.CodeSocketNotConnected, err.Error())
	}

	timer := time.NewTimer(b.opTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if !res.OK {
			code := res.ErrorCode
			if code == "" {
				code = domerr.CodeDomSelectorNotFound
			}
			return opResult{}, domerr.New(code, res.Error)
		}
		return res, nil
	case <-timer.C:
		b.dropPending(req.ID)
		return opResult{}, domerr.Newf(domerr.CodeSocketTimeout, "page shim did not answer %s in time", req.Op)
	case <-ctx.Done():
		b.dropPending(req.ID)
		return opResult{}, ctx.Err()
	}
}

func (b *Bridge) dropPending(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}
