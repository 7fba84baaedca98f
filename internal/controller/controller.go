// Package controller connects the control channel to the command core: it
// parses inbound frames, dispatches commands one at a time, formats replies,
// and forwards spontaneous session events.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zoombridge/zoombridge/internal/command"
	"github.com/zoombridge/zoombridge/internal/metrics"
	"github.com/zoombridge/zoombridge/internal/ports"
	"github.com/zoombridge/zoombridge/internal/wire"
)

// helloType is the frame announced to the operator endpoint on connect; the
// peer uses it to recognize the bridge client.
const helloType = "HELLO_FROM_ANGULAR"

// Transport is the subset of the gateway the controller depends on.
type Transport interface {
	OnOpen(fn func()) func()
	OnMessage(fn func(raw []byte)) func()
	OnClose(fn func()) func()
	Send(v any)
}

// Controller wires transport, codec, dispatcher, and session events together.
type Controller struct {
	transport  Transport
	events     <-chan wire.Event
	dispatcher *command.Dispatcher
	logBuf     ports.LogBuffer
	log        zerolog.Logger

	// cmdMu serializes command handling: only one command is in flight per
	// session, so a slow LEAVE cannot race a concurrent SEND.
	cmdMu sync.Mutex
}

// New creates a controller. Call Run to attach it to the transport.
func New(t Transport, events <-chan wire.Event, d *command.Dispatcher, logBuf ports.LogBuffer, log zerolog.Logger) *Controller {
	return &Controller{transport: t, events: events, dispatcher: d, logBuf: logBuf, log: log}
}

// Run subscribes to the transport, pumps session events to the wire, and
// blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	unsubOpen := c.transport.OnOpen(func() {
		c.log.Debug().Msg("sending hello")
		c.transport.Send(struct {
			Type string `json:"type"`
		}{helloType})
	})
	unsubMsg := c.transport.OnMessage(func(raw []byte) {
		c.handleRaw(ctx, raw)
	})
	unsubClose := c.transport.OnClose(func() {
		c.log.Warn().Msg("control channel disconnected")
	})
	defer unsubOpen()
	defer unsubMsg()
	defer unsubClose()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			metrics.EventEmitted(ev.Type)
			c.transport.Send(wire.FormatEvent(ev))
		}
	}
}

func (c *Controller) handleRaw(ctx context.Context, raw []byte) {
	req, err := wire.ParseRequest(raw)
	if err != nil {
		c.log.Error().Err(err).Msg("message parse failed")
		c.transport.Send(wire.FormatError("INVALID_MESSAGE", err, nil, nil))
		return
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	start := time.Now()
	res, err := c.dispatcher.Dispatch(ctx, req)
	if err != nil {
		metrics.CommandProcessed(req.Type, false, time.Since(start))
		c.log.Error().Str("type", req.Type).Err(err).Msg("command failed")
		c.transport.Send(wire.FormatError(req.Type, err, req.RequestID, map[string]any{
			"logs": formatLogs(c.logBuf.Entries()),
		}))
		return
	}
	metrics.CommandProcessed(req.Type, true, time.Since(start))
	c.transport.Send(wire.Success(res.Type, res.Payload, req.RequestID))
}

func formatLogs(entries []ports.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprintf("[%s][%s] %s", e.Timestamp.Format(time.RFC3339), strings.ToUpper(e.Level), e.Message)
	}
	return out
}
