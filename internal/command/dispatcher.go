// Package command maps inbound request types to their handlers.
package command

import (
	"context"

	"github.com/zoombridge/zoombridge/internal/domerr"
	"github.com/zoombridge/zoombridge/internal/wire"
)

// Handler processes one command type. The Type value is authoritative for
// the response type echoed to the caller.
type Handler interface {
	Type() string
	Handle(ctx context.Context, req wire.Request) (any, error)
}

// Result is a dispatched command's outcome before formatting.
type Result struct {
	Type    string
	Payload any
}

// Dispatcher routes requests by type. Last registration for a type wins.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates a dispatcher with the given handlers registered.
func NewDispatcher(handlers ...Handler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		d.Register(h)
	}
	return d
}

// Register associates a handler with its command type.
func (d *Dispatcher) Register(h Handler) {
	d.handlers[h.Type()] = h
}

// Dispatch resolves and runs the handler for the request type.
func (d *Dispatcher) Dispatch(ctx context.Context, req wire.Request) (Result, error) {
	h, ok := d.handlers[req.Type]
	if !ok {
		return Result{}, domerr.Newf(domerr.CodeCommandUnknown, "Unknown command: %s", req.Type)
	}
	payload, err := h.Handle(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return Result{Type: h.Type(), Payload: payload}, nil
}
