package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zoombridge/zoombridge/internal/domerr"
	"github.com/zoombridge/zoombridge/internal/poll"
	"github.com/zoombridge/zoombridge/internal/ports"
)

// Dom implements ports.DomDriver against the page shim.
type Dom struct {
	bridge *Bridge
}

// NewDom creates the DOM driver backed by the bridge.
func NewDom(b *Bridge) *Dom {
	return &Dom{bridge: b}
}

func (d *Dom) WaitForElement(ctx context.Context, selector string, opts ports.PollOptions) (ports.Element, error) {
	opts = opts.Normalize()
	var found ports.Element
	err := poll.Until(ctx, func() (bool, error) {
		el, ok, err := d.Query(ctx, selector)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		found = el
		return true, nil
	}, poll.Options{Timeout: opts.Timeout, Interval: opts.Interval})
	if err != nil {
		var derr *domerr.Error
		if errors.As(err, &derr) && derr.Code == domerr.CodeDomTimeout {
			return nil, domerr.Newf(domerr.CodeDomSelectorNotFound, "Element not found for selector %s", selector)
		}
		return nil, err
	}
	return found, nil
}

func (d *Dom) Query(ctx context.Context, selector string) (ports.Element, bool, error) {
	res, err := d.bridge.call(ctx, opRequest{Op: "query", Selector: selector})
	if err != nil {
		return nil, false, err
	}
	if res.Ref == "" {
		return nil, false, nil
	}
	return &element{bridge: d.bridge, ref: res.Ref}, true, nil
}

func (d *Dom) QueryAll(ctx context.Context, selector string) ([]ports.Element, error) {
	res, err := d.bridge.call(ctx, opRequest{Op: "queryAll", Selector: selector})
	if err != nil {
		return nil, err
	}
	out := make([]ports.Element, len(res.Refs))
	for i, ref := range res.Refs {
		out[i] = &element{bridge: d.bridge, ref: ref}
	}
	return out, nil
}

func (d *Dom) HasContent(ctx context.Context, selector string) (bool, error) {
	res, err := d.bridge.call(ctx, opRequest{Op: "hasContent", Selector: selector})
	if err != nil {
		return false, err
	}
	return boolValue(res.Value)
}

func (d *Dom) Subscribe(ctx context.Context) <-chan struct{} {
	return d.bridge.Subscribe(ctx)
}

// element is a remote node handle identified by the shim-issued ref.
type element struct {
	bridge *Bridge
	ref    string
}

func (e *element) Ref() string { return e.ref }

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	res, err := e.bridge.call(ctx, opRequest{Op: "attr", Ref: e.ref, Name: name})
	if err != nil {
		return "", err
	}
	return stringValue(res.Value)
}

func (e *element) Text(ctx context.Context) (string, error) {
	res, err := e.bridge.call(ctx, opRequest{Op: "text", Ref: e.ref})
	if err != nil {
		return "", err
	}
	return stringValue(res.Value)
}

func (e *element) HasClass(ctx context.Context, name string) (bool, error) {
	res, err := e.bridge.call(ctx, opRequest{Op: "hasClass", Ref: e.ref, Name: name})
	if err != nil {
		return false, err
	}
	return boolValue(res.Value)
}

func (e *element) Click(ctx context.Context) error {
	_, err := e.bridge.call(ctx, opRequest{Op: "click", Ref: e.ref})
	return err
}

func (e *element) Query(ctx context.Context, selector string) (ports.Element, bool, error) {
	res, err := e.bridge.call(ctx, opRequest{Op: "query", Ref: e.ref, Selector: selector})
	if err != nil {
		return nil, false, err
	}
	if res.Ref == "" {
		return nil, false, nil
	}
	return &element{bridge: e.bridge, ref: res.Ref}, true, nil
}

func (e *element) ReplaceContent(ctx context.Context, lines []string) error {
	_, err := e.bridge.call(ctx, opRequest{Op: "replaceContent", Ref: e.ref, Lines: lines})
	return err
}

// SDK implements ports.ZoomSDK against the page shim, which holds the actual
// vendor client.
type SDK struct {
	bridge *Bridge
}

// NewSDK creates the SDK driver backed by the bridge.
func NewSDK(b *Bridge) *SDK {
	return &SDK{bridge: b}
}

func (s *SDK) Prepare(ctx context.Context) error {
	_, err := s.bridge.call(ctx, opRequest{Op: "sdkPrepare"})
	return err
}

func (s *SDK) Init(ctx context.Context, opts ports.InitOptions) error {
	_, err := s.bridge.call(ctx, opRequest{Op: "sdkInit", Payload: opts})
	return err
}

func (s *SDK) Join(ctx context.Context, creds ports.Credentials) error {
	_, err := s.bridge.call(ctx, opRequest{Op: "sdkJoin", Payload: creds})
	return err
}

func stringValue(raw json.RawMessage) (string, error) {
	var v string
	if len(raw) == 0 {
		return "", nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("decode shim value: %w", err)
	}
	return v, nil
}

func boolValue(raw json.RawMessage) (bool, error) {
	var v bool
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("decode shim value: %w", err)
	}
	return v, nil
}
