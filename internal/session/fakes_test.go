package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/zoombridge/zoombridge/internal/domerr"
	"github.com/zoombridge/zoombridge/internal/poll"
	"github.com/zoombridge/zoombridge/internal/ports"
	"github.com/zoombridge/zoombridge/internal/wire"
)

type fakeElement struct {
	mu       sync.Mutex
	ref      string
	attrs    map[string]string
	text     string
	classes  map[string]bool
	lines    []string
	clicks   int
	onClick  func()
	children map[string]*fakeElement
}

func newElement(ref string) *fakeElement {
	return &fakeElement{
		ref:      ref,
		attrs:    map[string]string{},
		classes:  map[string]bool{},
		children: map[string]*fakeElement{},
	}
}

func (e *fakeElement) Ref() string { return e.ref }

func (e *fakeElement) Attr(_ context.Context, name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs[name], nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.text, nil
}

func (e *fakeElement) HasClass(_ context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classes[name], nil
}

func (e *fakeElement) Click(context.Context) error {
	e.mu.Lock()
	e.clicks++
	fn := e.onClick
	e.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (e *fakeElement) Query(_ context.Context, selector string) (ports.Element, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	child, ok := e.children[selector]
	if !ok {
		return nil, false, nil
	}
	return child, true, nil
}

func (e *fakeElement) ReplaceContent(_ context.Context, lines []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lines = append([]string(nil), lines...)
	return nil
}

func (e *fakeElement) setAttr(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs[name] = value
}

func (e *fakeElement) setClass(name string, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classes[name] = on
}

func (e *fakeElement) clickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *fakeElement) replaced() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lines...)
}

// fakeDom serves selector lookups from in-memory tables. WaitForElement polls
// like the production driver but with a short ceiling so absent-element paths
// stay fast.
type fakeDom struct {
	mu       sync.Mutex
	elements map[string]*fakeElement
	lists    map[string][]*fakeElement
	content  map[string]bool
	subs     map[int]chan struct{}
	nextSub  int

	waitTimeout time.Duration
}

func newDom() *fakeDom {
	return &fakeDom{
		elements:    map[string]*fakeElement{},
		lists:       map[string][]*fakeElement{},
		content:     map[string]bool{},
		subs:        map[int]chan struct{}{},
		waitTimeout: 200 * time.Millisecond,
	}
}

func (d *fakeDom) set(selector string, el *fakeElement) {
	d.mu.Lock()
	d.elements[selector] = el
	d.mu.Unlock()
}

func (d *fakeDom) remove(selector string) {
	d.mu.Lock()
	delete(d.elements, selector)
	d.mu.Unlock()
}

func (d *fakeDom) setList(selector string, els ...*fakeElement) {
	d.mu.Lock()
	d.lists[selector] = els
	d.mu.Unlock()
}

func (d *fakeDom) setContent(selector string, rendered bool) {
	d.mu.Lock()
	d.content[selector] = rendered
	d.mu.Unlock()
}

// notify ticks every subscriber, mimicking a document mutation burst.
func (d *fakeDom) notify() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (d *fakeDom) WaitForElement(ctx context.Context, selector string, opts ports.PollOptions) (ports.Element, error) {
	o := opts.Normalize()
	timeout := o.Timeout
	if d.waitTimeout > 0 && d.waitTimeout < timeout {
		timeout = d.waitTimeout
	}
	var el ports.Element
	err := poll.Until(ctx, func() (bool, error) {
		e, found, err := d.Query(ctx, selector)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		el = e
		return true, nil
	}, poll.Options{
		Timeout:        timeout,
		Interval:       5 * time.Millisecond,
		TimeoutMessage: "Element not found for selector " + selector,
	})
	if err != nil {
		var derr *domerr.Error
		if errors.As(err, &derr) && derr.Code == domerr.CodeDomTimeout {
			return nil, domerr.New(domerr.CodeDomSelectorNotFound, derr.Message)
		}
		return nil, err
	}
	return el, nil
}

func (d *fakeDom) Query(_ context.Context, selector string) (ports.Element, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[selector]
	if !ok {
		return nil, false, nil
	}
	return el, true, nil
}

func (d *fakeDom) QueryAll(_ context.Context, selector string) ([]ports.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	els := d.lists[selector]
	out := make([]ports.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (d *fakeDom) HasContent(_ context.Context, selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content[selector], nil
}

func (d *fakeDom) Subscribe(ctx context.Context) <-chan struct{} {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	ch := make(chan struct{}, 1)
	d.subs[id] = ch
	d.mu.Unlock()
	go func() {
		<-ctx.Done()
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
		close(ch)
	}()
	return ch
}

type fakeZoom struct {
	mu         sync.Mutex
	prepareErr error
	initErr    error
	joinErr    error
	joinBlock  chan struct{}
	prepared   int
	inited     int
	joined     []ports.Credentials
}

func (z *fakeZoom) Prepare(context.Context) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.prepared++
	return z.prepareErr
}

func (z *fakeZoom) Init(context.Context, ports.InitOptions) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.inited++
	return z.initErr
}

func (z *fakeZoom) Join(ctx context.Context, creds ports.Credentials) error {
	z.mu.Lock()
	z.joined = append(z.joined, creds)
	block := z.joinBlock
	err := z.joinErr
	z.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (z *fakeZoom) joinedCreds() []ports.Credentials {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]ports.Credentials(nil), z.joined...)
}

type fakeTimer struct {
	mu      sync.Mutex
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	fn := t.fn
	t.mu.Unlock()
	fn()
}

// fakeScheduler records armed timers and fires them only on demand.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, fn func()) ports.Timer {
	t := &fakeTimer{fn: fn}
	s.mu.Lock()
	s.timers = append(s.timers, t)
	s.mu.Unlock()
	return t
}

func (s *fakeScheduler) armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) fireLast() {
	s.mu.Lock()
	if len(s.timers) == 0 {
		s.mu.Unlock()
		return
	}
	t := s.timers[len(s.timers)-1]
	s.mu.Unlock()
	t.fire()
}

func newTestSession(t *testing.T) (*Session, *fakeZoom, *fakeDom, *fakeScheduler) {
	t.Helper()
	zoom := &fakeZoom{}
	dom := newDom()
	sched := &fakeScheduler{}
	s := New(zoom, dom, sched, zerolog.Nop())
	t.Cleanup(s.Close)
	return s, zoom, dom, sched
}

func validCreds() []byte {
	return []byte(`{"sdkKey":"key","signature":"sig","meetingNumber":"123456","passWord":"pw","userName":"bot"}`)
}

func initSession(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Init(context.Background(), validCreds()); err != nil {
		t.Fatalf("init: %v", err)
	}
}

func errCode(t *testing.T, err error) (string, string) {
	t.Helper()
	var derr *domerr.Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected domain error, got %v", err)
	}
	return derr.Code, derr.Message
}

func waitEvent(t *testing.T, s *Session) wire.Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return wire.Event{}
	}
}

func expectNoEvent(t *testing.T, s *Session, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(wait):
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
