// Package ports declares the capability interfaces through which the session
// core reaches externally owned systems: the meeting SDK, the rendered DOM,
// timers, and the diagnostic log store. Production bindings proxy to the
// page-side shim; tests supply in-memory fakes.
package ports

import (
	"context"
	"time"
)

// Credentials is the meeting join configuration. Field validation happens in
// the session; the struct itself is opaque to the adapters.
type Credentials struct {
	SDKKey        string `json:"sdkKey"`
	Signature     string `json:"signature"`
	MeetingNumber string `json:"meetingNumber"`
	PassWord      string `json:"passWord"`
	UserName      string `json:"userName"`
	UserEmail     string `json:"userEmail,omitempty"`
	TK            string `json:"tk,omitempty"`
	ZAK           string `json:"zak,omitempty"`
}

// InitOptions configures the SDK client before joining.
type InitOptions struct {
	LeaveURL    string `json:"leaveUrl"`
	DisableCORP bool   `json:"disableCORP"`
	IsSupportAV bool   `json:"isSupportAV"`
}

// ZoomSDK drives the vendor meeting client.
type ZoomSDK interface {
	Prepare(ctx context.Context) error
	Init(ctx context.Context, opts InitOptions) error
	Join(ctx context.Context, creds Credentials) error
}

// Element is a handle to a single rendered DOM node.
type Element interface {
	// Ref is a stable identity token for the underlying node, used to
	// deduplicate repeated observations of the same element.
	Ref() string
	Attr(ctx context.Context, name string) (string, error)
	Text(ctx context.Context) (string, error)
	HasClass(ctx context.Context, name string) (bool, error)
	Click(ctx context.Context) error
	// Query finds a descendant of this element. The second return value is
	// false when no descendant matches.
	Query(ctx context.Context, selector string) (Element, bool, error)
	// ReplaceContent replaces the element's content with one paragraph per
	// line and notifies the host page's reactive state of the change.
	ReplaceContent(ctx context.Context, lines []string) error
}

// PollOptions bounds a DOM polling loop.
type PollOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Defaults for DOM polling loops.
const (
	DefaultPollTimeout  = 5 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Normalize fills zero fields with the default timeout and interval.
func (o PollOptions) Normalize() PollOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultPollTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	return o
}

// DomDriver queries and drives the rendered document.
type DomDriver interface {
	// WaitForElement polls until the selector matches, failing with a
	// dom_selector_not_found error at the deadline.
	WaitForElement(ctx context.Context, selector string, opts PollOptions) (Element, error)
	// Query returns the first match, or false when absent.
	Query(ctx context.Context, selector string) (Element, bool, error)
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// HasContent reports whether the selector matches an element with
	// non-empty rendered content.
	HasContent(ctx context.Context, selector string) (bool, error)
	// Subscribe returns a channel that ticks whenever the document mutates.
	// The channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context) <-chan struct{}
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer; it reports whether the call prevented the
	// callback from firing.
	Stop() bool
}

// Scheduler arms cancellable timers. It exists so watchdog behavior can be
// scripted in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// LogEntry is one buffered diagnostic line.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// LogBuffer retains recent log output so failed commands can ship diagnostics
// to the remote operator.
type LogBuffer interface {
	Entries() []LogEntry
}
