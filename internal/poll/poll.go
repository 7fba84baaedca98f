// Package poll provides the single fixed-interval retry primitive used by
// every bounded wait in the session core and the port adapters.
package poll

import (
	"context"
	"time"

	"github.com/zoombridge/zoombridge/internal/domerr"
)

// Until evaluates pred at the given interval until it reports true, the
// timeout elapses, or ctx is cancelled. A predicate error aborts the loop
// immediately. On timeout it returns a dom_timeout error carrying the given
// message.
func Until(ctx context.Context, pred func() (bool, error), opts Options) error {
	deadline := time.Now().Add(opts.Timeout)
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		ok, err := pred()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return domerr.New(domerr.CodeDomTimeout, opts.TimeoutMessage)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Options bounds one polling loop.
type Options struct {
	Timeout        time.Duration
	Interval       time.Duration
	TimeoutMessage string
}
