// Package sched binds the scheduler port to the runtime clock.
package sched

import (
	"time"

	"github.com/zoombridge/zoombridge/internal/ports"
)

// Clock implements ports.Scheduler with real timers.
type Clock struct{}

func (Clock) AfterFunc(d time.Duration, fn func()) ports.Timer {
	return timer{time.AfterFunc(d, fn)}
}

type timer struct {
	t *time.Timer
}

func (t timer) Stop() bool {
	return t.t.Stop()
}
