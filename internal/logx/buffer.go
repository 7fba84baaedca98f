package logx

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zoombridge/zoombridge/internal/ports"
)

// Buffer retains the most recent log lines so failed commands can attach
// diagnostics for the remote operator, who has no console access to this
// process. It plugs into zerolog as a hook and is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []ports.LogEntry
	max     int
}

// NewBuffer creates a buffer holding at most max entries; older entries are
// discarded first.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = 500
	}
	return &Buffer{max: max}
}

// Run implements zerolog.Hook.
func (b *Buffer) Run(_ *zerolog.Event, level zerolog.Level, message string) {
	if level == zerolog.NoLevel || message == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, ports.LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
	})
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (b *Buffer) Entries() []ports.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ports.LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
