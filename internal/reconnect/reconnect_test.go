package reconnect

import (
	"testing"
	"time"
)

func TestDelay(t *testing.T) {
	want := []time.Duration{
		time.Second, time.Second, time.Second,
		5 * time.Second, 5 * time.Second, 5 * time.Second,
		15 * time.Second, 15 * time.Second, 15 * time.Second,
		30 * time.Second, 30 * time.Second,
	}
	for attempt, d := range want {
		if got := Delay(attempt); got != d {
			t.Fatalf("attempt %d: expected %v, got %v", attempt, d, got)
		}
	}
}
