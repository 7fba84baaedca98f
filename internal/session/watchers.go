package session

import (
	"context"
	"strings"

	"github.com/zoombridge/zoombridge/internal/ports"
	"github.com/zoombridge/zoombridge/internal/wire"
)

// Meeting state event payload values.
const (
	StateWaitingRoom = "WAITING_ROOM"
	StateInMeeting   = "IN_MEETING"
)

// watchState tracks the single-fire meeting-state watcher lifecycle.
type watchState int

const (
	watchNotStarted watchState = iota
	watchWatching
	watchReported
)

// startMeetingStateWatch begins observing the document for the waiting-room
// or in-meeting landmarks. The watcher reports exactly once per join cycle
// and then terminates itself. Watcher failures are logged, never surfaced
// through the command protocol.
func (s *Session) startMeetingStateWatch() {
	s.mu.Lock()
	if s.meetingWatch != watchNotStarted {
		s.mu.Unlock()
		return
	}
	s.meetingWatch = watchWatching
	ctx, cancel := context.WithCancel(s.bg)
	s.meetingWatchCancel = cancel
	s.mu.Unlock()

	changes := s.dom.Subscribe(ctx)
	go func() {
		s.evaluateMeetingState(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				s.evaluateMeetingState(ctx)
			}
		}
	}()
}

func (s *Session) evaluateMeetingState(ctx context.Context) {
	s.mu.Lock()
	reported := s.meetingWatch == watchReported
	s.mu.Unlock()
	if reported {
		return
	}

	tip, found, err := s.dom.Query(ctx, s.sel.WaitingRoomTip)
	if err != nil {
		s.log.Debug().Err(err).Msg("meeting state query failed")
		return
	}
	if found {
		text, err := tip.Text(ctx)
		if err == nil && strings.Contains(text, "Waiting for the host") {
			s.reportMeetingState(StateWaitingRoom)
			return
		}
	}

	for _, sel := range []string{s.sel.EndButton, s.sel.MeetingHeader} {
		_, found, err := s.dom.Query(ctx, sel)
		if err != nil {
			s.log.Debug().Err(err).Msg("meeting state query failed")
			return
		}
		if found {
			s.reportMeetingState(StateInMeeting)
			return
		}
	}
}

func (s *Session) reportMeetingState(state string) {
	s.mu.Lock()
	if s.meetingWatch == watchReported {
		s.mu.Unlock()
		return
	}
	s.meetingWatch = watchReported
	s.meetingState = state
	cancel := s.meetingWatchCancel
	s.meetingWatchCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.log.Info().Str("state", state).Msg("meeting state detected")
	s.emit(wire.Event{Type: "MEETING_STATE", Payload: map[string]string{"state": state}})
	if state == StateInMeeting {
		s.startChatMonitor()
	}
}

// startChatMonitor observes the document for chat tip notifications and
// emits a CHAT_COMMAND event for each new message. Identical (node, text)
// observations within one second are treated as the same mutation burst.
func (s *Session) startChatMonitor() {
	s.mu.Lock()
	if s.chatMonitorOn {
		s.mu.Unlock()
		return
	}
	s.chatMonitorOn = true
	ctx, cancel := context.WithCancel(s.bg)
	s.chatCancel = cancel
	s.mu.Unlock()

	changes := s.dom.Subscribe(ctx)
	go func() {
		s.processChatTips(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				s.processChatTips(ctx)
			}
		}
	}()
}

func (s *Session) processChatTips(ctx context.Context) {
	tips, err := s.dom.QueryAll(ctx, s.sel.ChatTipContainer)
	if err != nil {
		s.log.Debug().Err(err).Msg("chat tip query failed")
		return
	}
	if len(tips) == 0 {
		return
	}
	s.emitChatTip(ctx, tips[len(tips)-1])
}

func (s *Session) emitChatTip(ctx context.Context, tip ports.Element) {
	from := ""
	if el, found, err := tip.Query(ctx, s.sel.ChatTipFrom); err == nil && found {
		if text, err := el.Text(ctx); err == nil {
			from = strings.TrimSpace(text)
		}
	}
	contentEl, found, err := tip.Query(ctx, s.sel.ChatTipContent)
	if err != nil || !found {
		return
	}
	text, err := contentEl.Text(ctx)
	if err != nil {
		return
	}
	message := strings.TrimSpace(text)
	if message == "" {
		return
	}

	now := s.now()
	s.mu.Lock()
	last := s.lastTip
	if last != nil && last.ref == tip.Ref() && last.text == message && now.Sub(last.seen) < chatTipDedupeWindow {
		s.mu.Unlock()
		return
	}
	s.lastTip = &tipSignature{ref: tip.Ref(), text: message, seen: now}
	s.mu.Unlock()

	s.emit(wire.Event{Type: "CHAT_COMMAND", Payload: map[string]string{"from": from, "message": message}})
}

func (s *Session) stopChatMonitorLocked() {
	if s.chatCancel != nil {
		s.chatCancel()
		s.chatCancel = nil
	}
	s.chatMonitorOn = false
	s.lastTip = nil
}

func (s *Session) emit(ev wire.Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn().Str("event", ev.Type).Msg("event channel full; dropping")
	}
}
