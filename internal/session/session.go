// Package session owns the meeting lifecycle: SDK initialization with its
// watchdog, the pre-join control sequence, chat injection, participants
// queries, leave, and the background watchers that report meeting state and
// incoming chat messages.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zoombridge/zoombridge/internal/domerr"
	"github.com/zoombridge/zoombridge/internal/metrics"
	"github.com/zoombridge/zoombridge/internal/poll"
	"github.com/zoombridge/zoombridge/internal/ports"
	"github.com/zoombridge/zoombridge/internal/wire"
)

const (
	initWatchdogTimeout = 5 * time.Second
	controlStateTimeout = 3 * time.Second
	panelToggleTimeout  = 3 * time.Second
	sendButtonTimeout   = 3 * time.Second
	chatTipDedupeWindow = time.Second
)

// Session sequences all meeting operations against the capability ports.
// There is exactly one logical session per process; the initializing and
// initialized flags act as the session semaphore.
type Session struct {
	zoom  ports.ZoomSDK
	dom   ports.DomDriver
	sched ports.Scheduler
	sel   Selectors
	log   zerolog.Logger

	mu           sync.Mutex
	creds        *ports.Credentials
	initialized  bool
	initializing bool
	initDone     chan error
	watchdog     ports.Timer

	meetingWatch       watchState
	meetingWatchCancel context.CancelFunc
	meetingState       string

	chatMonitorOn bool
	chatCancel    context.CancelFunc
	chatPanelOpen bool
	lastTip       *tipSignature

	bg     context.Context
	stop   context.CancelFunc
	events chan wire.Event
	now    func() time.Time
}

type tipSignature struct {
	ref  string
	text string
	seen time.Time
}

// New creates an idle session bound to the given ports.
func New(zoom ports.ZoomSDK, dom ports.DomDriver, sched ports.Scheduler, log zerolog.Logger) *Session {
	bg, stop := context.WithCancel(context.Background())
	return &Session{
		zoom:   zoom,
		dom:    dom,
		sched:  sched,
		sel:    DefaultSelectors(),
		log:    log,
		bg:     bg,
		stop:   stop,
		events: make(chan wire.Event, 16),
		now:    time.Now,
	}
}

// Events exposes the spontaneous notifications (meeting state, chat tips)
// emitted by the background watchers.
func (s *Session) Events() <-chan wire.Event {
	return s.events
}

// Close stops all background watchers and the watchdog.
func (s *Session) Close() {
	s.mu.Lock()
	s.disarmWatchdogLocked()
	s.stopChatMonitorLocked()
	if s.meetingWatchCancel != nil {
		s.meetingWatchCancel()
		s.meetingWatchCancel = nil
	}
	s.mu.Unlock()
	s.stop()
}

// Snapshot reports the current session flags for the status endpoint.
type Snapshot struct {
	Initialized       bool   `json:"initialized"`
	Initializing      bool   `json:"initializing"`
	ChatPanelOpen     bool   `json:"chatPanelOpen"`
	ChatMonitorActive bool   `json:"chatMonitorActive"`
	MeetingState      string `json:"meetingState,omitempty"`
}

// State returns a copy of the session flags.
func (s *Session) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Initialized:       s.initialized,
		Initializing:      s.initializing,
		ChatPanelOpen:     s.chatPanelOpen,
		ChatMonitorActive: s.chatMonitorOn,
		MeetingState:      s.meetingState,
	}
}

// Init validates credentials, initializes the meeting SDK, and joins the
// meeting. It blocks until the join flow settles or the 5 second watchdog
// makes the call: rendered SDK content counts as a late success, anything
// else fails with "SDK not loaded". The watchdog exists because the SDK's
// callback contract is not reliable under all network conditions.
func (s *Session) Init(ctx context.Context, raw json.RawMessage) error {
	s.log.Info().Msg("init command received")

	s.mu.Lock()
	if s.initializing {
		s.mu.Unlock()
		return domerr.New(domerr.CodeZoomInitFailed, "Zoom SDK initialization already in progress")
	}
	if s.initialized {
		s.mu.Unlock()
		return domerr.New(domerr.CodeZoomInitFailed, "Zoom SDK already initialized")
	}
	creds, err := parseCredentials(raw)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.creds = &creds
	s.initializing = true
	done := make(chan error, 1)
	s.initDone = done
	s.armWatchdogLocked()
	s.mu.Unlock()

	go s.runInitFlow()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		s.log.Info().Msg("init command completed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) runInitFlow() {
	ctx := s.bg
	if err := s.zoom.Prepare(ctx); err != nil {
		s.failInit(domerr.New(domerr.CodeZoomInitFailed, err.Error()))
		return
	}
	if err := s.zoom.Init(ctx, ports.InitOptions{
		LeaveURL:    "https://www.zoom.com/",
		DisableCORP: true,
		IsSupportAV: true,
	}); err != nil {
		s.failInit(domerr.New(domerr.CodeZoomInitFailed, err.Error()))
		return
	}
	s.runJoinFlow(ctx)
}

// runJoinFlow performs the automatic SDK join that follows a successful SDK
// init. Join success is what marks the session initialized.
func (s *Session) runJoinFlow(ctx context.Context) {
	s.mu.Lock()
	creds := s.creds
	s.mu.Unlock()
	if creds == nil {
		s.failInit(domerr.New(domerr.CodeZoomInitFailed, "Zoom configuration missing for join"))
		return
	}

	err := s.zoom.Join(ctx, *creds)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initializing = false
	s.disarmWatchdogLocked()
	if err != nil {
		s.finishInitLocked(domerr.New(domerr.CodeZoomJoinFailed, err.Error()))
		return
	}
	s.initialized = true
	metrics.SetSessionInitialized(true)
	s.finishInitLocked(nil)
}

func (s *Session) failInit(derr *domerr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initializing = false
	s.disarmWatchdogLocked()
	s.finishInitLocked(derr)
}

// finishInitLocked resolves the pending Init call at most once; late watchdog
// or join outcomes after the first resolution are dropped.
func (s *Session) finishInitLocked(err error) {
	if s.initDone == nil {
		return
	}
	s.initDone <- err
	s.initDone = nil
}

func (s *Session) armWatchdogLocked() {
	s.disarmWatchdogLocked()
	s.watchdog = s.sched.AfterFunc(initWatchdogTimeout, s.onInitTimeout)
}

func (s *Session) disarmWatchdogLocked() {
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

func (s *Session) onInitTimeout() {
	s.mu.Lock()
	if !s.initializing || s.initialized {
		s.mu.Unlock()
		return
	}
	s.watchdog = nil
	s.mu.Unlock()

	rendered, err := s.dom.HasContent(s.bg, s.sel.SDKRoot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initializing || s.initialized {
		return
	}
	if err == nil && rendered {
		// The SDK rendered its UI but never fired its completion callback.
		s.log.Warn().Msg("init watchdog fired with rendered SDK content; treating as success")
		s.initializing = false
		s.initialized = true
		metrics.SetSessionInitialized(true)
		s.finishInitLocked(nil)
		return
	}
	s.initializing = false
	s.finishInitLocked(domerr.New(domerr.CodeZoomInitFailed, "SDK not loaded"))
}

func (s *Session) ensureReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return domerr.New(domerr.CodeZoomNotInitialized, "Zoom SDK not initialized")
	}
	return nil
}

// Join runs the pre-join control sequence: audio muted, video stopped, join
// clicked. It then starts the meeting-state and chat watchers. Failures leave
// session state untouched so the command can be retried.
func (s *Session) Join(ctx context.Context) error {
	s.log.Info().Msg("join command received")
	if err := s.ensureReady(); err != nil {
		return err
	}

	if err := s.runPreJoin(ctx); err != nil {
		return domerr.New(domerr.CodeDomSelectorNotFound, err.Error())
	}
	s.startMeetingStateWatch()
	s.startChatMonitor()
	s.log.Info().Msg("join command completed")
	return nil
}

func (s *Session) runPreJoin(ctx context.Context) error {
	audio, err := s.dom.WaitForElement(ctx, s.sel.PreviewAudio, ports.PollOptions{})
	if err != nil {
		return err
	}
	if err := s.ensureControlState(ctx, audio, "Unmute"); err != nil {
		return err
	}

	video, err := s.dom.WaitForElement(ctx, s.sel.PreviewVideo, ports.PollOptions{})
	if err != nil {
		return err
	}
	if err := s.ensureControlState(ctx, video, "Start Video"); err != nil {
		return err
	}

	join, err := s.dom.WaitForElement(ctx, s.sel.PreviewJoin, ports.PollOptions{})
	if err != nil {
		return err
	}
	return join.Click(ctx)
}

// ensureControlState click-toggles a preview control until its aria-label
// reaches the desired state.
func (s *Session) ensureControlState(ctx context.Context, button ports.Element, desired string) error {
	label, err := button.Attr(ctx, "aria-label")
	if err != nil {
		return err
	}
	if label == desired {
		return nil
	}
	if err := button.Click(ctx); err != nil {
		return err
	}
	return poll.Until(ctx, func() (bool, error) {
		l, err := button.Attr(ctx, "aria-label")
		if err != nil {
			return false, err
		}
		return l == desired, nil
	}, poll.Options{
		Timeout:        controlStateTimeout,
		Interval:       ports.DefaultPollInterval,
		TimeoutMessage: fmt.Sprintf("Timed out waiting for aria-label %q", desired),
	})
}

// SendChat validates the payload, opens the chat panel when needed, injects
// the trimmed message one paragraph per line, clicks send once the control is
// enabled, then closes the panel.
func (s *Session) SendChat(ctx context.Context, raw json.RawMessage) error {
	s.log.Info().Msg("send command received")
	if err := s.ensureReady(); err != nil {
		return err
	}
	message, err := parseSendPayload(raw)
	if err != nil {
		return err
	}

	if err := s.runSendChat(ctx, message); err != nil {
		return domerr.New(domerr.CodeDomSelectorNotFound, err.Error())
	}
	s.log.Info().Msg("send command completed")
	return nil
}

func (s *Session) runSendChat(ctx context.Context, message string) error {
	if err := s.ensureChatPanelOpen(ctx); err != nil {
		return err
	}
	editor, err := s.dom.WaitForElement(ctx, s.sel.ChatEditor, ports.PollOptions{})
	if err != nil {
		return err
	}
	if err := editor.ReplaceContent(ctx, splitLines(message)); err != nil {
		return err
	}

	send, err := s.waitForSendButton(ctx)
	if err != nil {
		return err
	}
	if err := send.Click(ctx); err != nil {
		return err
	}
	return s.closeChatPanel(ctx)
}

func splitLines(message string) []string {
	return strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")
}

func (s *Session) ensureChatPanelOpen(ctx context.Context) error {
	s.mu.Lock()
	open := s.chatPanelOpen
	s.mu.Unlock()
	if open {
		return nil
	}
	visible, err := s.isChatPanelVisible(ctx)
	if err != nil {
		return err
	}
	if visible {
		s.setChatPanelOpen(true)
		return nil
	}

	toggle, err := s.dom.WaitForElement(ctx, s.sel.ChatToggle, ports.PollOptions{})
	if err != nil {
		return err
	}
	if err := toggle.Click(ctx); err != nil {
		return err
	}
	if _, err := s.dom.WaitForElement(ctx, s.sel.ChatEditor, ports.PollOptions{}); err != nil {
		return err
	}
	s.setChatPanelOpen(true)
	return nil
}

func (s *Session) closeChatPanel(ctx context.Context) error {
	s.mu.Lock()
	open := s.chatPanelOpen
	s.mu.Unlock()
	visible, err := s.isChatPanelVisible(ctx)
	if err != nil {
		return err
	}
	if !open && !visible {
		return nil
	}

	closeBtn, found, err := s.dom.Query(ctx, s.sel.ChatClose)
	if err != nil {
		return err
	}
	if found {
		if err := closeBtn.Click(ctx); err != nil {
			return err
		}
		err := poll.Until(ctx, func() (bool, error) {
			v, err := s.isChatPanelVisible(ctx)
			return !v, err
		}, poll.Options{
			Timeout:        panelToggleTimeout,
			Interval:       ports.DefaultPollInterval,
			TimeoutMessage: "Chat panel did not close in time",
		})
		if err != nil {
			return err
		}
	}
	s.setChatPanelOpen(false)
	return nil
}

func (s *Session) isChatPanelVisible(ctx context.Context) (bool, error) {
	_, found, err := s.dom.Query(ctx, s.sel.ChatSend)
	return found, err
}

func (s *Session) setChatPanelOpen(open bool) {
	s.mu.Lock()
	s.chatPanelOpen = open
	s.mu.Unlock()
}

func (s *Session) waitForSendButton(ctx context.Context) (ports.Element, error) {
	var send ports.Element
	err := poll.Until(ctx, func() (bool, error) {
		el, found, err := s.dom.Query(ctx, s.sel.ChatSend)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		disabled, err := el.HasClass(ctx, s.sel.ChatSendDisabled)
		if err != nil {
			return false, err
		}
		if disabled {
			return false, nil
		}
		send = el
		return true, nil
	}, poll.Options{
		Timeout:        sendButtonTimeout,
		Interval:       ports.DefaultPollInterval,
		TimeoutMessage: "Send button not ready",
	})
	if err != nil {
		return nil, err
	}
	return send, nil
}

// ParticipantsCount reads the participants counter from the footer.
func (s *Session) ParticipantsCount(ctx context.Context) (int, error) {
	s.log.Debug().Msg("participants command received")
	if err := s.ensureReady(); err != nil {
		return 0, err
	}

	counter, found, err := s.dom.Query(ctx, s.sel.ParticipantsCount)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, domerr.New(domerr.CodeDomSelectorNotFound, "Participants indicator not found")
	}
	text, err := counter.Text(ctx)
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, domerr.Validation("Unable to parse participant count")
	}
	s.log.Debug().Int("count", count).Msg("participants command completed")
	return count, nil
}

// OpenParticipantsPanel opens the participants list. Idempotent: returns
// immediately when the panel is already visible.
func (s *Session) OpenParticipantsPanel(ctx context.Context) error {
	s.log.Info().Msg("open participants panel command received")
	if err := s.ensureReady(); err != nil {
		return err
	}

	toggle, err := s.dom.WaitForElement(ctx, s.sel.ParticipantsToggle, ports.PollOptions{})
	if err != nil {
		return err
	}
	visible, err := s.isParticipantsPanelVisible(ctx, toggle)
	if err != nil {
		return err
	}
	if visible {
		return nil
	}
	if err := toggle.Click(ctx); err != nil {
		return err
	}
	err = poll.Until(ctx, func() (bool, error) {
		return s.isParticipantsPanelVisible(ctx, toggle)
	}, poll.Options{
		Timeout:        panelToggleTimeout,
		Interval:       ports.DefaultPollInterval,
		TimeoutMessage: "Participants panel did not open in time",
	})
	if err != nil {
		return err
	}
	s.log.Info().Msg("open participants panel command completed")
	return nil
}

func (s *Session) isParticipantsPanelVisible(ctx context.Context, toggle ports.Element) (bool, error) {
	label, err := toggle.Attr(ctx, "aria-label")
	if err != nil {
		return false, err
	}
	if strings.Contains(strings.ToLower(label), "close the manage participants list pane") {
		return true, nil
	}
	_, found, err := s.dom.Query(ctx, s.sel.ParticipantsPanel)
	return found, err
}

// Leave ends the meeting and fully resets the session. A failure before the
// reset leaves state untouched so the command can be retried; once the leave
// control has been clicked a retry may hit a stale DOM and fail, which is a
// known limitation of the underlying client.
func (s *Session) Leave(ctx context.Context) error {
	s.log.Info().Msg("leave command received")
	if err := s.ensureReady(); err != nil {
		return err
	}

	if err := s.runLeave(ctx); err != nil {
		var derr *domerr.Error
		if errors.As(err, &derr) {
			return derr
		}
		return domerr.New(domerr.CodeDomSelectorNotFound, err.Error())
	}
	s.resetState()
	s.log.Info().Msg("leave command completed")
	return nil
}

func (s *Session) runLeave(ctx context.Context) error {
	leave, err := s.findLeaveButton(ctx)
	if err != nil {
		return err
	}
	if leave == nil {
		return domerr.New(domerr.CodeDomSelectorNotFound, "Leave button not found")
	}
	if err := leave.Click(ctx); err != nil {
		return err
	}
	confirm, err := s.dom.WaitForElement(ctx, s.sel.LeaveConfirm, ports.PollOptions{})
	if err != nil {
		return err
	}
	return confirm.Click(ctx)
}

func (s *Session) findLeaveButton(ctx context.Context) (ports.Element, error) {
	for _, sel := range []string{s.sel.EndButton, s.sel.LeaveButton} {
		el, found, err := s.dom.Query(ctx, sel)
		if err != nil {
			return nil, err
		}
		if found {
			return el, nil
		}
	}
	return nil, nil
}

func (s *Session) resetState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.initializing = false
	metrics.SetSessionInitialized(false)
	s.disarmWatchdogLocked()
	s.meetingWatch = watchNotStarted
	s.meetingState = ""
	if s.meetingWatchCancel != nil {
		s.meetingWatchCancel()
		s.meetingWatchCancel = nil
	}
	s.stopChatMonitorLocked()
	s.chatPanelOpen = false
}
