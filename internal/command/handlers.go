package command

import (
	"context"

	"github.com/zoombridge/zoombridge/internal/session"
	"github.com/zoombridge/zoombridge/internal/wire"
)

// Command type strings accepted on the control channel.
const (
	TypeInit                  = "INIT"
	TypeJoin                  = "JOIN"
	TypeSend                  = "SEND"
	TypeParticipants          = "PARTICIPANTS"
	TypeOpenParticipantsPanel = "OPEN_PARTICIPANTS_PANEL"
	TypeLeaveMeeting          = "LEAVE_MEETING"
)

// Handlers returns the full handler set for a session.
func Handlers(s *session.Session) []Handler {
	return []Handler{
		InitHandler{s},
		JoinHandler{s},
		SendHandler{s},
		ParticipantsHandler{s},
		OpenParticipantsPanelHandler{s},
		LeaveMeetingHandler{s},
	}
}

// InitHandler validates credentials and initializes the meeting SDK.
type InitHandler struct {
	Session *session.Session
}

func (h InitHandler) Type() string { return TypeInit }

func (h InitHandler) Handle(ctx context.Context, req wire.Request) (any, error) {
	return nil, h.Session.Init(ctx, req.Payload)
}

// JoinHandler runs the pre-join control sequence.
type JoinHandler struct {
	Session *session.Session
}

func (h JoinHandler) Type() string { return TypeJoin }

func (h JoinHandler) Handle(ctx context.Context, _ wire.Request) (any, error) {
	return nil, h.Session.Join(ctx)
}

// SendHandler injects a chat message.
type SendHandler struct {
	Session *session.Session
}

func (h SendHandler) Type() string { return TypeSend }

func (h SendHandler) Handle(ctx context.Context, req wire.Request) (any, error) {
	return nil, h.Session.SendChat(ctx, req.Payload)
}

// ParticipantsHandler reads the participant counter.
type ParticipantsHandler struct {
	Session *session.Session
}

func (h ParticipantsHandler) Type() string { return TypeParticipants }

func (h ParticipantsHandler) Handle(ctx context.Context, _ wire.Request) (any, error) {
	count, err := h.Session.ParticipantsCount(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{"count": count}, nil
}

// OpenParticipantsPanelHandler opens the participants list pane.
type OpenParticipantsPanelHandler struct {
	Session *session.Session
}

func (h OpenParticipantsPanelHandler) Type() string { return TypeOpenParticipantsPanel }

func (h OpenParticipantsPanelHandler) Handle(ctx context.Context, _ wire.Request) (any, error) {
	return nil, h.Session.OpenParticipantsPanel(ctx)
}

// LeaveMeetingHandler ends the meeting and resets the session.
type LeaveMeetingHandler struct {
	Session *session.Session
}

func (h LeaveMeetingHandler) Type() string { return TypeLeaveMeeting }

func (h LeaveMeetingHandler) Handle(ctx context.Context, _ wire.Request) (any, error) {
	return nil, h.Session.Leave(ctx)
}
