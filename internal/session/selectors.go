package session

// Selectors names the DOM landmarks of the rendered meeting client. The
// defaults match the current vendor web client; they are injectable so a
// client upgrade only touches configuration.
type Selectors struct {
	SDKRoot string

	PreviewAudio string
	PreviewVideo string
	PreviewJoin  string

	ChatToggle       string
	ChatEditor       string
	ChatSend         string
	ChatSendDisabled string
	ChatClose        string
	ChatTipContainer string
	ChatTipFrom      string
	ChatTipContent   string

	ParticipantsToggle string
	ParticipantsCount  string
	ParticipantsPanel  string

	WaitingRoomTip string
	MeetingHeader  string
	EndButton      string
	LeaveButton    string
	LeaveConfirm   string
}

// DefaultSelectors returns the selector table for the current client build.
func DefaultSelectors() Selectors {
	return Selectors{
		SDKRoot: "#zmmtg-root",

		PreviewAudio: "#preview-audio-control-button",
		PreviewVideo: "#preview-video-control-button",
		PreviewJoin:  ".preview-join-button",

		ChatToggle:       `button.footer-button-base__button[aria-label*="chat panel"]`,
		ChatEditor:       `.tiptap.ProseMirror[contenteditable="true"]`,
		ChatSend:         "button.chat-rtf-box__send",
		ChatSendDisabled: "chat-rtf-box__send--disabled",
		ChatClose:        `button.particpant-header__close-right[aria-label="Close"]`,
		ChatTipContainer: ".last-chat-message-tip__container",
		ChatTipFrom:      ".last-chat-message-tip__from-to",
		ChatTipContent:   ".last-chat-message-tip__content",

		ParticipantsToggle: `button.footer-button-base__button[aria-label*="participants"]`,
		ParticipantsCount:  ".footer-button__number-counter span",
		ParticipantsPanel:  ".participants-panel, .participant-list__container, .participants-panel__inner, .participants-panel-container",

		WaitingRoomTip: ".wr-tip span",
		MeetingHeader:  ".meeting-header",
		EndButton:      `button.footer-button-base__button[aria-label="End"]`,
		LeaveButton:    `button.footer-button-base__button[aria-label="Leave"]`,
		LeaveConfirm:   ".leave-meeting-options__btn--danger",
	}
}
