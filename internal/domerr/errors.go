// Package domerr defines the coded errors that flow back over the control
// channel. Every failure a command can produce carries one of these codes so
// the remote operator can react without parsing message strings.
package domerr

import "fmt"

// Error codes, grouped by origin.
const (
	CodeValidation           = "validation_error"
	CodeCommandUnknown       = "command_unknown"
	CodeCommandHandlerFailed = "command_handler_failed"

	CodeZoomInitFailed     = "zoom_init_failed"
	CodeZoomJoinFailed     = "zoom_join_failed"
	CodeZoomNotInitialized = "zoom_not_initialized"

	CodeDomSelectorNotFound = "dom_selector_not_found"
	CodeDomTimeout          = "dom_timeout"

	CodeSocketNotConnected = "socket_not_connected"
	CodeSocketTimeout      = "socket_timeout"
	CodeSocketParseFailed  = "socket_parse_failed"
)

// Error is a typed failure with a machine-readable code and optional details.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// New builds an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches details to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Validation builds a validation_error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}
