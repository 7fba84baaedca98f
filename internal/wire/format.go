package wire

import (
	"encoding/json"
	"errors"

	"github.com/zoombridge/zoombridge/internal/domerr"
)

// Success builds a successful response envelope for the given command type,
// echoing the original request id when one was supplied.
func Success(typ string, payload any, requestID json.RawMessage) Response {
	return Response{Type: typ, OK: true, RequestID: requestID, Payload: payload}
}

// FormatError builds a failed response envelope. A structured domain error
// keeps its code, message, and details, merged with any extra details (last
// write wins). Anything else is reported as command_handler_failed.
func FormatError(typ string, err error, requestID json.RawMessage, details map[string]any) Response {
	var derr *domerr.Error
	if errors.As(err, &derr) {
		merged := make(map[string]any, len(derr.Details)+len(details))
		for k, v := range derr.Details {
			merged[k] = v
		}
		for k, v := range details {
			merged[k] = v
		}
		if len(merged) == 0 {
			merged = nil
		}
		return Response{
			Type:      typ,
			OK:        false,
			RequestID: requestID,
			Error:     &ErrorBody{Code: derr.Code, Message: derr.Message, Details: merged},
		}
	}

	message := "Unhandled command error"
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	return Response{
		Type:      typ,
		OK:        false,
		RequestID: requestID,
		Error:     &ErrorBody{Code: domerr.CodeCommandHandlerFailed, Message: message, Details: details},
	}
}

// FormatEvent encodes a spontaneous runtime event as a response-shaped frame
// with ok=true and no request id.
func FormatEvent(ev Event) Response {
	return Response{Type: ev.Type, OK: true, Payload: ev.Payload}
}
