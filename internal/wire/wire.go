// Package wire implements the JSON envelope exchanged over the control
// channel: inbound command requests, outbound responses, and spontaneous
// runtime events.
package wire

import (
	"encoding/json"

	"github.com/zoombridge/zoombridge/internal/domerr"
)

// Request is an inbound command frame. RequestID is an opaque correlation
// token echoed back verbatim; it is kept as raw JSON because the protocol
// permits either a string or a number.
type Request struct {
	Type      string          `json:"type"`
	RequestID json.RawMessage `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Response is an outbound frame. Exactly one of Payload/Error is meaningful,
// gated by OK. Runtime events are encoded as a Response with OK=true and no
// RequestID.
type Response struct {
	Type      string          `json:"type"`
	OK        bool            `json:"ok"`
	RequestID json.RawMessage `json:"requestId,omitempty"`
	Payload   any             `json:"payload,omitempty"`
	Error     *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody is the error half of a failed Response.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Event is a spontaneous, unsolicited notification emitted by the session.
type Event struct {
	Type    string
	Payload any
}

// ParseRequest validates a raw text frame into a Request. It fails with a
// validation_error when the frame is not a JSON object, the type field is
// missing or empty, or requestId is neither a string nor a number.
func ParseRequest(raw []byte) (Request, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Request{}, domerr.Validation("Invalid JSON payload").
			WithDetails(map[string]any{"original": err.Error()})
	}
	obj, ok := parsed.(map[string]any)
	if !ok || obj == nil {
		return Request{}, domerr.Validation("Message must be a JSON object")
	}
	typ, ok := obj["type"].(string)
	if !ok || typ == "" {
		return Request{}, domerr.Validation("Message type must be a non-empty string")
	}
	if id, present := obj["requestId"]; present {
		switch id.(type) {
		case string, float64:
		default:
			return Request{}, domerr.Validation("requestId must be a string or number")
		}
	}

	// Second decode keeps requestId and payload as raw JSON so they can be
	// echoed or re-validated downstream without losing their original form.
	var fields struct {
		RequestID json.RawMessage `json:"requestId"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Request{}, domerr.Validation("Invalid JSON payload").
			WithDetails(map[string]any{"original": err.Error()})
	}
	return Request{Type: typ, RequestID: fields.RequestID, Payload: fields.Payload}, nil
}
