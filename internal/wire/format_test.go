package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/zoombridge/zoombridge/internal/domerr"
)

func TestSuccessEchoesRequestID(t *testing.T) {
	resp := Success("INIT", nil, json.RawMessage(`"r1"`))
	if !resp.OK || resp.Type != "INIT" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["requestId"] != "r1" {
		t.Fatalf("expected requestId r1, got %v", decoded["requestId"])
	}
}

func TestSuccessOmitsAbsentRequestID(t *testing.T) {
	b, err := json.Marshal(Success("JOIN", nil, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := decoded["requestId"]; present {
		t.Fatalf("requestId should be omitted: %s", b)
	}
}

func TestFormatErrorDomain(t *testing.T) {
	derr := domerr.New(domerr.CodeZoomInitFailed, "SDK not loaded").
		WithDetails(map[string]any{"phase": "init"})
	resp := FormatError("INIT", derr, nil, map[string]any{"logs": []string{"line"}})
	if resp.OK {
		t.Fatalf("expected ok=false")
	}
	if resp.Error.Code != domerr.CodeZoomInitFailed {
		t.Fatalf("expected zoom_init_failed, got %s", resp.Error.Code)
	}
	if resp.Error.Message != "SDK not loaded" {
		t.Fatalf("unexpected message %q", resp.Error.Message)
	}
	if resp.Error.Details["phase"] != "init" {
		t.Fatalf("domain details lost: %v", resp.Error.Details)
	}
	if _, ok := resp.Error.Details["logs"]; !ok {
		t.Fatalf("extra details not merged: %v", resp.Error.Details)
	}
}

func TestFormatErrorGeneric(t *testing.T) {
	resp := FormatError("SEND", errors.New("boom"), nil, nil)
	if resp.Error.Code != domerr.CodeCommandHandlerFailed {
		t.Fatalf("expected command_handler_failed, got %s", resp.Error.Code)
	}
	if resp.Error.Message != "boom" {
		t.Fatalf("unexpected message %q", resp.Error.Message)
	}
}

func TestFormatErrorNil(t *testing.T) {
	resp := FormatError("SEND", nil, nil, nil)
	if resp.Error.Message != "Unhandled command error" {
		t.Fatalf("unexpected fallback message %q", resp.Error.Message)
	}
}

func TestFormatEvent(t *testing.T) {
	resp := FormatEvent(Event{Type: "MEETING_STATE", Payload: map[string]string{"state": "IN_MEETING"}})
	if !resp.OK || resp.Type != "MEETING_STATE" {
		t.Fatalf("unexpected event response: %+v", resp)
	}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := decoded["requestId"]; present {
		t.Fatalf("events must not carry a requestId: %s", b)
	}
}
