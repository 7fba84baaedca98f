package session

import (
	"encoding/json"
	"strings"

	"github.com/zoombridge/zoombridge/internal/domerr"
	"github.com/zoombridge/zoombridge/internal/ports"
)

var requiredCredentialFields = []string{"sdkKey", "signature", "meetingNumber", "passWord", "userName"}

// parseCredentials validates the INIT payload: the five required fields must
// be non-empty strings, and tk requires userEmail.
func parseCredentials(raw json.RawMessage) (ports.Credentials, error) {
	obj, err := payloadObject(raw, "INIT")
	if err != nil {
		return ports.Credentials{}, err
	}

	var missing []string
	for _, field := range requiredCredentialFields {
		v, ok := obj[field].(string)
		if !ok || v == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return ports.Credentials{}, domerr.Validation("Missing required fields: " + strings.Join(missing, ", "))
	}

	if tk, _ := obj["tk"].(string); tk != "" {
		if email, _ := obj["userEmail"].(string); email == "" {
			return ports.Credentials{}, domerr.Validation("userEmail is required when tk is provided")
		}
	}

	var creds ports.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return ports.Credentials{}, domerr.Validation("Invalid INIT payload")
	}
	return creds, nil
}

// parseSendPayload validates the SEND payload and returns the trimmed
// message text.
func parseSendPayload(raw json.RawMessage) (string, error) {
	obj, err := payloadObject(raw, "SEND")
	if err != nil {
		return "", err
	}
	msg, ok := obj["message"].(string)
	if !ok {
		return "", domerr.Validation("SEND payload must include a message string")
	}
	trimmed := strings.TrimSpace(msg)
	if trimmed == "" {
		return "", domerr.Validation("Message cannot be empty")
	}
	return trimmed, nil
}

func payloadObject(raw json.RawMessage, command string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, domerr.Validation(command + " payload must be an object")
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, domerr.Validation(command + " payload must be an object")
	}
	obj, ok := parsed.(map[string]any)
	if !ok || obj == nil {
		return nil, domerr.Validation(command + " payload must be an object")
	}
	return obj, nil
}
