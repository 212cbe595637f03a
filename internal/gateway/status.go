package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// maxStatusDumpLen caps the sanitized fallback so an arbitrary payload
// never floods the status display.
const maxStatusDumpLen = 200

// statusPayload is the wire shape of one poll response. Status is kept raw
// because deployed server variants disagree on its type: a bare string, an
// object with a "status" key, or an object with a "state" key.
type statusPayload struct {
	Status        json.RawMessage `json:"status"`
	QueuePosition *int            `json:"queue_position"`
	Data          json.RawMessage `json:"data"`
}

// normalizeStatus flattens the heterogeneous status field into a single
// string. Shape branching happens here and nowhere else; the state store
// only ever sees the normalized form.
func normalizeStatus(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain)
	}

	var nested struct {
		Status string `json:"status"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		if nested.Status != "" {
			return strings.TrimSpace(nested.Status)
		}
		if nested.State != "" {
			return strings.TrimSpace(nested.State)
		}
	}

	return sanitizeDump(raw)
}

// sanitizeDump renders an unrecognized payload as compact, length-capped
// text for display.
func sanitizeDump(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}

	out := strings.TrimSpace(buf.String())
	if len(out) > maxStatusDumpLen {
		out = out[:maxStatusDumpLen] + "..."
	}
	return out
}
