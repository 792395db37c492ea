package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/agrisecure/internal/domain/security"
)

// millisecondThreshold separates unix seconds from unix milliseconds.
const millisecondThreshold = 1e12

// securityEvent is the payload published on the security topic.
type securityEvent struct {
	// NodeID is the detecting node.
	NodeID string `json:"node_id"`
	// Classification is either a firmware code (0-5) or a class name.
	Classification json.RawMessage `json:"classification"`
	// Priority is the optional gateway-assigned priority.
	Priority string `json:"priority"`
	// Timestamp is unix seconds, unix milliseconds or RFC 3339.
	Timestamp json.RawMessage `json:"timestamp"`
}

// statusReport is the heartbeat payload published on the status topic.
type statusReport struct {
	// NodeID is the reporting node.
	NodeID string `json:"node_id"`
	// Type is the node type code (GW, AMB, SEC) used for auto-registration.
	Type string `json:"type"`
	// Uptime is the time since boot in seconds.
	Uptime int64 `json:"uptime"`
	// RSSI is the mesh signal strength.
	RSSI *int `json:"rssi"`
	// Signal is the legacy name of RSSI.
	Signal *int `json:"signal"`
	// Battery is the charge percentage.
	Battery *int `json:"battery"`
	// Firmware is the firmware version.
	Firmware string `json:"firmware"`
}

// firmwareClasses maps the numeric classifier output; 0 means nothing detected.
//
//nolint:gochecknoglobals // Read-only lookup table.
var firmwareClasses = map[int]security.Classification{
	1: security.ClassificationPerson,
	2: security.ClassificationAnimalLarge,
	3: security.ClassificationAnimalSmall,
	4: security.ClassificationUnknown,
	5: security.ClassificationTamper,
}

// parseClassification decodes a numeric or textual class. The second result
// is false when the node reported that nothing was detected.
func parseClassification(raw json.RawMessage) (security.Classification, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return security.ClassificationUnknown, true
	}

	var code int
	if err := json.Unmarshal(raw, &code); err == nil {
		if code == 0 {
			return "", false
		}

		if c, ok := firmwareClasses[code]; ok {
			return c, true
		}

		return security.ClassificationUnknown, true
	}

	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return security.ClassificationUnknown, true
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none":
		return "", false
	case "animal_large":
		return security.ClassificationAnimalLarge, true
	case "animal_small":
		return security.ClassificationAnimalSmall, true
	}

	if c, ok := security.ParseClassification(name); ok {
		return c, true
	}

	return security.ClassificationUnknown, true
}

// parseTimestamp decodes the event time, falling back to now. Times ahead of
// now are clamped to now.
func parseTimestamp(raw json.RawMessage, now time.Time) time.Time {
	if t := decodeTimestamp(raw, now); t.Before(now) {
		return t
	}

	return now
}

func decodeTimestamp(raw json.RawMessage, now time.Time) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return now
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		if number <= 0 {
			return now
		}

		if number > millisecondThreshold {
			return time.UnixMilli(int64(number)).UTC()
		}

		return time.Unix(int64(number), 0).UTC()
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return now
	}

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t
	}

	if seconds, err := strconv.ParseInt(text, 10, 64); err == nil && seconds > 0 {
		return time.Unix(seconds, 0).UTC()
	}

	return now
}

func decode(payload []byte, into any) error {
	if err := json.Unmarshal(payload, into); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}

	return nil
}
