package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const unknownEventType = "unknown"

// identifierKinds is the lookup precedence for logical ids.
var identifierKinds = []string{"subscription", "order", "customer"}

// LogicalID identifies the business event behind a delivery. Only stable ids
// are written to the idempotency ledger.
type LogicalID struct {
	Value  string
	Stable bool
}

func (id LogicalID) String() string {
	return id.Value
}

// ExtractLogicalID derives the logical id of a payload. The "data" object is
// searched before the top level. Without any subscription, order or customer
// id the result falls back to eventType plus receivedAt and is not stable, so
// redeliveries of such payloads are never deduplicated.
func ExtractLogicalID(eventType string, payload []byte, receivedAt time.Time) LogicalID {
	if root, ok := decodeObject(payload); ok {
		scopes := make([]map[string]any, 0, 2)
		if data, ok := root["data"].(map[string]any); ok {
			scopes = append(scopes, data)
		}
		scopes = append(scopes, root)

		for _, kind := range identifierKinds {
			for _, scope := range scopes {
				if id := lookupID(scope, kind); id != "" {
					return LogicalID{Value: kind + "_" + id, Stable: true}
				}
			}
		}
	}

	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		eventType = unknownEventType
	}
	return LogicalID{Value: fmt.Sprintf("%s_%d", eventType, receivedAt.UnixMilli())}
}

// EventTypeFromPayload resolves the event label of a delivery: the body field
// "event", then "meta.event_name", then the fallback (usually a header).
func EventTypeFromPayload(payload []byte, fallback string) string {
	if root, ok := decodeObject(payload); ok {
		if name := scalarString(root["event"]); name != "" {
			return name
		}
		if meta, ok := root["meta"].(map[string]any); ok {
			if name := scalarString(meta["event_name"]); name != "" {
				return name
			}
		}
	}
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return fallback
	}
	return unknownEventType
}

func decodeObject(payload []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var root map[string]any
	if err := dec.Decode(&root); err != nil || root == nil {
		return nil, false
	}
	return root, true
}

func lookupID(scope map[string]any, kind string) string {
	if nested, ok := scope[kind].(map[string]any); ok {
		if id := scalarString(nested["id"]); id != "" {
			return id
		}
	}
	return scalarString(scope[kind+"_id"])
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}
