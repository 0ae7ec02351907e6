package matching

import "strings"

var canonicalActions = map[string]string{
	"moveblock":              "move block",
	"added shape to gallery": "added shape to gallery",
}

// DisplayAction maps a raw event type to its display label. Known types are
// matched case-insensitively; anything else keeps its original spelling.
func DisplayAction(eventType string) string {
	if v, ok := canonicalActions[strings.ToLower(strings.TrimSpace(eventType))]; ok {
		return v
	}
	return eventType
}
