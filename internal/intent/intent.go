package intent

import "strings"

// Intent is the classified purpose of an utterance.
type Intent string

const (
	ListEvents  Intent = "list_events"
	CreateEvent Intent = "create_event"
	DeleteEvent Intent = "delete_event"
	Unknown     Intent = "unknown"
)

// Parse maps a raw model reply onto an Intent. Anything that is not exactly
// one of the known labels after trimming and lowercasing is Unknown.
func Parse(raw string) Intent {
	switch v := Intent(strings.ToLower(strings.TrimSpace(raw))); v {
	case ListEvents, CreateEvent, DeleteEvent:
		return v
	default:
		return Unknown
	}
}

func (i Intent) String() string {
	return string(i)
}
