package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Intent
	}{
		{"List exact", "list_events", ListEvents},
		{"Create exact", "create_event", CreateEvent},
		{"Delete exact", "delete_event", DeleteEvent},
		{"Unknown exact", "unknown", Unknown},
		{"Surrounding whitespace", "  list_events\n", ListEvents},
		{"Upper case", "CREATE_EVENT", CreateEvent},
		{"Mixed case and tabs", "\tDelete_Event ", DeleteEvent},
		{"Quoted label", "'list_events'", Unknown},
		{"Sentence around label", "The intent is list_events.", Unknown},
		{"Trailing period", "list_events.", Unknown},
		{"Plural mismatch", "list_event", Unknown},
		{"Empty", "", Unknown},
		{"Placeholder transcription", "Could not understand audio", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}
