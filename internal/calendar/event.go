package calendar

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	gcal "google.golang.org/api/calendar/v3"
)

type Event struct {
	ID        string
	Summary   string
	Start     time.Time
	End       time.Time
	AllDay    bool
	Attendees []string
	HTMLLink  string
}

// CreateRequest is validated before anything is sent to the calendar.
type CreateRequest struct {
	Summary   string    `validate:"required"`
	Start     time.Time `validate:"required"`
	End       time.Time `validate:"required,gtfield=Start"`
	Attendees []string  `validate:"omitempty,dive,email"`
}

func (r CreateRequest) body() *gcal.Event {
	return &gcal.Event{
		Summary: r.Summary,
		Start:   &gcal.EventDateTime{DateTime: r.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:     &gcal.EventDateTime{DateTime: r.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Attendees: lo.Map(r.Attendees, func(email string, _ int) *gcal.EventAttendee {
			return &gcal.EventAttendee{Email: email}
		}),
		ForceSendFields: []string{"Attendees"},
	}
}

func fromAPI(e *gcal.Event) (Event, error) {
	start, allDay, err := parseWhen(e.Start)
	if err != nil {
		return Event{}, fmt.Errorf("event %s start: %w", e.Id, err)
	}
	end, _, err := parseWhen(e.End)
	if err != nil {
		return Event{}, fmt.Errorf("event %s end: %w", e.Id, err)
	}

	return Event{
		ID:      e.Id,
		Summary: e.Summary,
		Start:   start,
		End:     end,
		AllDay:  allDay,
		Attendees: lo.Map(e.Attendees, func(a *gcal.EventAttendee, _ int) string {
			return a.Email
		}),
		HTMLLink: e.HtmlLink,
	}, nil
}

// parseWhen reads either a timed dateTime or an all-day date.
func parseWhen(d *gcal.EventDateTime) (time.Time, bool, error) {
	switch {
	case d == nil:
		return time.Time{}, false, fmt.Errorf("missing")
	case d.DateTime != "":
		t, err := time.Parse(time.RFC3339, d.DateTime)
		return t.UTC(), false, err
	case d.Date != "":
		t, err := time.Parse(time.DateOnly, d.Date)
		return t, true, err
	default:
		return time.Time{}, false, fmt.Errorf("neither dateTime nor date set")
	}
}
