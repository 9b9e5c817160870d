package calendar

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

const (
	DefaultCalendarID = "primary"
	window            = 24 * time.Hour
)

var ErrNotFound = errors.New("event not found")

// Connector hands out an authenticated calendar service. It is called once
// per operation.
type Connector interface {
	Service(ctx context.Context) (*gcal.Service, error)
}

type Adapter struct {
	conn       Connector
	calendarID string
	validate   *validator.Validate
	now        func() time.Time
}

func NewAdapter(conn Connector, calendarID string) *Adapter {
	if calendarID == "" {
		calendarID = DefaultCalendarID
	}
	return &Adapter{
		conn:       conn,
		calendarID: calendarID,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// ListToday returns single instances starting in [now, now+24h) UTC,
// ordered by start time.
func (a *Adapter) ListToday(ctx context.Context) ([]Event, error) {
	svc, err := a.conn.Service(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect calendar: %w", err)
	}

	from := a.now().UTC()
	to := from.Add(window)

	var raw []*gcal.Event
	err = svc.Events.List(a.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Pages(ctx, func(page *gcal.Events) error {
			raw = append(raw, page.Items...)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]Event, 0, len(raw))
	for _, item := range raw {
		e, err := fromAPI(item)
		if err != nil {
			log.Warn("Skipping unparsable event", "id", item.Id, "err", err)
			continue
		}
		events = append(events, e)
	}

	// The API matches on overlap, so events already underway come back too.
	events = lo.Filter(events, func(e Event, _ int) bool {
		return !e.Start.Before(from) && e.Start.Before(to)
	})
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	log.Debug("Listed events", "count", len(events))
	return events, nil
}

func (a *Adapter) Create(ctx context.Context, req CreateRequest) (Event, error) {
	if err := a.validate.Struct(req); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}

	svc, err := a.conn.Service(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("connect calendar: %w", err)
	}

	created, err := svc.Events.Insert(a.calendarID, req.body()).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	e, err := fromAPI(created)
	if err != nil {
		return Event{}, err
	}

	log.Info("Event created", "id", e.ID, "link", e.HTMLLink)
	return e, nil
}

func (a *Adapter) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("delete event: %w", ErrNotFound)
	}

	svc, err := a.conn.Service(ctx)
	if err != nil {
		return fmt.Errorf("connect calendar: %w", err)
	}

	if err := svc.Events.Delete(a.calendarID, eventID).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("delete event %s: %w", eventID, ErrNotFound)
		}
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}

	log.Info("Event deleted", "id", eventID)
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
}
