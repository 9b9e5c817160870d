package pipeline

//go:generate mockgen -source=pipeline.go -destination=../../mocks/mock_pipeline.go -package=mocks

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"calbot/internal/calendar"
	"calbot/internal/intent"
	"calbot/internal/metrics"
)

const (
	ReplyNoEvents    = "No events found for today."
	ReplyCreated     = "Event created successfully."
	ReplyDeleted     = "Event deleted successfully."
	ReplyUnsupported = "Unknown intent or action not supported."
	ReplyFailure     = "An error occurred while processing your request."
)

type Classifier interface {
	Classify(ctx context.Context, text string) (intent.Intent, error)
}

type Calendar interface {
	ListToday(ctx context.Context) ([]calendar.Event, error)
	Create(ctx context.Context, req calendar.CreateRequest) (calendar.Event, error)
	Delete(ctx context.Context, eventID string) error
}

type State int

const (
	ReceivedText State = iota
	Classified
	Routed
	Executed
	Replied
	Errored
)

func (s State) String() string {
	switch s {
	case ReceivedText:
		return "received_text"
	case Classified:
		return "classified"
	case Routed:
		return "routed"
	case Executed:
		return "executed"
	case Replied:
		return "replied"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the tagged result of one run. State is Replied or Errored;
// Reply is always set.
type Outcome struct {
	RunID  string
	Intent intent.Intent
	State  State
	Reply  string
	Err    error
}

// Placeholders stand in for event details. Nothing is extracted from the
// user's text: create always books the same meeting and delete always
// targets the same ID.
type Placeholders struct {
	Summary   string
	StartIn   time.Duration
	Duration  time.Duration
	Attendees []string
	EventID   string
}

func DefaultPlaceholders() Placeholders {
	return Placeholders{
		Summary:   "Meeting with Team",
		StartIn:   time.Hour,
		Duration:  time.Hour,
		Attendees: []string{"guest1@example.com", "guest2@example.com"},
		EventID:   "your_event_id",
	}
}

type Config struct {
	Placeholders Placeholders
	Timeout      time.Duration // per adapter call, 0 = none
}

type handler func(ctx context.Context) (string, error)

type Pipeline struct {
	classifier Classifier
	cal        Calendar
	cfg        Config
	routes     map[intent.Intent]handler
	now        func() time.Time
}

func New(classifier Classifier, cal Calendar, cfg Config) *Pipeline {
	if cfg.Placeholders.Summary == "" && cfg.Placeholders.EventID == "" {
		cfg.Placeholders = DefaultPlaceholders()
	}
	p := &Pipeline{
		classifier: classifier,
		cal:        cal,
		cfg:        cfg,
		now:        time.Now,
	}
	p.routes = map[intent.Intent]handler{
		intent.ListEvents:  p.listEvents,
		intent.CreateEvent: p.createEvent,
		intent.DeleteEvent: p.deleteEvent,
	}
	return p
}

// Run takes text through classify, route, execute and reply. It never
// fails: adapter errors end in the Errored state with a generic reply.
func (p *Pipeline) Run(ctx context.Context, text string) Outcome {
	out := Outcome{RunID: uuid.NewString(), Intent: intent.Unknown, State: ReceivedText}
	logger := log.With("run", out.RunID)

	defer func() {
		metrics.PipelineRuns.WithLabelValues(out.Intent.String(), out.State.String()).Inc()
	}()

	var it intent.Intent
	err := p.call(ctx, "classifier", func(ctx context.Context) (err error) {
		it, err = p.classifier.Classify(ctx, text)
		return err
	})
	if err != nil {
		return p.fail(logger, out, err)
	}
	out.Intent = it
	out.State = Classified
	logger.Info("Classified", "intent", it)

	h, ok := p.routes[it]
	if !ok {
		out.State = Replied
		out.Reply = ReplyUnsupported
		return out
	}
	out.State = Routed

	var reply string
	err = p.call(ctx, "calendar", func(ctx context.Context) (err error) {
		reply, err = h(ctx)
		return err
	})
	if err != nil {
		return p.fail(logger, out, err)
	}
	out.State = Executed

	out.Reply = reply
	out.State = Replied
	logger.Debug("Replied", "intent", it)
	return out
}

func (p *Pipeline) fail(logger *log.Logger, out Outcome, err error) Outcome {
	logger.Error("Pipeline run failed", "state", out.State, "intent", out.Intent, "err", err)
	out.Err = err
	out.State = Errored
	out.Reply = ReplyFailure
	return out
}

func (p *Pipeline) call(ctx context.Context, adapter string, fn func(context.Context) error) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	metrics.ObserveCall(adapter, start, err)
	return err
}

func (p *Pipeline) listEvents(ctx context.Context) (string, error) {
	events, err := p.cal.ListToday(ctx)
	if err != nil {
		return "", err
	}
	return FormatListing(events), nil
}

func (p *Pipeline) createEvent(ctx context.Context) (string, error) {
	ph := p.cfg.Placeholders
	start := p.now().UTC().Add(ph.StartIn)
	_, err := p.cal.Create(ctx, calendar.CreateRequest{
		Summary:   ph.Summary,
		Start:     start,
		End:       start.Add(ph.Duration),
		Attendees: ph.Attendees,
	})
	if err != nil {
		return "", err
	}
	return ReplyCreated, nil
}

func (p *Pipeline) deleteEvent(ctx context.Context) (string, error) {
	if err := p.cal.Delete(ctx, p.cfg.Placeholders.EventID); err != nil {
		return "", err
	}
	return ReplyDeleted, nil
}

// FormatListing renders one "<start> - <summary>" line per event.
func FormatListing(events []calendar.Event) string {
	if len(events) == 0 {
		return ReplyNoEvents
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		start := e.Start.Format(time.RFC3339)
		if e.AllDay {
			start = e.Start.Format(time.DateOnly)
		}
		lines = append(lines, fmt.Sprintf("%s - %s", start, e.Summary))
	}
	return strings.Join(lines, "\n")
}
