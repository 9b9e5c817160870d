package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"calbot/internal/calendar"
	"calbot/internal/intent"
	"calbot/mocks"
)

var now = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, *mocks.MockClassifier, *mocks.MockCalendar) {
	ctrl := gomock.NewController(t)
	classifier := mocks.NewMockClassifier(ctrl)
	cal := mocks.NewMockCalendar(ctrl)
	p := New(classifier, cal, cfg)
	p.now = func() time.Time { return now }
	return p, classifier, cal
}

func TestPipeline_ListNoEvents(t *testing.T) {
	req := require.New(t)
	p, classifier, cal := newTestPipeline(t, Config{})
	ctx := context.Background()

	classifier.EXPECT().Classify(gomock.Any(), "What's on my calendar today?").Return(intent.ListEvents, nil)
	cal.EXPECT().ListToday(gomock.Any()).Return(nil, nil)

	out := p.Run(ctx, "What's on my calendar today?")

	req.Equal(Replied, out.State)
	req.Equal(intent.ListEvents, out.Intent)
	req.Equal("No events found for today.", out.Reply)
	req.NoError(out.Err)
	req.NotEmpty(out.RunID)
}

func TestPipeline_ListEvents(t *testing.T) {
	p, classifier, cal := newTestPipeline(t, Config{})

	classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.ListEvents, nil)
	cal.EXPECT().ListToday(gomock.Any()).Return([]calendar.Event{
		{ID: "a", Summary: "Standup", Start: now.Add(time.Hour)},
		{ID: "b", Summary: "Holiday", Start: time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), AllDay: true},
	}, nil)

	out := p.Run(context.Background(), "agenda")

	require.Equal(t, Replied, out.State)
	require.Equal(t, "2026-10-17T09:00:00Z - Standup\n2026-10-18 - Holiday", out.Reply)
}

func TestPipeline_CreateUsesPlaceholders(t *testing.T) {
	req := require.New(t)
	p, classifier, cal := newTestPipeline(t, Config{})

	classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.CreateEvent, nil)
	cal.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, r calendar.CreateRequest) (calendar.Event, error) {
			req.Equal("Meeting with Team", r.Summary)
			req.Equal(now.Add(time.Hour), r.Start)
			req.Equal(now.Add(2*time.Hour), r.End)
			req.Equal([]string{"guest1@example.com", "guest2@example.com"}, r.Attendees)
			return calendar.Event{ID: "new"}, nil
		}).Times(1)

	out := p.Run(context.Background(), "book a meeting with the team tomorrow")

	req.Equal(Replied, out.State)
	req.Equal("Event created successfully.", out.Reply)
}

func TestPipeline_DeleteUsesPlaceholderID(t *testing.T) {
	p, classifier, cal := newTestPipeline(t, Config{Placeholders: Placeholders{EventID: "evt-42", Summary: "x"}})

	classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.DeleteEvent, nil)
	cal.EXPECT().Delete(gomock.Any(), "evt-42").Return(nil).Times(1)

	out := p.Run(context.Background(), "cancel my dentist appointment")

	require.Equal(t, Replied, out.State)
	require.Equal(t, "Event deleted successfully.", out.Reply)
}

func TestPipeline_UnknownSkipsCalendar(t *testing.T) {
	p, classifier, _ := newTestPipeline(t, Config{})

	// No calendar expectations: any call fails the test.
	classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.Unknown, nil)

	out := p.Run(context.Background(), "Could not understand audio")

	require.Equal(t, Replied, out.State)
	require.Equal(t, intent.Unknown, out.Intent)
	require.Equal(t, "Unknown intent or action not supported.", out.Reply)
}

func TestPipeline_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		description string
		setup       func(c *mocks.MockClassifier, cal *mocks.MockCalendar)
		wantIntent  intent.Intent
	}{
		{
			"Should fail when the classifier is down",
			func(c *mocks.MockClassifier, cal *mocks.MockCalendar) {
				c.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.Unknown, boom)
			},
			intent.Unknown,
		},
		{
			"Should fail when listing fails",
			func(c *mocks.MockClassifier, cal *mocks.MockCalendar) {
				c.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.ListEvents, nil)
				cal.EXPECT().ListToday(gomock.Any()).Return(nil, boom)
			},
			intent.ListEvents,
		},
		{
			"Should fail when create fails",
			func(c *mocks.MockClassifier, cal *mocks.MockCalendar) {
				c.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.CreateEvent, nil)
				cal.EXPECT().Create(gomock.Any(), gomock.Any()).Return(calendar.Event{}, boom).Times(1)
			},
			intent.CreateEvent,
		},
		{
			"Should fail when the placeholder event does not exist",
			func(c *mocks.MockClassifier, cal *mocks.MockCalendar) {
				c.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.DeleteEvent, nil)
				cal.EXPECT().Delete(gomock.Any(), "your_event_id").Return(calendar.ErrNotFound).Times(1)
			},
			intent.DeleteEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			p, classifier, cal := newTestPipeline(t, Config{})
			tt.setup(classifier, cal)

			out := p.Run(context.Background(), "anything")

			require.Equal(t, Errored, out.State)
			require.Equal(t, tt.wantIntent, out.Intent)
			require.Equal(t, "An error occurred while processing your request.", out.Reply)
			require.Error(t, out.Err)
		})
	}
}

func TestPipeline_Timeout(t *testing.T) {
	p, classifier, cal := newTestPipeline(t, Config{Timeout: 20 * time.Millisecond})

	classifier.EXPECT().Classify(gomock.Any(), gomock.Any()).Return(intent.ListEvents, nil)
	cal.EXPECT().ListToday(gomock.Any()).DoAndReturn(func(ctx context.Context) ([]calendar.Event, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	out := p.Run(context.Background(), "agenda")

	require.Equal(t, Errored, out.State)
	require.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "replied", Replied.String())
	require.Equal(t, "errored", Errored.String())
	require.Equal(t, "state(42)", State(42).String())
}
