package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fakeCalendar mimics the subset of the Calendar v3 REST surface the adapter
// uses. Listing matches on overlap like the real service and keeps insertion
// order, so the adapter has to filter and sort on its own.
type fakeCalendar struct {
	mu      sync.Mutex
	events  []*gcal.Event
	nextID  int
	lists   int
	authHdr string
}

func (f *fakeCalendar) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lists++
		f.authHdr = r.Header.Get("Authorization")

		q := r.URL.Query()
		require.Equal(t, "true", q.Get("singleEvents"))
		require.Equal(t, "startTime", q.Get("orderBy"))
		from, err := time.Parse(time.RFC3339, q.Get("timeMin"))
		require.NoError(t, err)
		to, err := time.Parse(time.RFC3339, q.Get("timeMax"))
		require.NoError(t, err)

		items := []*gcal.Event{}
		for _, e := range f.events {
			start, _, _ := parseWhen(e.Start)
			end, _, _ := parseWhen(e.End)
			if end.After(from) && start.Before(to) {
				items = append(items, e)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"kind": "calendar#events", "items": items})
	})
	mux.HandleFunc("POST /calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		var e gcal.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		f.nextID++
		e.Id = fmt.Sprintf("evt%d", f.nextID)
		e.HtmlLink = "https://calendar.example/event?eid=" + e.Id
		f.events = append(f.events, &e)
		writeJSON(w, http.StatusOK, e)
	})
	mux.HandleFunc("DELETE /calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		id := r.PathValue("id")
		for i, e := range f.events {
			if e.Id == id {
				f.events = append(f.events[:i], f.events[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": 404, "message": "Not Found"},
		})
	})
	return mux
}

func (f *fakeCalendar) add(id, summary string, start, end time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, &gcal.Event{
		Id:      id,
		Summary: summary,
		Start:   &gcal.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type staticConnector struct {
	svc *gcal.Service
	err error
}

func (c staticConnector) Service(context.Context) (*gcal.Service, error) {
	return c.svc, c.err
}

func newFakeAdapter(t *testing.T, now time.Time) (*Adapter, *fakeCalendar) {
	t.Helper()
	fake := &fakeCalendar{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	svc, err := gcal.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"),
	)
	require.NoError(t, err)

	a := NewAdapter(staticConnector{svc: svc}, "")
	a.now = func() time.Time { return now }
	return a, fake
}
