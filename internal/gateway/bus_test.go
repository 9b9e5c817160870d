package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"calbot/internal/pipeline"
	"calbot/internal/transcribe"
)

// hub accepts one client, sends it frames and collects what it writes back.
func hub(t *testing.T, frames []string, got chan<- BusMessage) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		for {
			var m BusMessage
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			got <- m
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBus_Run(t *testing.T) {
	req := require.New(t)
	got := make(chan BusMessage, 4)
	srv := hub(t, []string{
		`{"from":"alice","to":"calbot","kind":"text","content":"What's on my calendar today?"}`,
		`not json`,
		`{"from":"bob","to":"calbot","kind":"voice","audio":"T2dnUwACAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=="}`,
	}, got)

	runner := &fakeRunner{reply: "No events found for today."}
	g, dir := newTestGateway(t, runner, &fakeTranscriber{result: transcribe.Result{Text: "agenda", Success: true}}, &fakeConverter{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus, err := DialBus(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	req.NoError(err)
	defer bus.Close()

	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx, g) }()

	replies := map[string]BusMessage{}
	for range 2 {
		select {
		case m := <-got:
			replies[m.To] = m
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for replies")
		}
	}

	req.Equal("calbot", replies["alice"].From)
	req.Equal("reply", replies["alice"].Kind)
	req.Equal("No events found for today.", replies["alice"].Content)
	req.Equal("Transcribed Text: agenda\nNo events found for today.", replies["bob"].Content)

	cancel()
	req.NoError(<-done)
	requireEmptyDir(t, dir)
}

// slowRunner blocks until release is closed and records whether its context
// was cancelled meanwhile.
type slowRunner struct {
	started  chan struct{}
	release  chan struct{}
	canceled atomic.Bool
}

func (r *slowRunner) Run(ctx context.Context, text string) pipeline.Outcome {
	close(r.started)
	<-r.release
	r.canceled.Store(ctx.Err() != nil)
	return pipeline.Outcome{State: pipeline.Replied, Reply: "Event created: https://calendar.example/e1"}
}

func TestBus_ShutdownFinishesInFlightRun(t *testing.T) {
	req := require.New(t)
	got := make(chan BusMessage, 1)
	srv := hub(t, []string{`{"from":"alice","kind":"text","content":"create a meeting"}`}, got)

	runner := &slowRunner{started: make(chan struct{}), release: make(chan struct{})}
	g, _ := newTestGateway(t, runner, &fakeTranscriber{}, &fakeConverter{})

	ctx, cancel := context.WithCancel(context.Background())
	bus, err := DialBus(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	req.NoError(err)
	defer bus.Close()

	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx, g) }()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started")
	}
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned before the in-flight message was answered")
	case <-time.After(50 * time.Millisecond):
	}
	close(runner.release)

	req.NoError(<-done)
	req.False(runner.canceled.Load())
	select {
	case m := <-got:
		req.Equal("alice", m.To)
		req.Equal("Event created: https://calendar.example/e1", m.Content)
	case <-time.After(5 * time.Second):
		t.Fatal("reply lost on shutdown")
	}
}

func TestBusInbound(t *testing.T) {
	text := busInbound(&BusMessage{From: "a", Content: "hi"})
	require.Equal(t, KindText, text.Kind)
	require.Equal(t, "hi", text.Text)

	voice := busInbound(&BusMessage{From: "a", Audio: []byte("OggS")})
	require.Equal(t, KindVoice, voice.Kind)
	require.Equal(t, "a", voice.SenderID)
}
