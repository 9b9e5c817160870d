package metrics

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Messages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calbot_messages_total",
			Help: "Inbound messages by kind",
		},
		[]string{"kind"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calbot_pipeline_runs_total",
			Help: "Finished pipeline runs by intent and final state",
		},
		[]string{"intent", "state"},
	)

	AdapterCalls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "calbot_adapter_call_seconds",
			Help:    "Latency of calls to external services",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"adapter", "status"},
	)
)

// ObserveCall records the latency of one adapter call started at start.
func ObserveCall(adapter string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	AdapterCalls.WithLabelValues(adapter, status).Observe(time.Since(start).Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
