package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/xmlstream/internal/progress"
)

// PrometheusSink exports parse-session metrics via Prometheus.
type PrometheusSink struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted *prometheus.CounterVec
	sessionsRunning   prometheus.Gauge
	sessionRuntime    *prometheus.HistogramVec

	chunks      prometheus.Counter
	bytes       prometheus.Counter
	events      prometheus.Counter
	chunkEvents prometheus.Histogram

	tracker *sessionTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xmlstream_sessions_started_total",
			Help: "Total parse sessions that have started.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xmlstream_sessions_completed_total",
			Help: "Total parse sessions completed partitioned by result.",
		}, []string{"result"}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xmlstream_sessions_running",
			Help: "Current number of running parse sessions.",
		}),
		sessionRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xmlstream_session_runtime_seconds",
			Help:    "Wall time per completed parse session.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"result"}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xmlstream_chunks_total",
			Help: "Chunks read and tokenized.",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xmlstream_bytes_total",
			Help: "Decoded bytes fed to the tokenizer.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xmlstream_events_total",
			Help: "Structural events produced from chunks.",
		}),
		chunkEvents: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "xmlstream_chunk_events",
			Help:    "Events produced per chunk (batch size).",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		tracker: newSessionTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.sessionsStarted,
		s.sessionsCompleted,
		s.sessionsRunning,
		s.sessionRuntime,
		s.chunks,
		s.bytes,
		s.events,
		s.chunkEvents,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. It is safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageSessionStart:
			s.sessionsStarted.Inc()
			if s.tracker.start(evt.SessionID) {
				s.sessionsRunning.Inc()
			}
		case progress.StageChunk:
			s.chunks.Inc()
			s.bytes.Add(float64(evt.Bytes))
			s.events.Add(float64(evt.Events))
			s.chunkEvents.Observe(float64(evt.Events))
		case progress.StageSessionDone:
			s.finish(evt, "success")
		case progress.StageSessionError:
			s.finish(evt, string(evt.ErrorClass))
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt progress.Event, result string) {
	s.sessionsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.sessionRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.SessionID) {
		s.sessionsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type sessionTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{running: make(map[[16]byte]struct{})}
}

func (t *sessionTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *sessionTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
