package rate_limiter

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LogSink writes every event as a structured log line.
type LogSink struct{}

func (LogSink) Emit(eventType string, data map[string]any) {
	attrs := make([]any, 0, 2+2*len(data))
	attrs = append(attrs, "event", eventType)
	for k, v := range data {
		attrs = append(attrs, k, v)
	}
	slog.Info("rate limit event", attrs...)
}

// MultiSink fans an event out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Emit(eventType string, data map[string]any) {
	for _, sink := range m {
		sink.Emit(eventType, data)
	}
}

// MetricsSink counts events per type in a prometheus counter.
type MetricsSink struct {
	events *prometheus.CounterVec
}

func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_events_total",
		Help: "Rate limit audit and alert events by type.",
	}, []string{"type"})
	reg.MustRegister(events)
	return &MetricsSink{events: events}
}

func (m *MetricsSink) Emit(eventType string, data map[string]any) {
	m.events.WithLabelValues(eventType).Inc()
}

type event struct {
	eventType string
	data      map[string]any
}

// AsyncSink decouples emission from delivery with a buffered channel so a
// slow downstream sink never stalls a rate limit decision. Events are
// dropped when the buffer is full.
type AsyncSink struct {
	next    EventSink
	ch      chan event
	done    chan struct{}
	closing sync.Once
}

func NewAsyncSink(next EventSink, buffer int) *AsyncSink {
	s := &AsyncSink{
		next: next,
		ch:   make(chan event, buffer),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for e := range s.ch {
		s.next.Emit(e.eventType, e.data)
	}
}

func (s *AsyncSink) Emit(eventType string, data map[string]any) {
	select {
	case s.ch <- event{eventType: eventType, data: data}:
	default:
		slog.Warn("event buffer full, dropping rate limit event", "event", eventType)
	}
}

// Close stops accepting events and waits for the buffered ones to drain.
func (s *AsyncSink) Close() {
	s.closing.Do(func() {
		close(s.ch)
	})
	<-s.done
}
