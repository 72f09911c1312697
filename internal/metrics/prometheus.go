// Package metrics exposes the session status as Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/koscakluka/aida/core/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var states = []session.State{
	session.StateIdle,
	session.StateConnecting,
	session.StateListening,
	session.StateThinking,
	session.StateSpeaking,
	session.StateError,
	session.StateStopped,
}

type Metrics struct {
	registry *prometheus.Registry

	Transitions   *prometheus.CounterVec
	CurrentState  *prometheus.GaugeVec
	Utterances    prometheus.Counter
	Replies       prometheus.Counter
	Errors        prometheus.Counter
	ResponseDelay prometheus.Histogram

	mu            sync.Mutex
	thinkingSince time.Time
}

// New registers the session metrics on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aida_session_transitions_total",
			Help: "Total number of session state transitions by target state",
		}, []string{"state"}),
		CurrentState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aida_session_state",
			Help: "Current session state, 1 for the active state",
		}, []string{"state"}),
		Utterances: factory.NewCounter(prometheus.CounterOpts{
			Name: "aida_utterances_total",
			Help: "Total number of finished user utterances",
		}),
		Replies: factory.NewCounter(prometheus.CounterOpts{
			Name: "aida_replies_total",
			Help: "Total number of spoken replies",
		}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "aida_session_errors_total",
			Help: "Total number of turns that ended with an error",
		}),
		ResponseDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aida_response_delay_seconds",
			Help:    "Time from a finished utterance to the start of the spoken reply",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
	}
}

// Observe records a status reported by the session orchestrator.
func (m *Metrics) Observe(status session.Status) {
	m.Transitions.WithLabelValues(string(status.State)).Inc()
	for _, state := range states {
		value := 0.0
		if state == status.State {
			value = 1
		}
		m.CurrentState.WithLabelValues(string(state)).Set(value)
	}

	switch status.State {
	case session.StateThinking:
		m.Utterances.Inc()
		m.mu.Lock()
		m.thinkingSince = time.Now()
		m.mu.Unlock()
	case session.StateSpeaking:
		if status.Reply == "" {
			return
		}
		m.Replies.Inc()
		m.mu.Lock()
		since := m.thinkingSince
		m.thinkingSince = time.Time{}
		m.mu.Unlock()
		if !since.IsZero() {
			m.ResponseDelay.Observe(time.Since(since).Seconds())
		}
	case session.StateError:
		m.Errors.Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// MeterProvider returns an otel meter provider whose instruments are collected
// by the same registry as the session metrics.
func (m *Metrics) MeterProvider() (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(m.registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), nil
}
