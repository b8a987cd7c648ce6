// Package metrics holds the Prometheus collectors for the command pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing, so components can be built without a registry in tests.
type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Classifications *prometheus.CounterVec
	Fallbacks       *prometheus.CounterVec
	Actions         *prometheus.CounterVec
	SpeechDropped   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nagato",
			Name:      "commands_total",
			Help:      "Command cycles processed, by dispatch path and outcome.",
		}, []string{"path", "outcome"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nagato",
			Name:      "command_duration_seconds",
			Help:      "Wall time of one command cycle, including OS automation waits.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"path"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nagato",
			Name:      "classifications_total",
			Help:      "Intents produced by the classifier.",
		}, []string{"intent"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nagato",
			Name:      "classification_fallbacks_total",
			Help:      "Classifications that degraded to conversation, by reason.",
		}, []string{"reason"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nagato",
			Name:      "actions_total",
			Help:      "Executed OS actions, by intent and outcome.",
		}, []string{"intent", "outcome"}),
		SpeechDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nagato",
			Name:      "speech_dropped_total",
			Help:      "Utterances dropped because the speech queue was full.",
		}),
	}
	reg.MustRegister(m.Commands, m.CommandDuration, m.Classifications, m.Fallbacks, m.Actions, m.SpeechDropped)
	return m
}

// ObserveCommand records one finished command cycle.
func (m *Metrics) ObserveCommand(path string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(path, outcome(ok)).Inc()
	m.CommandDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// ObserveClassification records the classifier's result.
func (m *Metrics) ObserveClassification(intent string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(intent).Inc()
}

// ObserveFallback records a degradation to conversation.
func (m *Metrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(reason).Inc()
}

// ObserveAction records one executed action.
func (m *Metrics) ObserveAction(intent string, ok bool) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(intent, outcome(ok)).Inc()
}

// SpeechDrop records a dropped utterance.
func (m *Metrics) SpeechDrop() {
	if m == nil {
		return
	}
	m.SpeechDropped.Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
