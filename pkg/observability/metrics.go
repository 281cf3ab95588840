package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/lattice/pkg/domain"
)

const namespace = "lattice"

// Metrics holds the Prometheus collectors fed by the lifecycle hooks.
type Metrics struct {
	ActionsDispatched *prometheus.CounterVec
	HandlerDuration   *prometheus.HistogramVec
	HandlerErrors     *prometheus.CounterVec
	Requests          *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	Unsolicited       *prometheus.CounterVec
	Replays           prometheus.Counter
	ReplayEffects     *prometheus.CounterVec
	ReplayDuration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered with reg by an earlier call are reused, so every
// session sharing a registerer feeds the same series. Any other registration
// failure panics, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActionsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "Actions delivered by the dispatcher, by kind.",
		}, []string{"kind"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Duration of handler invocations, by action kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Handler invocations that returned an error or panicked, by action kind.",
		}, []string{"kind"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completed requests, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request to completion, by kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Unsolicited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unsolicited_responses_total",
			Help:      "Responses that matched no pending request, by kind.",
		}, []string{"kind"}),
		Replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_replays_total",
			Help:      "Feedback replays run.",
		}),
		ReplayEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_effects_total",
			Help:      "Feedback effects processed during replay, by result.",
		}, []string{"result"}),
		ReplayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feedback_replay_duration_seconds",
			Help:      "Duration of feedback replays.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	m.ActionsDispatched = register(reg, m.ActionsDispatched)
	m.HandlerDuration = register(reg, m.HandlerDuration)
	m.HandlerErrors = register(reg, m.HandlerErrors)
	m.Requests = register(reg, m.Requests)
	m.RequestDuration = register(reg, m.RequestDuration)
	m.Unsolicited = register(reg, m.Unsolicited)
	m.Replays = register(reg, m.Replays)
	m.ReplayEffects = register(reg, m.ReplayEffects)
	m.ReplayDuration = register(reg, m.ReplayDuration)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(ctx context.Context, e *domain.DispatchEvent) {
			m.ActionsDispatched.WithLabelValues(e.Kind).Inc()
		},
		OnHandlerDone: func(ctx context.Context, e *domain.HandlerEvent) {
			m.HandlerDuration.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
			if e.Err != nil {
				m.HandlerErrors.WithLabelValues(e.Kind).Inc()
			}
		},
		OnRequestDone: func(ctx context.Context, e *domain.RequestEvent) {
			m.Requests.WithLabelValues(e.Kind, string(e.Outcome)).Inc()
			m.RequestDuration.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
		},
		OnUnsolicited: func(ctx context.Context, resp domain.ResponseAction) {
			m.Unsolicited.WithLabelValues(resp.Kind()).Inc()
		},
		OnReplay: func(ctx context.Context, e *domain.ReplayEvent) {
			m.Replays.Inc()
			m.ReplayEffects.WithLabelValues("applied").Add(float64(e.Effects))
			m.ReplayEffects.WithLabelValues("skipped").Add(float64(e.Skipped))
			m.ReplayEffects.WithLabelValues("failed").Add(float64(e.Failed))
			m.ReplayDuration.Observe(e.Duration.Seconds())
		},
	}
}
