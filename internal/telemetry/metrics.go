package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
)

const namespace = "quizdesk"

type Metrics struct {
	registrations prometheus.Counter
	logins        prometheus.Counter
	attempts      *prometheus.CounterVec
	actions       *prometheus.CounterVec
	actionLatency *prometheus.HistogramVec
	sessions      prometheus.Gauge
}

// NewMetrics registers the collectors on reg and counts domain events published on eb.
func NewMetrics(reg prometheus.Registerer, eb *event.Bus) *Metrics {
	m := &Metrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_registered_total",
			Help:      "Number of accounts created.",
		}),
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Number of successful logins.",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Number of submitted answers by topic and result.",
		}, []string{"topic", "correct"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Number of UI actions by type and result code.",
		}, []string{"type", "code"}),
		actionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Time to run a UI action, queueing on the session loop included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open client sessions.",
		}),
	}

	reg.MustRegister(m.registrations, m.logins, m.attempts, m.actions, m.actionLatency, m.sessions)

	eb.Subscribe(domain.EventNameUserRegistered, func(context.Context, event.Event) error {
		m.registrations.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameUserLoggedIn, func(context.Context, event.Event) error {
		m.logins.Inc()
		return nil
	})
	eb.Subscribe(domain.EventNameAttemptRecorded, func(_ context.Context, e event.Event) error {
		a := e.(domain.EventAttemptRecorded)
		m.attempts.WithLabelValues(a.Title, strconv.FormatBool(a.Attempt.IsCorrect)).Inc()
		return nil
	})

	return m
}

// ObserveAction records one dispatched action and its outcome.
func (m *Metrics) ObserveAction(actionType string, d time.Duration, err error) {
	code := codes.OK
	if err != nil {
		code = codes.Code(errors.Convert(err).Code)
	}

	m.actions.WithLabelValues(actionType, code.String()).Inc()
	m.actionLatency.WithLabelValues(actionType).Observe(d.Seconds())
}

func (m *Metrics) SessionOpened() { m.sessions.Inc() }

func (m *Metrics) SessionClosed() { m.sessions.Dec() }
