// metrics/metrics.go - Prometheus collectors
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	answersSubmitted    *prometheus.CounterVec
	xpAwarded           prometheus.Counter
	achievementsGranted *prometheus.CounterVec
	lessonsCompleted    prometheus.Counter
	requestDuration     *prometheus.HistogramVec
	wsConnections       prometheus.Gauge
}

// New registers every collector on its own registry, so tests can build as
// many as they like.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		answersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyhub",
			Name:      "answers_submitted_total",
			Help:      "Answer submissions by correctness.",
		}, []string{"correct"}),
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studyhub",
			Name:      "xp_awarded_total",
			Help:      "XP credited to learners, lesson rewards and achievement bonuses.",
		}),
		achievementsGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studyhub",
			Name:      "achievements_granted_total",
			Help:      "Achievements granted by type.",
		}, []string{"type"}),
		lessonsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studyhub",
			Name:      "lessons_completed_total",
			Help:      "Lessons that crossed their mastery threshold.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studyhub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "studyhub",
			Name:      "websocket_connections",
			Help:      "Open realtime connections.",
		}),
	}

	m.Registry.MustRegister(
		m.answersSubmitted,
		m.xpAwarded,
		m.achievementsGranted,
		m.lessonsCompleted,
		m.requestDuration,
		m.wsConnections,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) AnswerSubmitted(correct bool) {
	m.answersSubmitted.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func (m *Metrics) XPAwarded(amount int) {
	if amount > 0 {
		m.xpAwarded.Add(float64(amount))
	}
}

func (m *Metrics) AchievementGranted(achievementType string) {
	m.achievementsGranted.WithLabelValues(achievementType).Inc()
}

func (m *Metrics) LessonCompleted() {
	m.lessonsCompleted.Inc()
}

func (m *Metrics) ConnectionOpened() {
	m.wsConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	m.wsConnections.Dec()
}

// Middleware records latency per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.requestDuration.
			WithLabelValues(c.Method(), route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}
