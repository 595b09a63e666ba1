// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "threads"

// Metrics owns a registry and every collector registered in it. Each process
// creates exactly one.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	graphqlOperations *prometheus.CounterVec
	graphqlDuration   *prometheus.HistogramVec

	subscribers      prometheus.Gauge
	eventsPublished  *prometheus.CounterVec
	eventsDelivered  prometheus.Counter
	eventsDropped    prometheus.Counter
	wsConnections    prometheus.Gauge
	rateLimited      *prometheus.CounterVec
	notificationsOut *prometheus.CounterVec
}

// New registers all collectors for the named service.
func New(service string) *Metrics {
	labels := prometheus.Labels{"service": service}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "inflight_requests",
			Help: "Current number of in-flight HTTP requests.", ConstLabels: labels,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total number of HTTP requests handled.", ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "Duration of HTTP requests.", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),
		graphqlOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "operations_total",
			Help: "GraphQL operations by type and outcome.", ConstLabels: labels,
		}, []string{"type", "outcome"}),
		graphqlDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "operation_duration_seconds",
			Help: "Duration of GraphQL queries and mutations.", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"type"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "subscribers",
			Help: "Live subscription handles in the topic registry.", ConstLabels: labels,
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "events_published_total",
			Help: "Events published by topic family.", ConstLabels: labels,
		}, []string{"family"}),
		eventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "events_delivered_total",
			Help: "Events handed to subscriber buffers.", ConstLabels: labels,
		}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "pubsub", Name: "events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full.", ConstLabels: labels,
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "ws", Name: "connections",
			Help: "Open GraphQL WebSocket connections.", ConstLabels: labels,
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ratelimit", Name: "rejected_total",
			Help: "Requests rejected by a rate limit tier.", ConstLabels: labels,
		}, []string{"tier"}),
		notificationsOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notifications", Name: "created_total",
			Help: "Notifications created by type.", ConstLabels: labels,
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.graphqlOperations, m.graphqlDuration,
		m.subscribers, m.eventsPublished, m.eventsDelivered, m.eventsDropped,
		m.wsConnections, m.rateLimited, m.notificationsOut,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncrementInFlight and DecrementInFlight bracket one HTTP request.
func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }

func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one completed request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGraphQL records one executed operation.
func (m *Metrics) RecordGraphQL(opType string, failed bool, duration time.Duration) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.graphqlOperations.WithLabelValues(opType, outcome).Inc()
	if opType != "subscription" {
		m.graphqlDuration.WithLabelValues(opType).Observe(duration.Seconds())
	}
}

// SetSubscribers reports the registry's live handle count.
func (m *Metrics) SetSubscribers(n int) { m.subscribers.Set(float64(n)) }

// EventPublished counts a publish under the topic's family, so that per-user
// topic names do not explode label cardinality.
func (m *Metrics) EventPublished(topic string) {
	m.eventsPublished.WithLabelValues(TopicFamily(topic)).Inc()
}

func (m *Metrics) EventDelivered() { m.eventsDelivered.Inc() }

func (m *Metrics) EventDropped() { m.eventsDropped.Inc() }

func (m *Metrics) WSConnected() { m.wsConnections.Inc() }

func (m *Metrics) WSDisconnected() { m.wsConnections.Dec() }

func (m *Metrics) RateLimited(tier string) { m.rateLimited.WithLabelValues(tier).Inc() }

func (m *Metrics) NotificationCreated(kind string) { m.notificationsOut.WithLabelValues(kind).Inc() }

// TopicFamily strips a trailing identifier from a topic name:
// "MESSAGE_ADDED_abc" becomes "MESSAGE_ADDED".
func TopicFamily(topic string) string {
	for _, family := range topicFamilies {
		if topic == family || strings.HasPrefix(topic, family+"_") {
			return family
		}
	}
	return "OTHER"
}

var topicFamilies = []string{
	"USER_UPDATED", "USER_FOLLOWED", "USER_UNFOLLOWED",
	"POST_ADDED", "POST_UPDATED", "POST_DELETED",
	"COMMENT_ADDED", "COMMENT_UPDATED", "COMMENT_DELETED",
	"MESSAGE_ADDED", "MESSAGE_UPDATED", "CHAT_UPDATED",
	"NOTIFICATION_ADDED", "NOTIFICATION_UPDATED", "NOTIFICATION_DELETED",
}
