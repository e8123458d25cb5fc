// Package observability exposes relay metrics to Prometheus.
package observability

import (
	"chat-relay/contract"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ contract.IMetrics = (*Collector)(nil)

// Collector is the Prometheus implementation of contract.IMetrics.
type Collector struct {
	connections     prometheus.Gauge
	onlineUsers     prometheus.Gauge
	commands        *prometheus.CounterVec
	ignored         *prometheus.CounterVec
	messagesRouted  prometheus.Counter
	eventsDelivered *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	queueLength     *prometheus.GaugeVec
	queueCapacity   *prometheus.GaugeVec
}

// NewCollector registers every relay metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Open transport connections",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_online_users",
			Help: "Users with a live authenticated session",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_commands_total",
			Help: "Core commands applied, by command",
		}, []string{"command"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_commands_ignored_total",
			Help: "Core commands dropped without effect, by command and reason",
		}, []string{"command", "reason"}),
		messagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_routed_total",
			Help: "Messages appended to the log and fanned out",
		}),
		eventsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_delivered_total",
			Help: "Events accepted by a connection sink, by event",
		}, []string{"event"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Events a connection sink refused, by event",
		}, []string{"event"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_status_total",
			Help: "Account API responses, by status code",
		}, []string{"status_code"}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_queue_length",
			Help: "Items waiting in an internal queue, sampled",
		}, []string{"queue"}),
		queueCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_queue_capacity",
			Help: "Capacity of an internal queue",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		c.connections,
		c.onlineUsers,
		c.commands,
		c.ignored,
		c.messagesRouted,
		c.eventsDelivered,
		c.eventsDropped,
		c.httpStatus,
		c.queueLength,
		c.queueCapacity,
	)
	return c
}

func (c *Collector) ConnectionOpened() { c.connections.Inc() }

func (c *Collector) ConnectionClosed() { c.connections.Dec() }

func (c *Collector) PresenceChanged(online bool) {
	if online {
		c.onlineUsers.Inc()
		return
	}
	c.onlineUsers.Dec()
}

func (c *Collector) CommandHandled(name string) {
	c.commands.WithLabelValues(name).Inc()
}

func (c *Collector) CommandIgnored(name string, reason string) {
	c.ignored.WithLabelValues(name, reason).Inc()
}

func (c *Collector) MessageRouted() { c.messagesRouted.Inc() }

func (c *Collector) EventDelivered(name string) {
	c.eventsDelivered.WithLabelValues(name).Inc()
}

func (c *Collector) EventDropped(name string) {
	c.eventsDropped.WithLabelValues(name).Inc()
}

func (c *Collector) QueueSampled(name string, length, capacity int) {
	c.queueLength.WithLabelValues(name).Set(float64(length))
	c.queueCapacity.WithLabelValues(name).Set(float64(capacity))
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPStatus counts one Account API response.
func (c *Collector) RecordHTTPStatus(code int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(code)).Inc()
}
