// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request-level and domain-level metrics.
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	registrations   prometheus.Counter
	logins          *prometheus.CounterVec
	tokensRevoked   prometheus.Counter
	passwordResets  prometheus.Counter
	tasksCreated    prometheus.Counter
	updateConflicts prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with the
// given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_http_requests_total",
			Help: "Total HTTP requests by method and status code",
		}, []string{"method", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskboard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_registrations_total",
			Help: "Total successful user registrations",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskboard_logins_total",
			Help: "Total successful logins by method",
		}, []string{"method"}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_tokens_revoked_total",
			Help: "Total access tokens revoked via logout",
		}),
		passwordResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_password_resets_total",
			Help: "Total completed password resets",
		}),
		tasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_tasks_created_total",
			Help: "Total tasks created",
		}),
		updateConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskboard_task_update_conflicts_total",
			Help: "Total task updates rejected due to concurrent modification",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.registrations,
		c.logins,
		c.tokensRevoked,
		c.passwordResets,
		c.tasksCreated,
		c.updateConflicts,
	)

	return c
}

// RecordHTTPRequest records one completed HTTP request.
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRegistration records a successful user registration.
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordLogin records a successful login. Method is "password" or the
// external provider name.
func (c *Collector) RecordLogin(method string) {
	c.logins.WithLabelValues(method).Inc()
}

// RecordTokenRevoked records a token revoked through logout.
func (c *Collector) RecordTokenRevoked() {
	c.tokensRevoked.Inc()
}

// RecordPasswordReset records a completed password reset.
func (c *Collector) RecordPasswordReset() {
	c.passwordResets.Inc()
}

// RecordTaskCreated records a created task.
func (c *Collector) RecordTaskCreated() {
	c.tasksCreated.Inc()
}

// RecordUpdateConflict records a task update rejected with a version
// conflict.
func (c *Collector) RecordUpdateConflict() {
	c.updateConflicts.Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
