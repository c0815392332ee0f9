// Package metrics exposes Prometheus counters for the auth core and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services depend on.
type Recorder interface {
	RecordAuthEvent(operation, outcome string)
	RecordTokenIssued(kind string)
	RecordTokenRevoked(reason string)
	RecordRevocationsPurged(count int64)
	RecordHTTPRequest(method, route string, status int)
}

type Collector struct {
	authEvents   *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
	revoked      *prometheus.CounterVec
	purged       prometheus.Counter
	httpRequests *prometheus.CounterVec
}

// NewCollector registers the metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfmark_auth_events_total",
			Help: "Session operations by outcome.",
		}, []string{"operation", "outcome"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfmark_tokens_issued_total",
			Help: "Signed tokens issued by kind.",
		}, []string{"kind"}),
		revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfmark_tokens_revoked_total",
			Help: "Token ids added to the blocklist.",
		}, []string{"reason"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelfmark_revocations_purged_total",
			Help: "Blocklist entries removed after natural token expiry.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelfmark_http_requests_total",
			Help: "HTTP responses by route and status.",
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(c.authEvents, c.tokensIssued, c.revoked, c.purged, c.httpRequests)
	return c
}

func (c *Collector) RecordAuthEvent(operation, outcome string) {
	c.authEvents.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordTokenIssued(kind string) {
	c.tokensIssued.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordTokenRevoked(reason string) {
	c.revoked.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordRevocationsPurged(count int64) {
	c.purged.Add(float64(count))
}

func (c *Collector) RecordHTTPRequest(method, route string, status int) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAuthEvent(string, string)        {}
func (Nop) RecordTokenIssued(string)              {}
func (Nop) RecordTokenRevoked(string)             {}
func (Nop) RecordRevocationsPurged(int64)         {}
func (Nop) RecordHTTPRequest(string, string, int) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
