package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	IdentifyRequests     *prometheus.CounterVec
	IdentifyDuration     prometheus.Histogram
	ContactsCreated      *prometheus.CounterVec
	ChainMerges          prometheus.Counter
	ContactsRelinked     prometheus.Counter
	TxRetries            prometheus.Counter
	EventPublishFailures prometheus.Counter
	HTTPRequestDuration  *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewWithRegistry registers metrics on reg. Tests pass a fresh prometheus.NewRegistry().
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IdentifyRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_identify_requests_total",
			Help: "Identify operations by outcome",
		}, []string{"outcome"}),
		IdentifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "linkage_identify_duration_seconds",
			Help:    "Time spent reconciling one identify request, including retries",
			Buckets: prometheus.DefBuckets,
		}),
		ContactsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linkage_contacts_created_total",
			Help: "Contacts inserted, by link precedence",
		}, []string{"link_precedence"}),
		ChainMerges: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkage_chain_merges_total",
			Help: "Identify operations that collapsed two or more chains",
		}),
		ContactsRelinked: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkage_contacts_relinked_total",
			Help: "Contacts demoted or re-pointed during chain merges",
		}),
		TxRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkage_tx_retries_total",
			Help: "Reconciliation transactions replayed after a serialization failure",
		}),
		EventPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "linkage_events_publish_failures_total",
			Help: "Link events that could not be published",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linkage_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		gatherer: gatherer,
	}
}

func (m *Metrics) ObserveIdentify(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.IdentifyRequests.WithLabelValues(outcome).Inc()
	m.IdentifyDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncrementContactsCreated(linkPrecedence string) {
	if m == nil {
		return
	}
	m.ContactsCreated.WithLabelValues(linkPrecedence).Inc()
}

func (m *Metrics) RecordMerge(relinked int64) {
	if m == nil {
		return
	}
	m.ChainMerges.Inc()
	m.ContactsRelinked.Add(float64(relinked))
}

func (m *Metrics) IncrementTxRetries() {
	if m == nil {
		return
	}
	m.TxRetries.Inc()
}

func (m *Metrics) IncrementEventPublishFailures() {
	if m == nil {
		return
	}
	m.EventPublishFailures.Inc()
}

func (m *Metrics) ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
