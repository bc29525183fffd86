package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "manifest"

// Metrics groups every collector the client exports.
type Metrics struct {
	reg *prometheus.Registry

	Submissions     *prometheus.CounterVec
	TraversalFaults *prometheus.CounterVec
	NodesVisited    *prometheus.GaugeVec
	LiveOrders      *prometheus.GaugeVec
	BestPrice       *prometheus.GaugeVec
	FetchDuration   prometheus.Histogram
	Published       *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Transactions sent, by ledger, instruction kind and outcome.",
		}, []string{"ledger", "kind", "outcome"}),
		TraversalFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traversal_faults_total",
			Help:      "Order tree nodes skipped while decoding a book.",
		}, []string{"side"}),
		NodesVisited: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_nodes_visited",
			Help:      "Tree nodes decoded in the last book read.",
		}, []string{"side"}),
		LiveOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_live_orders",
			Help:      "Live orders recorded in the last book read.",
		}, []string{"side"}),
		BestPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_best_price",
			Help:      "Best price in quote atoms per base atom.",
		}, []string{"side"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "market_fetch_seconds",
			Help:      "Latency of fetching the market account.",
			Buckets:   prometheus.DefBuckets,
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Outbox events handed to the broker, by result.",
		}, []string{"result"}),
	}
	m.reg.MustRegister(
		m.Submissions,
		m.TraversalFaults,
		m.NodesVisited,
		m.LiveOrders,
		m.BestPrice,
		m.FetchDuration,
		m.Published,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Nop-safe helpers: a nil *Metrics records nothing.

func (m *Metrics) Submitted(ledger, kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Submissions.WithLabelValues(ledger, kind, outcome).Inc()
}

// SideStats is what one book side reports after a read.
type SideStats struct {
	Visited   int
	Live      int
	Faults    int
	BestPrice float64
	HasBest   bool
}

func (m *Metrics) ObserveSide(side string, s SideStats) {
	if m == nil {
		return
	}
	m.NodesVisited.WithLabelValues(side).Set(float64(s.Visited))
	m.LiveOrders.WithLabelValues(side).Set(float64(s.Live))
	if s.Faults > 0 {
		m.TraversalFaults.WithLabelValues(side).Add(float64(s.Faults))
	}
	if s.HasBest {
		m.BestPrice.WithLabelValues(side).Set(s.BestPrice)
	} else {
		m.BestPrice.DeleteLabelValues(side)
	}
}

func (m *Metrics) ObserveFetch(seconds float64) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(seconds)
}

func (m *Metrics) PublishResult(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Published.WithLabelValues("ok").Inc()
		return
	}
	m.Published.WithLabelValues("error").Inc()
}
