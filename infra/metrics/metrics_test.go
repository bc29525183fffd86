package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitted(t *testing.T) {
	m := New()
	m.Submitted("rollup", "BatchUpdate", nil)
	m.Submitted("rollup", "BatchUpdate", nil)
	m.Submitted("base", "CreateMarket", errors.New("x"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Submissions.WithLabelValues("rollup", "BatchUpdate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("base", "CreateMarket", "error")))
}

func TestObserveSide(t *testing.T) {
	m := New()
	m.ObserveSide("bids", SideStats{Visited: 5, Live: 3, Faults: 2, BestPrice: 0.15, HasBest: true})
	m.ObserveSide("bids", SideStats{Visited: 4, Live: 1, Faults: 1, BestPrice: 0.1, HasBest: true})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.NodesVisited.WithLabelValues("bids")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LiveOrders.WithLabelValues("bids")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TraversalFaults.WithLabelValues("bids")))
	assert.Equal(t, 0.1, testutil.ToFloat64(m.BestPrice.WithLabelValues("bids")))

	m.ObserveSide("bids", SideStats{})
	assert.Equal(t, 0, testutil.CollectAndCount(m.BestPrice))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Submitted("base", "Deposit", nil)
	m.ObserveSide("asks", SideStats{Visited: 1})
	m.ObserveFetch(0.1)
	m.PublishResult(true)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.PublishResult(true)
	m.ObserveFetch(0.2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `manifest_events_published_total{result="ok"} 1`)
	assert.Contains(t, string(body), "manifest_market_fetch_seconds_count 1")
}
