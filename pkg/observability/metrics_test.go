package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasyap/okx-corr/pkg/market"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("a")
		NewMetrics("a")
	})
}

func TestMetrics_Observers(t *testing.T) {
	m := NewMetrics("test")

	m.TradeAccepted("BTC-USDT")
	m.TradeAccepted("BTC-USDT")
	m.TradeDropped(market.DropWindowFull)
	m.CycleCompleted(8, 3)
	m.CorrelationRound(2 * time.Millisecond)
	m.BestPeer("BTC-USDT", market.BestPeer{Symbol: "ETH-USDT", Correlation: 0.75})
	m.BestPeer("ADA-USDT", market.BestPeer{Symbol: market.NoPeer, Correlation: market.NoCorrelation})
	m.SetConnected(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TradesIngested.WithLabelValues("BTC-USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesDropped.WithLabelValues(market.DropWindowFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.EligibleInstruments))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.BestPeerCorrelation.WithLabelValues("BTC-USDT")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BestPeerCorrelation))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WSConnected))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.ObserveDrift(1200 * time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "test_scheduler_schedule_drift_seconds_count 1"))
}
