package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTierAttempt(t *testing.T) {
	m := New()
	m.TierAttempt("store", "hit")
	m.TierAttempt("store", "hit")
	m.TierAttempt("remote", "error")

	if got := testutil.ToFloat64(m.tierAttempts.WithLabelValues("store", "hit")); got != 2 {
		t.Errorf("store hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.tierAttempts.WithLabelValues("remote", "error")); got != 1 {
		t.Errorf("remote errors = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TierAttempt("store", "hit")
	m.Refresh("ok")
	m.StoreRows(3)
}
