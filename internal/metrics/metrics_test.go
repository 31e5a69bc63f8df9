package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Expected metric write to succeed. Got: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestObserveRun_RecordsCounters(t *testing.T) {
	before := counterValue(t, WalletsScoredTotal)
	droppedBefore := counterValue(t, TransactionsDroppedTotal)

	ObserveRun(0.25, 100, 4, 12)

	if got := counterValue(t, WalletsScoredTotal) - before; got != 12 {
		t.Errorf("Expected 12 wallets added. Got: %v", got)
	}
	if got := counterValue(t, TransactionsDroppedTotal) - droppedBefore; got != 4 {
		t.Errorf("Expected 4 dropped added. Got: %v", got)
	}
	if got := counterValue(t, LastRunWallets); got != 12 {
		t.Errorf("Expected last run gauge 12. Got: %v", got)
	}

	completed, err := ScoringRunsTotal.GetMetricWithLabelValues("completed")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	if counterValue(t, completed) < 1 {
		t.Errorf("Expected at least one completed run")
	}
}

func TestObserveRunOutcomes_UseDistinctLabels(t *testing.T) {
	ObserveRunFailure()
	ObserveRunRejected()

	for _, outcome := range []string{"failed", "rejected"} {
		c, err := ScoringRunsTotal.GetMetricWithLabelValues(outcome)
		if err != nil {
			t.Fatalf("GetMetricWithLabelValues(%s) failed: %v", outcome, err)
		}
		if counterValue(t, c) < 1 {
			t.Errorf("Expected %s outcome to be counted", outcome)
		}
	}
}

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{101, "1xx"},
	}

	for _, tt := range tests {
		if got := statusBucket(tt.code); got != tt.want {
			t.Errorf("Expected %s for %d. Got: %s", tt.want, tt.code, got)
		}
	}
}
