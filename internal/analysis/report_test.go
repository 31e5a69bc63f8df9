package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/rawblock/credit-engine/pkg/models"
)

func TestRenderMarkdown_FullReport(t *testing.T) {
	scores := []int{1000, 900, 800, 700, 600, 500, 400, 300, 200, 100}
	scored := make([]models.ScoredWallet, len(scores))
	feats := make([]models.WalletFeatures, len(scores))
	for i, s := range scores {
		addr := string(rune('a' + i))
		scored[i] = scoredWallet(addr, s)
		feats[i] = models.WalletFeatures{
			WalletAddress:  addr,
			RepaymentRatio: float64(s) / 1000,
		}
	}

	report := RenderMarkdown(Analyze(scored, feats))

	for _, want := range []string{
		"# DeFi Credit Scoring Analysis Report",
		"## Executive Summary",
		"covers **10** wallets",
		"| Score Range | Count | Percentage |",
		"| 900-999 | 2 | 20.0% |",
		"## Behavioral Pattern Analysis",
		"### High Score (4 wallets)",
		"### Low Score (3 wallets)",
		"| Repayment Ratio |",
		"### High-Risk Wallet Characteristics",
		"## High vs Low Scorer Comparison",
		"- **High Scorers**: 2 wallets (scores 900-1000)",
		"*Report generated by the credit scoring engine*",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("Expected report to contain %q", want)
		}
	}
}

func TestRenderMarkdown_InfiniteRatioSymbol(t *testing.T) {
	result := models.AnalysisResult{
		Comparative: models.ComparativeAnalysis{
			HighScorers: models.CohortRange{Count: 1, ScoreRange: "900-900"},
			LowScorers:  models.CohortRange{Count: 1, ScoreRange: "100-100"},
			MetricDifferences: []models.MetricComparison{
				{Metric: "account_age_days", HighScorersAvg: 30, LowScorersAvg: 0, DifferenceRatio: models.Ratio(math.Inf(1))},
				{Metric: "repayment_ratio", HighScorersAvg: 0.9, LowScorersAvg: 0.3, DifferenceRatio: 3.0},
			},
		},
	}

	report := RenderMarkdown(result)

	if !strings.Contains(report, "| Account Age Days | 30.00 | 0.00 | ∞ |") {
		t.Errorf("Expected infinity symbol for infinite ratio. Got:\n%s", report)
	}
	if !strings.Contains(report, "| Repayment Ratio | 0.90 | 0.30 | 3.00x |") {
		t.Errorf("Expected finite ratio with x suffix. Got:\n%s", report)
	}
}

func TestRenderMarkdown_OmitsEmptySections(t *testing.T) {
	result := models.AnalysisResult{
		Distribution: models.ScoreDistribution{TotalWallets: 2, MeanScore: 750},
	}

	report := RenderMarkdown(result)

	if strings.Contains(report, "High-Risk Wallet Characteristics") {
		t.Errorf("Expected no high-risk section without a profile")
	}
	if strings.Contains(report, "High vs Low Scorer Comparison") {
		t.Errorf("Expected no comparative section for empty cohorts")
	}
	if strings.Contains(report, "### High Score") {
		t.Errorf("Expected no cohort section for empty bands")
	}
}

func TestSortedByAbsCorrelation(t *testing.T) {
	correlations := map[string]float64{
		"liquidation_ratio": -0.8,
		"repayment_ratio":   0.5,
		"leverage_ratio":    -0.5,
		"liquidation_count": 0.9,
	}

	got := sortedByAbsCorrelation(correlations)

	want := []string{"liquidation_count", "liquidation_ratio", "leverage_ratio", "repayment_ratio"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s at position %d. Got: %s", want[i], i, got[i])
		}
	}
}

func TestTitleize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"leverage_ratio", "Leverage Ratio"},
		{"account_age_days", "Account Age Days"},
		{"liquidation_count", "Liquidation Count"},
	}

	for _, tt := range tests {
		if got := titleize(tt.in); got != tt.want {
			t.Errorf("Expected %q. Got: %q", tt.want, got)
		}
	}
}
