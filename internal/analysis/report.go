package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rawblock/credit-engine/pkg/models"
)

// RenderMarkdown turns an analysis result into the human-readable report
// served by the API and written by the batch CLI.
func RenderMarkdown(a models.AnalysisResult) string {
	var b strings.Builder

	b.WriteString("# DeFi Credit Scoring Analysis Report\n\n")

	// ─── Executive summary ───────────────────────────────────────────
	dist := a.Distribution
	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&b, "This analysis covers **%d** wallets with an average credit score of **%.0f**.\n\n",
		dist.TotalWallets, dist.MeanScore)

	// ─── Distribution ────────────────────────────────────────────────
	b.WriteString("## Score Distribution\n\n")
	fmt.Fprintf(&b, "- **Mean Score**: %.2f\n", dist.MeanScore)
	fmt.Fprintf(&b, "- **Median Score**: %.2f\n", dist.MedianScore)
	fmt.Fprintf(&b, "- **Standard Deviation**: %.2f\n", dist.StdScore)
	fmt.Fprintf(&b, "- **Score Range**: %d - %d\n\n", dist.MinScore, dist.MaxScore)

	b.WriteString("### Score Distribution by Buckets\n\n")
	b.WriteString("| Score Range | Count | Percentage |\n")
	b.WriteString("|-------------|-------|------------|\n")
	for _, bucket := range dist.Buckets {
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", bucket.Range, bucket.Count, bucket.Percentage)
	}
	b.WriteString("\n### Risk Category Distribution\n\n")
	b.WriteString("| Risk Category | Count | Percentage |\n")
	b.WriteString("|---------------|-------|------------|\n")
	for _, cat := range dist.Categories {
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", cat.Category, cat.Count, cat.Percentage)
	}
	b.WriteString("\n")

	// ─── Behavioral patterns ─────────────────────────────────────────
	b.WriteString("## Behavioral Pattern Analysis\n\n")
	writeCohort(&b, "High Score", a.Patterns.HighScore)
	writeCohort(&b, "Medium Score", a.Patterns.MediumScore)
	writeCohort(&b, "Low Score", a.Patterns.LowScore)

	// ─── Risk factors ────────────────────────────────────────────────
	b.WriteString("## Risk Factor Analysis\n\n")
	b.WriteString("### Risk Factor Correlations with Credit Score\n\n")
	b.WriteString("| Risk Factor | Correlation |\n")
	b.WriteString("|-------------|-------------|\n")
	for _, name := range sortedByAbsCorrelation(a.RiskFactors.ScoreCorrelations) {
		fmt.Fprintf(&b, "| %s | %.3f |\n", titleize(name), a.RiskFactors.ScoreCorrelations[name])
	}
	b.WriteString("\n")

	if hr := a.RiskFactors.HighRisk; hr != nil {
		b.WriteString("### High-Risk Wallet Characteristics\n\n")
		fmt.Fprintf(&b, "- **Count**: %d wallets below 400\n", hr.Count)
		fmt.Fprintf(&b, "- **Average Liquidations**: %.2f\n", hr.AvgLiquidations)
		fmt.Fprintf(&b, "- **Average Leverage**: %.2f\n", hr.AvgLeverage)
		fmt.Fprintf(&b, "- **Bot-Like Share**: %.1f%%\n\n", hr.BotLikeRatio*100)
	}

	// ─── Comparative ─────────────────────────────────────────────────
	comp := a.Comparative
	if comp.HighScorers.Count > 0 {
		b.WriteString("## High vs Low Scorer Comparison\n\n")
		fmt.Fprintf(&b, "- **High Scorers**: %d wallets (scores %s)\n", comp.HighScorers.Count, comp.HighScorers.ScoreRange)
		fmt.Fprintf(&b, "- **Low Scorers**: %d wallets (scores %s)\n\n", comp.LowScorers.Count, comp.LowScorers.ScoreRange)

		b.WriteString("### Key Metric Differences\n\n")
		b.WriteString("| Metric | High Scorers | Low Scorers | Ratio |\n")
		b.WriteString("|--------|--------------|-------------|-------|\n")
		for _, md := range comp.MetricDifferences {
			ratio := "∞"
			if !math.IsInf(float64(md.DifferenceRatio), 1) {
				ratio = fmt.Sprintf("%.2fx", float64(md.DifferenceRatio))
			}
			fmt.Fprintf(&b, "| %s | %.2f | %.2f | %s |\n", titleize(md.Metric), md.HighScorersAvg, md.LowScorersAvg, ratio)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n*Report generated by the credit scoring engine*\n")
	return b.String()
}

func writeCohort(b *strings.Builder, label string, c *models.CohortSummary) {
	if c == nil {
		return
	}
	fmt.Fprintf(b, "### %s (%d wallets)\n\n", label, c.Count)
	fmt.Fprintf(b, "- **Total Transactions**: %.2f (avg)\n", c.Features.TotalTransactions)
	fmt.Fprintf(b, "- **Liquidation Ratio**: %.4f (avg)\n", c.Features.LiquidationRatio)
	fmt.Fprintf(b, "- **Repayment Ratio**: %.2f (avg)\n", c.Features.RepaymentRatio)
	fmt.Fprintf(b, "- **Leverage Ratio**: %.2f (avg)\n", c.Features.LeverageRatio)
	fmt.Fprintf(b, "- **Asset Diversity Score**: %.2f (avg)\n", c.Features.AssetDiversityScore)
	fmt.Fprintf(b, "- **Account Age Days**: %.1f (avg)\n", c.Features.AccountAgeDays)
	fmt.Fprintf(b, "- **Time Regularity Score**: %.2f (avg)\n\n", c.Features.TimeRegularityScore)
}

// sortedByAbsCorrelation orders correlation names by |r| descending, name
// ascending on ties, so the report is deterministic.
func sortedByAbsCorrelation(correlations map[string]float64) []string {
	names := make([]string, 0, len(correlations))
	for name := range correlations {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ai := math.Abs(correlations[names[i]])
		aj := math.Abs(correlations[names[j]])
		if ai != aj {
			return ai > aj
		}
		return names[i] < names[j]
	})
	return names
}

// titleize renders a snake_case metric name as words: "leverage_ratio"
// becomes "Leverage Ratio".
func titleize(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
