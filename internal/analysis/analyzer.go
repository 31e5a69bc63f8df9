// Package analysis derives the descriptive report for one scoring run:
// score distribution, behavioral cohort summaries, feature-score
// correlations and a top-versus-bottom quintile comparison. Everything is
// recomputed from the full population each run.
package analysis

import (
	"fmt"
	"math"

	"github.com/rawblock/credit-engine/internal/stats"
	"github.com/rawblock/credit-engine/pkg/models"
)

// Score band cutoffs for cohort partitioning.
const (
	highScoreCutoff = 700
	lowScoreCutoff  = 400
)

// botRegularityCutoff marks a wallet as bot-like in the high-risk profile.
const botRegularityCutoff = 2.0

// leaderboardSize bounds the top/bottom wallet insights.
const leaderboardSize = 10

// correlationFeatures are the risk indicators correlated against the
// credit score, keyed by their reporting names.
var correlationFeatures = []struct {
	name  string
	value func(models.WalletFeatures) float64
}{
	{"liquidation_count", func(f models.WalletFeatures) float64 { return float64(f.LiquidationCount) }},
	{"liquidation_ratio", func(f models.WalletFeatures) float64 { return f.LiquidationRatio }},
	{"leverage_ratio", func(f models.WalletFeatures) float64 { return f.LeverageRatio }},
	{"repayment_ratio", func(f models.WalletFeatures) float64 { return f.RepaymentRatio }},
	{"time_regularity_score", func(f models.WalletFeatures) float64 { return f.TimeRegularityScore }},
	{"amount_uniformity_score", func(f models.WalletFeatures) float64 { return f.AmountUniformityScore }},
}

// comparativeMetrics are contrasted between the top and bottom quintiles.
var comparativeMetrics = []struct {
	name  string
	value func(models.WalletFeatures) float64
}{
	{"account_age_days", func(f models.WalletFeatures) float64 { return f.AccountAgeDays }},
	{"repayment_ratio", func(f models.WalletFeatures) float64 { return f.RepaymentRatio }},
	{"liquidation_ratio", func(f models.WalletFeatures) float64 { return f.LiquidationRatio }},
	{"leverage_ratio", func(f models.WalletFeatures) float64 { return f.LeverageRatio }},
}

// merged pairs one scored wallet with its feature vector.
type merged struct {
	score int
	feats models.WalletFeatures
}

// Analyze builds the full population report. scored is expected in the
// calibrator's descending order. A scored wallet with no matching feature
// vector joins against a zero-valued vector rather than failing.
func Analyze(scored []models.ScoredWallet, feats []models.WalletFeatures) models.AnalysisResult {
	featsByAddr := make(map[string]models.WalletFeatures, len(feats))
	for _, f := range feats {
		featsByAddr[f.WalletAddress] = f
	}

	rows := make([]merged, len(scored))
	for i, sw := range scored {
		rows[i] = merged{score: sw.CreditScore, feats: featsByAddr[sw.WalletAddress]}
	}

	return models.AnalysisResult{
		Distribution: analyzeDistribution(scored),
		Patterns:     analyzePatterns(rows),
		RiskFactors:  analyzeRiskFactors(rows),
		Comparative:  analyzeComparative(rows),
		Insights:     buildInsights(scored),
	}
}

func analyzeDistribution(scored []models.ScoredWallet) models.ScoreDistribution {
	n := len(scored)
	scores := make([]float64, n)
	for i, sw := range scored {
		scores[i] = float64(sw.CreditScore)
	}
	lo, hi := stats.MinMax(scores)

	dist := models.ScoreDistribution{
		TotalWallets: n,
		MeanScore:    stats.Mean(scores),
		MedianScore:  stats.Median(scores),
		StdScore:     stats.Std(scores),
		MinScore:     int(lo),
		MaxScore:     int(hi),
	}

	// ─── Fixed-width buckets ─────────────────────────────────────────
	// 10 buckets of 100; a score of 1000 lands in the top bucket.
	var counts [10]int
	for _, sw := range scored {
		idx := sw.CreditScore / 100
		if idx > 9 {
			idx = 9
		}
		counts[idx]++
	}
	dist.Buckets = make([]models.ScoreBucket, 10)
	for i, count := range counts {
		pct := 0.0
		if n > 0 {
			pct = stats.Round2(float64(count) / float64(n) * 100)
		}
		dist.Buckets[i] = models.ScoreBucket{
			Range:      fmt.Sprintf("%d-%d", i*100, i*100+99),
			Count:      count,
			Percentage: pct,
		}
	}

	// ─── Risk categories ─────────────────────────────────────────────
	catCounts := make(map[string]int)
	for _, sw := range scored {
		catCounts[sw.RiskCategory]++
	}
	for _, cat := range models.RiskCategoryOrder {
		count := catCounts[cat]
		if count == 0 {
			continue
		}
		dist.Categories = append(dist.Categories, models.CategoryCount{
			Category:   cat,
			Count:      count,
			Percentage: stats.Round2(float64(count) / float64(n) * 100),
		})
	}
	return dist
}

func analyzePatterns(rows []merged) models.CohortPatterns {
	var high, medium, low []merged
	for _, r := range rows {
		switch {
		case r.score >= highScoreCutoff:
			high = append(high, r)
		case r.score >= lowScoreCutoff:
			medium = append(medium, r)
		default:
			low = append(low, r)
		}
	}
	return models.CohortPatterns{
		HighScore:   summarizeCohort(high),
		MediumScore: summarizeCohort(medium),
		LowScore:    summarizeCohort(low),
	}
}

// summarizeCohort returns nil for an empty band.
func summarizeCohort(rows []merged) *models.CohortSummary {
	n := len(rows)
	if n == 0 {
		return nil
	}
	var m models.CohortMeans
	for _, r := range rows {
		m.TotalTransactions += float64(r.feats.TotalTransactions)
		m.LiquidationRatio += r.feats.LiquidationRatio
		m.RepaymentRatio += r.feats.RepaymentRatio
		m.LeverageRatio += r.feats.LeverageRatio
		m.AssetDiversityScore += r.feats.AssetDiversityScore
		m.AccountAgeDays += r.feats.AccountAgeDays
		m.TimeRegularityScore += r.feats.TimeRegularityScore
	}
	nf := float64(n)
	m.TotalTransactions /= nf
	m.LiquidationRatio /= nf
	m.RepaymentRatio /= nf
	m.LeverageRatio /= nf
	m.AssetDiversityScore /= nf
	m.AccountAgeDays /= nf
	m.TimeRegularityScore /= nf
	return &models.CohortSummary{Count: n, Features: m}
}

func analyzeRiskFactors(rows []merged) models.RiskFactorAnalysis {
	scores := make([]float64, len(rows))
	for i, r := range rows {
		scores[i] = float64(r.score)
	}

	correlations := make(map[string]float64, len(correlationFeatures))
	for _, cf := range correlationFeatures {
		series := make([]float64, len(rows))
		for i, r := range rows {
			series[i] = cf.value(r.feats)
		}
		correlations[cf.name] = stats.Pearson(scores, series)
	}

	out := models.RiskFactorAnalysis{ScoreCorrelations: correlations}

	// ─── High-risk cohort profile ────────────────────────────────────
	var highRisk []merged
	for _, r := range rows {
		if r.score < lowScoreCutoff {
			highRisk = append(highRisk, r)
		}
	}
	if len(highRisk) > 0 {
		profile := &models.HighRiskProfile{Count: len(highRisk)}
		botLike := 0
		for _, r := range highRisk {
			profile.AvgLiquidations += float64(r.feats.LiquidationCount)
			profile.AvgLeverage += r.feats.LeverageRatio
			if r.feats.TimeRegularityScore > botRegularityCutoff {
				botLike++
			}
		}
		nf := float64(len(highRisk))
		profile.AvgLiquidations /= nf
		profile.AvgLeverage /= nf
		profile.BotLikeRatio = float64(botLike) / nf
		out.HighRisk = profile
	}
	return out
}

// analyzeComparative contrasts the top and bottom 20% of wallets by score.
// Cohort size is a floor division of the population, so populations under
// 5 wallets produce empty cohorts and no metric rows. rows must already be
// in descending score order; cutoff ties resolve by that order.
func analyzeComparative(rows []merged) models.ComparativeAnalysis {
	n := len(rows)
	size := n / 5
	if size == 0 {
		return models.ComparativeAnalysis{}
	}

	high := rows[:size]
	low := rows[n-size:]

	comp := models.ComparativeAnalysis{
		HighScorers: cohortRange(high),
		LowScorers:  cohortRange(low),
	}
	for _, cm := range comparativeMetrics {
		highMean := cohortMean(high, cm.value)
		lowMean := cohortMean(low, cm.value)
		ratio := models.Ratio(math.Inf(1))
		if lowMean != 0 {
			ratio = models.Ratio(highMean / lowMean)
		}
		comp.MetricDifferences = append(comp.MetricDifferences, models.MetricComparison{
			Metric:          cm.name,
			HighScorersAvg:  highMean,
			LowScorersAvg:   lowMean,
			DifferenceRatio: ratio,
		})
	}
	return comp
}

func cohortRange(rows []merged) models.CohortRange {
	lo, hi := rows[len(rows)-1].score, rows[0].score
	if lo > hi {
		lo, hi = hi, lo
	}
	return models.CohortRange{
		Count:      len(rows),
		ScoreRange: fmt.Sprintf("%d-%d", lo, hi),
	}
}

func cohortMean(rows []merged, value func(models.WalletFeatures) float64) float64 {
	if len(rows) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, r := range rows {
		sum += value(r.feats)
	}
	return sum / float64(len(rows))
}

func buildInsights(scored []models.ScoredWallet) models.ScoreInsights {
	n := len(scored)
	top := leaderboardSize
	if top > n {
		top = n
	}
	insights := models.ScoreInsights{}
	for _, sw := range scored[:top] {
		insights.TopWallets = append(insights.TopWallets, models.WalletScoreBrief{
			WalletAddress: sw.WalletAddress,
			CreditScore:   sw.CreditScore,
		})
	}
	for _, sw := range scored[n-top:] {
		insights.BottomWallets = append(insights.BottomWallets, models.WalletScoreBrief{
			WalletAddress: sw.WalletAddress,
			CreditScore:   sw.CreditScore,
		})
	}
	return insights
}
