package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// Ratio is a float64 that serializes +Inf as the string "inf". Used for
// high/low cohort ratios where a zero low-cohort mean is a defined sentinel,
// which encoding/json cannot represent as a bare number.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	if math.IsInf(float64(r), 1) {
		return []byte(`"inf"`), nil
	}
	return []byte(strconv.FormatFloat(float64(r), 'g', -1, 64)), nil
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == `"inf"` {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// ScoreBucket is one fixed-width histogram bucket of calibrated scores.
type ScoreBucket struct {
	Range      string  `json:"range"` // "0-99" ... "900-999"
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CategoryCount is the population share of one risk category.
type CategoryCount struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ScoreDistribution summarizes the calibrated score population.
type ScoreDistribution struct {
	TotalWallets int             `json:"totalWallets"`
	MeanScore    float64         `json:"meanScore"`
	MedianScore  float64         `json:"medianScore"`
	StdScore     float64         `json:"stdScore"` // population std
	MinScore     int             `json:"minScore"`
	MaxScore     int             `json:"maxScore"`
	Buckets      []ScoreBucket   `json:"bucketDistribution"`
	Categories   []CategoryCount `json:"riskCategoryDistribution"`
}

// CohortMeans holds the mean of each tracked behavioral feature for one
// score band.
type CohortMeans struct {
	TotalTransactions   float64 `json:"totalTransactions"`
	LiquidationRatio    float64 `json:"liquidationRatio"`
	RepaymentRatio      float64 `json:"repaymentRatio"`
	LeverageRatio       float64 `json:"leverageRatio"`
	AssetDiversityScore float64 `json:"assetDiversityScore"`
	AccountAgeDays      float64 `json:"accountAgeDays"`
	TimeRegularityScore float64 `json:"timeRegularityScore"`
}

// CohortSummary describes one non-empty score band.
type CohortSummary struct {
	Count    int         `json:"count"`
	Features CohortMeans `json:"features"`
}

// CohortPatterns partitions the population into high (>=700),
// medium ([400,700)) and low (<400) score bands. Empty bands are omitted.
type CohortPatterns struct {
	HighScore   *CohortSummary `json:"highScore,omitempty"`
	MediumScore *CohortSummary `json:"mediumScore,omitempty"`
	LowScore    *CohortSummary `json:"lowScore,omitempty"`
}

// HighRiskProfile characterizes the sub-400 cohort.
type HighRiskProfile struct {
	Count           int     `json:"count"`
	AvgLiquidations float64 `json:"avgLiquidations"`
	AvgLeverage     float64 `json:"avgLeverage"`
	BotLikeRatio    float64 `json:"botLikeRatio"` // fraction with timeRegularityScore > 2
}

// RiskFactorAnalysis holds feature-score correlations and the high-risk
// cohort profile.
type RiskFactorAnalysis struct {
	ScoreCorrelations map[string]float64 `json:"scoreCorrelations"` // Pearson r, 0 on zero variance
	HighRisk          *HighRiskProfile   `json:"highRiskCharacteristics,omitempty"`
}

// CohortRange describes one comparative cohort.
type CohortRange struct {
	Count      int    `json:"count"`
	ScoreRange string `json:"scoreRange"` // "min-max"
}

// MetricComparison contrasts one behavioral metric between the top and
// bottom score quintiles.
type MetricComparison struct {
	Metric          string  `json:"metric"`
	HighScorersAvg  float64 `json:"highScorersAvg"`
	LowScorersAvg   float64 `json:"lowScorersAvg"`
	DifferenceRatio Ratio   `json:"differenceRatio"` // "inf" when the low mean is 0
}

// ComparativeAnalysis contrasts the top 20% of wallets against the bottom
// 20%, both cut by calibrated score.
type ComparativeAnalysis struct {
	HighScorers       CohortRange        `json:"highScorers"`
	LowScorers        CohortRange        `json:"lowScorers"`
	MetricDifferences []MetricComparison `json:"metricDifferences"`
}

// WalletScoreBrief is a compact address/score pair for leaderboards.
type WalletScoreBrief struct {
	WalletAddress string `json:"walletAddress"`
	CreditScore   int    `json:"creditScore"`
}

// ScoreInsights lists the extremes of the scored population.
type ScoreInsights struct {
	TopWallets    []WalletScoreBrief `json:"topWallets"`
	BottomWallets []WalletScoreBrief `json:"bottomWallets"`
}

// AnalysisResult is the full descriptive-statistics report for one scoring
// run. Recomputed from scratch each run, never updated incrementally.
type AnalysisResult struct {
	Distribution ScoreDistribution   `json:"scoreDistribution"`
	Patterns     CohortPatterns      `json:"behavioralPatterns"`
	RiskFactors  RiskFactorAnalysis  `json:"riskFactors"`
	Comparative  ComparativeAnalysis `json:"comparativeAnalysis"`
	Insights     ScoreInsights       `json:"insights"`
}
