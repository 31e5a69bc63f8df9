package scoring

import (
	"math"
	"sort"

	"github.com/rawblock/credit-engine/pkg/models"
)

// Percentile Calibration
//
// Raw model outputs have no guaranteed scale, so scores are rescaled by
// population rank rather than by value:
//
//	rank(w)  = pos / n        pos = 1-based index of the first
//	                          ascending-sorted raw score >= raw(w)
//	credit   = round(rank * 1000)
//
// Rank calibration preserves ordering, always reaches 1000 for a unique
// top raw score, and every duplicate raw value shares the rank of its
// first sorted occurrence. This is inherently a whole-population pass; it
// cannot be computed per wallet in isolation.

// PercentileRank returns the calibrated rank in (0, 1] of one raw score
// against an ascending-sorted population of size n.
func PercentileRank(sorted []float64, raw float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0.0
	}
	pos := sort.SearchFloat64s(sorted, raw) + 1
	return float64(pos) / float64(n)
}

// Calibrate converts raw scores into credit scores and risk categories.
// raws[i] belongs to feats[i]. The result is sorted descending by credit
// score; ties keep the feature-vector order.
func Calibrate(feats []models.WalletFeatures, raws []float64) []models.ScoredWallet {
	n := len(raws)
	out := make([]models.ScoredWallet, 0, n)
	if n == 0 || n != len(feats) {
		return out
	}

	sorted := make([]float64, n)
	copy(sorted, raws)
	sort.Float64s(sorted)

	for i, raw := range raws {
		credit := int(math.Round(PercentileRank(sorted, raw) * 1000))
		out = append(out, models.ScoredWallet{
			WalletAddress: feats[i].WalletAddress,
			RawScore:      raw,
			CreditScore:   credit,
			RiskCategory:  RiskCategory(credit),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreditScore > out[j].CreditScore
	})
	return out
}

// RiskCategory maps a credit score onto its band label. The 7 bands
// partition [0, 1000] exhaustively.
func RiskCategory(score int) string {
	switch {
	case score >= 900:
		return models.CategoryExcellent
	case score >= 800:
		return models.CategoryVeryGood
	case score >= 700:
		return models.CategoryGood
	case score >= 600:
		return models.CategoryFair
	case score >= 500:
		return models.CategoryPoor
	case score >= 400:
		return models.CategoryVeryPoor
	default:
		return models.CategoryUnacceptable
	}
}
