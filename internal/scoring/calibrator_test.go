package scoring

import (
	"testing"

	"github.com/rawblock/credit-engine/pkg/models"
)

func feats(addrs ...string) []models.WalletFeatures {
	out := make([]models.WalletFeatures, len(addrs))
	for i, a := range addrs {
		out[i] = models.WalletFeatures{WalletAddress: a}
	}
	return out
}

func TestCalibrate_TwoWalletBoundary(t *testing.T) {
	// Pins the exact percentile formula: 1-based first-index-at-or-above,
	// divided by population size.
	scored := Calibrate(feats("0xlow", "0xhigh"), []float64{100, 900})

	if len(scored) != 2 {
		t.Fatalf("Expected 2 scored wallets. Got: %d", len(scored))
	}
	// Output is descending by credit score.
	if scored[0].WalletAddress != "0xhigh" || scored[0].CreditScore != 1000 {
		t.Errorf("Expected 0xhigh at 1000. Got: %s at %d", scored[0].WalletAddress, scored[0].CreditScore)
	}
	if scored[1].WalletAddress != "0xlow" || scored[1].CreditScore != 500 {
		t.Errorf("Expected 0xlow at 500. Got: %s at %d", scored[1].WalletAddress, scored[1].CreditScore)
	}
	if scored[0].RiskCategory != models.CategoryExcellent {
		t.Errorf("Expected Excellent at 1000. Got: %s", scored[0].RiskCategory)
	}
	if scored[1].RiskCategory != models.CategoryPoor {
		t.Errorf("Expected Poor at 500. Got: %s", scored[1].RiskCategory)
	}
}

func TestCalibrate_RankPreservation(t *testing.T) {
	raws := []float64{412.5, 97.1, 733.0, 733.0, 12.9, 999.4, 550.2}
	scored := Calibrate(feats("a", "b", "c", "d", "e", "f", "g"), raws)

	byAddr := make(map[string]models.ScoredWallet)
	for _, sw := range scored {
		byAddr[sw.WalletAddress] = sw
	}
	for _, hi := range scored {
		for _, lo := range scored {
			if hi.RawScore > lo.RawScore && hi.CreditScore < lo.CreditScore {
				t.Errorf("Expected rank preservation. Raw %f > %f but credit %d < %d",
					hi.RawScore, lo.RawScore, hi.CreditScore, lo.CreditScore)
			}
		}
	}
	if byAddr["f"].CreditScore != 1000 {
		t.Errorf("Expected unique max raw to calibrate to 1000. Got: %d", byAddr["f"].CreditScore)
	}
}

func TestCalibrate_DuplicatesShareFirstRank(t *testing.T) {
	// Duplicates map to the first sorted occurrence: sorted [5,5,9],
	// both 5s take position 1 of 3.
	scored := Calibrate(feats("a", "b", "c"), []float64{5, 5, 9})

	byAddr := make(map[string]int)
	for _, sw := range scored {
		byAddr[sw.WalletAddress] = sw.CreditScore
	}
	if byAddr["a"] != byAddr["b"] {
		t.Errorf("Expected equal scores for duplicate raws. Got: %d vs %d", byAddr["a"], byAddr["b"])
	}
	if byAddr["a"] != 333 {
		t.Errorf("Expected round(1/3*1000)=333. Got: %d", byAddr["a"])
	}
	if byAddr["c"] != 1000 {
		t.Errorf("Expected max raw at 1000. Got: %d", byAddr["c"])
	}
}

func TestCalibrate_AllEqualRaws(t *testing.T) {
	scored := Calibrate(feats("a", "b"), []float64{7, 7})

	for _, sw := range scored {
		if sw.CreditScore != 500 {
			t.Errorf("Expected all-equal population at 500. Got: %d for %s", sw.CreditScore, sw.WalletAddress)
		}
	}
}

func TestCalibrate_BoundsAndEmpty(t *testing.T) {
	if got := Calibrate(nil, nil); len(got) != 0 {
		t.Errorf("Expected empty output for empty population. Got: %d", len(got))
	}

	raws := []float64{-1e9, 0, 1e9, 3.14}
	scored := Calibrate(feats("a", "b", "c", "d"), raws)
	for _, sw := range scored {
		if sw.CreditScore < 0 || sw.CreditScore > 1000 {
			t.Errorf("Expected credit score in [0,1000]. Got: %d", sw.CreditScore)
		}
	}
}

func TestCalibrate_DescendingStableOrder(t *testing.T) {
	scored := Calibrate(feats("first", "second", "third"), []float64{50, 50, 10})

	if scored[0].WalletAddress != "first" || scored[1].WalletAddress != "second" {
		t.Errorf("Expected ties in original order. Got: %s, %s",
			scored[0].WalletAddress, scored[1].WalletAddress)
	}
	for i := 1; i < len(scored); i++ {
		if scored[i].CreditScore > scored[i-1].CreditScore {
			t.Errorf("Expected descending order. Got %d after %d",
				scored[i].CreditScore, scored[i-1].CreditScore)
		}
	}
}

func TestRiskCategory_Bands(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{1000, models.CategoryExcellent},
		{900, models.CategoryExcellent},
		{899, models.CategoryVeryGood},
		{800, models.CategoryVeryGood},
		{799, models.CategoryGood},
		{700, models.CategoryGood},
		{699, models.CategoryFair},
		{600, models.CategoryFair},
		{599, models.CategoryPoor},
		{500, models.CategoryPoor},
		{499, models.CategoryVeryPoor},
		{400, models.CategoryVeryPoor},
		{399, models.CategoryUnacceptable},
		{0, models.CategoryUnacceptable},
	}

	for _, tt := range tests {
		if got := RiskCategory(tt.score); got != tt.want {
			t.Errorf("Expected %s for score %d. Got: %s", tt.want, tt.score, got)
		}
	}
}
