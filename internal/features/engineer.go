package features

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/credit-engine/internal/stats"
	"github.com/rawblock/credit-engine/pkg/models"
)

// Behavioral Feature Extraction
//
// A wallet's transaction history encodes behavioral signals that raw
// balances cannot show:
//
//   1. Financial discipline: repayment behavior, leverage, liquidations
//   2. Portfolio breadth: how many distinct assets the wallet touches
//   3. Temporal texture: account age, activity rate, gap statistics
//   4. Automation tells: suspiciously regular timing, repeated identical
//      amounts, repeated gas values
//
// Each wallet's vector is computed only from that wallet's transaction
// subsequence, so extraction is data-parallel across wallets. Every
// degenerate denominator (no borrows, no deposits, single transaction)
// resolves to a defined fallback, never a panic.

// regularityEpsilon keeps the time-regularity score finite for perfectly
// periodic wallets (gap CV of exactly 0).
const regularityEpsilon = 0.01

// minTxForRegularity is the minimum history length before timing
// regularity is meaningful; below it the score is 0.
const minTxForRegularity = 3

// GroupByWallet partitions a normalized transaction sequence by wallet
// address, preserving first-seen wallet order and each wallet's
// chronological subsequence.
func GroupByWallet(txs []models.Transaction) ([]string, map[string][]models.Transaction) {
	order := make([]string, 0)
	groups := make(map[string][]models.Transaction)
	for _, tx := range txs {
		if _, seen := groups[tx.WalletAddress]; !seen {
			order = append(order, tx.WalletAddress)
		}
		groups[tx.WalletAddress] = append(groups[tx.WalletAddress], tx)
	}
	return order, groups
}

// Extract computes one feature vector per wallet, in first-seen wallet
// order.
func Extract(txs []models.Transaction) []models.WalletFeatures {
	order, groups := GroupByWallet(txs)
	out := make([]models.WalletFeatures, len(order))
	for i, wallet := range order {
		out[i] = ComputeWallet(wallet, groups[wallet])
	}
	return out
}

// ExtractParallel is Extract with bounded data-parallelism across wallets.
// Workers write to preallocated slots, so the output order and values are
// identical to the sequential path. workers <= 0 defaults to NumCPU.
func ExtractParallel(ctx context.Context, txs []models.Transaction, workers int) ([]models.WalletFeatures, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	order, groups := GroupByWallet(txs)
	out := make([]models.WalletFeatures, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, wallet := range order {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			out[i] = ComputeWallet(wallet, groups[wallet])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ComputeWallet derives the full feature vector for one wallet from its
// chronological transaction subsequence.
func ComputeWallet(wallet string, txs []models.Transaction) models.WalletFeatures {
	f := models.WalletFeatures{WalletAddress: wallet}
	total := len(txs)
	f.TotalTransactions = total
	if total == 0 {
		// Cannot occur via grouping, but a zero-history wallet still gets a
		// defined vector: all zeros, fully repaid by convention.
		f.RepaymentRatio = 1.0
		return f
	}
	totalF := float64(total)

	// 1. Action counts and ratios
	var totalBorrowed, totalRepaid, totalDeposited float64
	for _, tx := range txs {
		switch tx.Action {
		case models.ActionDeposit:
			f.DepositCount++
			totalDeposited += tx.Amount
		case models.ActionBorrow:
			f.BorrowCount++
			totalBorrowed += tx.Amount
		case models.ActionRepay:
			f.RepayCount++
			totalRepaid += tx.Amount
		case models.ActionRedeem:
			f.RedeemCount++
		case models.ActionLiquidation:
			f.LiquidationCount++
		}
	}
	f.DepositRatio = float64(f.DepositCount) / totalF
	f.BorrowRatio = float64(f.BorrowCount) / totalF
	f.RepayRatio = float64(f.RepayCount) / totalF
	f.RedeemRatio = float64(f.RedeemCount) / totalF
	f.LiquidationRatio = float64(f.LiquidationCount) / totalF

	// 2. Amount statistics
	amounts := make([]float64, total)
	for i, tx := range txs {
		amounts[i] = tx.Amount
	}
	f.TotalAmount = stats.Sum(amounts)
	f.AvgAmount = stats.Mean(amounts)
	f.MedianAmount = stats.Median(amounts)
	f.StdAmount = stats.Std(amounts)
	f.MinAmount, f.MaxAmount = stats.MinMax(amounts)
	f.AmountCV = stats.CV(amounts)

	// 3. Portfolio breadth
	assetSet := make(map[string]bool)
	for _, tx := range txs {
		assetSet[tx.Asset] = true
	}
	f.UniqueAssets = len(assetSet)
	f.AssetDiversityScore = 1.0 - 1.0/float64(f.UniqueAssets)

	// 4. Temporal texture
	first := txs[0].Timestamp
	last := txs[total-1].Timestamp
	ageDays := last.Sub(first).Hours() / 24.0
	if ageDays < 1.0 {
		ageDays = 1.0
	}
	f.AccountAgeDays = ageDays
	f.TransactionsPerDay = totalF / ageDays

	gaps := make([]float64, 0, total-1)
	for i := 1; i < total; i++ {
		gaps = append(gaps, txs[i].Timestamp.Sub(txs[i-1].Timestamp).Seconds())
	}
	f.AvgGapSeconds = stats.Mean(gaps)
	f.StdGapSeconds = stats.Std(gaps)

	// 5. Financial behavior
	f.TotalBorrowed = totalBorrowed
	f.TotalRepaid = totalRepaid
	if totalBorrowed > 0 {
		f.RepaymentRatio = totalRepaid / totalBorrowed
	} else {
		f.RepaymentRatio = 1.0 // nothing borrowed, nothing owed
	}
	f.OutstandingDebt = math.Max(0, totalBorrowed-totalRepaid)
	if totalDeposited > 0 {
		f.LeverageRatio = totalBorrowed / totalDeposited
	}

	// 6. Automation tells
	f.TimeRegularityScore = timeRegularity(gaps, total)
	f.AmountUniformityScore = amountUniformity(amounts)
	f.TransactionComplexity = float64(f.UniqueAssets) / totalF
	f.GasOptimizationScore = gasOptimization(txs)

	return f
}

// timeRegularity scores how machine-like the transaction timing is:
// 1/(CV + epsilon) over inter-transaction gaps. A perfectly periodic
// schedule (CV -> 0) saturates at 1/epsilon = 100. Wallets with fewer than
// 3 transactions score 0: a single gap carries no variance signal.
func timeRegularity(gaps []float64, totalTx int) float64 {
	if totalTx < minTxForRegularity {
		return 0.0
	}
	cv := 0.0
	if mean := stats.Mean(gaps); mean > 0 {
		cv = stats.Std(gaps) / mean
	}
	return 1.0 / (cv + regularityEpsilon)
}

// amountUniformity returns the share of the single most frequent exact
// amount. Bots reuse identical amounts; organic activity rarely does.
func amountUniformity(amounts []float64) float64 {
	counts := make(map[float64]int)
	maxCount := 0
	for _, a := range amounts {
		counts[a]++
		if counts[a] > maxCount {
			maxCount = counts[a]
		}
	}
	return float64(maxCount) / float64(len(amounts))
}

// gasOptimization returns the fraction of gas-recorded transactions whose
// gas-used value exactly repeats another's. Identical gas across calls is a
// scripted-execution tell. Wallets with no recorded gas score 0.
func gasOptimization(txs []models.Transaction) float64 {
	counts := make(map[float64]int)
	recorded := 0
	for _, tx := range txs {
		if tx.GasUsed != nil {
			counts[*tx.GasUsed]++
			recorded++
		}
	}
	if recorded == 0 {
		return 0.0
	}
	repeated := 0
	for _, c := range counts {
		if c >= 2 {
			repeated += c
		}
	}
	return float64(repeated) / float64(recorded)
}
