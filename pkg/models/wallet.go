package models

// WalletFeatures is the fixed-schema behavioral feature vector for one wallet,
// fully determined by that wallet's transaction subsequence.
type WalletFeatures struct {
	WalletAddress string `json:"walletAddress"`

	// Transaction counts and per-action ratios
	TotalTransactions int     `json:"totalTransactions"`
	DepositCount      int     `json:"depositCount"`
	BorrowCount       int     `json:"borrowCount"`
	RepayCount        int     `json:"repayCount"`
	RedeemCount       int     `json:"redeemCount"`
	LiquidationCount  int     `json:"liquidationCount"`
	DepositRatio      float64 `json:"depositRatio"`
	BorrowRatio       float64 `json:"borrowRatio"`
	RepayRatio        float64 `json:"repayRatio"`
	RedeemRatio       float64 `json:"redeemRatio"`
	LiquidationRatio  float64 `json:"liquidationRatio"`

	// Amount statistics
	TotalAmount  float64 `json:"totalAmount"`
	AvgAmount    float64 `json:"avgAmount"`
	MedianAmount float64 `json:"medianAmount"`
	StdAmount    float64 `json:"stdAmount"` // population std
	MinAmount    float64 `json:"minAmount"`
	MaxAmount    float64 `json:"maxAmount"`
	AmountCV     float64 `json:"amountCv"` // std/mean, 0 when mean is 0

	// Portfolio
	UniqueAssets        int     `json:"uniqueAssets"`
	AssetDiversityScore float64 `json:"assetDiversityScore"` // 1 - 1/uniqueAssets

	// Temporal
	AccountAgeDays     float64 `json:"accountAgeDays"` // fractional days, min 1.0
	TransactionsPerDay float64 `json:"transactionsPerDay"`
	AvgGapSeconds      float64 `json:"avgGapSeconds"` // mean inter-transaction gap
	StdGapSeconds      float64 `json:"stdGapSeconds"`

	// Financial behavior
	TotalBorrowed   float64 `json:"totalBorrowed"`
	TotalRepaid     float64 `json:"totalRepaid"`
	RepaymentRatio  float64 `json:"repaymentRatio"` // 1.0 when nothing borrowed
	OutstandingDebt float64 `json:"outstandingDebt"`
	LeverageRatio   float64 `json:"leverageRatio"` // 0 when nothing deposited

	// Bot-likeness signals
	TimeRegularityScore   float64 `json:"timeRegularityScore"` // 1/(gap CV + 0.01), 0 below 3 txs
	AmountUniformityScore float64 `json:"amountUniformityScore"`
	TransactionComplexity float64 `json:"transactionComplexity"` // uniqueAssets/totalTransactions
	GasOptimizationScore  float64 `json:"gasOptimizationScore"`
}

// ScoredWallet pairs a wallet with its raw model output, calibrated credit
// score and risk category.
type ScoredWallet struct {
	WalletAddress string  `json:"walletAddress"`
	RawScore      float64 `json:"rawScore"`
	CreditScore   int     `json:"creditScore"` // 0-1000
	RiskCategory  string  `json:"riskCategory"`
}

// Risk category labels, best to worst.
const (
	CategoryExcellent    = "Excellent"
	CategoryVeryGood     = "Very Good"
	CategoryGood         = "Good"
	CategoryFair         = "Fair"
	CategoryPoor         = "Poor"
	CategoryVeryPoor     = "Very Poor"
	CategoryUnacceptable = "Unacceptable"
)

// RiskCategoryOrder lists the 7 categories from best band to worst.
var RiskCategoryOrder = []string{
	CategoryExcellent,
	CategoryVeryGood,
	CategoryGood,
	CategoryFair,
	CategoryPoor,
	CategoryVeryPoor,
	CategoryUnacceptable,
}
