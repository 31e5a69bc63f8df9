package models

import (
	"encoding/json"
	"time"
)

// Protocol action types. Case-sensitive, matching the Aave V2 export format.
const (
	ActionDeposit     = "deposit"
	ActionBorrow      = "borrow"
	ActionRepay       = "repay"
	ActionRedeem      = "redeemunderlying"
	ActionLiquidation = "liquidationcall"
)

// ValidActions is the closed set of recognized protocol actions.
var ValidActions = map[string]bool{
	ActionDeposit:     true,
	ActionBorrow:      true,
	ActionRepay:       true,
	ActionRedeem:      true,
	ActionLiquidation: true,
}

// AssetUnknown is the sentinel asset for records that omit the asset field.
const AssetUnknown = "unknown"

// RawTransaction is one untrusted record from an ingestion batch. Amount,
// timestamp and gas fields stay raw because upstream exports mix numbers,
// numeric strings and epoch values; the normalizer owns the coercion.
type RawTransaction struct {
	WalletAddress string          `json:"wallet_address"`
	Action        string          `json:"action"`
	Amount        json.RawMessage `json:"amount,omitempty"`
	Timestamp     json.RawMessage `json:"timestamp,omitempty"`
	Asset         string          `json:"asset,omitempty"`
	GasUsed       json.RawMessage `json:"gas_used,omitempty"`
	GasPrice      json.RawMessage `json:"gas_price,omitempty"`
}

// Transaction is a validated, canonicalized lending-protocol event.
// Immutable once produced by the normalizer.
type Transaction struct {
	WalletAddress string    `json:"walletAddress"` // lower-cased
	Action        string    `json:"action"`
	Amount        float64   `json:"amount"` // always > 0
	Asset         string    `json:"asset"`
	Timestamp     time.Time `json:"timestamp"`
	GasUsed       *float64  `json:"gasUsed,omitempty"` // nil when not recorded
	GasPrice      *float64  `json:"gasPrice,omitempty"`
}
