// Package ingest validates and canonicalizes raw lending-protocol
// transaction batches. Individual malformed records are dropped silently;
// only a structurally invalid batch is an error.
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rawblock/credit-engine/pkg/models"
)

// minAmount filters obvious dust/test records.
const minAmount = 1e-10

// timestampLayouts are the accepted string timestamp formats, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ValidateBatch performs the cheap whole-batch pre-check: the batch must be a
// non-empty sequence and its first record must carry the four mandatory
// fields. Per-record validation happens in Normalize; this only rejects
// inputs that are structurally not a transaction batch.
func ValidateBatch(batch []models.RawTransaction) error {
	if batch == nil {
		return fmt.Errorf("transaction batch is not a sequence")
	}
	if len(batch) == 0 {
		return fmt.Errorf("transaction batch is empty")
	}

	first := batch[0]
	if first.WalletAddress == "" {
		return fmt.Errorf("first record missing required field %q", "wallet_address")
	}
	if first.Action == "" {
		return fmt.Errorf("first record missing required field %q", "action")
	}
	if len(first.Amount) == 0 {
		return fmt.Errorf("first record missing required field %q", "amount")
	}
	if len(first.Timestamp) == 0 {
		return fmt.Errorf("first record missing required field %q", "timestamp")
	}
	return nil
}

// Normalize filters and canonicalizes a raw batch. Records missing a
// mandatory field, with an unrecognized action, an unparseable timestamp or
// a non-positive amount are excluded. Survivors get a lower-cased wallet
// address, a sentinel asset when absent, and coerced numeric fields. The
// output is sorted ascending by timestamp (stable) and is idempotent under
// re-normalization. Returns the canonical set and the dropped-record count.
func Normalize(batch []models.RawTransaction) ([]models.Transaction, int) {
	out := make([]models.Transaction, 0, len(batch))
	dropped := 0

	for _, raw := range batch {
		tx, ok := normalizeRecord(raw)
		if !ok {
			dropped++
			continue
		}
		out = append(out, tx)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, dropped
}

func normalizeRecord(raw models.RawTransaction) (models.Transaction, bool) {
	if raw.WalletAddress == "" || raw.Action == "" {
		return models.Transaction{}, false
	}
	if !models.ValidActions[raw.Action] {
		return models.Transaction{}, false
	}

	amount, ok := parseNumber(raw.Amount)
	if !ok || amount <= 0 || amount < minAmount {
		return models.Transaction{}, false
	}

	ts, ok := parseTimestamp(raw.Timestamp)
	if !ok {
		return models.Transaction{}, false
	}

	asset := raw.Asset
	if asset == "" {
		asset = models.AssetUnknown
	}

	return models.Transaction{
		WalletAddress: strings.ToLower(raw.WalletAddress),
		Action:        raw.Action,
		Amount:        amount,
		Asset:         asset,
		Timestamp:     ts,
		GasUsed:       parseGas(raw.GasUsed),
		GasPrice:      parseGas(raw.GasPrice),
	}, true
}

// parseNumber coerces a raw JSON value to float64, accepting both number
// tokens and finite numeric strings. ParseFloat's non-finite spellings
// ("NaN", "Inf", "Infinity") are rejected.
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseGas coerces an optional gas field, leaving it absent when missing,
// non-numeric or negative.
func parseGas(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	v, ok := parseNumber(raw)
	if !ok || v < 0 {
		return nil
	}
	return &v
}

// parseTimestamp accepts RFC 3339 strings, "2006-01-02 15:04:05" strings,
// and finite unix epoch values (number or numeric string; >= 1e12 read as
// milliseconds). All results are UTC.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if epoch, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(epoch) && !math.IsInf(epoch, 0) {
			return epochToTime(epoch), true
		}
		return time.Time{}, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return epochToTime(f), true
	}
	return time.Time{}, false
}

func epochToTime(epoch float64) time.Time {
	if epoch >= 1e12 {
		return time.UnixMilli(int64(epoch)).UTC()
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
