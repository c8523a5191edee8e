// Package fees assesses maker/taker fees on each half of a trade and routes
// them to a configured pot account. It is grounded directly on the original
// engine's FeeCollector (original_source/src/fees.rs): same two operations,
// same "fees come out of the receiving side" rule.
package fees

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"vaultex/internal/common"
	"vaultex/internal/decimalutil"
)

// AccountFee is the maker/taker fee fraction pair in effect for one account.
type AccountFee struct {
	MakerFraction decimal.Decimal
	TakerFraction decimal.Decimal
}

type feeRecord struct {
	account common.AccountId
	fee     AccountFee
}

func lessFeeRecord(a, b *feeRecord) bool {
	return a.account < b.account
}

// Collector holds the fee-pot account and the per-account fee overrides.
// Accounts with no override pay the Default fraction pair.
type Collector struct {
	Pot     common.AccountId
	Default AccountFee
	table   *btree.BTreeG[*feeRecord]
}

// New returns a collector crediting pot, with every account paying
// defaultFees until overridden via UpdateFeeStructure.
func New(pot common.AccountId, defaultFees AccountFee) *Collector {
	return &Collector{
		Pot:     pot,
		Default: defaultFees,
		table:   btree.NewBTreeG(lessFeeRecord),
	}
}

func (c *Collector) fractionsFor(account common.AccountId) AccountFee {
	if rec, ok := c.table.Get(&feeRecord{account: account}); ok {
		return rec.fee
	}
	return c.Default
}

// SettleTradeFees computes the fee owed by account on its half of a trade,
// deducts it from *recvAmt in place (rounded), and returns the receipt. The
// caller is expected to have already computed recvAmt under a no-fee
// assumption; this only layers the fee adjustment on top.
func (c *Collector) SettleTradeFees(
	account common.AccountId,
	tradeID common.TradeID,
	isMaker bool,
	recvAmt *decimal.Decimal,
	recvAsset common.AssetId,
) common.FeeReceipt {
	fraction := c.fractionsFor(account)
	rate := fraction.TakerFraction
	if isMaker {
		rate = fraction.MakerFraction
	}

	charged := decimalutil.RoundOff(recvAmt.Mul(rate))
	*recvAmt = decimalutil.RoundOff(recvAmt.Sub(charged))

	return common.FeeReceipt{
		User:    account,
		TradeID: tradeID,
		Asset:   recvAsset,
		Amount:  charged,
		IsMaker: isMaker,
	}
}

// UpdateFeeStructure upserts account's fee fractions and returns the
// resulting record, so repeated calls with identical inputs are idempotent.
func (c *Collector) UpdateFeeStructure(account common.AccountId, maker, taker decimal.Decimal) AccountFee {
	fee := AccountFee{MakerFraction: maker, TakerFraction: taker}
	if rec, ok := c.table.Get(&feeRecord{account: account}); ok {
		rec.fee = fee
		return fee
	}
	c.table.Set(&feeRecord{account: account, fee: fee})
	return fee
}

// FeeStructureItem is one exported (account, fee) row for snapshotting.
type FeeStructureItem struct {
	Account common.AccountId
	Fee     AccountFee
}

// Items returns every per-account fee override in deterministic account order.
func (c *Collector) Items() []FeeStructureItem {
	out := make([]FeeStructureItem, 0, c.table.Len())
	c.table.Scan(func(rec *feeRecord) bool {
		out = append(out, FeeStructureItem{Account: rec.account, Fee: rec.fee})
		return true
	})
	return out
}

// LoadFeeStructure seeds the collector's per-account table from a prior
// snapshot, used by Engine.Load.
func (c *Collector) LoadFeeStructure(items []FeeStructureItem) {
	for _, it := range items {
		c.table.Set(&feeRecord{account: it.Account, fee: it.Fee})
	}
}
