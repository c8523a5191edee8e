// Package common holds the data model shared by every matching-core package:
// asset and account identifiers, trading pairs and their configuration, the
// order and trade types, and the small helpers attached to them. None of it
// talks to a book, a ledger or the network; it is the vocabulary those
// packages share.
package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AssetId opaquely identifies an asset. Equality is plain string equality;
// how an AssetId is minted (chain asset index, symbol, ...) is an external
// collaborator's concern.
type AssetId string

// AccountId opaquely identifies an account. Like AssetId it is a plain,
// comparable, trivially-cloned value — there is nothing engine-specific
// about its representation.
type AccountId string

// OrderID uniquely identifies an order for its lifetime. Orders are created
// externally and handed to the engine once, so OrderID is assigned by the
// caller, not minted here.
type OrderID string

// TradeID uniquely (and deterministically) identifies a trade. See
// NewTradeID: it must never depend on wall-clock time or randomness, or two
// replicas fed the same inputs would diverge.
type TradeID string

// TradingPair is an ordered (base, quote) asset pair. Its identity is the
// pair of assets themselves.
type TradingPair struct {
	Base  AssetId
	Quote AssetId
}

// Key returns a value usable as a deterministic, comparable map/tree key.
func (p TradingPair) Key() string {
	return string(p.Base) + "/" + string(p.Quote)
}

func (p TradingPair) String() string {
	return p.Key()
}

// TradingPairConfig holds the constants registered once per pair: the
// minimum notional an order, price level or dust remainder must clear to be
// considered non-zero, and the quantization step applied to quantities
// derived from a quote budget. Immutable once registered.
type TradingPairConfig struct {
	Pair        TradingPair
	MinVolume   decimal.Decimal
	QtyStepSize decimal.Decimal
}

func (c TradingPairConfig) String() string {
	return fmt.Sprintf("%s min_volume=%s qty_step=%s", c.Pair, c.MinVolume, c.QtyStepSize)
}
