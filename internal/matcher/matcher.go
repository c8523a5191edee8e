// Package matcher implements price-time priority matching: whether two
// orders can cross, and the arithmetic of executing one fill between a
// taker and the resting maker at the front of a price level. It is grounded
// on original_source/src/utils.rs (will_orders_match, execute) and
// lib.rs::match_side, kept in the teacher's book.Book/btree shape instead of
// a BinaryHeap.
package matcher

import (
	"github.com/shopspring/decimal"

	"vaultex/internal/book"
	"vaultex/internal/common"
	"vaultex/internal/decimalutil"
)

// WillMatch reports whether order could cross the opposite side of bk at
// all, without consuming anything. Market orders always report true (the
// caller is expected to have already checked there's a book to match
// against); limit orders only cross if the opposite side's best price
// crosses.
func WillMatch(bk *book.Book, order *common.Order) bool {
	if order.Type == common.Market {
		return true
	}
	oppositeSide := common.Ask
	if order.Side == common.Ask {
		oppositeSide = common.Bid
	}
	level, ok := bk.Best(oppositeSide)
	if !ok || level.Front() == nil {
		return false
	}
	if order.Side == common.Ask {
		return order.Price.Cmp(level.Price()) <= 0
	}
	return level.Price().Cmp(order.Price) <= 0
}

// WillOrdersMatch reports whether taker can cross maker specifically. Market
// takers always cross; limit takers cross only if the maker's price is at
// least as good as the taker's limit.
func WillOrdersMatch(taker, maker *common.Order) bool {
	if taker.Type == common.Market {
		return true
	}
	if taker.Side == common.Ask {
		return taker.Price.Cmp(maker.Price) <= 0
	}
	return maker.Price.Cmp(taker.Price) <= 0
}

// Execute fills taker against maker at maker's price, for the largest
// quantity both can support, mutating both orders' filled/avg-price state
// and status in place. It returns false (no trade) only for a Market-Bid
// taker quoted in quote currency whose available quote, once converted to
// base at maker's price and rounded down to a step multiple, rounds to
// zero.
func Execute(taker, maker *common.Order, qtyStepSize decimal.Decimal, stid uint64) (common.Trade, bool) {
	price := maker.Price

	var available decimal.Decimal
	switch {
	case taker.Side == common.Bid && taker.Type == common.Market && !taker.Qty.IsZero():
		available = decimalutil.RoundOff(taker.Remaining())
	case taker.Side == common.Bid && taker.Type == common.Market:
		raw := decimalutil.RoundOff(decimalutil.CheckedDiv(taker.AvailableVolume(&maker.Price), price))
		steps := decimalutil.CheckedDiv(raw, qtyStepSize).Truncate(0)
		wanted := decimalutil.RoundOff(steps.Mul(qtyStepSize))
		if wanted.IsZero() {
			return common.Trade{}, false
		}
		available = wanted
	default:
		available = decimalutil.RoundOff(taker.Remaining())
	}

	makerAvailable := decimalutil.RoundOff(maker.Remaining())
	if makerAvailable.Cmp(available) <= 0 {
		if makerAvailable.Equal(available) {
			taker.Status = common.Closed
		}
		available = makerAvailable
		maker.Status = common.Closed
	}

	taker.UpdateAvgPriceAndFilledQty(price, available)
	maker.UpdateAvgPriceAndFilledQty(price, available)

	return common.NewTrade(stid, *maker, *taker, price, available), true
}

// MatchSide sweeps the book opposite taker's side, generating trades in
// price-time priority until the book runs dry, the taker's available volume
// drops below the pair's minimum, the best resting order no longer crosses,
// or (Market-Bid-in-quote only) the remaining quote budget quantizes to
// zero base at the next level's price. Matched maker orders are mutated in
// place (the pointers already resting in bk) and popped from the book once
// fully filled; a resting order whose remaining volume falls under
// minVolume after a partial fill is closed and popped even though it isn't
// fully filled. The taker is closed here only by the available-volume check
// above, or by Execute when a fill exhausts taker and maker together — a
// taker that runs out of room to trade (fully filled, or Market-Bid-in-quote
// budget exhausted) simply stops matching on its own once no more makers
// satisfy that check; the rest of the Limit/Market status bookkeeping for the
// taker happens in the caller.
func MatchSide(bk *book.Book, taker *common.Order, cfg common.TradingPairConfig, stid uint64) []common.Trade {
	var trades []common.Trade
	oppositeSide := common.Ask
	if taker.Side == common.Ask {
		oppositeSide = common.Bid
	}

	for {
		level, ok := bk.Best(oppositeSide)
		if !ok {
			break
		}
		maker := level.Front()
		if maker == nil {
			break
		}

		if taker.AvailableVolume(&maker.Price).Cmp(cfg.MinVolume) < 0 {
			taker.Status = common.Closed
			break
		}

		if !WillOrdersMatch(taker, maker) {
			break
		}

		trade, executed := Execute(taker, maker, cfg.QtyStepSize, stid)
		if !executed {
			break
		}

		if trade.Maker.AvailableVolume(&maker.Price).Cmp(cfg.MinVolume) < 0 {
			// Dust remains below the minimum: close both the trade's own
			// record of the maker (so settlement releases its dust) and
			// the live resting order (so it gets popped from the book).
			trade.Maker.Status = common.Closed
			maker.Status = common.Closed
		}
		trades = append(trades, trade)

		if maker.Status == common.Closed || maker.Remaining().IsZero() {
			bk.PopFront(oppositeSide, level)
		}
	}
	return trades
}
