// Package settlement turns a batch of trades into balance and fee deltas:
// what each side of a trade receives and gives up, how much of a closing
// limit order's reservation to release as dust, and the Bid overpay refund
// when a taker's limit price was better than the price it actually filled
// at. It is grounded on original_source/src/utils.rs
// (calculate_assets_flows_from_trade, check_unreserved_balance_for_close_limit_orders_in_trades)
// and lib.rs::settle_trades.
package settlement

import (
	"github.com/shopspring/decimal"

	"vaultex/internal/balances"
	"vaultex/internal/common"
	"vaultex/internal/decimalutil"
	"vaultex/internal/fees"
)

// CalculateAssetFlows returns, for one side of a trade, which asset it
// receives and how much, and which asset it gives up and how much — before
// fees. An Ask gets quote and gives base; a Bid gets base and gives quote.
func CalculateAssetFlows(price decimal.Decimal, side common.OrderSide, pair common.TradingPair, amount decimal.Decimal) (recvAsset common.AssetId, recvAmt decimal.Decimal, giveAsset common.AssetId, giveAmt decimal.Decimal) {
	quoteFlow := decimalutil.RoundOff(price.Mul(amount))
	if side == common.Ask {
		return pair.Quote, quoteFlow, pair.Base, amount
	}
	return pair.Base, amount, pair.Quote, quoteFlow
}

// CheckUnreserveForCloseInTrade returns the full reserved amount (in the
// give-away asset's units) that should be released back to free when order
// is closing — either because this trade closed it outright or because its
// remaining available volume has dropped under the pair's minimum. A still
// -open order above the minimum returns zero: its reservation stays locked
// for the rest it hasn't filled yet.
func CheckUnreserveForCloseInTrade(order *common.Order, minVolume decimal.Decimal) decimal.Decimal {
	amount := order.Remaining()
	if order.Side == common.Bid {
		amount = decimalutil.RoundOff(amount.Mul(order.Price))
	}

	if order.Type != common.Limit || amount.IsZero() {
		return decimal.Zero
	}
	if order.Status == common.Closed || order.AvailableVolume(nil).Cmp(minVolume) < 0 {
		return amount
	}
	return decimal.Zero
}

// Result accumulates the balance rows touched while settling one batch of
// trades, for folding into the caller's execution delta.
type Result struct {
	Touched []balances.Key
}

func (r *Result) touch(key balances.Key) {
	for _, k := range r.Touched {
		if k == key {
			return
		}
	}
	r.Touched = append(r.Touched, key)
}

// RefundBidOverpay releases the difference between a Bid taker's limit
// price and the price it actually traded at back to free, for one trade.
// Only Bid takers can overpay: an Ask taker's reservation is sized in base
// quantity, which the price doesn't affect.
func RefundBidOverpay(ledger *balances.Ledger, taker *common.Order, tradePrice, amount decimal.Decimal, result *Result) {
	if taker.Side != common.Bid || tradePrice.Cmp(taker.Price) >= 0 {
		return
	}
	diff := decimalutil.SatSub(taker.Price, tradePrice)
	toUnreserve := diff.Mul(amount)
	key := balances.Key{Account: taker.MainAccount, Asset: taker.Pair.Quote}
	ledger.Unreserve(key, toUnreserve)
	result.touch(key)
}

// SettleOrderSide applies one order's half of one trade: fee collection,
// give-away asset debit (reserved, plus any dust release for a closing
// order), and receiving-asset credit. It mutates order.Fee and returns the
// fee receipt for the caller to append to the delta.
func SettleOrderSide(
	ledger *balances.Ledger,
	collector *fees.Collector,
	order *common.Order,
	tradeID common.TradeID,
	isMaker bool,
	price, amount decimal.Decimal,
	minVolume decimal.Decimal,
	result *Result,
) common.FeeReceipt {
	recvAsset, recvAmt, giveAsset, giveAmt := CalculateAssetFlows(price, order.Side, order.Pair, amount)
	unreserve := CheckUnreserveForCloseInTrade(order, minVolume)

	receipt := collector.SettleTradeFees(order.MainAccount, tradeID, isMaker, &recvAmt, recvAsset)
	order.Fee = decimalutil.RoundOff(decimalutil.SatAdd(order.Fee, receipt.Amount))

	potKey := balances.Key{Account: collector.Pot, Asset: receipt.Asset}
	ledger.CreditFree(potKey, receipt.Amount)
	result.touch(potKey)

	giveKey := balances.Key{Account: order.MainAccount, Asset: giveAsset}
	ledger.DebitReservedCreditFree(giveKey, decimalutil.SatAdd(giveAmt, unreserve), unreserve)
	result.touch(giveKey)

	recvKey := balances.Key{Account: order.MainAccount, Asset: recvAsset}
	ledger.CreditFree(recvKey, recvAmt)
	result.touch(recvKey)

	return receipt
}

// SettleTrades folds an entire batch of trades into the ledger: the Bid
// overpay refund (maker-side trade price vs. taker's limit), then both
// sides' asset flows, fees and dust release, for every trade in order. It
// returns updated copies of the trades (with each side's cumulative Fee
// filled in, mirroring the original's settle_trades mutating the trade's
// own order snapshots) alongside the fee receipts and the set of balance
// keys touched, so the caller can patch modified_orders/the resting book
// order's fee without re-deriving any of this.
func SettleTrades(ledger *balances.Ledger, collector *fees.Collector, trades []common.Trade, minVolume decimal.Decimal) ([]common.Trade, []common.FeeReceipt, *Result) {
	result := &Result{}
	var receipts []common.FeeReceipt
	updated := make([]common.Trade, len(trades))

	for i, trade := range trades {
		maker := trade.Maker
		taker := trade.Taker

		RefundBidOverpay(ledger, &taker, trade.Price, trade.Amount, result)

		// is_maker is an account-identity check, not a position check:
		// original's is_maker = order.main_account == maker.main_account.
		// For a self-trade (taker.MainAccount == maker.MainAccount) this
		// means the taker half is also charged the maker fraction.
		// Self-trade prevention itself is out of scope.
		makerAccount := maker.MainAccount
		receipts = append(receipts, SettleOrderSide(ledger, collector, &maker, trade.ID, maker.MainAccount == makerAccount, trade.Price, trade.Amount, minVolume, result))
		receipts = append(receipts, SettleOrderSide(ledger, collector, &taker, trade.ID, taker.MainAccount == makerAccount, trade.Price, trade.Amount, minVolume, result))

		trade.Maker = maker
		trade.Taker = taker
		updated[i] = trade
	}
	return updated, receipts, result
}
