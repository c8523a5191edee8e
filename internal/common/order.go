package common

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vaultex/internal/decimalutil"
)

// OrderSide is which side of the book an order rests or takes on.
type OrderSide int

const (
	Bid OrderSide = iota
	Ask
)

func (s OrderSide) String() string {
	if s == Bid {
		return "Bid"
	}
	return "Ask"
}

// OrderType distinguishes resting (Limit) orders from immediate-or-cancel
// (Market) orders. Market orders are never inserted into a book.
type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "Limit"
	}
	return "Market"
}

// OrderStatus tracks whether an order can still rest in a book.
type OrderStatus int

const (
	Open OrderStatus = iota
	Closed
)

func (s OrderStatus) String() string {
	if s == Open {
		return "Open"
	}
	return "Closed"
}

// Order is the mutable fill state of one order, identified by an immutable
// ID assigned before it ever reaches the engine. FilledQuantity, AvgFilledPrice,
// Fee and Status are the only fields ProcessOrder mutates after creation.
type Order struct {
	ID             OrderID
	MainAccount    AccountId
	Pair           TradingPair
	Side           OrderSide
	Type           OrderType
	Price          decimal.Decimal // zero for Market orders
	Qty            decimal.Decimal // base quantity requested
	QuoteOrderQty  decimal.Decimal // market-bid budget in quote, zero if unused
	FilledQuantity decimal.Decimal
	AvgFilledPrice decimal.Decimal
	Fee            decimal.Decimal // cumulative fee charged across all trades
	Status         OrderStatus
	STID           uint64
}

// Remaining returns qty - filled_quantity, never negative.
func (o Order) Remaining() decimal.Decimal {
	return decimalutil.SatSub(o.Qty, o.FilledQuantity)
}

// AvailableVolume computes the order's remaining tradeable volume.
//
//   - Bid+Limit:          (qty - filled) * price, using refPrice in place of
//     price when one is supplied (the matcher calls this with the resting
//     maker's price to test whether the taker still has enough left to cross).
//   - Bid+Market with a quote budget: quote_order_qty - avg_filled_price*filled.
//   - Ask (either type): qty - filled, denominated in base.
//
// Bid+Market with no quote budget falls into the Ask branch by construction
// (ProcessOrder rejects that combination outright when qty is zero as well;
// see Engine.ProcessOrder).
func (o Order) AvailableVolume(refPrice *decimal.Decimal) decimal.Decimal {
	remaining := o.Remaining()
	switch {
	case o.Side == Bid && o.Type == Limit:
		price := o.Price
		if refPrice != nil {
			price = *refPrice
		}
		return decimalutil.RoundOff(remaining.Mul(price))
	case o.Side == Bid && o.Type == Market && o.QuoteOrderQty.Cmp(decimal.Zero) > 0:
		spent := decimalutil.RoundOff(o.AvgFilledPrice.Mul(o.FilledQuantity))
		return decimalutil.SatSub(o.QuoteOrderQty, spent)
	default:
		return remaining
	}
}

// UpdateAvgPriceAndFilledQty folds one more fill into the order's running
// average price and filled quantity. Both results are rounded.
func (o *Order) UpdateAvgPriceAndFilledQty(tradePrice, tradeQty decimal.Decimal) {
	totalFilled := o.FilledQuantity.Add(tradeQty)
	numerator := o.AvgFilledPrice.Mul(o.FilledQuantity).Add(tradePrice.Mul(tradeQty))
	o.AvgFilledPrice = decimalutil.RoundOff(decimalutil.CheckedDiv(numerator, totalFilled))
	o.FilledQuantity = decimalutil.RoundOff(totalFilled)
}

func (o Order) String() string {
	return fmt.Sprintf(
		`ID:      %s
Account: %s
Pair:    %s
Side:    %v
Type:    %v
Price:   %s
Qty:     %s (filled %s)
Status:  %v
STID:    %d`,
		o.ID, o.MainAccount, o.Pair, o.Side, o.Type, o.Price, o.Qty, o.FilledQuantity, o.Status, o.STID,
	)
}
