package common

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// tradeIDNamespace is a fixed, arbitrary UUID used purely as a namespace for
// deriving deterministic trade IDs. It carries no meaning beyond seeding
// uuid.NewSHA1, which (unlike uuid.New) is a pure function of its inputs —
// required so two replicas fed identical orders mint identical trade IDs.
var tradeIDNamespace = uuid.MustParse("6f6e8b0a-6e6f-4f4f-9a7a-8f6e6f6e6f6e")

// NewTradeID derives a trade id deterministically from the two order ids,
// the stid of the ProcessOrder call that produced the fill, and the fill
// price/amount. Two engine replicas processing
// the same order against the same book state produce the same trade id.
func NewTradeID(maker, taker OrderID, stid uint64, price, amount decimal.Decimal) TradeID {
	name := fmt.Sprintf("%s|%s|%d|%s|%s", maker, taker, stid, price, amount)
	return TradeID(uuid.NewSHA1(tradeIDNamespace, []byte(name)).String())
}

// Trade is a value-snapshot of both sides at match time; it is never mutated
// after creation and holds no references back into the books.
type Trade struct {
	ID     TradeID
	Maker  Order
	Taker  Order
	Price  decimal.Decimal // always the maker's price
	Amount decimal.Decimal // base quantity exchanged
}

// NewTrade snapshots maker and taker and derives the trade's id.
func NewTrade(stid uint64, maker, taker Order, price, amount decimal.Decimal) Trade {
	return Trade{
		ID:     NewTradeID(maker.ID, taker.ID, stid, price, amount),
		Maker:  maker,
		Taker:  taker,
		Price:  price,
		Amount: amount,
	}
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Trade %s
Maker: [
%s]
Taker: [
%s]
Price:  %s
Amount: %s`,
		t.ID, t.Maker, t.Taker, t.Price, t.Amount,
	)
}

// FeeReceipt records one fee assessment: the user charged, the trade it came
// from, which asset and how much, and whether the user was the maker.
type FeeReceipt struct {
	User    AccountId
	TradeID TradeID
	Asset   AssetId
	Amount  decimal.Decimal
	IsMaker bool
}
