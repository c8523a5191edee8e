// Package book holds one resting-order book per trading pair: a bid side and
// an ask side, each a price-ordered tree of price levels, each level a
// time-ordered slice of orders. It is grounded on the teacher's
// engine.OrderBook (saiputravu-Exchange/internal/engine/orderbook.go), kept
// generic over tidwall/btree but reworked onto decimal prices and a by-id
// index so cancel/patch lookups don't require a full book scan.
package book

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"vaultex/internal/common"
)

// ErrOrderNotFound is returned by Remove when the id has no resting order.
var ErrOrderNotFound = errors.New("order not resting in book")

// priceLevel is one resting price with its orders in arrival order. The
// order at index 0 is always the next to match (price-time priority).
type priceLevel struct {
	price  decimal.Decimal
	orders []*common.Order
}

type idEntry struct {
	side  common.OrderSide
	price decimal.Decimal
}

// Book is the pair of bid/ask trees for one trading pair, plus an order-id
// index used for cancel and fee-patch lookups.
type Book struct {
	Pair common.TradingPair
	bids *btree.BTreeG[*priceLevel] // best bid (highest price) first
	asks *btree.BTreeG[*priceLevel] // best ask (lowest price) first
	ids  map[common.OrderID]*idEntry
}

// New returns an empty book for pair.
func New(pair common.TradingPair) *Book {
	return &Book{
		Pair: pair,
		bids: btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price.Cmp(b.price) > 0 }),
		asks: btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price.Cmp(b.price) < 0 }),
		ids:  make(map[common.OrderID]*idEntry),
	}
}

func (b *Book) tree(side common.OrderSide) *btree.BTreeG[*priceLevel] {
	if side == common.Bid {
		return b.bids
	}
	return b.asks
}

// Insert rests order at the back of its price level's order queue, creating
// the level if it does not exist. The caller must already have validated
// that order belongs to this book's pair and is a Limit order.
func (b *Book) Insert(order *common.Order) {
	tree := b.tree(order.Side)
	level, ok := tree.Get(&priceLevel{price: order.Price})
	if !ok {
		level = &priceLevel{price: order.Price}
		tree.Set(level)
	}
	level.orders = append(level.orders, order)
	b.ids[order.ID] = &idEntry{side: order.Side, price: order.Price}
}

// BestBid returns the highest resting bid price level, if any.
func (b *Book) BestBid() (*priceLevel, bool) { return b.bids.Min() }

// BestAsk returns the lowest resting ask price level, if any.
func (b *Book) BestAsk() (*priceLevel, bool) { return b.asks.Min() }

// Best returns the top price level on side, if any. Callers that don't care
// which side they're matching against (the matcher sweeps whichever side is
// opposite the taker) use this instead of branching on BestBid/BestAsk
// themselves.
func (b *Book) Best(side common.OrderSide) (*priceLevel, bool) {
	return b.tree(side).Min()
}

// Front returns the next order due to match at level (index 0), or nil if
// the level is empty.
func (level *priceLevel) Front() *common.Order {
	if len(level.orders) == 0 {
		return nil
	}
	return level.orders[0]
}

// Price returns the level's resting price.
func (level *priceLevel) Price() decimal.Decimal { return level.price }

// PopFront removes the resident at index 0, called once it is fully filled
// (Remaining() == 0) or closed with a sub-minimum remainder. It also drops
// the order from the book's id index.
func (b *Book) PopFront(side common.OrderSide, level *priceLevel) {
	if len(level.orders) == 0 {
		return
	}
	gone := level.orders[0]
	level.orders = level.orders[1:]
	delete(b.ids, gone.ID)
	if len(level.orders) == 0 {
		b.tree(side).Delete(level)
	}
}

// Remove cancels a single resting order by id, scanning only within its own
// price level (found via the by-id index in O(log n), vs. a full book scan).
func (b *Book) Remove(id common.OrderID) (*common.Order, error) {
	entry, ok := b.ids[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	tree := b.tree(entry.side)
	level, ok := tree.Get(&priceLevel{price: entry.price})
	if !ok {
		delete(b.ids, id)
		return nil, ErrOrderNotFound
	}
	var removed *common.Order
	for i, o := range level.orders {
		if o.ID == id {
			removed = o
			level.orders = append(level.orders[:i], level.orders[i+1:]...)
			break
		}
	}
	delete(b.ids, id)
	if len(level.orders) == 0 {
		tree.Delete(level)
	}
	if removed == nil {
		return nil, ErrOrderNotFound
	}
	return removed, nil
}

// Lookup returns the resting order with id without removing it, used after
// settlement to patch a maker's cumulative fee while it is still resting.
func (b *Book) Lookup(id common.OrderID) (*common.Order, bool) {
	entry, ok := b.ids[id]
	if !ok {
		return nil, false
	}
	level, ok := b.tree(entry.side).Get(&priceLevel{price: entry.price})
	if !ok {
		return nil, false
	}
	for _, o := range level.orders {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// DeleteLevelIfEmpty removes level from side's tree if it has no resting
// orders left. The matcher does not call it: PopFront already deletes a
// level once its last order is popped.
func (b *Book) DeleteLevelIfEmpty(side common.OrderSide, level *priceLevel) {
	if len(level.orders) == 0 {
		b.tree(side).Delete(level)
	}
}

// Depth returns the number of resting orders across both sides, for tests
// and metrics.
func (b *Book) Depth() int {
	return len(b.ids)
}
