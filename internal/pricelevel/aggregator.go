// Package pricelevel maintains the aggregate unfilled size resting at each
// (pair, side, price), pruning entries whose notional falls below a pair's
// minimum volume. It is grounded on the original engine's
// add_to_pricelevel/reduce_from_pricelevel (original_source/src/lib.rs).
package pricelevel

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"vaultex/internal/common"
	"vaultex/internal/decimalutil"
)

// Key identifies one price level. Because Key embeds a decimal.Decimal
// (which wraps a *big.Int and is therefore not safely usable as a plain Go
// map key — two equal prices built from different literals would compare
// unequal by pointer), every ordered collection keyed on it in this package
// goes through a btree rather than a map.
type Key struct {
	Pair  common.TradingPair
	Side  common.OrderSide
	Price decimal.Decimal
}

type record struct {
	key Key
	qty decimal.Decimal
}

func lessRecord(a, b *record) bool {
	if ap, bp := a.key.Pair.Key(), b.key.Pair.Key(); ap != bp {
		return ap < bp
	}
	if a.key.Side != b.key.Side {
		return a.key.Side < b.key.Side
	}
	return a.key.Price.Cmp(b.key.Price) < 0
}

// Aggregator is the engine's live (pair, side, price) -> qty map.
type Aggregator struct {
	tree *btree.BTreeG[*record]
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{tree: btree.NewBTreeG(lessRecord)}
}

// LevelChange is one (key, post-update qty) pair recorded for a delta. A
// zero Qty means the level was pruned (removed).
type LevelChange struct {
	Key Key
	Qty decimal.Decimal
}

// ChangeSet collects the post-update value of every level touched during one
// ProcessOrder call, in deterministic key order, for writing into the
// execution delta.
type ChangeSet struct {
	tree *btree.BTreeG[*record]
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{tree: btree.NewBTreeG(lessRecord)}
}

func (c *ChangeSet) record(key Key, qty decimal.Decimal) {
	c.tree.Set(&record{key: key, qty: qty})
}

// Get returns the recorded post-update qty for key, if any.
func (c *ChangeSet) Get(key Key) (decimal.Decimal, bool) {
	if rec, ok := c.tree.Get(&record{key: key}); ok {
		return rec.qty, true
	}
	return decimal.Zero, false
}

// Items returns every recorded change in deterministic key order.
func (c *ChangeSet) Items() []LevelChange {
	out := make([]LevelChange, 0, c.tree.Len())
	c.tree.Scan(func(rec *record) bool {
		out = append(out, LevelChange{Key: rec.key, Qty: rec.qty})
		return true
	})
	return out
}

func (a *Aggregator) adjust(key Key, delta, minVolume decimal.Decimal, add bool, changes *ChangeSet) {
	rec, ok := a.tree.Get(&record{key: key})
	if !ok {
		rec = &record{key: key, qty: decimal.Zero}
	}
	if add {
		rec.qty = decimalutil.Max(rec.qty.Add(delta), decimal.Zero)
	} else {
		rec.qty = decimalutil.SatSub(rec.qty, delta)
	}

	notional := key.Price.Mul(rec.qty)
	if notional.Cmp(minVolume) < 0 {
		rec.qty = decimal.Zero
	}

	if rec.qty.IsZero() {
		a.tree.Delete(&record{key: key})
	} else {
		a.tree.Set(rec)
	}
	changes.record(key, rec.qty)
}

// Add increases the level at key by delta (used for a processed order's
// still-open residual).
func (a *Aggregator) Add(key Key, delta, minVolume decimal.Decimal, changes *ChangeSet) {
	a.adjust(key, delta, minVolume, true, changes)
}

// Reduce decreases the level at key by delta (used for the maker side of
// every emitted trade).
func (a *Aggregator) Reduce(key Key, delta, minVolume decimal.Decimal, changes *ChangeSet) {
	a.adjust(key, delta, minVolume, false, changes)
}

// Get returns the current aggregate at key, or zero if absent.
func (a *Aggregator) Get(key Key) decimal.Decimal {
	if rec, ok := a.tree.Get(&record{key: key}); ok {
		return rec.qty
	}
	return decimal.Zero
}

// Items returns every live level in deterministic order, for tests and
// snapshotting.
func (a *Aggregator) Items() []LevelChange {
	out := make([]LevelChange, 0, a.tree.Len())
	a.tree.Scan(func(rec *record) bool {
		out = append(out, LevelChange{Key: rec.key, Qty: rec.qty})
		return true
	})
	return out
}
