// Package balances is the engine's free/reserved balance store. It is kept
// separate from the settlement package because reservation (§4.8 of the
// spec) and settlement (§4.6) both need to mutate it, and its deterministic
// iteration order is load-bearing for snapshot round-trips.
package balances

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"vaultex/internal/common"
	"vaultex/internal/decimalutil"
)

// ErrInsufficientBalance is returned by Reserve when free balance cannot
// cover the requested amount. The caller discards the in-progress delta;
// Reserve itself performs no mutation when it returns this error.
var ErrInsufficientBalance = errors.New("insufficient balance to reserve")

// Key identifies one balance row.
type Key struct {
	Account common.AccountId
	Asset   common.AssetId
}

// Entry is the free/reserved state of one (account, asset) pair. Both sides
// are always non-negative.
type Entry struct {
	Free     decimal.Decimal
	Reserved decimal.Decimal
}

type record struct {
	key Key
	val Entry
}

func lessRecord(a, b *record) bool {
	if a.key.Account != b.key.Account {
		return a.key.Account < b.key.Account
	}
	return a.key.Asset < b.key.Asset
}

// Ledger is the balance store the engine owns exclusively. Entries are
// created lazily on first touch and never removed, per the spec's lifecycle
// note, so Get never needs to distinguish "zero balance" from "untouched".
type Ledger struct {
	tree *btree.BTreeG[*record]
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{tree: btree.NewBTreeG(lessRecord)}
}

func (l *Ledger) entry(key Key) *record {
	found, ok := l.tree.Get(&record{key: key})
	if ok {
		return found
	}
	rec := &record{key: key, val: Entry{Free: decimal.Zero, Reserved: decimal.Zero}}
	l.tree.Set(rec)
	return rec
}

// Get returns the current state of key without creating it if absent.
func (l *Ledger) Get(key Key) Entry {
	found, ok := l.tree.Get(&record{key: key})
	if !ok {
		return Entry{Free: decimal.Zero, Reserved: decimal.Zero}
	}
	return found.val
}

// Reserve moves amount from free to reserved. If free is insufficient it
// returns ErrInsufficientBalance and leaves the ledger untouched.
func (l *Ledger) Reserve(key Key, amount decimal.Decimal) (Entry, error) {
	if current := l.Get(key); current.Free.Cmp(amount) < 0 {
		return current, ErrInsufficientBalance
	}
	rec := l.entry(key)
	rec.val.Free = rec.val.Free.Sub(amount)
	rec.val.Reserved = rec.val.Reserved.Add(amount)
	return rec.val, nil
}

// Unreserve moves amount from reserved back to free, saturating at zero.
func (l *Ledger) Unreserve(key Key, amount decimal.Decimal) Entry {
	rec := l.entry(key)
	rec.val.Reserved = decimalutil.SatSub(rec.val.Reserved, amount)
	rec.val.Free = decimalutil.RoundOff(decimalutil.SatAdd(rec.val.Free, amount))
	return rec.val
}

// CreditFree adds amount to free (used for fee-pot credits and trade receipts).
func (l *Ledger) CreditFree(key Key, amount decimal.Decimal) Entry {
	rec := l.entry(key)
	rec.val.Free = decimalutil.RoundOff(decimalutil.SatAdd(rec.val.Free, amount))
	return rec.val
}

// DebitReservedCreditFree removes debitReserved from reserved and adds
// creditFree to free in one step — the settlement shape where give-asset
// reserved is drawn down by the traded amount plus any dust being released
// back to free on the same asset.
func (l *Ledger) DebitReservedCreditFree(key Key, debitReserved, creditFree decimal.Decimal) Entry {
	rec := l.entry(key)
	rec.val.Reserved = decimalutil.SatSub(rec.val.Reserved, debitReserved)
	rec.val.Free = decimalutil.RoundOff(decimalutil.SatAdd(rec.val.Free, creditFree))
	return rec.val
}

// Item is one exported (key, entry) pair, used for Load and for tests that
// want a deterministic full snapshot.
type Item struct {
	Key   Key
	Entry Entry
}

// Items returns every balance row in deterministic (account, asset) order.
func (l *Ledger) Items() []Item {
	out := make([]Item, 0, l.tree.Len())
	l.tree.Scan(func(rec *record) bool {
		out = append(out, Item{Key: rec.key, Entry: rec.val})
		return true
	})
	return out
}

// Load seeds a ledger from a prior snapshot, for Engine.Load.
func Load(items []Item) *Ledger {
	l := New()
	for _, it := range items {
		l.tree.Set(&record{key: it.Key, val: it.Entry})
	}
	return l
}
