package pricelevel

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"vaultex/internal/common"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testKey(price string) Key {
	return Key{
		Pair:  common.TradingPair{Base: "BTC", Quote: "USD"},
		Side:  common.Bid,
		Price: d(price),
	}
}

func TestAddAccumulatesAndRecordsChange(t *testing.T) {
	agg := New()
	changes := NewChangeSet()
	key := testKey("100")

	agg.Add(key, d("2"), d("1"), changes)
	assert.True(t, agg.Get(key).Equal(d("2")))

	agg.Add(key, d("3"), d("1"), changes)
	assert.True(t, agg.Get(key).Equal(d("5")))

	qty, ok := changes.Get(key)
	assert.True(t, ok)
	assert.True(t, qty.Equal(d("5")))
}

func TestReducePrunesBelowMinVolume(t *testing.T) {
	agg := New()
	changes := NewChangeSet()
	key := testKey("10")

	agg.Add(key, d("5"), d("1"), changes)
	assert.True(t, agg.Get(key).Equal(d("5")))

	// notional after reducing to 0.05 units is 0.5 < minVolume 1, so the
	// level should be pruned to zero and removed from the tree.
	agg.Reduce(key, d("4.95"), d("1"), changes)
	assert.True(t, agg.Get(key).IsZero())

	qty, ok := changes.Get(key)
	assert.True(t, ok)
	assert.True(t, qty.IsZero())
	assert.Len(t, agg.Items(), 0)
}

func TestReduceNeverGoesNegative(t *testing.T) {
	agg := New()
	changes := NewChangeSet()
	key := testKey("10")

	agg.Add(key, d("1"), d("0"), changes)
	agg.Reduce(key, d("5"), d("0"), changes)
	assert.True(t, agg.Get(key).IsZero())
}

func TestItemsDeterministicOrder(t *testing.T) {
	agg := New()
	changes := NewChangeSet()

	agg.Add(testKey("30"), d("1"), d("0"), changes)
	agg.Add(testKey("10"), d("1"), d("0"), changes)
	agg.Add(testKey("20"), d("1"), d("0"), changes)

	items := agg.Items()
	assert.Len(t, items, 3)
	assert.True(t, items[0].Key.Price.Equal(d("10")))
	assert.True(t, items[1].Key.Price.Equal(d("20")))
	assert.True(t, items[2].Key.Price.Equal(d("30")))
}
