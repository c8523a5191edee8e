package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultex/internal/balances"
	"vaultex/internal/common"
	"vaultex/internal/fees"
)

var pair = common.TradingPair{Base: "Polkadex", Quote: "Asset1"}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New("pot", fees.AccountFee{})
	e.AddTradingPair(common.TradingPairConfig{
		Pair:        pair,
		MinVolume:   decimal.RequireFromString("0.00000001"),
		QtyStepSize: decimal.RequireFromString("0.00000001"),
	})
	return e
}

func seed(e *Engine, account common.AccountId, asset common.AssetId, free string) {
	e.balances.CreditFree(balances.Key{Account: account, Asset: asset}, decimal.RequireFromString(free))
}

func newEngineWithConfig(t *testing.T, minVolume, qtyStepSize string) *Engine {
	t.Helper()
	e := New("pot", fees.AccountFee{})
	e.AddTradingPair(common.TradingPairConfig{
		Pair:        pair,
		MinVolume:   decimal.RequireFromString(minVolume),
		QtyStepSize: decimal.RequireFromString(qtyStepSize),
	})
	return e
}

func modifiedOrder(result *OrderExecutionResult, id common.OrderID) *ModifiedOrder {
	for i := range result.ModifiedOrders {
		if result.ModifiedOrders[i].ID == id {
			return &result.ModifiedOrders[i]
		}
	}
	return nil
}

func TestRestingAskOpensPriceLevel(t *testing.T) {
	e := newTestEngine(t)
	seed(e, "maker", pair.Base, "100")
	seed(e, "maker", pair.Quote, "100")

	maker := common.Order{ID: "maker-1", MainAccount: "maker", Pair: pair, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("10")}

	result, err := e.ProcessOrder(maker, 1)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
	assert.Equal(t, uint64(1), result.STID)
	require.Len(t, result.PriceLevels, 1)
	assert.True(t, result.PriceLevels[0].Qty.Equal(decimal.RequireFromString("10")))
}

// Grounded on original_source/src/tests/trade_price_test.rs: a resting ask
// at price 1 crossed by a bid limited at price 2 trades at the maker's
// price, leaving the taker's overpay unreserved back to free.
func TestTradePriceUsesMakerPriceAndRefundsOverpay(t *testing.T) {
	e := newTestEngine(t)
	seed(e, "maker", pair.Base, "100")
	seed(e, "maker", pair.Quote, "100")
	seed(e, "taker", pair.Base, "100")
	seed(e, "taker", pair.Quote, "100")

	maker := common.Order{ID: "maker-1", MainAccount: "maker", Pair: pair, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("10")}
	_, err := e.ProcessOrder(maker, 1)
	require.NoError(t, err)

	taker := common.Order{ID: "taker-1", MainAccount: "taker", Pair: pair, Side: common.Bid, Type: common.Limit,
		Price: decimal.RequireFromString("2"), Qty: decimal.RequireFromString("20")}
	result, err := e.ProcessOrder(taker, 2)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.True(t, trade.Price.Equal(decimal.RequireFromString("1")))
	assert.True(t, trade.Amount.Equal(decimal.RequireFromString("10")))

	takerQuote := e.balances.Get(balances.Key{Account: "taker", Asset: pair.Quote})
	assert.True(t, takerQuote.Reserved.Equal(decimal.RequireFromString("20")), "expected reserved 20, got %s", takerQuote.Reserved)
}

func TestAskFullyConsumedClosesOrderAndRemovesLevel(t *testing.T) {
	e := newTestEngine(t)
	seed(e, "maker", pair.Base, "10")
	seed(e, "taker", pair.Quote, "10")

	maker := common.Order{ID: "m", MainAccount: "maker", Pair: pair, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("10")}
	_, err := e.ProcessOrder(maker, 1)
	require.NoError(t, err)

	taker := common.Order{ID: "t", MainAccount: "taker", Pair: pair, Side: common.Bid, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("10")}
	result, err := e.ProcessOrder(taker, 2)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	var makerState, takerState *ModifiedOrder
	for i := range result.ModifiedOrders {
		if result.ModifiedOrders[i].ID == "m" {
			makerState = &result.ModifiedOrders[i]
		}
		if result.ModifiedOrders[i].ID == "t" {
			takerState = &result.ModifiedOrders[i]
		}
	}
	require.NotNil(t, makerState)
	require.NotNil(t, takerState)
	assert.Equal(t, common.Closed, makerState.Order.Status)
	assert.Equal(t, common.Closed, takerState.Order.Status)

	for _, lvl := range result.PriceLevels {
		assert.True(t, lvl.Qty.IsZero())
	}
}

func TestMarketBidZeroZeroRejected(t *testing.T) {
	e := newTestEngine(t)
	order := common.Order{ID: "m", MainAccount: "x", Pair: pair, Side: common.Bid, Type: common.Market}
	_, err := e.ProcessOrder(order, 1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestUnknownPairRejected(t *testing.T) {
	e := New("pot", fees.AccountFee{})
	order := common.Order{ID: "o", MainAccount: "x", Pair: common.TradingPair{Base: "X", Quote: "Y"}, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("1")}
	_, err := e.ProcessOrder(order, 1)
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestInsufficientBalanceLeavesStateUnchanged(t *testing.T) {
	e := newTestEngine(t)
	order := common.Order{ID: "o", MainAccount: "poor", Pair: pair, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("10")}
	_, err := e.ProcessOrder(order, 1)
	assert.ErrorIs(t, err, balances.ErrInsufficientBalance)

	entry := e.balances.Get(balances.Key{Account: "poor", Asset: pair.Base})
	assert.True(t, entry.Free.IsZero())
	assert.True(t, entry.Reserved.IsZero())
}

func TestMarketOrderAlwaysClosesAndReleasesResidual(t *testing.T) {
	e := newTestEngine(t)
	seed(e, "maker", pair.Base, "5")
	seed(e, "taker", pair.Quote, "100")

	maker := common.Order{ID: "m", MainAccount: "maker", Pair: pair, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("5")}
	_, err := e.ProcessOrder(maker, 1)
	require.NoError(t, err)

	taker := common.Order{ID: "t", MainAccount: "taker", Pair: pair, Side: common.Bid, Type: common.Market,
		QuoteOrderQty: decimal.RequireFromString("10")}
	result, err := e.ProcessOrder(taker, 2)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	var takerState *ModifiedOrder
	for i := range result.ModifiedOrders {
		if result.ModifiedOrders[i].ID == "t" {
			takerState = &result.ModifiedOrders[i]
		}
	}
	require.NotNil(t, takerState)
	assert.Equal(t, common.Closed, takerState.Order.Status)

	takerQuote := e.balances.Get(balances.Key{Account: "taker", Asset: pair.Quote})
	assert.True(t, takerQuote.Reserved.IsZero(), "unspent market reservation must be released, got %s", takerQuote.Reserved)
}

func TestUpdateFeeStructureIsObservedByNextTrade(t *testing.T) {
	e := newTestEngine(t)
	seed(e, "maker", pair.Base, "10")
	seed(e, "taker", pair.Quote, "10")
	e.UpdateFeeStructure("taker", decimal.Zero, decimal.RequireFromString("0.1"))

	maker := common.Order{ID: "m", MainAccount: "maker", Pair: pair, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("10")}
	_, err := e.ProcessOrder(maker, 1)
	require.NoError(t, err)

	taker := common.Order{ID: "t", MainAccount: "taker", Pair: pair, Side: common.Bid, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("10")}
	result, err := e.ProcessOrder(taker, 2)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	potBase := e.balances.Get(balances.Key{Account: "pot", Asset: pair.Base})
	assert.True(t, potBase.Free.Equal(decimal.RequireFromString("1")), "taker fee (10%% of 10 base) must reach the pot, got %s", potBase.Free)
}

// Grounded on original_source/src/tests/precision.rs: a maker bid and a
// taker ask both limited at 0.6275 settle for an exact amount whose
// decimal expansion exercises the full rounding path (reserve, trade,
// settle) without drifting off the source's asserted balance.
func TestPrecisionAcrossMultipleRoundingSteps(t *testing.T) {
	e := newTestEngine(t)
	seed(e, "maker", pair.Base, "100")
	seed(e, "maker", pair.Quote, "100")
	seed(e, "taker", pair.Base, "2.41970783")
	seed(e, "taker", pair.Quote, "100")

	maker := common.Order{ID: "m", MainAccount: "maker", Pair: pair, Side: common.Bid, Type: common.Limit,
		Price: decimal.RequireFromString("0.6275"), Qty: decimal.RequireFromString("10")}
	_, err := e.ProcessOrder(maker, 1)
	require.NoError(t, err)

	taker := common.Order{ID: "t", MainAccount: "taker", Pair: pair, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("0.6275"), Qty: decimal.RequireFromString("1.8")}
	result, err := e.ProcessOrder(taker, 2)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	takerBase := e.balances.Get(balances.Key{Account: "taker", Asset: pair.Base})
	assert.True(t, takerBase.Free.Equal(decimal.RequireFromString("0.61970783")), "expected taker base free 0.61970783, got %s", takerBase.Free)
}

// S4 (MANDATORY): a quote-budgeted market bid must sweep every price level
// whose quantized fill is non-zero, not stop after its first trade. This is
// the scenario that catches the taker.Remaining()-based break regression:
// a quote-order_qty market bid has Qty == 0, so Remaining() saturates to
// zero the instant anything fills, and a break on that condition would
// wrongly stop the sweep after trading only the 1.00 level.
func TestMarketBidInQuoteSweepsMultipleLevels(t *testing.T) {
	e := newEngineWithConfig(t, "0.00000001", "0.01")
	seed(e, "maker", pair.Base, "15")
	seed(e, "taker", pair.Quote, "7.5")

	for _, price := range []string{"1.00", "1.01", "1.02"} {
		maker := common.Order{ID: common.OrderID("m-" + price), MainAccount: "maker", Pair: pair, Side: common.Ask, Type: common.Limit,
			Price: decimal.RequireFromString(price), Qty: decimal.RequireFromString("5")}
		_, err := e.ProcessOrder(maker, 1)
		require.NoError(t, err)
	}

	taker := common.Order{ID: "t", MainAccount: "taker", Pair: pair, Side: common.Bid, Type: common.Market,
		QuoteOrderQty: decimal.RequireFromString("7.5")}
	result, err := e.ProcessOrder(taker, 2)
	require.NoError(t, err)

	require.Len(t, result.Trades, 2, "expected the sweep to cross both the 1.00 and 1.01 levels")
	assert.True(t, result.Trades[0].Price.Equal(decimal.RequireFromString("1.00")))
	assert.True(t, result.Trades[0].Amount.Equal(decimal.RequireFromString("5")))
	assert.True(t, result.Trades[1].Price.Equal(decimal.RequireFromString("1.01")))
	assert.True(t, result.Trades[1].Amount.Equal(decimal.RequireFromString("2.47")), "expected the quote residual to quantize down to 2.47, got %s", result.Trades[1].Amount)

	takerState := modifiedOrder(result, "t")
	require.NotNil(t, takerState)
	assert.Equal(t, common.Closed, takerState.Order.Status)

	takerQuote := e.balances.Get(balances.Key{Account: "taker", Asset: pair.Quote})
	assert.True(t, takerQuote.Reserved.IsZero(), "unspent quote budget must be released, got %s", takerQuote.Reserved)

	for _, lvl := range result.PriceLevels {
		assert.False(t, lvl.Key.Price.Equal(decimal.RequireFromString("1.02")), "the untouched 1.02 level must not appear in the delta")
	}
}

// S5: a partial fill that leaves a maker's remaining volume as dust below
// the pair's minimum closes the maker outright instead of leaving a
// sub-minimum sliver resting in the book.
func TestDustRemainderClosesRestingOrder(t *testing.T) {
	e := newEngineWithConfig(t, "0.000001", "0.00000001")
	seed(e, "maker", pair.Base, "10")
	seed(e, "taker", pair.Quote, "9.99999999")

	maker := common.Order{ID: "m", MainAccount: "maker", Pair: pair, Side: common.Ask, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("10")}
	_, err := e.ProcessOrder(maker, 1)
	require.NoError(t, err)

	taker := common.Order{ID: "t", MainAccount: "taker", Pair: pair, Side: common.Bid, Type: common.Limit,
		Price: decimal.RequireFromString("1"), Qty: decimal.RequireFromString("9.99999999")}
	result, err := e.ProcessOrder(taker, 2)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.True(t, result.Trades[0].Amount.Equal(decimal.RequireFromString("9.99999999")))

	makerState := modifiedOrder(result, "m")
	require.NotNil(t, makerState)
	assert.Equal(t, common.Closed, makerState.Order.Status, "dust below min_volume must close the maker")

	makerBase := e.balances.Get(balances.Key{Account: "maker", Asset: pair.Base})
	assert.True(t, makerBase.Free.Equal(decimal.RequireFromString("0.00000001")), "dust must be released back to free, got %s", makerBase.Free)
	assert.True(t, makerBase.Reserved.IsZero())

	for _, lvl := range result.PriceLevels {
		assert.True(t, lvl.Qty.IsZero(), "the dusted level must be pruned to zero")
	}
}
