package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"vaultex/internal/balances"
	"vaultex/internal/common"
	"vaultex/internal/fees"
)

var pair = common.TradingPair{Base: "BTC", Quote: "USD"}

func TestCalculateAssetFlowsAsk(t *testing.T) {
	recvAsset, recvAmt, giveAsset, giveAmt := CalculateAssetFlows(decimal.RequireFromString("100"), common.Ask, pair, decimal.RequireFromString("2"))
	assert.Equal(t, pair.Quote, recvAsset)
	assert.True(t, recvAmt.Equal(decimal.RequireFromString("200")))
	assert.Equal(t, pair.Base, giveAsset)
	assert.True(t, giveAmt.Equal(decimal.RequireFromString("2")))
}

func TestCalculateAssetFlowsBid(t *testing.T) {
	recvAsset, recvAmt, giveAsset, giveAmt := CalculateAssetFlows(decimal.RequireFromString("100"), common.Bid, pair, decimal.RequireFromString("2"))
	assert.Equal(t, pair.Base, recvAsset)
	assert.True(t, recvAmt.Equal(decimal.RequireFromString("2")))
	assert.Equal(t, pair.Quote, giveAsset)
	assert.True(t, giveAmt.Equal(decimal.RequireFromString("200")))
}

func TestCheckUnreserveForCloseReturnsZeroWhileOpenAboveMin(t *testing.T) {
	order := &common.Order{
		Pair: pair, Side: common.Ask, Type: common.Limit, Status: common.Open,
		Price: decimal.RequireFromString("10"), Qty: decimal.RequireFromString("5"), FilledQuantity: decimal.RequireFromString("1"),
	}
	got := CheckUnreserveForCloseInTrade(order, decimal.RequireFromString("1"))
	assert.True(t, got.IsZero())
}

func TestCheckUnreserveForCloseReturnsRemainingWhenClosed(t *testing.T) {
	order := &common.Order{
		Pair: pair, Side: common.Bid, Type: common.Limit, Status: common.Closed,
		Price: decimal.RequireFromString("10"), Qty: decimal.RequireFromString("5"), FilledQuantity: decimal.RequireFromString("3"),
	}
	got := CheckUnreserveForCloseInTrade(order, decimal.RequireFromString("1"))
	assert.True(t, got.Equal(decimal.RequireFromString("20")))
}

func TestRefundBidOverpayUnreservesDifference(t *testing.T) {
	ledger := balances.New()
	key := balances.Key{Account: "alice", Asset: pair.Quote}
	ledger.CreditFree(key, decimal.RequireFromString("1000"))
	ledger.Reserve(key, decimal.RequireFromString("1000"))

	taker := &common.Order{MainAccount: "alice", Pair: pair, Side: common.Bid, Price: decimal.RequireFromString("105")}
	result := &Result{}
	RefundBidOverpay(ledger, taker, decimal.RequireFromString("100"), decimal.RequireFromString("2"), result)

	entry := ledger.Get(key)
	assert.True(t, entry.Free.Equal(decimal.RequireFromString("10")))
	assert.True(t, entry.Reserved.Equal(decimal.RequireFromString("990")))
	assert.Len(t, result.Touched, 1)
}

func TestSettleTradesCreditsFeePotAndBothSides(t *testing.T) {
	ledger := balances.New()
	collector := fees.New("pot", fees.AccountFee{MakerFraction: decimal.Zero, TakerFraction: decimal.Zero})

	maker := common.Order{ID: "maker", MainAccount: "alice", Pair: pair, Side: common.Ask, Type: common.Limit, Price: decimal.RequireFromString("100"), Qty: decimal.RequireFromString("1"), FilledQuantity: decimal.RequireFromString("1"), Status: common.Closed}
	taker := common.Order{ID: "taker", MainAccount: "bob", Pair: pair, Side: common.Bid, Type: common.Limit, Price: decimal.RequireFromString("100"), Qty: decimal.RequireFromString("1"), FilledQuantity: decimal.RequireFromString("1"), Status: common.Closed}
	trade := common.NewTrade(1, maker, taker, decimal.RequireFromString("100"), decimal.RequireFromString("1"))

	updated, receipts, result := SettleTrades(ledger, collector, []common.Trade{trade}, decimal.RequireFromString("1"))

	assert.Len(t, updated, 1)
	assert.Len(t, receipts, 2)
	assert.NotEmpty(t, result.Touched)

	aliceQuote := ledger.Get(balances.Key{Account: "alice", Asset: pair.Quote})
	assert.True(t, aliceQuote.Free.Equal(decimal.RequireFromString("100")))

	bobBase := ledger.Get(balances.Key{Account: "bob", Asset: pair.Base})
	assert.True(t, bobBase.Free.Equal(decimal.RequireFromString("1")))
}
