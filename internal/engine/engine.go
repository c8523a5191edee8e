// Package engine is the orchestrator: it owns the books, the balance
// ledger, the price-level aggregator and the fee collector for every
// registered trading pair, and exposes ProcessOrder as the single atomic
// unit of work. It is grounded on original_source/src/lib.rs's Orderbook
// (new/load/add_trading_pair/update_fee_structure/process_order), rebuilt
// around the teacher's btree-backed containers instead of BTreeMap/BinaryHeap.
package engine

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"vaultex/internal/assertx"
	"vaultex/internal/balances"
	"vaultex/internal/book"
	"vaultex/internal/common"
	"vaultex/internal/decimalutil"
	"vaultex/internal/fees"
	"vaultex/internal/matcher"
	"vaultex/internal/pricelevel"
	"vaultex/internal/settlement"
)

// ErrConfigMissing is returned by ProcessOrder when the order's pair was
// never registered via AddTradingPair.
var ErrConfigMissing = errors.New("trading pair config not found")

// ErrBookMissing signals an invariant violation: a pair is registered but
// its book was not created. This should never happen outside of a bug in
// AddTradingPair/Load, so it is deliberately distinct from ErrConfigMissing.
var ErrBookMissing = errors.New("order book not opened")

// ErrInvalidOrder is returned for an order shape the engine refuses to
// reserve balance for at all — currently only a Market-Bid with both qty
// and quote_order_qty zero, which the original source silently treated as
// a zero-reservation Ask-base order.
var ErrInvalidOrder = errors.New("invalid order: market bid requires a non-zero qty or quote_order_qty")

// Engine holds every registered pair's config, book, and the shared
// balance/fee state. It is not safe for concurrent use: the wire front-end
// serializes ProcessOrder calls through one goroutine.
type Engine struct {
	configs  map[string]common.TradingPairConfig
	books    map[string]*book.Book
	balances *balances.Ledger
	levels   *pricelevel.Aggregator
	fees     *fees.Collector
}

// New returns an engine with no registered pairs, an empty ledger and the
// given fee-pot account / default fee fractions.
func New(pot common.AccountId, defaultFees fees.AccountFee) *Engine {
	return &Engine{
		configs:  make(map[string]common.TradingPairConfig),
		books:    make(map[string]*book.Book),
		balances: balances.New(),
		levels:   pricelevel.New(),
		fees:     fees.New(pot, defaultFees),
	}
}

// Load rebuilds an engine from a prior snapshot: registered pairs, resting
// orders (reinserted into fresh books by side/price), balances and
// per-account fee overrides.
func Load(
	pairs []common.TradingPairConfig,
	restingOrders []common.Order,
	balanceItems []balances.Item,
	feeItems []fees.FeeStructureItem,
	pot common.AccountId,
	defaultFees fees.AccountFee,
) *Engine {
	e := New(pot, defaultFees)
	for _, cfg := range pairs {
		e.AddTradingPair(cfg)
	}
	e.balances = balances.Load(balanceItems)
	e.fees.LoadFeeStructure(feeItems)
	for i := range restingOrders {
		order := restingOrders[i]
		if bk, ok := e.books[order.Pair.Key()]; ok {
			bk.Insert(&order)
		}
	}
	return e
}

// AddTradingPair registers config and opens an empty book for its pair.
func (e *Engine) AddTradingPair(config common.TradingPairConfig) {
	e.configs[config.Pair.Key()] = config
	e.books[config.Pair.Key()] = book.New(config.Pair)
}

// UpdateFeeStructure sets account's maker/taker fee fractions.
func (e *Engine) UpdateFeeStructure(account common.AccountId, maker, taker decimal.Decimal) {
	e.fees.UpdateFeeStructure(account, maker, taker)
}

// PairConfig returns the registered config for pair, if any.
func (e *Engine) PairConfig(pair common.TradingPair) (common.TradingPairConfig, bool) {
	cfg, ok := e.configs[pair.Key()]
	return cfg, ok
}

// ModifiedOrder is one (id, post-processing snapshot) pair written into an
// execution delta.
type ModifiedOrder struct {
	ID    common.OrderID
	Order common.Order
}

// OrderExecutionResult is the delta produced by one ProcessOrder call:
// every balance row touched, every price level touched, the post-state of
// every order touched (the processed order plus every maker it traded
// against), the trades generated, and the caller-assigned state-change id.
type OrderExecutionResult struct {
	Balances       []balances.Item
	PriceLevels    []pricelevel.LevelChange
	ModifiedOrders []ModifiedOrder
	Trades         []common.Trade
	STID           uint64
}

func newExecutionResult(stid uint64) *OrderExecutionResult {
	return &OrderExecutionResult{STID: stid}
}

// reserveBalances implements §4.8: reserve the asset/amount appropriate to
// the order's side and type, before anything else happens. On failure the
// ledger has not been mutated (balances.Ledger.Reserve guarantees this) so
// the caller can safely discard the in-progress delta.
func (e *Engine) reserveBalances(order *common.Order) (balances.Key, error) {
	var key balances.Key
	var amount decimal.Decimal

	switch {
	case order.Side == common.Bid && order.Type == common.Limit:
		key = balances.Key{Account: order.MainAccount, Asset: order.Pair.Quote}
		amount = order.AvailableVolume(nil)
	case order.Side == common.Ask:
		key = balances.Key{Account: order.MainAccount, Asset: order.Pair.Base}
		amount = order.Remaining()
	case order.Side == common.Bid && order.Type == common.Market && order.QuoteOrderQty.IsZero():
		key = balances.Key{Account: order.MainAccount, Asset: order.Pair.Base}
		amount = order.Remaining()
	default: // Bid + Market with quote_order_qty > 0
		key = balances.Key{Account: order.MainAccount, Asset: order.Pair.Quote}
		amount = order.QuoteOrderQty
	}

	amount = decimalutil.RoundOff(amount)
	if _, err := e.balances.Reserve(key, amount); err != nil {
		return key, err
	}
	return key, nil
}

// freeMarketResidual implements the final step of §4.8/§4.9: a Market
// order never rests, so whatever of its reservation went unfilled is
// released back to free once matching and settlement are done.
func (e *Engine) freeMarketResidual(order *common.Order, result *OrderExecutionResult, touched *touchSet) {
	if order.Type != common.Market {
		return
	}
	var unfilled decimal.Decimal
	var asset common.AssetId
	switch order.Side {
	case common.Ask:
		unfilled = order.Remaining()
		asset = order.Pair.Base
	case common.Bid:
		spent := decimalutil.RoundOff(order.AvgFilledPrice.Mul(order.FilledQuantity))
		unfilled = decimalutil.SatSub(order.QuoteOrderQty, spent)
		asset = order.Pair.Quote
	}
	if unfilled.IsZero() {
		return
	}
	key := balances.Key{Account: order.MainAccount, Asset: asset}
	e.balances.Unreserve(key, unfilled)
	touched.add(key)
}

type touchSet struct {
	keys []balances.Key
}

func (t *touchSet) add(key balances.Key) {
	for _, k := range t.keys {
		if k == key {
			return
		}
	}
	t.keys = append(t.keys, key)
}

func (t *touchSet) merge(other []balances.Key) {
	for _, k := range other {
		t.add(k)
	}
}

// ProcessOrder runs the full pipeline described in §4.9: reserve, match,
// close/insert, price-level updates, settlement, and market-residual
// release. It returns the execution delta, or an error if the pair is
// unregistered, the order shape is rejected outright, or reservation fails
// — in every error case the ledger is left exactly as it was on entry.
func (e *Engine) ProcessOrder(order common.Order, stid uint64) (*OrderExecutionResult, error) {
	if order.Side == common.Bid && order.Type == common.Market && order.Qty.IsZero() && order.QuoteOrderQty.IsZero() {
		return nil, ErrInvalidOrder
	}

	cfg, ok := e.PairConfig(order.Pair)
	if !ok {
		return nil, ErrConfigMissing
	}
	bk, ok := e.books[order.Pair.Key()]
	if !ok {
		return nil, ErrBookMissing
	}

	result := newExecutionResult(stid)
	touched := &touchSet{}

	reserveKey, err := e.reserveBalances(&order)
	if err != nil {
		return nil, err
	}
	touched.add(reserveKey)

	var trades []common.Trade
	if matcher.WillMatch(bk, &order) {
		trades = matcher.MatchSide(bk, &order, cfg, stid)
	}

	switch order.Type {
	case common.Limit:
		if order.AvailableVolume(nil).Cmp(cfg.MinVolume) < 0 {
			order.Status = common.Closed
		}
	case common.Market:
		order.Status = common.Closed
		if n := len(trades); n > 0 {
			trades[n-1].Taker.Status = common.Closed
		}
	}

	modified := make(map[common.OrderID]common.Order)
	if order.Status == common.Open {
		bk.Insert(&order)
	}
	modified[order.ID] = order
	for _, trade := range trades {
		maker := trade.Maker
		maker.STID = stid
		modified[maker.ID] = maker
	}

	// Price-level updates (§4.7).
	changes := pricelevel.NewChangeSet()
	if order.Status == common.Open {
		key := pricelevel.Key{Pair: order.Pair, Side: order.Side, Price: order.Price}
		e.levels.Add(key, order.Remaining(), cfg.MinVolume, changes)
	}
	for _, trade := range trades {
		key := pricelevel.Key{Pair: trade.Maker.Pair, Side: trade.Maker.Side, Price: trade.Price}
		e.levels.Reduce(key, trade.Amount, cfg.MinVolume, changes)
	}
	result.PriceLevels = changes.Items()

	// Settlement (§4.6).
	updatedTrades, _, settleResult := settlement.SettleTrades(e.balances, e.fees, trades, cfg.MinVolume)
	touched.merge(settleResult.Touched)
	for _, trade := range updatedTrades {
		assertx.That(trade.Price.Equal(trade.Maker.Price), "trade price must equal maker price")
		maker := trade.Maker
		maker.STID = stid
		modified[maker.ID] = maker
		if live, ok := bk.Lookup(maker.ID); ok {
			// The maker may still be resting (partially filled, above
			// min_volume): patch its cumulative fee into the book copy so
			// the next process_order call against this order sees it.
			live.Fee = maker.Fee
		}
		if trade.Taker.ID == order.ID {
			order.Fee = trade.Taker.Fee
			modified[order.ID] = order
		}
	}
	result.Trades = updatedTrades

	// Market-order residual release (§4.8 tail).
	e.freeMarketResidual(&order, result, touched)
	if order.Type == common.Market {
		modified[order.ID] = order
	}

	ids := make([]string, 0, len(modified))
	for id := range modified {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	result.ModifiedOrders = make([]ModifiedOrder, 0, len(ids))
	for _, id := range ids {
		oid := common.OrderID(id)
		result.ModifiedOrders = append(result.ModifiedOrders, ModifiedOrder{ID: oid, Order: modified[oid]})
	}

	sort.Slice(touched.keys, func(i, j int) bool {
		if touched.keys[i].Account != touched.keys[j].Account {
			return touched.keys[i].Account < touched.keys[j].Account
		}
		return touched.keys[i].Asset < touched.keys[j].Asset
	})
	result.Balances = make([]balances.Item, 0, len(touched.keys))
	for _, key := range touched.keys {
		result.Balances = append(result.Balances, balances.Item{Key: key, Entry: e.balances.Get(key)})
	}

	return result, nil
}
