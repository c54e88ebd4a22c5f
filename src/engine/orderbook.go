package engine

import (
	"github.com/google/btree"
)

const btreeDegree = 32

// crossing reports whether a resting level at levelPrice can trade with an
// incoming order limited at limit. Indexed by the side of the resting book.
var crossing = map[OrderSide]func(levelPrice, limit int64) bool{
	SideSell: func(levelPrice, limit int64) bool { return levelPrice <= limit },
	SideBuy:  func(levelPrice, limit int64) bool { return levelPrice >= limit },
}

func levelLess(a, b *PriceLevel) bool {
	return a.Price < b.Price
}

// OrderBook is one side of the market: price levels sorted ascending.
// Top of book is the highest level for bids and the lowest for asks.
type OrderBook struct {
	Side   OrderSide
	levels *btree.BTreeG[*PriceLevel]
	arena  *OrderArena
}

func NewOrderBook(side OrderSide, arena *OrderArena) *OrderBook {
	return &OrderBook{
		Side:   side,
		levels: btree.NewG(btreeDegree, levelLess),
		arena:  arena,
	}
}

func (ob *OrderBook) level(price int64) (*PriceLevel, bool) {
	return ob.levels.Get(&PriceLevel{Price: price})
}

// Insert rests the order at the back of its price level, creating the level
// when it does not exist yet.
func (ob *OrderBook) Insert(ref OrderRef) error {
	order := ob.arena.Get(ref)
	if order == nil {
		return &InvariantError{Op: "insert", Detail: "order handle not in arena"}
	}

	priceLevel, exists := ob.level(order.Price)
	if !exists {
		priceLevel = newPriceLevel(order.Price)
		// edge case: a level showing up between Get and insert means the tree is corrupt
		if _, replaced := ob.levels.ReplaceOrInsert(priceLevel); replaced {
			return &InvariantError{Op: "insert", Price: order.Price, Detail: "price level insert failure"}
		}
	}
	priceLevel.Add(order, ref)
	return nil
}

// Cancel removes the order's leaves from its level and drops the level once
// it holds nothing. The queue entry itself is left for lazy removal.
func (ob *OrderBook) Cancel(order *Order) bool {
	priceLevel, exists := ob.level(order.Price)
	if !exists {
		return false
	}
	priceLevel.Quantity -= order.Leaves
	if priceLevel.Quantity <= 0 {
		ob.levels.Delete(priceLevel)
	}
	return true
}

// ReduceQuantity shrinks the order's level by delta, keeping the order queued.
func (ob *OrderBook) ReduceQuantity(order *Order, delta int64) bool {
	priceLevel, exists := ob.level(order.Price)
	if !exists {
		return false
	}
	priceLevel.Reduce(delta)
	return true
}

// Top returns the best level of this book.
func (ob *OrderBook) Top() (*PriceLevel, bool) {
	if ob.Side == SideBuy {
		return ob.levels.Max()
	}
	return ob.levels.Min()
}

func (ob *OrderBook) RemoveTop() {
	if ob.Side == SideBuy {
		ob.levels.DeleteMax()
		return
	}
	ob.levels.DeleteMin()
}

// MatchIncoming walks this book from the top while the incoming order still
// has leaves and the level price satisfies its limit. The incoming order's
// leaves are updated in place; the trades are appended in fill order.
func (ob *OrderBook) MatchIncoming(incoming *Order, trades []Trade) (bool, int64, []Trade, error) {
	crosses := crossing[ob.Side]
	leaves := incoming.Leaves

	priceLevel, ok := ob.Top()
	for leaves > 0 && ok {
		if incoming.Type != TypeMarket && !crosses(priceLevel.Price, incoming.Price) {
			break
		}
		leaves, trades = priceLevel.Execute(ob.arena, incoming.ID, incoming.Price, leaves, trades)
		if priceLevel.Quantity <= 0 {
			ob.RemoveTop()
		} else if leaves > 0 {
			// the queue ran dry while the level still claims quantity
			return false, 0, trades, &InvariantError{
				Op:     "match",
				Price:  priceLevel.Price,
				Detail: "level quantity left with no live orders",
			}
		}
		if leaves > 0 {
			priceLevel, ok = ob.Top()
		}
	}

	filled := incoming.Leaves - leaves
	if filled == 0 {
		return false, 0, trades, nil
	}
	incoming.Leaves = leaves
	return true, filled, trades, nil
}

type OrderBookSnapshot struct {
	Price    int64
	Quantity int64
}

// Snapshot lists up to depth levels from best to worst price. A depth of zero
// or less lists every level.
func (ob *OrderBook) Snapshot(depth int) []OrderBookSnapshot {
	n := ob.levels.Len()
	if depth > 0 && depth < n {
		n = depth
	}
	levels := make([]OrderBookSnapshot, 0, n)
	visit := func(priceLevel *PriceLevel) bool {
		if depth > 0 && len(levels) >= depth {
			return false
		}
		levels = append(levels, OrderBookSnapshot{
			Price:    priceLevel.Price,
			Quantity: priceLevel.Quantity,
		})
		return true
	}
	if ob.Side == SideBuy {
		ob.levels.Descend(visit)
	} else {
		ob.levels.Ascend(visit)
	}
	return levels
}

// Depth is the number of price levels in the book.
func (ob *OrderBook) Depth() int {
	return ob.levels.Len()
}

// Quantity sums the live quantity over every level.
func (ob *OrderBook) Quantity() int64 {
	var total int64
	ob.levels.Ascend(func(priceLevel *PriceLevel) bool {
		total += priceLevel.Quantity
		return true
	})
	return total
}
