package engine

// PriceLevel holds the orders resting at one price in arrival order.
//
// Quantity is the sum of leaves over the live orders only. Orders that were
// cancelled or replaced stay in the queue until a FIFO walk reaches them
// (lazy removal), so walks must skip done entries instead of assuming the
// queue is all live.
type PriceLevel struct {
	Price    int64
	Quantity int64
	Orders   []OrderRef // fifo ordering for time priority
}

func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		Orders: make([]OrderRef, 0, 4),
	}
}

// Add appends the order at the back of the queue.
func (l *PriceLevel) Add(order *Order, ref OrderRef) {
	l.Orders = append(l.Orders, ref)
	l.Quantity += order.Leaves
}

// Execute fills up to qty against the queue, front first, appending one trade
// per fill. It returns what is left of qty.
func (l *PriceLevel) Execute(arena *OrderArena, incomingID string, incomingPrice, qty int64, trades []Trade) (int64, []Trade) {
	for qty > 0 && len(l.Orders) > 0 {
		resting := arena.Get(l.Orders[0])
		if resting == nil || resting.Done {
			l.popFront()
			continue
		}

		execQty := min(resting.Leaves, qty)
		trades = append(trades, Trade{
			RestingOrderID:  resting.ID,
			RestingPrice:    resting.Price,
			IncomingOrderID: incomingID,
			IncomingPrice:   incomingPrice,
			Quantity:        execQty,
		})
		l.Quantity -= execQty
		qty -= execQty
		resting.Fill(execQty)
		if resting.Done {
			l.popFront()
		}
	}
	return qty, trades
}

// Reduce takes delta off the cached quantity without touching the queue.
func (l *PriceLevel) Reduce(delta int64) {
	l.Quantity -= delta
}

// Live counts the queue entries that are still matchable.
func (l *PriceLevel) Live(arena *OrderArena) int {
	n := 0
	for _, ref := range l.Orders {
		if o := arena.Get(ref); o != nil && !o.Done {
			n++
		}
	}
	return n
}

func (l *PriceLevel) popFront() {
	l.Orders[0] = OrderRef{}
	l.Orders = l.Orders[1:]
}
