package engine

import (
	"github.com/rs/zerolog/log"
)

// Matcher owns both books, the order arena and the order-id index. It is not
// safe for concurrent use: callers must apply commands from one goroutine.
type Matcher struct {
	arena    *OrderArena
	buyBook  *OrderBook
	sellBook *OrderBook
	orders   map[string]OrderRef
	reporter Reporter
}

func NewMatcher(arenaBlockSize int) *Matcher {
	arena := NewOrderArena(arenaBlockSize)
	return &Matcher{
		arena:    arena,
		buyBook:  NewOrderBook(SideBuy, arena),
		sellBook: NewOrderBook(SideSell, arena),
		orders:   make(map[string]OrderRef),
		reporter: nopReporter{},
	}
}

// SetReporter routes trades and book prints to r. A nil r discards them.
func (m *Matcher) SetReporter(r Reporter) {
	if r == nil {
		r = nopReporter{}
	}
	m.reporter = r
}

// Result describes the outcome of one command. Accepted is false when the
// command was rejected without touching any state.
type Result struct {
	Command  Command
	Accepted bool
	Trades   []Trade
	Filled   int64
	Order    *Order        // copy of the order bound to the id afterwards
	Book     *BookSnapshot // set by PRINT
}

// ProcessLine parses and applies one input line. A malformed line returns a
// *CommandError; an *InvariantError means the books are corrupt and the
// Matcher must not be used any further.
func (m *Matcher) ProcessLine(line string) (*Result, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		log.Warn().
			Err(err).
			Str("line", line).
			Msg("Ignoring malformed command")
		return nil, err
	}
	return m.Execute(cmd)
}

func (m *Matcher) Execute(cmd Command) (*Result, error) {
	var (
		result *Result
		err    error
	)
	switch cmd.Kind {
	case CommandNew:
		result, err = m.NewOrder(cmd.OrderID, cmd.Side, cmd.Type, cmd.Price, cmd.Quantity)
	case CommandCancel:
		result = &Result{Accepted: m.Cancel(cmd.OrderID)}
	case CommandModify:
		result, err = m.Modify(cmd.OrderID, cmd.Side, cmd.Price, cmd.Quantity)
	case CommandPrint:
		book := m.Print()
		result = &Result{Accepted: true, Book: &book}
	default:
		return nil, &CommandError{Line: cmd.String(), Reason: "unknown command"}
	}
	if result != nil {
		result.Command = cmd
	}
	return result, err
}

// NewOrder matches a new order against the opposite book and rests any GFD
// remainder. Invalid values and an id bound to a live order are rejected.
func (m *Matcher) NewOrder(id string, side OrderSide, orderType OrderType, price, quantity int64) (*Result, error) {
	if price <= 0 || quantity <= 0 || id == "" {
		log.Debug().
			Str("order_id", id).
			Int64("price", price).
			Int64("quantity", quantity).
			Msg("New order rejected: invalid values")
		return &Result{}, nil
	}
	if _, live := m.liveOrder(id); live {
		log.Debug().Str("order_id", id).Msg("New order rejected: duplicate order id")
		return &Result{}, nil
	}

	ref := m.arena.Allocate(Order{
		ID:       id,
		Side:     side,
		Type:     orderType,
		Price:    price,
		Quantity: quantity,
		Leaves:   quantity,
	})
	m.orders[id] = ref
	return m.place(ref)
}

// Cancel marks the order done and pulls its leaves out of its book. It is a
// no-op returning false for an unknown or already done id.
func (m *Matcher) Cancel(id string) bool {
	order, live := m.liveOrder(id)
	if !live {
		return false
	}
	order.Done = true
	m.book(order.Side).Cancel(order)
	return true
}

// Modify replaces the order bound to id. Shrinking the quantity at the same
// price keeps the queue position; anything else cancels the order and sends
// a replacement through the new-order path at the back of the queue.
func (m *Matcher) Modify(id string, side OrderSide, price, quantity int64) (*Result, error) {
	order, live := m.liveOrder(id)
	if !live || order.Side != side || price <= 0 || quantity <= 0 {
		return &Result{}, nil
	}

	filled := order.FilledQuantity()
	if filled < quantity && quantity <= order.Quantity && price == order.Price {
		delta := order.Quantity - quantity
		order.Quantity = quantity
		order.Leaves = quantity - filled
		m.book(side).ReduceQuantity(order, delta)
		return &Result{Accepted: true, Order: copyOrder(order)}, nil
	}

	order.Done = true
	m.book(side).Cancel(order)

	// edge case: already filled past the new quantity, nothing left to replace
	if filled >= quantity {
		return &Result{Accepted: true, Order: copyOrder(order)}, nil
	}

	replacement := *order
	replacement.Quantity = quantity
	replacement.Price = price
	replacement.Leaves = quantity - filled
	replacement.Done = false

	ref := m.arena.Allocate(replacement)
	m.orders[id] = ref
	return m.place(ref)
}

// Print reports both books, sell side first.
func (m *Matcher) Print() BookSnapshot {
	book := m.Snapshot(0)
	m.reporter.ReportBook(book)
	return book
}

// Snapshot lists up to depth levels per side without reporting them.
func (m *Matcher) Snapshot(depth int) BookSnapshot {
	return BookSnapshot{
		Sells: m.sellBook.Snapshot(depth),
		Buys:  m.buyBook.Snapshot(depth),
	}
}

// Order returns a copy of the order currently bound to id.
func (m *Matcher) Order(id string) (Order, bool) {
	ref, exists := m.orders[id]
	if !exists {
		return Order{}, false
	}
	return *m.arena.Get(ref), true
}

// Depth is the number of price levels on side.
func (m *Matcher) Depth(side OrderSide) int {
	return m.book(side).Depth()
}

// ArenaSize reports how many order records were allocated and in how many blocks.
func (m *Matcher) ArenaSize() (orders, blocks int) {
	return m.arena.Len(), m.arena.Blocks()
}

// Reset drops every order and both books.
func (m *Matcher) Reset() {
	m.arena.Release()
	m.buyBook = NewOrderBook(SideBuy, m.arena)
	m.sellBook = NewOrderBook(SideSell, m.arena)
	m.orders = make(map[string]OrderRef)
}

func (m *Matcher) place(ref OrderRef) (*Result, error) {
	order := m.arena.Get(ref)

	matched, filled, trades, err := m.book(order.Side.Opposite()).MatchIncoming(order, nil)
	for _, trade := range trades {
		m.reporter.ReportTrade(trade)
	}
	if err != nil {
		return nil, err
	}

	if order.Leaves > 0 && order.Type == TypeGFD {
		if err := m.book(order.Side).Insert(ref); err != nil {
			return nil, err
		}
	} else {
		order.Done = true
	}

	if matched {
		log.Debug().
			Str("order_id", order.ID).
			Int64("filled_quantity", filled).
			Int64("leaves", order.Leaves).
			Int("trades_count", len(trades)).
			Msg("Order matched")
	}

	return &Result{
		Accepted: true,
		Trades:   trades,
		Filled:   filled,
		Order:    copyOrder(order),
	}, nil
}

func (m *Matcher) liveOrder(id string) (*Order, bool) {
	ref, exists := m.orders[id]
	if !exists {
		return nil, false
	}
	order := m.arena.Get(ref)
	if order == nil || order.Done {
		return order, false
	}
	return order, true
}

func (m *Matcher) book(side OrderSide) *OrderBook {
	if side == SideBuy {
		return m.buyBook
	}
	return m.sellBook
}

func copyOrder(o *Order) *Order {
	c := *o
	return &c
}
