package engine

import "fmt"

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite returns the side an order of this side trades against.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func ParseSide(s string) (OrderSide, bool) {
	switch OrderSide(s) {
	case SideBuy, SideSell:
		return OrderSide(s), true
	}
	return "", false
}

type OrderType string

const (
	// TypeIOC executes what it can immediately and discards the rest.
	TypeIOC OrderType = "IOC"
	// TypeGFD rests any unfilled remainder in the book.
	TypeGFD OrderType = "GFD"
	// TypeMarket behaves like IOC but ignores its price when crossing.
	TypeMarket OrderType = "MKT"
)

func ParseOrderType(s string) (OrderType, bool) {
	switch OrderType(s) {
	case TypeIOC, TypeGFD, TypeMarket:
		return OrderType(s), true
	case "MARKET":
		return TypeMarket, true
	}
	return "", false
}

type OrderStatus string

const (
	StatusResting     OrderStatus = "RESTING"
	StatusPartialFill OrderStatus = "PARTIAL_FILL"
	StatusFilled      OrderStatus = "FILLED"
	StatusDone        OrderStatus = "DONE"
)

// Order is a fixed-size record owned by the OrderArena. Books and the id
// index refer to it through an OrderRef.
//
// Leaves is the unfilled part of Quantity. Once Done is set the order is no
// longer matched, counted in a level, or mutated.
type Order struct {
	ID       string
	Side     OrderSide
	Type     OrderType
	Price    int64 // price in ticks
	Quantity int64
	Leaves   int64
	Done     bool
}

func (o *Order) FilledQuantity() int64 {
	return o.Quantity - o.Leaves
}

// Fill takes qty off the leaves and marks the order done when nothing is left.
func (o *Order) Fill(qty int64) {
	o.Leaves -= qty
	if o.Leaves == 0 {
		o.Done = true
	}
}

func (o *Order) Status() OrderStatus {
	switch {
	case o.Leaves == 0:
		return StatusFilled
	case o.Done:
		return StatusDone
	case o.Leaves < o.Quantity:
		return StatusPartialFill
	}
	return StatusResting
}

func (o *Order) String() string {
	return fmt.Sprintf("%s %s %s %d %d/%d", o.ID, o.Side, o.Type, o.Price, o.Leaves, o.Quantity)
}

// Trade is one fill between a resting and an incoming order.
type Trade struct {
	RestingOrderID  string
	RestingPrice    int64
	IncomingOrderID string
	IncomingPrice   int64
	Quantity        int64
}

func (t Trade) String() string {
	return fmt.Sprintf("TRADE %s %d %d %s %d",
		t.RestingOrderID, t.RestingPrice, t.Quantity, t.IncomingOrderID, t.IncomingPrice)
}
