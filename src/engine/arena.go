package engine

const DefaultArenaBlockSize = 256

// OrderRef is a stable handle to an order held by an OrderArena.
// The zero value refers to no order.
type OrderRef struct {
	block int32
	slot  int32 // slot+1, so that the zero value stays invalid
}

func (r OrderRef) Valid() bool {
	return r.slot > 0
}

// OrderArena hands out order records from growable blocks. Records are never
// freed one by one; a new block is appended when the last one is full, so a
// handle (and the *Order behind it) stays valid until Release.
type OrderArena struct {
	blocks [][]Order
	used   int // records used in the last block
	total  int
}

func NewOrderArena(blockSize int) *OrderArena {
	if blockSize <= 0 {
		blockSize = DefaultArenaBlockSize
	}
	return &OrderArena{
		blocks: [][]Order{make([]Order, blockSize)},
	}
}

// Allocate copies o into a fresh record and returns its handle.
func (a *OrderArena) Allocate(o Order) OrderRef {
	last := a.blocks[len(a.blocks)-1]
	if a.used == len(last) {
		last = make([]Order, len(last)*2)
		a.blocks = append(a.blocks, last)
		a.used = 0
	}
	last[a.used] = o
	a.used++
	a.total++
	return OrderRef{block: int32(len(a.blocks) - 1), slot: int32(a.used)}
}

// Get returns the record behind ref, or nil for an invalid handle.
func (a *OrderArena) Get(ref OrderRef) *Order {
	if !ref.Valid() || int(ref.block) >= len(a.blocks) {
		return nil
	}
	return &a.blocks[ref.block][ref.slot-1]
}

// Len is the number of records handed out so far.
func (a *OrderArena) Len() int {
	return a.total
}

func (a *OrderArena) Blocks() int {
	return len(a.blocks)
}

// Release drops every block. Handles issued before are invalid afterwards and
// the arena starts over with a single block of the original size.
func (a *OrderArena) Release() {
	size := len(a.blocks[0])
	a.blocks = [][]Order{make([]Order, size)}
	a.used = 0
	a.total = 0
}
