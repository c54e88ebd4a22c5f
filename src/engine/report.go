package engine

import (
	"bufio"
	"io"
	"strconv"
)

// Reporter receives everything the Matcher emits, in emission order.
type Reporter interface {
	ReportTrade(trade Trade)
	ReportBook(book BookSnapshot)
}

// BookSnapshot holds both sides, each listed from best to worst price.
type BookSnapshot struct {
	Sells []OrderBookSnapshot
	Buys  []OrderBookSnapshot
}

type nopReporter struct{}

func (nopReporter) ReportTrade(Trade)        {}
func (nopReporter) ReportBook(BookSnapshot) {}

// TextReporter writes the line protocol:
//
//	TRADE <restingId> <restingPrice> <qty> <incomingId> <incomingPrice>
//	SELL:
//	<price> <qty>
//	BUY:
//	<price> <qty>
//
// The first write error is kept and every later write is skipped.
type TextReporter struct {
	w   *bufio.Writer
	err error
}

func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: bufio.NewWriter(w)}
}

func (r *TextReporter) ReportTrade(trade Trade) {
	r.writeLine(trade.String())
}

func (r *TextReporter) ReportBook(book BookSnapshot) {
	r.writeLine("SELL:")
	r.writeLevels(book.Sells)
	r.writeLine("BUY:")
	r.writeLevels(book.Buys)
}

// Flush pushes buffered lines to the underlying writer.
func (r *TextReporter) Flush() error {
	if r.err != nil {
		return r.err
	}
	r.err = r.w.Flush()
	return r.err
}

func (r *TextReporter) Err() error {
	return r.err
}

func (r *TextReporter) writeLevels(levels []OrderBookSnapshot) {
	for _, level := range levels {
		r.writeLine(strconv.FormatInt(level.Price, 10) + " " + strconv.FormatInt(level.Quantity, 10))
	}
}

func (r *TextReporter) writeLine(s string) {
	if r.err != nil {
		return
	}
	if _, err := r.w.WriteString(s); err != nil {
		r.err = err
		return
	}
	r.err = r.w.WriteByte('\n')
}
