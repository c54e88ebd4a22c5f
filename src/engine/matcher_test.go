package engine_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"lob-engine/src/engine"
)

// run feeds the lines to a fresh matcher and returns everything it printed.
func run(t *testing.T, lines ...string) (*engine.Matcher, string) {
	t.Helper()
	var out bytes.Buffer
	reporter := engine.NewTextReporter(&out)
	matcher := engine.NewMatcher(4)
	matcher.SetReporter(reporter)

	for _, line := range lines {
		if _, err := matcher.ProcessLine(line); err != nil && engine.IsFatal(err) {
			t.Fatalf("Fatal error on %q: %v", line, err)
		}
	}
	if err := reporter.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	return matcher, out.String()
}

func expectOutput(t *testing.T, got string, want ...string) {
	t.Helper()
	expected := ""
	if len(want) > 0 {
		expected = strings.Join(want, "\n") + "\n"
	}
	if got != expected {
		t.Errorf("Unexpected output\nexpected:\n%s\ngot:\n%s", expected, got)
	}
}

func TestPartialFillRestsRemainder(t *testing.T) {
	_, out := run(t,
		"NEW BUY GFD 100 10 B1",
		"NEW SELL GFD 100 4 S1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE B1 100 4 S1 100",
		"SELL:",
		"BUY:",
		"100 6",
	)
}

func TestIOCRemainderIsDiscarded(t *testing.T) {
	matcher, out := run(t,
		"NEW SELL GFD 10 5 S1",
		"NEW BUY IOC 10 8 B1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE S1 10 5 B1 10",
		"SELL:",
		"BUY:",
	)

	order, ok := matcher.Order("B1")
	if !ok {
		t.Fatal("B1 should be known")
	}
	if !order.Done || order.Leaves != 3 {
		t.Errorf("Expected B1 done with 3 unfilled, got: done=%v leaves=%d", order.Done, order.Leaves)
	}
}

func TestModifyShrinkWithoutTrade(t *testing.T) {
	_, out := run(t,
		"NEW BUY GFD 10 5 B1",
		"MODIFY B1 BUY 10 3",
		"PRINT",
	)

	expectOutput(t, out,
		"SELL:",
		"BUY:",
		"10 3",
	)
}

func TestPrintOrdersLevelsBestFirst(t *testing.T) {
	_, out := run(t,
		"NEW BUY GFD 99 1 B1",
		"NEW BUY GFD 101 2 B2",
		"NEW BUY GFD 100 3 B3",
		"NEW BUY GFD 101 4 B4",
		"NEW SELL GFD 105 5 S1",
		"NEW SELL GFD 103 6 S2",
		"NEW SELL GFD 104 7 S3",
		"PRINT",
	)

	expectOutput(t, out,
		"SELL:",
		"103 6",
		"104 7",
		"105 5",
		"BUY:",
		"101 6",
		"100 3",
		"99 1",
	)
}

func TestBuySweepsLowestSellFirstInFIFO(t *testing.T) {
	_, out := run(t,
		"NEW SELL GFD 101 3 S1",
		"NEW SELL GFD 100 2 S2",
		"NEW SELL GFD 100 4 S3",
		"NEW SELL GFD 102 5 S4",
		"NEW BUY GFD 101 8 B1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE S2 100 2 B1 101",
		"TRADE S3 100 4 B1 101",
		"TRADE S1 101 2 B1 101",
		"SELL:",
		"101 1",
		"102 5",
		"BUY:",
	)
}

func TestSellMatchesHighestBuyFirst(t *testing.T) {
	_, out := run(t,
		"NEW BUY GFD 98 5 B1",
		"NEW BUY GFD 99 5 B2",
		"NEW SELL IOC 98 7 S1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE B2 99 5 S1 98",
		"TRADE B1 98 2 S1 98",
		"SELL:",
		"BUY:",
		"98 3",
	)
}

func TestTradeQuantitiesConserveBookQuantity(t *testing.T) {
	matcher := engine.NewMatcher(0)
	for _, line := range []string{
		"NEW SELL GFD 100 7 S1",
		"NEW SELL GFD 101 9 S2",
		"NEW SELL GFD 101 4 S3",
	} {
		if _, err := matcher.ProcessLine(line); err != nil {
			t.Fatalf("ProcessLine(%q): %v", line, err)
		}
	}
	before := sumLevels(matcher.Snapshot(0).Sells)

	result, err := matcher.ProcessLine("NEW BUY GFD 101 15 B1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var traded int64
	for _, trade := range result.Trades {
		traded += trade.Quantity
	}
	after := sumLevels(matcher.Snapshot(0).Sells)

	if traded != before-after {
		t.Errorf("Traded %d but book shrank by %d", traded, before-after)
	}
	if traded > 15 || result.Filled != traded {
		t.Errorf("Expected filled %d <= 15, got filled=%d traded=%d", traded, result.Filled, traded)
	}
	if result.Order.Leaves != 0 || !result.Order.Done {
		t.Errorf("Expected B1 fully filled, got: %+v", result.Order)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	matcher, out := run(t,
		"NEW BUY GFD 100 10 B1",
		"NEW BUY GFD 100 5 B2",
	)
	expectOutput(t, out)

	if !matcher.Cancel("B1") {
		t.Fatal("First cancel should succeed")
	}
	book := matcher.Snapshot(0)

	if matcher.Cancel("B1") {
		t.Error("Second cancel should fail")
	}
	if matcher.Cancel("NOPE") {
		t.Error("Cancel of unknown id should fail")
	}

	again := matcher.Snapshot(0)
	if len(again.Buys) != 1 || again.Buys[0] != book.Buys[0] || again.Buys[0].Quantity != 5 {
		t.Errorf("Book changed after failed cancel: before %+v after %+v", book.Buys, again.Buys)
	}
}

func TestCancelledOrderIsNotMatched(t *testing.T) {
	_, out := run(t,
		"NEW SELL GFD 100 5 S1",
		"NEW SELL GFD 100 5 S2",
		"CANCEL S1",
		"NEW BUY GFD 100 3 B1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE S2 100 3 B1 100",
		"SELL:",
		"100 2",
		"BUY:",
	)
}

func TestCancelLastOrderRemovesLevel(t *testing.T) {
	_, out := run(t,
		"NEW SELL GFD 100 5 S1",
		"CANCEL S1",
		"NEW BUY GFD 100 3 B1",
		"PRINT",
	)

	expectOutput(t, out,
		"SELL:",
		"BUY:",
		"100 3",
	)
}

func TestModifyShrinkKeepsPriority(t *testing.T) {
	_, out := run(t,
		"NEW SELL GFD 100 10 S1",
		"NEW SELL GFD 100 10 S2",
		"MODIFY S1 SELL 100 6",
		"NEW BUY IOC 100 7 B1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE S1 100 6 B1 100",
		"TRADE S2 100 1 B1 100",
		"SELL:",
		"100 9",
		"BUY:",
	)
}

func TestModifyPriceChangeLosesPriority(t *testing.T) {
	_, out := run(t,
		"NEW SELL GFD 100 5 S1",
		"NEW SELL GFD 101 5 S2",
		"MODIFY S1 SELL 101 5",
		"NEW BUY IOC 101 6 B1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE S2 101 5 B1 101",
		"TRADE S1 101 1 B1 101",
		"SELL:",
		"101 4",
		"BUY:",
	)
}

func TestModifyQuantityIncreaseLosesPriority(t *testing.T) {
	_, out := run(t,
		"NEW BUY GFD 100 5 B1",
		"NEW BUY GFD 100 5 B2",
		"MODIFY B1 BUY 100 8",
		"NEW SELL GFD 100 6 S1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE B2 100 5 S1 100",
		"TRADE B1 100 1 S1 100",
		"SELL:",
		"BUY:",
		"100 7",
	)
}

func TestModifyCanCrossTheBook(t *testing.T) {
	_, out := run(t,
		"NEW BUY GFD 99 4 B1",
		"NEW SELL GFD 101 3 S1",
		"MODIFY B1 BUY 101 4",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE S1 101 3 B1 101",
		"SELL:",
		"BUY:",
		"101 1",
	)
}

func TestModifyAfterPartialFillKeepsFilledQuantity(t *testing.T) {
	matcher, out := run(t,
		"NEW BUY GFD 100 10 B1",
		"NEW SELL GFD 100 4 S1",
		"MODIFY B1 BUY 99 12",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE B1 100 4 S1 100",
		"SELL:",
		"BUY:",
		"99 8",
	)

	order, _ := matcher.Order("B1")
	if order.Quantity != 12 || order.Leaves != 8 || order.Price != 99 {
		t.Errorf("Unexpected replacement: %+v", order)
	}
}

func TestModifyBelowFilledCancelsWithoutReplacement(t *testing.T) {
	matcher, out := run(t,
		"NEW BUY GFD 100 10 B1",
		"NEW SELL GFD 100 6 S1",
		"MODIFY B1 BUY 100 5",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE B1 100 6 S1 100",
		"SELL:",
		"BUY:",
	)

	order, _ := matcher.Order("B1")
	if !order.Done {
		t.Error("B1 should be done")
	}
	if matcher.Cancel("B1") {
		t.Error("Cancel after vacuous replacement should fail")
	}
}

func TestModifyRejections(t *testing.T) {
	matcher, out := run(t,
		"NEW BUY GFD 100 10 B1",
		"NEW SELL IOC 200 1 S1",
	)
	expectOutput(t, out)

	cases := []struct {
		name  string
		id    string
		side  engine.OrderSide
		price int64
		qty   int64
	}{
		{"unknown id", "NOPE", engine.SideBuy, 100, 5},
		{"side mismatch", "B1", engine.SideSell, 100, 5},
		{"done order", "S1", engine.SideSell, 200, 1},
		{"zero quantity", "B1", engine.SideBuy, 100, 0},
		{"negative price", "B1", engine.SideBuy, -1, 5},
	}
	for _, tc := range cases {
		result, err := matcher.Modify(tc.id, tc.side, tc.price, tc.qty)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if result.Accepted {
			t.Errorf("%s: expected rejection", tc.name)
		}
	}

	if book := matcher.Snapshot(0); len(book.Buys) != 1 || book.Buys[0].Quantity != 10 {
		t.Errorf("Book changed after rejected modifies: %+v", book.Buys)
	}
}

func TestNewOrderRejections(t *testing.T) {
	matcher, _ := run(t, "NEW BUY GFD 100 10 B1")

	cases := []struct {
		name  string
		id    string
		price int64
		qty   int64
	}{
		{"zero price", "X1", 0, 5},
		{"negative quantity", "X2", 100, -5},
		{"empty id", "", 100, 5},
		{"duplicate live id", "B1", 100, 5},
	}
	for _, tc := range cases {
		result, err := matcher.NewOrder(tc.id, engine.SideSell, engine.TypeGFD, tc.price, tc.qty)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if result.Accepted {
			t.Errorf("%s: expected rejection", tc.name)
		}
	}

	book := matcher.Snapshot(0)
	if len(book.Sells) != 0 || len(book.Buys) != 1 || book.Buys[0].Quantity != 10 {
		t.Errorf("Book changed after rejected orders: %+v", book)
	}
}

func TestDoneIdCanBeReused(t *testing.T) {
	_, out := run(t,
		"NEW BUY GFD 100 10 B1",
		"CANCEL B1",
		"NEW BUY GFD 101 2 B1",
		"PRINT",
	)

	expectOutput(t, out,
		"SELL:",
		"BUY:",
		"101 2",
	)
}

func TestMarketOrderIgnoresPriceAndNeverRests(t *testing.T) {
	_, out := run(t,
		"NEW SELL GFD 105 2 S1",
		"NEW SELL GFD 110 2 S2",
		"NEW BUY MKT 1 10 B1",
		"PRINT",
	)

	expectOutput(t, out,
		"TRADE S1 105 2 B1 1",
		"TRADE S2 110 2 B1 1",
		"SELL:",
		"BUY:",
	)
}

func TestMalformedCommandsLeaveStateUntouched(t *testing.T) {
	matcher := engine.NewMatcher(0)
	if _, err := matcher.ProcessLine("NEW BUY GFD 100 10 B1"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, line := range []string{
		"",
		"NEW BUY GFD 100 10",
		"NEW HOLD GFD 100 10 X",
		"NEW BUY FOK 100 10 X",
		"NEW BUY GFD abc 10 X",
		"MODIFY B1 BUY 100",
		"MODIFY B1 BUY 100 1.5",
		"CANCEL",
		"PRINT ALL",
		"FLUSH",
	} {
		result, err := matcher.ProcessLine(line)
		if !errors.Is(err, engine.ErrMalformedCommand) {
			t.Errorf("%q: expected ErrMalformedCommand, got: %v", line, err)
		}
		if result != nil {
			t.Errorf("%q: expected no result", line)
		}
	}

	book := matcher.Snapshot(0)
	if len(book.Buys) != 1 || book.Buys[0].Quantity != 10 {
		t.Errorf("Book changed after malformed commands: %+v", book)
	}
}

func TestResetClearsEverything(t *testing.T) {
	matcher, _ := run(t,
		"NEW BUY GFD 100 10 B1",
		"NEW SELL GFD 101 10 S1",
	)

	matcher.Reset()

	if matcher.Depth(engine.SideBuy) != 0 || matcher.Depth(engine.SideSell) != 0 {
		t.Error("Expected empty books after Reset")
	}
	if _, ok := matcher.Order("B1"); ok {
		t.Error("Expected order index cleared after Reset")
	}
	if orders, _ := matcher.ArenaSize(); orders != 0 {
		t.Errorf("Expected empty arena, got %d orders", orders)
	}
}

func sumLevels(levels []engine.OrderBookSnapshot) int64 {
	var total int64
	for _, level := range levels {
		total += level.Quantity
	}
	return total
}
