package engine

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"NEW BUY GFD 100 10 B1", Command{Kind: CommandNew, Side: SideBuy, Type: TypeGFD, Price: 100, Quantity: 10, OrderID: "B1"}},
		{"NEW SELL IOC 5 1 order-7", Command{Kind: CommandNew, Side: SideSell, Type: TypeIOC, Price: 5, Quantity: 1, OrderID: "order-7"}},
		{"NEW SELL MARKET 5 1 m", Command{Kind: CommandNew, Side: SideSell, Type: TypeMarket, Price: 5, Quantity: 1, OrderID: "m"}},
		{"  CANCEL   B1 ", Command{Kind: CommandCancel, OrderID: "B1"}},
		{"MODIFY B1 SELL 101 3", Command{Kind: CommandModify, OrderID: "B1", Side: SideSell, Price: 101, Quantity: 3}},
		{"PRINT", Command{Kind: CommandPrint}},
		// value checks belong to the matcher
		{"NEW BUY GFD -1 0 B1", Command{Kind: CommandNew, Side: SideBuy, Type: TypeGFD, Price: -1, Quantity: 0, OrderID: "B1"}},
	}

	for _, tc := range cases {
		got, err := ParseCommand(tc.line)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.line, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: expected %+v, got: %+v", tc.line, tc.want, got)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"new BUY GFD 1 1 a",
		"NEW BUY GFD 1 1",
		"NEW BUY GFD 1 1 a b",
		"NEW BID GFD 1 1 a",
		"NEW BUY DAY 1 1 a",
		"NEW BUY GFD x 1 a",
		"NEW BUY GFD 1 99999999999999999999 a",
		"CANCEL a b",
		"MODIFY a BUY 1",
		"MODIFY a ASK 1 1",
		"PRINT 1",
	} {
		_, err := ParseCommand(line)
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			t.Errorf("%q: expected CommandError, got: %v", line, err)
			continue
		}
		if cmdErr.Line != line || !errors.Is(err, ErrMalformedCommand) {
			t.Errorf("%q: bad error %v", line, err)
		}
	}
}

func TestCommandStringRoundTrip(t *testing.T) {
	for _, line := range []string{
		"NEW BUY GFD 100 10 B1",
		"CANCEL B1",
		"MODIFY B1 SELL 101 3",
		"PRINT",
	} {
		cmd, err := ParseCommand(line)
		if err != nil {
			t.Fatalf("%q: %v", line, err)
		}
		if cmd.String() != line {
			t.Errorf("Expected %q, got: %q", line, cmd.String())
		}
	}
}

func TestTextReporterFormat(t *testing.T) {
	var out bytes.Buffer
	reporter := NewTextReporter(&out)

	reporter.ReportTrade(Trade{RestingOrderID: "S1", RestingPrice: 10, IncomingOrderID: "B1", IncomingPrice: 11, Quantity: 5})
	reporter.ReportBook(BookSnapshot{
		Sells: []OrderBookSnapshot{{Price: 12, Quantity: 1}},
		Buys:  []OrderBookSnapshot{{Price: 9, Quantity: 2}, {Price: 8, Quantity: 3}},
	})
	if err := reporter.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	want := "TRADE S1 10 5 B1 11\nSELL:\n12 1\nBUY:\n9 2\n8 3\n"
	if out.String() != want {
		t.Errorf("Expected %q, got: %q", want, out.String())
	}
}
