package engine

import (
	"strconv"
	"strings"
)

type CommandKind string

const (
	CommandNew    CommandKind = "NEW"
	CommandCancel CommandKind = "CANCEL"
	CommandModify CommandKind = "MODIFY"
	CommandPrint  CommandKind = "PRINT"
)

// Command is one parsed input line. Only the fields used by Kind are set.
type Command struct {
	Kind     CommandKind
	OrderID  string
	Side     OrderSide
	Type     OrderType
	Price    int64
	Quantity int64
}

// ParseCommand splits a line on whitespace and checks arity and field syntax:
//
//	NEW <BUY|SELL> <IOC|GFD|MKT> <price> <qty> <orderId>
//	CANCEL <orderId>
//	MODIFY <orderId> <BUY|SELL> <price> <qty>
//	PRINT
//
// Value checks (positive price, known id, ...) are left to the Matcher.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, &CommandError{Line: line, Reason: "empty command"}
	}

	kind := CommandKind(fields[0])
	cmd := Command{Kind: kind}
	var err error

	switch kind {
	case CommandNew:
		if len(fields) != 6 {
			return Command{}, arityError(line, kind, 6, len(fields))
		}
		if cmd.Side, err = parseSideField(line, fields[1]); err != nil {
			return Command{}, err
		}
		orderType, ok := ParseOrderType(fields[2])
		if !ok {
			return Command{}, &CommandError{Line: line, Reason: "unknown order type " + strconv.Quote(fields[2])}
		}
		cmd.Type = orderType
		if cmd.Price, err = parseIntField(line, "price", fields[3]); err != nil {
			return Command{}, err
		}
		if cmd.Quantity, err = parseIntField(line, "quantity", fields[4]); err != nil {
			return Command{}, err
		}
		cmd.OrderID = fields[5]

	case CommandCancel:
		if len(fields) != 2 {
			return Command{}, arityError(line, kind, 2, len(fields))
		}
		cmd.OrderID = fields[1]

	case CommandModify:
		if len(fields) != 5 {
			return Command{}, arityError(line, kind, 5, len(fields))
		}
		cmd.OrderID = fields[1]
		if cmd.Side, err = parseSideField(line, fields[2]); err != nil {
			return Command{}, err
		}
		if cmd.Price, err = parseIntField(line, "price", fields[3]); err != nil {
			return Command{}, err
		}
		if cmd.Quantity, err = parseIntField(line, "quantity", fields[4]); err != nil {
			return Command{}, err
		}

	case CommandPrint:
		if len(fields) != 1 {
			return Command{}, arityError(line, kind, 1, len(fields))
		}

	default:
		return Command{}, &CommandError{Line: line, Reason: "unknown command " + strconv.Quote(fields[0])}
	}

	return cmd, nil
}

// String renders the command back into its input line form.
func (c Command) String() string {
	switch c.Kind {
	case CommandNew:
		return strings.Join([]string{string(c.Kind), string(c.Side), string(c.Type),
			strconv.FormatInt(c.Price, 10), strconv.FormatInt(c.Quantity, 10), c.OrderID}, " ")
	case CommandCancel:
		return string(c.Kind) + " " + c.OrderID
	case CommandModify:
		return strings.Join([]string{string(c.Kind), c.OrderID, string(c.Side),
			strconv.FormatInt(c.Price, 10), strconv.FormatInt(c.Quantity, 10)}, " ")
	}
	return string(c.Kind)
}

func arityError(line string, kind CommandKind, want, got int) error {
	return &CommandError{
		Line:   line,
		Reason: string(kind) + " takes " + strconv.Itoa(want) + " fields, got " + strconv.Itoa(got),
	}
}

func parseSideField(line, field string) (OrderSide, error) {
	side, ok := ParseSide(field)
	if !ok {
		return "", &CommandError{Line: line, Reason: "unknown side " + strconv.Quote(field)}
	}
	return side, nil
}

func parseIntField(line, name, field string) (int64, error) {
	v, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, &CommandError{Line: line, Reason: name + " is not an integer: " + strconv.Quote(field)}
	}
	return v, nil
}
