package engine

import (
	"errors"
	"fmt"
	"strconv"
)

var ErrMalformedCommand = errors.New("malformed command")

// CommandError reports a command line that could not be parsed. The engine
// state is untouched when it is returned.
type CommandError struct {
	Line   string
	Reason string
}

func (e *CommandError) Error() string {
	return "malformed command " + strconv.Quote(e.Line) + ": " + e.Reason
}

func (e *CommandError) Unwrap() error {
	return ErrMalformedCommand
}

// InvariantError means the book bookkeeping is corrupt. Processing must not
// continue after it.
type InvariantError struct {
	Op     string
	Price  int64
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("order book invariant violated during %s at price %d: %s", e.Op, e.Price, e.Detail)
}

// IsFatal reports whether err carries an InvariantError.
func IsFatal(err error) bool {
	var invariantErr *InvariantError
	return errors.As(err, &invariantErr)
}
