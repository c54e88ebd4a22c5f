// Package feed reads command lines from a stream and applies them in order.
package feed

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"lob-engine/src/engine"
)

// Submitter applies one command line. *sequencer.Sequencer implements it.
type Submitter interface {
	Submit(ctx context.Context, line string) (*engine.Result, error)
}

type Summary struct {
	Lines     int
	Rejected  int
	Malformed int
}

// Run submits every line of r until EOF, ctx is done, or a fatal error.
// flush is called whenever the reader has no more buffered input so that
// output shows up promptly on interactive streams, and once more at the end.
// Malformed and rejected commands are counted and skipped.
func Run(ctx context.Context, r io.Reader, sub Submitter, flush func() error) (Summary, error) {
	var summary Summary
	reader := bufio.NewReader(r)

	for {
		if err := ctx.Err(); err != nil {
			return summary, flushAfter(err, flush)
		}

		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return summary, flushAfter(readErr, flush)
		}

		line = strings.TrimRight(line, "\r\n")
		if line != "" || readErr == nil {
			summary.Lines++
			result, err := sub.Submit(ctx, line)
			switch {
			case errors.Is(err, engine.ErrMalformedCommand):
				summary.Malformed++
			case err != nil:
				log.Error().
					Err(err).
					Int("line_no", summary.Lines).
					Str("line", line).
					Msg("Stopping input feed")
				return summary, flushAfter(err, flush)
			case !result.Accepted:
				summary.Rejected++
			}
		}

		if errors.Is(readErr, io.EOF) {
			return summary, flushAfter(nil, flush)
		}
		if reader.Buffered() == 0 {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
}

func flushAfter(err error, flush func() error) error {
	if flushErr := flush(); err == nil {
		return flushErr
	}
	return err
}
