// Package sequencer funnels commands from any number of goroutines into a
// single goroutine that owns the engine.Matcher.
package sequencer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"lob-engine/src/engine"
	"lob-engine/src/metrics"
)

const DefaultQueueSize = 1024

var ErrStopped = errors.New("sequencer stopped")

type reply struct {
	result *engine.Result
	err    error
}

type request struct {
	ctx     context.Context
	kind    string
	counted bool
	fn      func(m *engine.Matcher) (*engine.Result, error)
	reply   chan reply
}

type Stats struct {
	Commands  int64
	Accepted  int64
	Rejected  int64
	Malformed int64
	Trades    int64
}

type Sequencer struct {
	matcher  *engine.Matcher
	metrics  *metrics.Metrics
	requests chan request
	t        *tomb.Tomb
	halted   atomic.Bool

	commands  atomic.Int64
	accepted  atomic.Int64
	rejected  atomic.Int64
	malformed atomic.Int64
	trades    atomic.Int64
}

// New wraps matcher. m may be nil when no metrics are wanted.
func New(matcher *engine.Matcher, queueSize int, m *metrics.Metrics) *Sequencer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Sequencer{
		matcher:  matcher,
		metrics:  m,
		requests: make(chan request, queueSize),
	}
}

// Start launches the writer goroutine. It stops when ctx is done, on Stop,
// or after an invariant violation inside the matcher.
func (s *Sequencer) Start(ctx context.Context) {
	s.t, _ = tomb.WithContext(ctx)
	s.t.Go(s.loop)
}

func (s *Sequencer) loop() error {
	for {
		select {
		case <-s.t.Dying():
			return nil
		case req := <-s.requests:
			if err := s.apply(req); err != nil {
				s.halted.Store(true)
				log.Error().
					Err(err).
					Str("kind", req.kind).
					Msg("Engine halted: order book invariant violated")
				return err
			}
		}
	}
}

func (s *Sequencer) apply(req request) error {
	// edge case: caller gave up before its turn came, skip the command
	if err := req.ctx.Err(); err != nil {
		req.reply <- reply{err: err}
		return nil
	}

	start := time.Now()
	result, err := req.fn(s.matcher)
	took := time.Since(start)

	if req.counted {
		s.record(req.kind, result, err, took)
	}
	req.reply <- reply{result: result, err: err}

	if engine.IsFatal(err) {
		return err
	}
	return nil
}

func (s *Sequencer) record(kind string, result *engine.Result, err error, took time.Duration) {
	s.commands.Add(1)

	outcome := metrics.OutcomeAccepted
	switch {
	case engine.IsFatal(err):
		outcome = metrics.OutcomeFatal
	case err != nil:
		outcome = metrics.OutcomeMalformed
		s.malformed.Add(1)
	case result == nil || !result.Accepted:
		outcome = metrics.OutcomeRejected
		s.rejected.Add(1)
	default:
		s.accepted.Add(1)
	}
	if result != nil {
		s.trades.Add(int64(len(result.Trades)))
	}

	if s.metrics == nil {
		return
	}
	s.metrics.ObserveCommand(kind, outcome, took)
	if result != nil {
		for _, trade := range result.Trades {
			s.metrics.ObserveTrade(trade.Quantity)
		}
	}
	s.metrics.BookLevels.WithLabelValues(string(engine.SideBuy)).Set(float64(s.matcher.Depth(engine.SideBuy)))
	s.metrics.BookLevels.WithLabelValues(string(engine.SideSell)).Set(float64(s.matcher.Depth(engine.SideSell)))
	orders, _ := s.matcher.ArenaSize()
	s.metrics.ArenaOrders.Set(float64(orders))
	s.metrics.QueueDepth.Set(float64(len(s.requests)))
}

// Submit parses and applies one command line.
func (s *Sequencer) Submit(ctx context.Context, line string) (*engine.Result, error) {
	return s.do(ctx, kindOf(line), true, func(m *engine.Matcher) (*engine.Result, error) {
		return m.ProcessLine(line)
	})
}

// Execute applies an already parsed command.
func (s *Sequencer) Execute(ctx context.Context, cmd engine.Command) (*engine.Result, error) {
	return s.do(ctx, string(cmd.Kind), true, func(m *engine.Matcher) (*engine.Result, error) {
		return m.Execute(cmd)
	})
}

// Query runs fn on the writer goroutine without counting it as a command.
// fn must not keep references to matcher state after it returns.
func (s *Sequencer) Query(ctx context.Context, fn func(m *engine.Matcher) error) error {
	_, err := s.do(ctx, "QUERY", false, func(m *engine.Matcher) (*engine.Result, error) {
		return nil, fn(m)
	})
	return err
}

func (s *Sequencer) do(ctx context.Context, kind string, counted bool, fn func(m *engine.Matcher) (*engine.Result, error)) (*engine.Result, error) {
	if s.t == nil || !s.t.Alive() {
		return nil, ErrStopped
	}

	req := request{
		ctx:     ctx,
		kind:    kind,
		counted: counted,
		fn:      fn,
		reply:   make(chan reply, 1),
	}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.t.Dying():
		return nil, ErrStopped
	}

	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-s.t.Dead():
		// the loop may have answered right before exiting
		select {
		case r := <-req.reply:
			return r.result, r.err
		default:
			return nil, ErrStopped
		}
	}
}

// Stop asks the writer goroutine to exit and waits for it. The returned
// error is the invariant violation that halted the engine, if any.
func (s *Sequencer) Stop() error {
	if s.t == nil {
		return nil
	}
	s.t.Kill(nil)
	err := s.t.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Dead is closed once the writer goroutine has exited.
func (s *Sequencer) Dead() <-chan struct{} {
	return s.t.Dead()
}

// Halted reports whether the engine stopped on an invariant violation.
func (s *Sequencer) Halted() bool {
	return s.halted.Load()
}

func (s *Sequencer) QueueLen() int {
	return len(s.requests)
}

func (s *Sequencer) Stats() Stats {
	return Stats{
		Commands:  s.commands.Load(),
		Accepted:  s.accepted.Load(),
		Rejected:  s.rejected.Load(),
		Malformed: s.malformed.Load(),
		Trades:    s.trades.Load(),
	}
}

func kindOf(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "EMPTY"
	}
	switch kind := engine.CommandKind(fields[0]); kind {
	case engine.CommandNew, engine.CommandCancel, engine.CommandModify, engine.CommandPrint:
		return string(kind)
	}
	return "UNKNOWN"
}
