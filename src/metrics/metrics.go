package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lob_engine"

// Outcome labels for CommandsTotal.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeFatal     = "fatal"
)

type Metrics struct {
	CommandsTotal  *prometheus.CounterVec
	TradesTotal    prometheus.Counter
	TradedQuantity prometheus.Counter
	CommandLatency *prometheus.HistogramVec
	BookLevels     *prometheus.GaugeVec
	ArenaOrders    prometheus.Gauge
	QueueDepth     prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of commands applied, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		TradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Total number of trades emitted.",
		}),
		TradedQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_quantity_total",
			Help:      "Total quantity filled across all trades.",
		}),
		CommandLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time spent applying one command inside the engine.",
				Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
			},
			[]string{"kind"},
		),
		BookLevels: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "book_levels",
				Help:      "Number of price levels per book side.",
			},
			[]string{"side"},
		),
		ArenaOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "arena_orders",
			Help:      "Order records allocated by the arena.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequencer_queue_depth",
			Help:      "Commands waiting for the engine goroutine.",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.CommandsTotal,
		m.TradesTotal,
		m.TradedQuantity,
		m.CommandLatency,
		m.BookLevels,
		m.ArenaOrders,
		m.QueueDepth,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	if err := m.Register(reg); err != nil {
		panic(err)
	}
}

// ObserveCommand records one applied command.
func (m *Metrics) ObserveCommand(kind, outcome string, took time.Duration) {
	m.CommandsTotal.WithLabelValues(kind, outcome).Inc()
	m.CommandLatency.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) ObserveTrade(quantity int64) {
	m.TradesTotal.Inc()
	m.TradedQuantity.Add(float64(quantity))
}
