package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HabitsMetrics tracks ledger operations and the value flowing through the
// vault.
type HabitsMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	settled    *prometheus.CounterVec
	escrowed   prometheus.Counter
	vault      prometheus.Gauge
	sweeps     *prometheus.CounterVec
}

var (
	habitsOnce     sync.Once
	habitsRegistry *HabitsMetrics
)

// Habits returns the process-wide ledger metrics registry.
func Habits() *HabitsMetrics {
	habitsOnce.Do(func() {
		habitsRegistry = &HabitsMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "habits_operations_total",
				Help: "Count of ledger operations by name and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "habits_operation_duration_seconds",
				Help:    "Latency of ledger operations including commit.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			settled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "habits_settled_wei_total",
				Help: "Amount released from the vault by settlement kind.",
			}, []string{"kind"}),
			escrowed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "habits_escrowed_wei_total",
				Help: "Amount escrowed by registrations.",
			}),
			vault: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "habits_vault_balance_wei",
				Help: "Amount currently held in escrow.",
			}),
			sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "habits_sweeper_runs_total",
				Help: "Count of scheduled fee sweeps by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			habitsRegistry.operations,
			habitsRegistry.latency,
			habitsRegistry.settled,
			habitsRegistry.escrowed,
			habitsRegistry.vault,
			habitsRegistry.sweeps,
		)
	})
	return habitsRegistry
}

func toFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(amount).Float64()
	return f
}

// ObserveOperation records the outcome and duration of a ledger call.
func (m *HabitsMetrics) ObserveOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// AddEscrowed records a registration deposit.
func (m *HabitsMetrics) AddEscrowed(amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.escrowed.Add(toFloat(amount))
}

// AddSettled records an amount released from the vault.
func (m *HabitsMetrics) AddSettled(kind string, amount *big.Int) {
	if m == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	m.settled.WithLabelValues(kind).Add(toFloat(amount))
}

// SetVaultBalance updates the escrow balance gauge.
func (m *HabitsMetrics) SetVaultBalance(amount *big.Int) {
	if m == nil {
		return
	}
	m.vault.Set(toFloat(amount))
}

// ObserveSweep records a scheduled sweep run.
func (m *HabitsMetrics) ObserveSweep(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.sweeps.WithLabelValues(outcome).Inc()
}
