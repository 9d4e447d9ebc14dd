// Package sweeper periodically collects matured operator fees on behalf of
// the ledger owner.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"habitledger/native/habits"
	"habitledger/observability/metrics"
)

const minInterval = time.Minute

// Ledger is the ledger surface the sweeper drives.
type Ledger interface {
	SweepOperationFees(ctx context.Context, caller [20]byte) (*habits.Settlement, error)
}

// Config configures a sweeper.
type Config struct {
	Owner    [20]byte
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.HabitsMetrics
}

// Sweeper runs the owner fee sweep on a fixed interval. Runs never overlap.
type Sweeper struct {
	ledger  Ledger
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.HabitsMetrics

	mu     sync.Mutex
	sched  gocron.Scheduler
	last   *habits.Settlement
	total  *big.Int
	lastAt time.Time
}

// New validates cfg and prepares a sweeper. Start schedules it.
func New(ledger Ledger, cfg Config) (*Sweeper, error) {
	if ledger == nil {
		return nil, errors.New("sweeper: ledger required")
	}
	if cfg.Interval < minInterval {
		return nil, fmt.Errorf("sweeper: interval must be at least %s", minInterval)
	}
	if cfg.Owner == ([20]byte{}) {
		return nil, errors.New("sweeper: owner required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		ledger:  ledger,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "sweeper")),
		metrics: cfg.Metrics,
		total:   big.NewInt(0),
	}, nil
}

// Start schedules the sweep job.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched != nil {
		return errors.New("sweeper: already started")
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("sweeper: scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
			defer cancel()
			_, _ = s.SweepOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("habits-operation-fee-sweep"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("sweeper: job: %w", err)
	}
	sched.Start()
	s.sched = sched
	s.logger.Info("sweeper started", slog.Duration("interval", s.cfg.Interval))
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep to finish.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()
	if sched == nil {
		return nil
	}
	return sched.Shutdown()
}

// SweepOnce collects every withdrawable operator fee immediately.
func (s *Sweeper) SweepOnce(ctx context.Context) (*habits.Settlement, error) {
	settlement, err := s.ledger.SweepOperationFees(ctx, s.cfg.Owner)
	s.metrics.ObserveSweep(err)
	if err != nil {
		s.logger.Error("sweep failed", slog.Any("error", err))
		return nil, err
	}
	s.mu.Lock()
	s.last = settlement
	s.lastAt = time.Now()
	s.total.Add(s.total, settlement.Amount)
	s.mu.Unlock()
	if settlement.Amount.Sign() > 0 {
		s.logger.Info("operation fees swept",
			slog.Int("dates", len(settlement.Dates)),
			slog.String("amount", settlement.Amount.String()))
	}
	return settlement, nil
}

// Status reports the most recent settlement and the total swept since start.
func (s *Sweeper) Status() (last *habits.Settlement, at time.Time, total *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastAt, new(big.Int).Set(s.total)
}
