package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"habitledger/core/events"
	"habitledger/core/state"
	"habitledger/native/habits"
	"habitledger/observability/metrics"
	telemetry "habitledger/observability/otel"
	"habitledger/storage"
)

var errNilDatabase = errors.New("ledger: database not configured")

// Ledger serialises access to the habits engine. Every call runs against a
// fresh state overlay that is committed as one batch when the call succeeds
// and dropped when it fails. Events raised during a call are published only
// after its commit.
type Ledger struct {
	mu      sync.Mutex
	db      storage.Database
	params  habits.Params
	nowFn   func() int64
	emitter events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.HabitsMetrics
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithParams overrides the default economics.
func WithParams(params habits.Params) Option {
	return func(l *Ledger) { l.params = params }
}

// WithNowFunc overrides the wall clock.
func WithNowFunc(now func() int64) Option {
	return func(l *Ledger) { l.nowFn = now }
}

// WithEmitter sets the sink for committed events.
func WithEmitter(emitter events.Emitter) Option {
	return func(l *Ledger) { l.emitter = emitter }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithMetrics sets the metrics registry. A nil registry disables metrics.
func WithMetrics(m *metrics.HabitsMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// NewLedger builds a ledger over db.
func NewLedger(db storage.Database, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, errNilDatabase
	}
	l := &Ledger{
		db:      db,
		params:  habits.DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  telemetry.Tracer("habitledger/core"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if err := l.params.Validate(); err != nil {
		return nil, err
	}
	if l.emitter == nil {
		l.emitter = events.NoopEmitter{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.nowFn == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
	}
	return l, nil
}

// Params returns the active economics.
func (l *Ledger) Params() habits.Params {
	return habits.Params{
		PerDayFee:        new(big.Int).Set(l.params.PerDayFee),
		BatchSize:        l.params.BatchSize,
		MaxLookaheadDays: l.params.MaxLookaheadDays,
	}
}

// Now returns the ledger's notion of the current time.
func (l *Ledger) Now() int64 { return l.nowFn() }

type call func(engine *habits.Engine, mgr *state.Manager) error

func (l *Ledger) run(ctx context.Context, op string, write bool, fn call) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, span := l.tracer.Start(ctx, "habits."+op, trace.WithAttributes(
		attribute.String("habits.operation", op),
		attribute.Bool("habits.write", write),
	))
	started := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		l.metrics.ObserveOperation(op, err, time.Since(started))
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	mgr := state.NewManager(l.db)
	buffer := &events.Buffer{}
	engine := habits.NewEngine()
	engine.SetState(mgr)
	engine.SetEmitter(buffer)
	engine.SetNowFunc(l.nowFn)
	if err := engine.SetParams(l.params); err != nil {
		return err
	}

	if err := fn(engine, mgr); err != nil {
		mgr.Discard()
		l.logger.Debug("ledger call rejected", slog.String("operation", op), slog.Any("error", err))
		return err
	}
	if !write {
		mgr.Discard()
		return nil
	}
	dirty := mgr.Dirty()
	if err := mgr.Commit(); err != nil {
		l.logger.Error("ledger commit failed", slog.String("operation", op), slog.Any("error", err))
		return fmt.Errorf("ledger: %s: %w", op, err)
	}
	if balance, err := mgr.HabitsVaultBalance(); err == nil {
		l.metrics.SetVaultBalance(balance)
	}
	published := buffer.Drain()
	for _, evt := range published {
		l.emitter.Emit(evt)
	}
	span.SetAttributes(attribute.Int("habits.writes", dirty), attribute.Int("habits.events", len(published)))
	l.logger.Debug("ledger call committed",
		slog.String("operation", op),
		slog.Int("writes", dirty),
		slog.Int("events", len(published)))
	return nil
}

// Init records the owner on first start. Restarting with the same owner is a
// no-op; a different owner is rejected.
func (l *Ledger) Init(ctx context.Context, owner [20]byte) error {
	return l.run(ctx, "init", true, func(engine *habits.Engine, _ *state.Manager) error {
		return engine.InitOwner(owner)
	})
}

// Register commits caller to one batch of dates starting at start.
func (l *Ledger) Register(ctx context.Context, caller [20]byte, start int64, paid *big.Int) (*habits.Registration, error) {
	var reg *habits.Registration
	err := l.run(ctx, "register", true, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		reg, err = engine.Register(caller, start, paid)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.AddEscrowed(reg.Amount)
	return reg, nil
}

// CheckIn completes the caller's entry for today.
func (l *Ledger) CheckIn(ctx context.Context, caller [20]byte) (int64, error) {
	var date int64
	err := l.run(ctx, "check_in", true, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		date, err = engine.CheckIn(caller)
		return err
	})
	return date, err
}

// Withdraw settles the caller's eligible dates.
func (l *Ledger) Withdraw(ctx context.Context, caller [20]byte, dates []int64) (*habits.Settlement, error) {
	var settlement *habits.Settlement
	err := l.run(ctx, "withdraw", true, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		settlement, err = engine.Withdraw(caller, dates)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.AddSettled("withdraw", settlement.Amount)
	return settlement, nil
}

// WithdrawOperationFees sweeps the operator's cut of the given dates.
func (l *Ledger) WithdrawOperationFees(ctx context.Context, caller [20]byte, dates []int64) (*habits.Settlement, error) {
	var settlement *habits.Settlement
	err := l.run(ctx, "withdraw_operation_fees", true, func(engine *habits.Engine, _ *state.Manager) error {
		var err error
		settlement, err = engine.WithdrawOperationFees(caller, dates)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.AddSettled("operation_fee", settlement.Amount)
	return settlement, nil
}

// SweepOperationFees sweeps every currently withdrawable operator fee in a
// single atomic call.
func (l *Ledger) SweepOperationFees(ctx context.Context, caller [20]byte) (*habits.Settlement, error) {
	var settlement *habits.Settlement
	err := l.run(ctx, "sweep_operation_fees", true, func(engine *habits.Engine, _ *state.Manager) error {
		dates, _, err := engine.WithdrawableOperationFees(caller)
		if err != nil {
			return err
		}
		settlement, err = engine.WithdrawOperationFees(caller, dates)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.AddSettled("operation_fee", settlement.Amount)
	return settlement, nil
}

// AddAdmin grants admin rights; owner only.
func (l *Ledger) AddAdmin(ctx context.Context, caller, addr [20]byte) error {
	return l.run(ctx, "add_admin", true, func(engine *habits.Engine, _ *state.Manager) error {
		return engine.AddAdmin(caller, addr)
	})
}

// RemoveAdmin revokes admin rights; owner only.
func (l *Ledger) RemoveAdmin(ctx context.Context, caller, addr [20]byte) error {
	return l.run(ctx, "remove_admin", true, func(engine *habits.Engine, _ *state.Manager) error {
		return engine.RemoveAdmin(caller, addr)
	})
}
