package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"habitledger/config"
	"habitledger/core"
	"habitledger/core/events"
	"habitledger/gateway/middleware"
	"habitledger/integrations/audit"
	"habitledger/integrations/webhooks"
	"habitledger/observability"
	"habitledger/observability/logging"
	"habitledger/observability/metrics"
	telemetry "habitledger/observability/otel"
	"habitledger/rpc"
	"habitledger/services/sweeper"
	"habitledger/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to habitsd configuration (TOML or YAML)")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "habitsd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("HABITS_ENV")); override != "" {
		env = override
	}
	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    "habitsd",
		Env:        env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "habitsd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddress, err)
	}
	return d.Serve(ctx, listener)
}

// daemon owns every long-lived component of the process.
type daemon struct {
	logger  *slog.Logger
	db      storage.Database
	ledger  *core.Ledger
	hub     *events.Hub
	server  *rpc.Server
	sweeper *sweeper.Sweeper
	closers []io.Closer
}

func newDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (d *daemon, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	owner, err := cfg.OwnerAddress()
	if err != nil {
		return nil, err
	}
	params, err := cfg.HabitsParams()
	if err != nil {
		return nil, err
	}
	secret := cfg.AuthSecret()
	if secret == "" {
		return nil, errors.New("auth secret not configured; set Auth.HMACSecret or Auth.HMACSecretEnv")
	}

	d = &daemon{logger: logger}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	d.db = db
	d.closers = append(d.closers, db)

	d.hub = events.NewHub(cfg.Events.HistoryLimit)
	emitters := events.Multi{d.hub, observability.Events()}
	if dsn := strings.TrimSpace(cfg.Audit.DSN); dsn != "" {
		auditDB, err := audit.Open(dsn)
		if err != nil {
			return nil, err
		}
		sink, err := audit.NewSink(auditDB, logger)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, sink)
		emitters = append(emitters, sink)
	}
	if endpoint := strings.TrimSpace(cfg.Webhook.Endpoint); endpoint != "" {
		dispatcher, err := webhooks.NewDispatcher(endpoint, []byte(cfg.WebhookSecret()),
			webhooks.WithLogger(logger),
			webhooks.WithRetryPolicy(cfg.Webhook.MaxAttempts, cfg.Webhook.MinBackoff.Duration, cfg.Webhook.MaxBackoff.Duration))
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, dispatcher)
		emitters = append(emitters, dispatcher)
	}

	ledgerMetrics := metrics.Habits()
	d.ledger, err = core.NewLedger(db,
		core.WithParams(params),
		core.WithEmitter(emitters),
		core.WithLogger(logger),
		core.WithMetrics(ledgerMetrics),
	)
	if err != nil {
		return nil, err
	}
	if err := d.ledger.Init(ctx, owner); err != nil {
		return nil, fmt.Errorf("init ledger owner: %w", err)
	}

	if cfg.Sweeper.Enabled {
		d.sweeper, err = sweeper.New(d.ledger, sweeper.Config{
			Owner:    owner,
			Interval: cfg.Sweeper.Interval.Duration,
			Logger:   logger,
			Metrics:  ledgerMetrics,
		})
		if err != nil {
			return nil, err
		}
	}

	authCfg := middleware.AuthConfig{
		HMACSecret: secret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		ClockSkew:  cfg.Auth.ClockSkew.Duration,
	}
	limit := middleware.RateLimit{RequestsPerSecond: cfg.RateLimit.RequestsPerSecond, Burst: cfg.RateLimit.Burst}
	var sweeperStatus rpc.SweeperStatus
	if d.sweeper != nil {
		sweeperStatus = d.sweeper
	}
	d.server, err = rpc.NewServer(rpc.Config{
		Ledger:          d.ledger,
		Hub:             d.hub,
		Sweeper:         sweeperStatus,
		Auth:            middleware.NewAuthenticator(authCfg, logger),
		RateLimiter:     middleware.NewRateLimiter(map[string]middleware.RateLimit{"read": limit, "write": limit}, logger),
		Observability:   middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "habitsd"}, logger),
		Logger:          logger,
		RedactAddresses: cfg.Log.RedactAddresses,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("habitsd initialised",
		slog.String("backend", cfg.StorageBackend),
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("audit", strings.TrimSpace(cfg.Audit.DSN) != ""),
		slog.Bool("webhook", strings.TrimSpace(cfg.Webhook.Endpoint) != ""),
		slog.Bool("sweeper", cfg.Sweeper.Enabled))
	return d, nil
}

// Serve runs the sweeper and API until ctx is cancelled.
func (d *daemon) Serve(ctx context.Context, listener net.Listener) error {
	if d.sweeper != nil {
		if err := d.sweeper.Start(); err != nil {
			return err
		}
		defer func() { _ = d.sweeper.Stop() }()
	}
	return d.server.ServeListener(ctx, listener)
}

// Close releases resources in reverse acquisition order.
func (d *daemon) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			d.logger.Warn("close failed", slog.Any("error", err))
		}
	}
	d.closers = nil
}
