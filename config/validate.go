package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"habitledger/native/habits"
	"habitledger/storage"
)

const (
	defaultListenAddress = ":8545"
	defaultDataDir       = "./habits-data"
	defaultHistoryLimit  = 1024
	minSweepInterval     = time.Minute
)

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = "leveldb"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.Params.PerDayFeeWei) == "" {
		cfg.Params.PerDayFeeWei = habits.DefaultPerDayFee.String()
	}
	if cfg.Params.BatchSize == 0 {
		cfg.Params.BatchSize = habits.DefaultBatchSize
	}
	if cfg.Params.MaxLookaheadDays == 0 {
		cfg.Params.MaxLookaheadDays = habits.DefaultMaxLookaheadDays
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 30 * time.Second
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 20
	}
	if cfg.Sweeper.Interval.Duration == 0 {
		cfg.Sweeper.Interval.Duration = time.Hour
	}
	if cfg.Events.HistoryLimit == 0 {
		cfg.Events.HistoryLimit = defaultHistoryLimit
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config missing")
	}
	if _, err := storage.NormalizeBackend(c.StorageBackend); err != nil {
		return err
	}
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("Owner must be configured")
	}
	if _, err := c.OwnerAddress(); err != nil {
		return err
	}
	if _, err := c.HabitsParams(); err != nil {
		return err
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Sweeper.Enabled && c.Sweeper.Interval.Duration < minSweepInterval {
		return fmt.Errorf("sweeper interval must be at least %s", minSweepInterval)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be within [0,1]")
	}
	if strings.TrimSpace(c.Webhook.Endpoint) != "" && c.WebhookSecret() == "" {
		return fmt.Errorf("webhook endpoint configured without a secret")
	}
	if c.Webhook.MaxAttempts < 0 {
		return fmt.Errorf("webhook max attempts must not be negative")
	}
	if c.Events.HistoryLimit < 0 {
		return fmt.Errorf("events history limit must not be negative")
	}
	return nil
}

// OwnerAddress parses the configured owner.
func (c *Config) OwnerAddress() ([20]byte, error) {
	return ParseAddress(c.Owner)
}

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// HabitsParams converts the configured economics into ledger params.
func (c *Config) HabitsParams() (habits.Params, error) {
	fee, ok := new(big.Int).SetString(strings.TrimSpace(c.Params.PerDayFeeWei), 10)
	if !ok {
		return habits.Params{}, fmt.Errorf("invalid Params.PerDayFeeWei %q", c.Params.PerDayFeeWei)
	}
	params := habits.Params{
		PerDayFee:        fee,
		BatchSize:        c.Params.BatchSize,
		MaxLookaheadDays: c.Params.MaxLookaheadDays,
	}
	if err := params.Validate(); err != nil {
		return habits.Params{}, err
	}
	return params, nil
}

// AuthSecret resolves the HMAC secret, preferring the environment variable
// named by HMACSecretEnv.
func (c *Config) AuthSecret() string {
	if env := strings.TrimSpace(c.Auth.HMACSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(c.Auth.HMACSecret)
}

// WebhookSecret resolves the webhook signing secret, preferring the
// environment variable named by SecretEnv.
func (c *Config) WebhookSecret() string {
	if env := strings.TrimSpace(c.Webhook.SecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(c.Webhook.Secret)
}
