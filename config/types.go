package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so both TOML and YAML files can use human
// readable strings such as "15m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	return d.parse(string(text))
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	return d.parse(value.Value)
}

func (d *Duration) parse(raw string) error {
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Params mirrors the ledger economics. The fee is a decimal wei string.
type Params struct {
	PerDayFeeWei     string `toml:"PerDayFeeWei" yaml:"per_day_fee_wei"`
	BatchSize        int    `toml:"BatchSize" yaml:"batch_size"`
	MaxLookaheadDays int64  `toml:"MaxLookaheadDays" yaml:"max_lookahead_days"`
}

// Auth configures bearer-token authentication of API callers. The token's
// subject claim carries the caller address.
type Auth struct {
	HMACSecret    string `toml:"HMACSecret" yaml:"hmac_secret"`
	HMACSecretEnv string `toml:"HMACSecretEnv" yaml:"hmac_secret_env"`
	Issuer        string `toml:"Issuer" yaml:"issuer"`
	Audience      string `toml:"Audience" yaml:"audience"`
	// ClockSkew tolerated on exp/nbf claims.
	ClockSkew Duration `toml:"ClockSkew" yaml:"clock_skew"`
}

// RateLimit throttles requests per caller.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond" yaml:"requests_per_second"`
	Burst             int     `toml:"Burst" yaml:"burst"`
}

// Audit configures the event audit sink. An empty DSN disables it; DSNs
// starting with postgres:// use PostgreSQL, anything else is a SQLite path.
type Audit struct {
	DSN string `toml:"DSN" yaml:"dsn"`
}

// Webhook configures signed settlement notifications. An empty Endpoint
// disables delivery.
type Webhook struct {
	Endpoint    string   `toml:"Endpoint" yaml:"endpoint"`
	Secret      string   `toml:"Secret" yaml:"secret"`
	SecretEnv   string   `toml:"SecretEnv" yaml:"secret_env"`
	MaxAttempts int      `toml:"MaxAttempts" yaml:"max_attempts"`
	MinBackoff  Duration `toml:"MinBackoff" yaml:"min_backoff"`
	MaxBackoff  Duration `toml:"MaxBackoff" yaml:"max_backoff"`
}

// Sweeper schedules periodic operator fee sweeps.
type Sweeper struct {
	Enabled  bool     `toml:"Enabled" yaml:"enabled"`
	Interval Duration `toml:"Interval" yaml:"interval"`
}

// Events sizes the websocket replay buffer.
type Events struct {
	HistoryLimit int `toml:"HistoryLimit" yaml:"history_limit"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"Insecure" yaml:"insecure"`
	Headers     string  `toml:"Headers" yaml:"headers"`
	Metrics     bool    `toml:"Metrics" yaml:"metrics"`
	Traces      bool    `toml:"Traces" yaml:"traces"`
	SampleRatio float64 `toml:"SampleRatio" yaml:"sample_ratio"`
}

// Log configures structured logging.
type Log struct {
	Level           string `toml:"Level" yaml:"level"`
	File            string `toml:"File" yaml:"file"`
	MaxSizeMB       int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups      int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays      int    `toml:"MaxAgeDays" yaml:"max_age_days"`
	RedactAddresses bool   `toml:"RedactAddresses" yaml:"redact_addresses"`
}
