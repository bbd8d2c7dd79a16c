// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Loading functions accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"net/netip"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text, json, console.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite file holding the state and district tables.
	DBPath string `koanf:"db_path"`

	// DBBusyTimeoutMS is how long SQLite waits on a locked database.
	DBBusyTimeoutMS int `koanf:"db_busy_timeout_ms"`

	// CORSAllowedOrigins is a comma-separated origin list; "*" allows all.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// RateLimitRPS is the per-client request rate. Zero disables limiting.
	RateLimitRPS float64 `koanf:"rate_limit_rps"`

	// RateLimitBurst is the per-client bucket size.
	RateLimitBurst int `koanf:"rate_limit_burst"`

	// RateLimitTrustedProxies lists comma-separated IPs or CIDRs whose
	// X-Forwarded-For header is believed. Empty keys clients by remote address.
	RateLimitTrustedProxies string `koanf:"rate_limit_trusted_proxies"`

	// MetricsEnabled turns metric recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`

	// MetricsEnv, when set, is attached to every series as the env label.
	MetricsEnv string `koanf:"metrics_env"`

	// MetricsRefreshIntervalMS is how often pool and runtime gauges are sampled.
	MetricsRefreshIntervalMS int `koanf:"metrics_refresh_interval_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":3000",
		DBPath:             "covid19India.db",
		DBBusyTimeoutMS:    5000,
		CORSAllowedOrigins: "*",
		RateLimitRPS:       0,
		RateLimitBurst:     20,

		MetricsEnabled:           true,
		MetricsNamespace:         "covid19india",
		MetricsRefreshIntervalMS: 10000,
	}
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// TrustedProxies parses RateLimitTrustedProxies. A bare IP becomes a
// single-address prefix.
func (c *Config) TrustedProxies() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range strings.Split(c.RateLimitTrustedProxies, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: rate_limit_trusted_proxies: %w", ErrInvalidConfig, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: rate_limit_trusted_proxies: %w", ErrInvalidConfig, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
