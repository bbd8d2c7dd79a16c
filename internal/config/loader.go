package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	EnvPrefix     = "COVID_"
	EnvConfigFile = "COVID_CONFIG"
	EnvDotEnvFile = "COVID_ENV_FILE"

	defaultDotEnvFile = ".env"
)

// Load builds a Config by layering defaults, .env, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env file (COVID_ENV_FILE, default ".env"); COVID_ keys only
//  3. file (YAML) if COVID_CONFIG is set, in the environment or in .env
//  4. env (prefix COVID_)
//
// The .env file never touches the process environment.
func Load(_ context.Context) (*Config, error) {
	base := New()

	dotenv, err := readDotEnv()
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(dotenv, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if path := configFile(dotenv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: COVID_ADDR, COVID_DB_PATH, ...
	// Map env keys like COVID_DB_PATH -> db_path (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps COVID_DB_PATH to db_path.
func envKey(s string) string {
	return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
}

// dotEnv is a koanf.Provider over the COVID_ entries of a .env file.
type dotEnv map[string]string

// ReadBytes is not supported; dotEnv only provides parsed values.
func (d dotEnv) ReadBytes() ([]byte, error) {
	return nil, errors.New("dotenv provider does not support ReadBytes")
}

// Read returns the COVID_ entries keyed like the env provider.
func (d dotEnv) Read() (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(d))
	for key, val := range d {
		if key == EnvConfigFile || key == EnvDotEnvFile || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		out[envKey(key)] = val
	}
	return out, nil
}

// readDotEnv parses the .env file. A missing file yields no values.
func readDotEnv() (dotEnv, error) {
	path := os.Getenv(EnvDotEnvFile)
	if path == "" {
		path = defaultDotEnvFile
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dotEnv{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	return values, nil
}

// configFile returns the YAML path, preferring the environment over .env.
func configFile(dotenv dotEnv) string {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return path
	}
	return dotenv[EnvConfigFile]
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.RateLimitRPS < 0:
		return fmt.Errorf("%w: rate_limit_rps must not be negative", ErrInvalidConfig)
	case c.MetricsRefreshIntervalMS <= 0:
		return fmt.Errorf("%w: metrics_refresh_interval_ms must be positive", ErrInvalidConfig)
	}
	if _, err := c.TrustedProxies(); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "text", "json", "console":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Watch reloads the configuration whenever the COVID_CONFIG file changes and
// passes the result to onChange. It is a no-op when no file is configured.
// Watching stops when ctx is cancelled.
func Watch(ctx context.Context, onChange func(*Config, error)) error {
	dotenv, err := readDotEnv()
	if err != nil {
		return err
	}
	path := configFile(dotenv)
	if path == "" {
		return nil
	}

	fp := file.Provider(path)
	err = fp.Watch(func(_ interface{}, err error) {
		if err != nil {
			onChange(nil, fmt.Errorf("%w: %w", ErrLoadConfig, err))
			return
		}
		onChange(Load(ctx))
	})
	if err != nil {
		return fmt.Errorf("%w: watch %s: %w", ErrLoadConfig, path, err)
	}

	go func() {
		<-ctx.Done()
		_ = fp.Unwatch()
	}()
	return nil
}
