package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/covid19india/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":3000")
				convey.So(cfg.DBPath, convey.ShouldEqual, "covid19India.db")
				convey.So(cfg.DBBusyTimeoutMS, convey.ShouldEqual, 5000)
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldEqual, "*")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("COVID_ADDR", ":8080")
			_ = os.Setenv("COVID_DB_PATH", "/data/covid.db")
			_ = os.Setenv("COVID_DB_BUSY_TIMEOUT_MS", "250")
			_ = os.Setenv("COVID_RATE_LIMIT_RPS", "12.5")
			_ = os.Setenv("COVID_LOG_FORMAT", "json")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DBPath, convey.ShouldEqual, "/data/covid.db")
				convey.So(cfg.DBBusyTimeoutMS, convey.ShouldEqual, 250)
				convey.So(cfg.RateLimitRPS, convey.ShouldEqual, 12.5)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
db_path: "from-file.db"
cors_allowed_origins: "http://localhost:5173,https://example.org"
rate_limit_burst: 5
`
			tmpFile := createTempConfigFile(t, yamlContent)
			_ = os.Setenv("COVID_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DBPath, convey.ShouldEqual, "from-file.db")
				convey.So(cfg.RateLimitBurst, convey.ShouldEqual, 5)
				convey.So(cfg.AllowedOrigins(), convey.ShouldResemble, []string{"http://localhost:5173", "https://example.org"})
				convey.So(cfg.DBBusyTimeoutMS, convey.ShouldEqual, 5000) // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, "addr: \":9090\"\ndb_path: \"from-file.db\"\n")
			_ = os.Setenv("COVID_CONFIG", tmpFile)
			_ = os.Setenv("COVID_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")          // Overridden by env
				convey.So(cfg.DBPath, convey.ShouldEqual, "from-file.db") // From file
			})
		})

		convey.Convey("When a .env file is present", func() {
			dir := t.TempDir()
			dotenv := filepath.Join(dir, "test.env")
			convey.So(os.WriteFile(dotenv, []byte("COVID_DB_PATH=from-dotenv.db\nCOVID_LOG_LEVEL=debug\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("COVID_ENV_FILE", dotenv)
			_ = os.Setenv("COVID_LOG_LEVEL", "warn")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.DBPath, convey.ShouldEqual, "from-dotenv.db")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
			})
		})

		convey.Convey("When the same key is set in .env and the YAML file", func() {
			dotenv := filepath.Join(t.TempDir(), "test.env")
			convey.So(os.WriteFile(dotenv, []byte("COVID_ADDR=:5000\nCOVID_DB_PATH=from-dotenv.db\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("COVID_ENV_FILE", dotenv)
			_ = os.Setenv("COVID_CONFIG", createTempConfigFile(t, "addr: \":4000\"\n"))

			cfg, err := config.Load(ctx)

			convey.Convey("Then the YAML file wins and .env fills the rest", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":4000")
				convey.So(cfg.DBPath, convey.ShouldEqual, "from-dotenv.db")
			})

			convey.Convey("And the process environment is left untouched", func() {
				convey.So(os.Getenv("COVID_ADDR"), convey.ShouldBeEmpty)
				convey.So(os.Getenv("COVID_DB_PATH"), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When .env names the YAML file", func() {
			dotenv := filepath.Join(t.TempDir(), "test.env")
			yamlFile := createTempConfigFile(t, "addr: \":4000\"\n")
			convey.So(os.WriteFile(dotenv, []byte("COVID_CONFIG="+yamlFile+"\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("COVID_ENV_FILE", dotenv)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the file is loaded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":4000")
			})
		})

		convey.Convey("When the .env file does not exist", func() {
			_ = os.Setenv("COVID_ENV_FILE", "/non/existent/.env")

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading still succeeds", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("COVID_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("COVID_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("COVID_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty db_path", func() {
			_ = os.Setenv("COVID_DB_PATH", "")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "db_path must not be empty")
			})
		})

		convey.Convey("When loading config with an unknown log format", func() {
			_ = os.Setenv("COVID_LOG_FORMAT", "xml")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When metrics settings come from the environment", func() {
			_ = os.Setenv("COVID_METRICS_ENABLED", "false")
			_ = os.Setenv("COVID_METRICS_ENV", "prod")
			_ = os.Setenv("COVID_METRICS_REFRESH_INTERVAL_MS", "2500")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
				convey.So(cfg.MetricsEnv, convey.ShouldEqual, "prod")
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "covid19india")
				convey.So(cfg.MetricsRefreshIntervalMS, convey.ShouldEqual, 2500)
			})
		})

		convey.Convey("When the trusted proxy list is malformed", func() {
			_ = os.Setenv("COVID_RATE_LIMIT_TRUSTED_PROXIES", "not-an-ip")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("COVID_DB_BUSY_TIMEOUT_MS", "soon")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigWatch(t *testing.T) {
	convey.Convey("Given no config file", t, func() {
		clearConfigEnvVars()

		convey.Convey("Watch is a no-op", func() {
			err := config.Watch(context.Background(), func(*config.Config, error) {
				t.Error("callback must not fire")
			})
			convey.So(err, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a watched config file", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		tmpFile := createTempConfigFile(t, "log_level: info\n")
		_ = os.Setenv("COVID_CONFIG", tmpFile)

		changes := make(chan *config.Config, 4)
		err := config.Watch(ctx, func(cfg *config.Config, err error) {
			if err != nil {
				return
			}
			select {
			case changes <- cfg:
			default:
			}
		})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the file is rewritten", func() {
			convey.So(os.WriteFile(tmpFile, []byte("log_level: debug\n"), 0o600), convey.ShouldBeNil)

			convey.Convey("Then the callback receives the new values", func() {
				// A rewrite can surface as several events; wait for the final content.
				deadline := time.After(5 * time.Second)
				level := ""
				for level != "debug" {
					select {
					case cfg := <-changes:
						level = cfg.LogLevel
					case <-deadline:
						t.Fatal("no reload observed")
					}
				}
				convey.So(level, convey.ShouldEqual, "debug")
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"COVID_CONFIG",
		"COVID_ENV_FILE",
		"COVID_ADDR",
		"COVID_DB_PATH",
		"COVID_DB_BUSY_TIMEOUT_MS",
		"COVID_LOG_LEVEL",
		"COVID_LOG_FORMAT",
		"COVID_RATE_LIMIT_RPS",
		"COVID_RATE_LIMIT_BURST",
		"COVID_CORS_ALLOWED_ORIGINS",
		"COVID_RATE_LIMIT_TRUSTED_PROXIES",
		"COVID_METRICS_ENABLED",
		"COVID_METRICS_NAMESPACE",
		"COVID_METRICS_ENV",
		"COVID_METRICS_REFRESH_INTERVAL_MS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "covid-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
