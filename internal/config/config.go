// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

// Package config loads enroll configuration from defaults, an optional YAML
// file and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/enrollkit/enroll/internal/credential"
	"github.com/enrollkit/enroll/internal/logging"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Notify drivers.
const (
	NotifyLog  = "log"
	NotifySMTP = "smtp"
)

// Config is the full enroll configuration.
type Config struct {
	Log     LogConfig     `koanf:"log"`
	HTTP    HTTPConfig    `koanf:"http"`
	Metrics MetricsConfig `koanf:"metrics"`
	Store   StoreConfig   `koanf:"store"`
	Hasher  HasherConfig  `koanf:"hasher"`
	Notify  NotifyConfig  `koanf:"notify"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// HTTPConfig configures the registration API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// StoreConfig selects the account backend.
type StoreConfig struct {
	Driver      string `koanf:"driver"`
	DatabaseURL string `koanf:"database_url"`
	SQLitePath  string `koanf:"sqlite_path"`
}

// HasherConfig holds the argon2id parameters.
type HasherConfig struct {
	WorkFactor int `koanf:"work_factor"`
	MemoryKiB  int `koanf:"memory_kib"`
	Threads    int `koanf:"threads"`
}

// NotifyConfig selects and configures the notification sender.
type NotifyConfig struct {
	Driver       string        `koanf:"driver"`
	Timeout      time.Duration `koanf:"timeout"`
	Retries      uint64        `koanf:"retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	Verification bool          `koanf:"verification"`
	From         string        `koanf:"from"`
	VerifyURL    string        `koanf:"verify_url"`
	SMTP         SMTPConfig    `koanf:"smtp"`
}

// SMTPConfig describes the outbound mail server.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	MaxConns int    `koanf:"max_conns"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:     LogConfig{Format: "json", Level: "info"},
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 15 * time.Second},
		Metrics: MetricsConfig{Addr: ":9100"},
		Store:   StoreConfig{Driver: StoreMemory},
		Hasher: HasherConfig{
			WorkFactor: credential.DefaultWorkFactor,
			MemoryKiB:  credential.DefaultMemoryKiB,
			Threads:    credential.DefaultThreads,
		},
		Notify: NotifyConfig{
			Driver:       NotifyLog,
			Timeout:      10 * time.Second,
			Retries:      2,
			RetryBackoff: 200 * time.Millisecond,
			Verification: true,
			VerifyURL:    "http://localhost:8080/verify",
			SMTP:         SMTPConfig{Port: 587, MaxConns: 4},
		},
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"store":        "store.driver",
	"database-url": "store.database_url",
	"sqlite-path":  "store.sqlite_path",
}

// Load builds the configuration. path names a YAML file; when required is
// false a missing file is ignored. Only flags the user actually set override
// file values.
func Load(path string, required bool, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" && (required || fileExists(path)) {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// Validate checks the configuration for values the services cannot start with.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log format must be json or text, got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "unknown log level %q", c.Log.Level)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http address is required")
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return invalid("store.database_url", "database_url is required for the postgres store")
		}
	case StoreSQLite:
	default:
		return invalid("store.driver", "unknown store driver %q", c.Store.Driver)
	}

	if c.Hasher.WorkFactor < credential.MinWorkFactor || c.Hasher.WorkFactor > credential.MaxWorkFactor {
		return invalid("hasher.work_factor", "work factor must be between %d and %d, got %d",
			credential.MinWorkFactor, credential.MaxWorkFactor, c.Hasher.WorkFactor)
	}
	if c.Hasher.MemoryKiB <= 0 {
		return invalid("hasher.memory_kib", "memory must be positive, got %d", c.Hasher.MemoryKiB)
	}
	if c.Hasher.Threads <= 0 {
		return invalid("hasher.threads", "threads must be positive, got %d", c.Hasher.Threads)
	}

	if c.Notify.Timeout <= 0 {
		return invalid("notify.timeout", "notify timeout must be positive, got %s", c.Notify.Timeout)
	}
	switch c.Notify.Driver {
	case NotifyLog:
	case NotifySMTP:
		if c.Notify.SMTP.Host == "" {
			return invalid("notify.smtp.host", "smtp host is required for the smtp notifier")
		}
		if c.Notify.From == "" {
			return invalid("notify.from", "from address is required for the smtp notifier")
		}
	default:
		return invalid("notify.driver", "unknown notify driver %q", c.Notify.Driver)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
}

// RegisterFlags adds the override flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("http-addr", d.HTTP.Addr, "registration API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address (empty disables)")
	fs.String("store", d.Store.Driver, "account store (memory, postgres, sqlite)")
	fs.String("database-url", d.Store.DatabaseURL, "PostgreSQL connection URL")
	fs.String("sqlite-path", d.Store.SQLitePath, "SQLite database file")
}
