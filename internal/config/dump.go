// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package config

import (
	"net/url"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const redacted = "[REDACTED]"

// MarshalYAML renders the effective configuration in the file format Load
// reads. Passwords, including one embedded in the database URL, are masked.
func (c Config) MarshalYAML() (any, error) {
	smtpPassword := c.Notify.SMTP.Password
	if smtpPassword != "" {
		smtpPassword = redacted
	}

	return map[string]any{
		"log": map[string]any{
			"format": c.Log.Format,
			"level":  c.Log.Level,
		},
		"http": map[string]any{
			"addr":             c.HTTP.Addr,
			"shutdown_timeout": c.HTTP.ShutdownTimeout.String(),
		},
		"metrics": map[string]any{
			"addr": c.Metrics.Addr,
		},
		"store": map[string]any{
			"driver":       c.Store.Driver,
			"database_url": maskURL(c.Store.DatabaseURL),
			"sqlite_path":  c.Store.SQLitePath,
		},
		"hasher": map[string]any{
			"work_factor": c.Hasher.WorkFactor,
			"memory_kib":  c.Hasher.MemoryKiB,
			"threads":     c.Hasher.Threads,
		},
		"notify": map[string]any{
			"driver":        c.Notify.Driver,
			"timeout":       c.Notify.Timeout.String(),
			"retries":       c.Notify.Retries,
			"retry_backoff": c.Notify.RetryBackoff.String(),
			"verification":  c.Notify.Verification,
			"from":          c.Notify.From,
			"verify_url":    c.Notify.VerifyURL,
			"smtp": map[string]any{
				"host":      c.Notify.SMTP.Host,
				"port":      c.Notify.SMTP.Port,
				"username":  c.Notify.SMTP.Username,
				"password":  smtpPassword,
				"max_conns": c.Notify.SMTP.MaxConns,
			},
		},
	}, nil
}

// Dump returns c as YAML.
func Dump(c *Config) ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, oops.Code("CONFIG_DUMP_FAILED").Wrap(err)
	}
	return out, nil
}

func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return u.Redacted()
}
