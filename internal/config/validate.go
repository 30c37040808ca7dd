package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.Home.URL == "" {
		return errors.New("home.url is required")
	}
	if err := validateURL("home.url", c.Home.URL); err != nil {
		return err
	}

	if len(c.Pods) == 0 {
		return errors.New("at least one pod is required")
	}
	seen := make(map[string]bool, len(c.Pods))
	for i, p := range c.Pods {
		if p.ID == "" {
			return fmt.Errorf("pods[%d].id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("pods[%d].id %q is duplicated", i, p.ID)
		}
		seen[p.ID] = true
		if p.BaseURL == "" {
			return fmt.Errorf("pods[%d].base_url is required", i)
		}
		if err := validateURL(fmt.Sprintf("pods[%d].base_url", i), p.BaseURL); err != nil {
			return err
		}
	}

	if c.API.PageSize < 1 || c.API.PageSize > 100 {
		return errors.New("api.page_size must be between 1 and 100")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be non-negative")
	}

	if c.Gateway.ReconnectFactor < 1 {
		return errors.New("gateway.reconnect_factor must be >= 1")
	}
	if c.Gateway.ReconnectMax < c.Gateway.ReconnectInitial {
		return errors.New("gateway.reconnect_max must be >= gateway.reconnect_initial")
	}

	if c.Session.RetryMaxAttempts < 1 {
		return errors.New("session.retry_max_attempts must be positive")
	}
	if c.Session.RetryMax < c.Session.RetryInitial {
		return errors.New("session.retry_max must be >= session.retry_initial")
	}

	if c.Sweep.Interval < 0 {
		return errors.New("sweep.interval must be non-negative")
	}
	if c.Sweep.Concurrency < 1 {
		return errors.New("sweep.concurrency must be positive")
	}

	if c.Archive.Enabled {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be positive")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not one of text, json", c.Log.Format)
	}

	return nil
}

func (d *DBConfig) validate(prefix string) error {
	if d.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if d.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if d.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if d.MinConns > d.MaxConns {
		return fmt.Errorf("%s.min_conns must be <= max_conns", prefix)
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Name, d.SSLMode)
}
