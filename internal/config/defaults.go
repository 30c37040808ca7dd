package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultClientName           = "podsync"
	DefaultAPITimeout           = 15 * time.Second
	DefaultAPIMaxRetries        = 3
	DefaultAPIRetryBackoff      = 500 * time.Millisecond
	DefaultPageSize             = 50
	DefaultReconnectInitial     = 1 * time.Second
	DefaultReconnectFactor      = 2.0
	DefaultReconnectMax         = 30 * time.Second
	DefaultHandshakeTimeout     = 15 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultSessionRetryAttempts = 5
	DefaultSessionRetryInitial  = 1 * time.Second
	DefaultSessionRetryMax      = 30 * time.Second
	DefaultRefreshLead          = 60 * time.Second
	DefaultTypingTTL            = 8 * time.Second
	DefaultTypingPruneInterval  = 1 * time.Second
	DefaultSweepConcurrency     = 4
	DefaultArchiveBatchSize     = 500
	DefaultArchiveFlushInterval = 2 * time.Second
	DefaultArchiveBufferSize    = 1000
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

func (c *Config) applyDefaults() {
	if c.Client.Name == "" {
		c.Client.Name = DefaultClientName
	}

	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultAPIMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultAPIRetryBackoff
	}
	if c.API.PageSize == 0 {
		c.API.PageSize = DefaultPageSize
	}

	// Gateway defaults
	if c.Gateway.ReconnectInitial == 0 {
		c.Gateway.ReconnectInitial = DefaultReconnectInitial
	}
	if c.Gateway.ReconnectFactor == 0 {
		c.Gateway.ReconnectFactor = DefaultReconnectFactor
	}
	if c.Gateway.ReconnectMax == 0 {
		c.Gateway.ReconnectMax = DefaultReconnectMax
	}
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}

	// Session defaults
	if c.Session.RetryMaxAttempts == 0 {
		c.Session.RetryMaxAttempts = DefaultSessionRetryAttempts
	}
	if c.Session.RetryInitial == 0 {
		c.Session.RetryInitial = DefaultSessionRetryInitial
	}
	if c.Session.RetryMax == 0 {
		c.Session.RetryMax = DefaultSessionRetryMax
	}
	if c.Session.RefreshLead == 0 {
		c.Session.RefreshLead = DefaultRefreshLead
	}

	// Typing defaults
	if c.Typing.TTL == 0 {
		c.Typing.TTL = DefaultTypingTTL
	}
	if c.Typing.PruneInterval == 0 {
		c.Typing.PruneInterval = DefaultTypingPruneInterval
	}

	if c.Sweep.Concurrency == 0 {
		c.Sweep.Concurrency = DefaultSweepConcurrency
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultArchiveBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultArchiveFlushInterval
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultArchiveBufferSize
	}
	applyDBDefaults(&c.Archive.Database)

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
