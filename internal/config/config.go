package config

import "time"

// Config is the root configuration for a podsync client.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Home    HomeConfig    `yaml:"home"`
	Pods    []PodConfig   `yaml:"pods"`
	API     APIConfig     `yaml:"api"`
	Gateway GatewayConfig `yaml:"gateway"`
	Session SessionConfig `yaml:"session"`
	Typing  TypingConfig  `yaml:"typing"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

// ClientConfig identifies this client to pods.
type ClientConfig struct {
	Name string `yaml:"name" env:"PODSYNC_CLIENT_NAME"`
}

// HomeConfig points at the home service that issues cross-service assertions.
type HomeConfig struct {
	URL   string `yaml:"url"   env:"PODSYNC_HOME_URL"`
	Token string `yaml:"token" env:"PODSYNC_HOME_TOKEN"` // Bearer token for the home service
}

// PodConfig is one backend pod to connect to.
type PodConfig struct {
	ID      string `yaml:"id"`
	BaseURL string `yaml:"base_url"`
}

// APIConfig holds pod REST client settings.
type APIConfig struct {
	Timeout      time.Duration `yaml:"timeout"       env:"PODSYNC_API_TIMEOUT"`
	MaxRetries   int           `yaml:"max_retries"   env:"PODSYNC_API_MAX_RETRIES"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"PODSYNC_API_RETRY_BACKOFF"`
	PageSize     int           `yaml:"page_size"     env:"PODSYNC_API_PAGE_SIZE"`
}

// GatewayConfig holds per-pod WebSocket connection settings.
type GatewayConfig struct {
	ReconnectInitial time.Duration `yaml:"reconnect_initial" env:"PODSYNC_GATEWAY_RECONNECT_INITIAL"`
	ReconnectFactor  float64       `yaml:"reconnect_factor"  env:"PODSYNC_GATEWAY_RECONNECT_FACTOR"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"     env:"PODSYNC_GATEWAY_RECONNECT_MAX"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"PODSYNC_GATEWAY_HANDSHAKE_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout"     env:"PODSYNC_GATEWAY_WRITE_TIMEOUT"`
}

// SessionConfig holds orchestrator retry and token refresh settings.
type SessionConfig struct {
	RetryMaxAttempts int           `yaml:"retry_max_attempts" env:"PODSYNC_SESSION_RETRY_MAX_ATTEMPTS"`
	RetryInitial     time.Duration `yaml:"retry_initial"      env:"PODSYNC_SESSION_RETRY_INITIAL"`
	RetryMax         time.Duration `yaml:"retry_max"          env:"PODSYNC_SESSION_RETRY_MAX"`
	RefreshLead      time.Duration `yaml:"refresh_lead"       env:"PODSYNC_SESSION_REFRESH_LEAD"`
}

// TypingConfig holds typing indicator settings.
type TypingConfig struct {
	TTL           time.Duration `yaml:"ttl"            env:"PODSYNC_TYPING_TTL"`
	PruneInterval time.Duration `yaml:"prune_interval" env:"PODSYNC_TYPING_PRUNE_INTERVAL"`
}

// SweepConfig holds the message reconciliation sweep settings. Interval 0 disables it.
type SweepConfig struct {
	Interval    time.Duration `yaml:"interval"    env:"PODSYNC_SWEEP_INTERVAL"`
	Concurrency int           `yaml:"concurrency" env:"PODSYNC_SWEEP_CONCURRENCY"`
}

// ArchiveConfig holds the optional PostgreSQL message archive.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"        env:"PODSYNC_ARCHIVE_ENABLED"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"     env:"PODSYNC_ARCHIVE_BATCH_SIZE"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"PODSYNC_ARCHIVE_FLUSH_INTERVAL"`
	BufferSize    int           `yaml:"buffer_size"    env:"PODSYNC_ARCHIVE_BUFFER_SIZE"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"      env:"PODSYNC_DB_HOST"`
	Port     int    `yaml:"port"      env:"PODSYNC_DB_PORT"`
	Name     string `yaml:"name"      env:"PODSYNC_DB_NAME"`
	User     string `yaml:"user"      env:"PODSYNC_DB_USER"`
	Password string `yaml:"password"  env:"PODSYNC_DB_PASSWORD"`
	SSLMode  string `yaml:"ssl_mode"  env:"PODSYNC_DB_SSL_MODE"`
	MaxConns int    `yaml:"max_conns" env:"PODSYNC_DB_MAX_CONNS"`
	MinConns int    `yaml:"min_conns" env:"PODSYNC_DB_MIN_CONNS"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"  env:"PODSYNC_LOG_LEVEL"`  // debug, info, warn, error
	Format string `yaml:"format" env:"PODSYNC_LOG_FORMAT"` // text or json
}
