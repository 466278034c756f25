package config

import "time"

// Config holds all server configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Realtime RealtimeConfig `mapstructure:"realtime" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gt=0"`
}

// RedisConfig is optional; it is only needed when job changes are fanned out
// over Redis Pub/Sub.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains the settings needed to issue and verify bearer tokens.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"     validate:"required,min=32"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=5"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
}

// StorageConfig selects where generated audio lives and how access URLs are
// issued. The public provider serves permanent URLs without an expiry.
type StorageConfig struct {
	Provider      string        `mapstructure:"provider"        validate:"required,oneof=gcs s3 public"`
	Bucket        string        `mapstructure:"bucket"          validate:"required_unless=Provider public"`
	Region        string        `mapstructure:"region"          validate:"required_if=Provider s3"`
	PublicBaseURL string        `mapstructure:"public_base_url" validate:"required_if=Provider public,omitempty,url"`
	URLTTL        time.Duration `mapstructure:"url_ttl"         validate:"gt=0"`
}

// WorkerConfig controls the background generation runner.
type WorkerConfig struct {
	Count              int           `mapstructure:"count"                validate:"gt=0"`
	QueueSize          int           `mapstructure:"queue_size"           validate:"gt=0"`
	StuckJobAge        time.Duration `mapstructure:"stuck_job_age"        validate:"gt=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"gt=0"`
	AudioWorkerURL     string        `mapstructure:"audio_worker_url"     validate:"omitempty,url"`
	AudioTimeout       time.Duration `mapstructure:"audio_timeout"        validate:"gt=0"`
}

// RealtimeConfig selects how job row changes reach subscribers.
type RealtimeConfig struct {
	Transport string `mapstructure:"transport" validate:"required,oneof=postgres redis"`
}

// ClientConfig holds settings for the studio client engine and CLI.
type ClientConfig struct {
	BaseURL  string `mapstructure:"base_url"  validate:"required,url"`
	Token    string `mapstructure:"token"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	Realtime ClientRealtimeConfig `mapstructure:"realtime" validate:"required"`
	Expiry   ExpiryConfig         `mapstructure:"expiry"   validate:"required"`
	Playback PlaybackConfig       `mapstructure:"playback" validate:"required"`

	NtfyTopic   string `mapstructure:"ntfy_topic" validate:"omitempty,url"`
	DownloadDir string `mapstructure:"download_dir"`
}

// ClientRealtimeConfig tells the client where to subscribe for job changes.
type ClientRealtimeConfig struct {
	Transport   string `mapstructure:"transport"    validate:"required,oneof=postgres redis"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Transport postgres,omitempty,url"`
	RedisURL    string `mapstructure:"redis_url"    validate:"required_if=Transport redis,omitempty,url"`
}

// ExpiryConfig controls the artifact expiry guard.
type ExpiryConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval" validate:"gt=0"`
	SoonWindow    time.Duration `mapstructure:"soon_window"    validate:"gte=0"`
}

// PlaybackConfig controls automatic recovery of failed audio loads.
type PlaybackConfig struct {
	MaxAutoRetries int           `mapstructure:"max_auto_retries" validate:"gte=0,lte=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gt=0"`
}
