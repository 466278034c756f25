package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SCRY_DATABASE_URL.
const EnvPrefix = "SCRY"

var validate = validator.New()

// Load reads server configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take precedence
// over values from the config file.
func Load() (*Config, error) {
	v := newViper()
	setServerDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadClient reads the client configuration. Keys live under the "client"
// section, e.g. SCRY_CLIENT_BASE_URL.
func LoadClient() (*ClientConfig, error) {
	v := newViper()
	setClientDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal through a wrapper rather than UnmarshalKey so that
	// environment overrides of nested keys are honored.
	var wrapper struct {
		Client ClientConfig `mapstructure:"client"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client config: %w", err)
	}
	cfg := wrapper.Client

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("client config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadAuth reads only the auth section. Token tooling uses it without the
// rest of the server configuration.
func LoadAuth() (*AuthConfig, error) {
	v := newViper()
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime", 24*time.Hour)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var wrapper struct {
		Auth AuthConfig `mapstructure:"auth"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth config: %w", err)
	}
	if err := validate.Struct(wrapper.Auth); err != nil {
		return nil, fmt.Errorf("auth config validation failed: %w", err)
	}
	return &wrapper.Auth, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// setServerDefaults registers every key so AutomaticEnv can resolve it
// during Unmarshal, including required keys without a useful default.
func setServerDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime", 24*time.Hour)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("storage.provider", "gcs")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.url_ttl", time.Hour)

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.stuck_job_age", 30*time.Minute)
	v.SetDefault("worker.stuck_check_interval", 5*time.Minute)
	v.SetDefault("worker.audio_worker_url", "")
	v.SetDefault("worker.audio_timeout", 10*time.Minute)

	v.SetDefault("realtime.transport", "postgres")
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault("client.base_url", "")
	v.SetDefault("client.token", "")
	v.SetDefault("client.log_level", "info")

	v.SetDefault("client.realtime.transport", "postgres")
	v.SetDefault("client.realtime.database_url", "")
	v.SetDefault("client.realtime.redis_url", "")

	v.SetDefault("client.expiry.check_interval", 5*time.Minute)
	v.SetDefault("client.expiry.soon_window", 10*time.Minute)

	v.SetDefault("client.playback.max_auto_retries", 2)
	v.SetDefault("client.playback.retry_base_delay", time.Second)

	v.SetDefault("client.ntfy_topic", "")
	v.SetDefault("client.download_dir", ".")
}
