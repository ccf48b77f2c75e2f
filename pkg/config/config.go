// Package config loads the proxy inspector configuration from a YAML file
// and PI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/proxy-inspector/pkg/history"
	"github.com/Sternrassler/proxy-inspector/pkg/logging"
	"github.com/Sternrassler/proxy-inspector/pkg/transport"
)

// History source kinds.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
	SourceRedis  = "redis"
)

// Config is the complete inspector configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	History   HistoryConfig   `yaml:"history"`
	Redis     RedisConfig     `yaml:"redis"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
	File   string `yaml:"file"`
}

// TransportConfig configures the replay client.
type TransportConfig struct {
	// InsecureSkipVerify accepts any TLS certificate. It defaults to true:
	// replay targets are usually behind an intercepting proxy.
	InsecureSkipVerify  bool          `yaml:"insecure_skip_verify"`
	Timeout             time.Duration `yaml:"timeout"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	UserAgent           string        `yaml:"user_agent"`
}

// HistoryConfig selects and addresses the history source.
type HistoryConfig struct {
	Source       string               `yaml:"source"`
	ProjectPath  string               `yaml:"project_path"`
	Remote       history.RemoteConfig `yaml:"remote"`
	RedisKey     string               `yaml:"redis_key"`
	PollInterval time.Duration        `yaml:"poll_interval"`
}

// RedisConfig addresses the Redis server used for shared history and the
// run archive.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// MetricsConfig enables the /metrics and /health endpoints when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	tr := transport.DefaultConfig()
	return Config{
		Log: LogConfig{Level: string(logging.LevelInfo)},
		Transport: TransportConfig{
			InsecureSkipVerify:  tr.InsecureSkipVerify,
			Timeout:             tr.Timeout,
			MaxIdleConnsPerHost: tr.MaxIdleConnsPerHost,
			UserAgent:           tr.UserAgent,
		},
		History: HistoryConfig{
			Source:       SourceLocal,
			Remote:       history.RemoteConfig{Port: history.DefaultRemotePort},
			RedisKey:     history.DefaultRedisKey,
			PollInterval: time.Second,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Log.Level = getEnv("PI_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("PI_LOG_FILE", c.Log.File)
	c.Transport.UserAgent = getEnv("PI_USER_AGENT", c.Transport.UserAgent)
	c.History.Source = getEnv("PI_HISTORY_SOURCE", c.History.Source)
	c.History.ProjectPath = getEnv("PI_PROJECT_PATH", c.History.ProjectPath)
	c.History.Remote.Addr = getEnv("PI_API_ADDR", c.History.Remote.Addr)
	c.History.Remote.Secret = getEnv("PI_API_SECRET", c.History.Remote.Secret)
	c.Redis.Addr = getEnv("PI_REDIS_ADDR", c.Redis.Addr)
	c.Metrics.Addr = getEnv("PI_METRICS_ADDR", c.Metrics.Addr)

	var errs []error
	if v := os.Getenv("PI_LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("PI_LOG_PRETTY", err))
		c.Log.Pretty = b
	}
	if v := os.Getenv("PI_INSECURE_SKIP_VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, envErr("PI_INSECURE_SKIP_VERIFY", err))
		c.Transport.InsecureSkipVerify = b
	}
	if v := os.Getenv("PI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("PI_TIMEOUT", err))
		c.Transport.Timeout = d
	}
	if v := os.Getenv("PI_API_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		errs = append(errs, envErr("PI_API_PORT", err))
		c.History.Remote.Port = p
	}
	if v := os.Getenv("PI_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		errs = append(errs, envErr("PI_REDIS_DB", err))
		c.Redis.DB = db
	}
	return errors.Join(errs...)
}

func envErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", key, err)
}

// Validate checks the configuration for the selected history source.
func (c Config) Validate() error {
	if _, err := c.TransportConfig(); err != nil {
		return err
	}
	if c.History.PollInterval <= 0 {
		return fmt.Errorf("history.poll_interval must be > 0 (got %s)", c.History.PollInterval)
	}

	switch c.History.Source {
	case SourceLocal:
		if c.History.ProjectPath == "" {
			return fmt.Errorf("history.project_path is required for the local source")
		}
	case SourceRemote:
		if err := c.History.Remote.Validate(); err != nil {
			return fmt.Errorf("history.remote: %w", err)
		}
	case SourceRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis source")
		}
	default:
		return fmt.Errorf("unknown history.source %q (want local, remote or redis)", c.History.Source)
	}
	return nil
}

// TransportConfig converts the transport section for transport.New.
func (c Config) TransportConfig() (transport.Config, error) {
	if c.Transport.Timeout < 0 {
		return transport.Config{}, fmt.Errorf("transport.timeout must be >= 0 (got %s)", c.Transport.Timeout)
	}
	if c.Transport.MaxIdleConnsPerHost < 0 {
		return transport.Config{}, fmt.Errorf("transport.max_idle_conns_per_host must be >= 0 (got %d)", c.Transport.MaxIdleConnsPerHost)
	}
	return transport.Config{
		InsecureSkipVerify:  c.Transport.InsecureSkipVerify,
		Timeout:             c.Transport.Timeout,
		MaxIdleConnsPerHost: c.Transport.MaxIdleConnsPerHost,
		UserAgent:           c.Transport.UserAgent,
	}, nil
}

// HistoryTransportConfig is the transport for the remote history API. The
// proxy serves it with its own certificate, so validation stays off whatever
// the transport section says for replay targets.
func (c Config) HistoryTransportConfig() (transport.Config, error) {
	tc, err := c.TransportConfig()
	if err != nil {
		return tc, err
	}
	tc.InsecureSkipVerify = true
	return tc, nil
}

// LoggingConfig converts the log section for logging.Setup.
func (c Config) LoggingConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = logging.LogLevel(c.Log.Level)
	lc.Pretty = c.Log.Pretty
	lc.File = c.Log.File
	return lc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
