// Package config is the settings collaborator for the caching subsystem.
// Values come from environment variables (prefix EMBER_) layered over an
// optional YAML file, with validation at load time: a bad backend
// discriminator, TTL or file root is fatal at startup, never deferred to
// first use.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
	"go.uber.org/zap"

	"github.com/embercache/ember/cache"
)

// Config holds the loaded application settings.
type Config struct {
	LogLevel string
	Cache    cache.Settings
}

func defaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "300s")
	v.SetDefault("cache.op_timeout", "5s")
	v.SetDefault("cache.expiry_check", "1m")
	v.SetDefault("cache.scan_count", cache.DefaultScanCount)
	v.SetDefault("cache.file_path", "cache")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.prefix", "")
}

// parseDuration accepts human-friendly duration strings ("300s", "5m",
// "1h30m", "1d").
func parseDuration(key, raw string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "config: invalid duration for %s: %q", key, raw)
	}
	return d, nil
}

// Load reads configuration from the environment and, when file is
// non-empty or an ember.yaml exists in the working directory, from a YAML
// file. The environment wins over the file.
func Load(file string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("EMBER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "config: reading %s", file)
		}
	} else {
		v.SetConfigName("ember")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "config: reading ember.yaml")
			}
		}
	}

	backend, err := cache.ParseBackendType(v.GetString("cache.backend"))
	if err != nil {
		return nil, err
	}
	ttl, err := parseDuration("cache.ttl", v.GetString("cache.ttl"))
	if err != nil {
		return nil, err
	}
	opTimeout, err := parseDuration("cache.op_timeout", v.GetString("cache.op_timeout"))
	if err != nil {
		return nil, err
	}
	expiryCheck, err := parseDuration("cache.expiry_check", v.GetString("cache.expiry_check"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel: v.GetString("log.level"),
		Cache: cache.Settings{
			Backend:     backend,
			DefaultTTL:  ttl,
			OpTimeout:   opTimeout,
			ExpiryCheck: expiryCheck,
			ScanCount:   v.GetInt64("cache.scan_count"),
			FileRoot:    v.GetString("cache.file_path"),
			RedisURL:    v.GetString("redis.url"),
			RedisPrefix: v.GetString("redis.prefix"),
		},
	}
	if cfg.Cache.Backend == cache.BackendFile && cfg.Cache.FileRoot == "" {
		return nil, errors.New("config: cache.file_path is required for the file backend")
	}
	if cfg.Cache.Backend == cache.BackendRedis && cfg.Cache.RedisURL == "" {
		return nil, errors.New("config: redis.url is required for the redis backend")
	}
	return cfg, nil
}

// Logger builds a zap logger at the configured level.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "config: invalid log level %q", c.LogLevel)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	log, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "config: building logger")
	}
	return log, nil
}
