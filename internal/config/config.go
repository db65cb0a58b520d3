package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sprout/internal/focal"
	"sprout/internal/schedule"
	"sprout/internal/sizes"
	"sprout/pkg/logger"
	"sprout/pkg/utils"
)

// ConfigurationError is fatal: the process must not start with it.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("required image sizes missing from image_sizes: %s", strings.Join(e.Missing, ", "))
}

// Load reads configuration from path (or sprout.yaml in . and ./config when
// path is empty), the environment and defaults. The result is not
// validated; call Validate.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sprout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SPROUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("server.port", "SPROUT_PORT", "APP_PORT")
	v.BindEnv("security.upload_secret", "SPROUT_UPLOAD_SECRET")
	v.BindEnv("jobs.redis_url", "SPROUT_REDIS_URL", "REDIS_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.LogInfo("Config file not found. Using Environment Variables and Defaults.")
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// An explicit table is taken verbatim so the required-size check sees
	// exactly what the operator wrote.
	if !v.IsSet("image_sizes") {
		v.Set("image_sizes", sizes.Defaults())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Media.BaseURL = cfg.BaseURL()
	// schedule.Resolve reads schedule.EnvStrategy itself; this key holds the
	// file value only.
	cfg.ImageSizeSync.Strategy = fileString(v, "image_size_sync.strategy")
	return &cfg, nil
}

// fileString reads key from the config file only, ignoring the environment.
func fileString(v *viper.Viper, key string) string {
	path := v.ConfigFileUsed()
	if path == "" {
		return ""
	}
	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return ""
	}
	return fv.GetString(key)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "Sprout")
	v.SetDefault("app.version", "0.1.0")

	// Server
	v.SetDefault("server.port", 9980)
	v.SetDefault("server.env", "development")

	// Media
	v.SetDefault("media.root", "./uploads")
	v.SetDefault("media.base_url", "")
	v.SetDefault("media.big_image_threshold", 2560)
	v.SetDefault("media.max_upload_size", "20MB")
	v.SetDefault("media.jpeg_quality", 82)

	// Database
	v.SetDefault("database.path", "./data/sprout.db")
	v.SetDefault("database.max_size", "2GB")
	v.SetDefault("database.maintenance_interval", "10m")

	// Pipeline
	v.SetDefault("focal_point_cropping", false)
	v.SetDefault("image_size_sync.strategy", "")
	v.SetDefault("image_size_sync.cron_interval", "daily")
	v.SetDefault("auto_optimize_images", false)
	v.SetDefault("convert_to_avif", false)
	v.SetDefault("optimizer.workers", 2)
	v.SetDefault("optimizer.timeout", "60s")

	// Jobs
	v.SetDefault("jobs.backend", "memory")
	v.SetDefault("jobs.redis_url", "")
	v.SetDefault("jobs.poll_interval", "5s")
	v.SetDefault("jobs.delay", "30s")

	// Caching
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_capacity", 100) // 100 MB
	v.SetDefault("cache.ttl", "30m")

	// Security & Limits
	v.SetDefault("security.upload_secret", "")
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests", 20)
	v.SetDefault("security.rate_limit.window", "1s")
	v.SetDefault("security.rate_limit.burst", 50)
}

// BaseURL is the public URL of the media root.
func (c *Config) BaseURL() string {
	if c.Media.BaseURL != "" {
		return strings.TrimRight(c.Media.BaseURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d/uploads", c.Server.Port)
}

// RawImageSizes returns the configured table.
func (c *Config) RawImageSizes() map[string]any {
	return c.ImageSizes
}

// FocalMode normalizes focal_point_cropping.
func (c *Config) FocalMode() focal.Mode {
	return focal.ParseMode(c.FocalPointCropping)
}

func (c *Config) OptimizerTimeout() time.Duration {
	return utils.DurationOr(c.Optimizer.Timeout, 60*time.Second)
}

func (c *Config) JobDelay() time.Duration {
	return utils.DurationOr(c.Jobs.Delay, schedule.DefaultDelay)
}

func (c *Config) JobPollInterval() time.Duration {
	return utils.DurationOr(c.Jobs.PollInterval, 5*time.Second)
}

func (c *Config) MaintenanceInterval() time.Duration {
	return utils.DurationOr(c.Database.MaintenanceInterval, 10*time.Minute)
}

func (c *Config) Validate() error {
	// Required sizes
	if missing := sizes.MissingRequired(c.ImageSizes); len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}

	// Security: Upload Secret Check
	if c.Security.UploadSecret == "" || c.Security.UploadSecret == "secret" {
		if c.Server.Env == "production" {
			return fmt.Errorf("security.upload_secret cannot be default or empty in production environment")
		}
		logger.LogWarn("Security Alert: Using unsafe default Upload Secret. Do not use this in production!")
	}

	// Durations
	for key, val := range map[string]string{
		"cache.ttl":                     c.Cache.TTL,
		"security.rate_limit.window":    c.Security.RateLimit.Window,
		"optimizer.timeout":             c.Optimizer.Timeout,
		"jobs.poll_interval":            c.Jobs.PollInterval,
		"jobs.delay":                    c.Jobs.Delay,
		"database.maintenance_interval": c.Database.MaintenanceInterval,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid %s format '%s': %v", key, val, err)
		}
	}

	// Sync
	if s := c.ImageSizeSync.Strategy; s != "" {
		if _, err := schedule.ParseStrategy(s); err != nil {
			logger.LogWarn("Ignoring image_size_sync.strategy: %v", err)
		}
	}
	if _, err := schedule.IntervalSpec(c.ImageSizeSync.CronInterval); err != nil {
		return err
	}

	// Jobs
	switch c.Jobs.Backend {
	case "memory":
	case "redis":
		if c.Jobs.RedisURL == "" {
			return fmt.Errorf("jobs.backend is redis but jobs.redis_url is empty")
		}
	default:
		return fmt.Errorf("unknown jobs.backend '%s' (memory or redis)", c.Jobs.Backend)
	}
	return nil
}
