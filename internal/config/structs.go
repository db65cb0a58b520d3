package config

type Config struct {
	// App: service identity used in logs and the banner
	App AppConfig `mapstructure:"app"`

	// Server: HTTP listener and execution environment
	Server ServerConfig `mapstructure:"server"`

	// Media: where uploads live and how they are addressed publicly
	Media MediaConfig `mapstructure:"media"`

	// Database: SQLite file holding asset metadata and options
	Database DatabaseConfig `mapstructure:"database"`

	// ImageSizes: raw size table, normalized by the sizes package
	ImageSizes map[string]any `mapstructure:"image_sizes"`

	// FocalPointCropping: false, true, or {strategy, delay_seconds}
	FocalPointCropping any `mapstructure:"focal_point_cropping"`

	// ImageSizeSync: when size options are mirrored to storage
	ImageSizeSync ImageSizeSyncConfig `mapstructure:"image_size_sync"`

	// AutoOptimizeImages: queue optimization for every generated file
	AutoOptimizeImages bool `mapstructure:"auto_optimize_images"`

	// ConvertToAVIF: request AVIF output for JPEG/PNG derivatives
	ConvertToAVIF bool `mapstructure:"convert_to_avif"`

	Optimizer OptimizerConfig `mapstructure:"optimizer"`

	// Jobs: deferred one-shot job queue
	Jobs JobsConfig `mapstructure:"jobs"`

	// Cache: in-memory cache for served variant bytes
	Cache CacheConfig `mapstructure:"cache"`

	// Security: write-endpoint secret, CORS whitelist, rate limiting
	Security SecurityConfig `mapstructure:"security"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ServerConfig struct {
	// Port: TCP port the HTTP server binds to (default: 9980)
	Port int `mapstructure:"port"`

	// Env: development, staging, production
	Env string `mapstructure:"env"`
}

type MediaConfig struct {
	// Root: upload directory on disk (e.g., ./uploads)
	Root string `mapstructure:"root"`

	// BaseURL: public URL of Root; derived from the port when empty
	BaseURL string `mapstructure:"base_url"`

	// BigImageThreshold: uploads larger than this on either axis are downscaled
	BigImageThreshold int `mapstructure:"big_image_threshold"`

	// MaxUploadSize: limit for the /upload endpoint (e.g., "20MB")
	MaxUploadSize string `mapstructure:"max_upload_size"`

	// JPEGQuality: encoder quality for derived JPEG files (1-100)
	JPEGQuality int `mapstructure:"jpeg_quality"`
}

type DatabaseConfig struct {
	// Path: SQLite file (e.g., ./data/sprout.db)
	Path string `mapstructure:"path"`

	// MaxSize: size above which maintenance warns (e.g., "2GB")
	MaxSize string `mapstructure:"max_size"`

	// MaintenanceInterval: WAL checkpoint frequency (e.g., "10m")
	MaintenanceInterval string `mapstructure:"maintenance_interval"`
}

type ImageSizeSyncConfig struct {
	// Strategy: request, admin_request, cron, manual
	Strategy string `mapstructure:"strategy"`

	// CronInterval: hourly, twicedaily, daily, weekly, or a cron expression
	CronInterval string `mapstructure:"cron_interval"`
}

type OptimizerConfig struct {
	// Workers: files optimized in parallel per batch
	Workers int `mapstructure:"workers"`

	// Timeout: per-binary execution limit (e.g., "60s")
	Timeout string `mapstructure:"timeout"`
}

type JobsConfig struct {
	// Backend: memory or redis
	Backend string `mapstructure:"backend"`

	// RedisURL: redis://host:port/db, used when Backend is redis
	RedisURL string `mapstructure:"redis_url"`

	// PollInterval: how often due jobs are claimed (e.g., "5s")
	PollInterval string `mapstructure:"poll_interval"`

	// Delay: default one-shot delay (e.g., "30s")
	Delay string `mapstructure:"delay"`
}

type CacheConfig struct {
	// Enabled: toggles the in-memory variant cache
	Enabled bool `mapstructure:"enabled"`

	// MaxCapacity: RAM allocated for the cache in MB (e.g., 100)
	MaxCapacity int `mapstructure:"max_capacity"`

	// TTL: expiration of cached items (e.g., "30m")
	TTL string `mapstructure:"ttl"`
}

type SecurityConfig struct {
	// UploadSecret: token required in X-Secret-Key for write operations
	UploadSecret string `mapstructure:"upload_secret"`

	// CorsOrigins: allowed browser origins
	CorsOrigins []string `mapstructure:"cors_origins"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Requests: allowed requests per Window
	Requests int `mapstructure:"requests"`

	// Window: e.g., "1s", "1m"
	Window string `mapstructure:"window"`

	// Burst: spike capacity above the steady rate
	Burst int `mapstructure:"burst"`
}
