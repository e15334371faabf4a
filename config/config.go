package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`

	// Application paths
	LogDir   string `json:"log_dir"`
	LogLevel string `json:"log_level"`
	TempDir  string `json:"temp_dir"`

	// Application version
	Version string `json:"version"`

	// Request and shutdown timeouts
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`

	Middleware MiddlewareConfig `json:"middleware"`
	CORS       CORSConfig       `json:"cors"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Cache      CacheConfig      `json:"cache"`
	Captions   CaptionsConfig   `json:"captions"`
	Audio      AudioConfig      `json:"audio"`
	STT        STTConfig        `json:"stt"`
	Delivery   DeliveryConfig   `json:"delivery"`
	Archive    ArchiveConfig    `json:"archive"`
}

type MiddlewareConfig struct {
	EnableRecover   bool `json:"enable_recover"`
	EnableRequestID bool `json:"enable_request_id"`
	EnableLogger    bool `json:"enable_logger"`
	EnableCORS      bool `json:"enable_cors"`
	EnableRateLimit bool `json:"enable_rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	BurstSize         int `json:"burst_size"`
}

type CacheConfig struct {
	DBPath        string        `json:"db_path"`
	MemoryTTL     time.Duration `json:"memory_ttl"`
	DurableTTL    time.Duration `json:"durable_ttl"`
	PurgeInterval time.Duration `json:"purge_interval"`
}

type CaptionsConfig struct {
	TierTimeout time.Duration `json:"tier_timeout"`
	Languages   []string      `json:"languages"`
}

type AudioConfig struct {
	YTDLPPath       string        `json:"ytdlp_path"`
	DownloadTimeout time.Duration `json:"download_timeout"`
	MinFileBytes    int64         `json:"min_file_bytes"`
}

type STTConfig struct {
	// Fast commercial backend. An empty APIKey disables it.
	APIKey  string        `json:"-"`
	APIURL  string        `json:"api_url"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`

	// Local whisper sidecar.
	WhisperURL     string        `json:"whisper_url"`
	WhisperTimeout time.Duration `json:"whisper_timeout"`
}

type DeliveryConfig struct {
	BatchSize         int           `json:"batch_size"`
	KeepAliveInterval time.Duration `json:"keepalive_interval"`
}

type ArchiveConfig struct {
	Key      string `json:"-"`
	Secret   string `json:"-"`
	Region   string `json:"region"`
	Bucket   string `json:"bucket"`
	Endpoint string `json:"endpoint"`
}

// Enabled reports whether archive credentials are configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Key != "" && a.Secret != "" && a.Bucket != ""
}

func defaultDevMiddleware() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableCORS:      true,
		EnableRateLimit: false, // Disabled for testing
	}
}

func defaultProdMiddleware() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableCORS:      true,
		EnableRateLimit: true,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),

		LogDir:   getEnv("LOG_DIR", "./logs"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		TempDir:  getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "yt-scribe")),

		Version: getEnv("VERSION", "1.0.0"),

		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Minute),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		CORS: CORSConfig{
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "OPTIONS"},
			),
			AllowedHeaders:   getEnvAsStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
		},

		Cache: CacheConfig{
			DBPath:        getEnv("DB_PATH", "./data/transcripts.db"),
			MemoryTTL:     getEnvAsDuration("MEMORY_CACHE_TTL", 1*time.Hour),
			DurableTTL:    getEnvAsDuration("DURABLE_CACHE_TTL", 720*time.Hour),
			PurgeInterval: getEnvAsDuration("CACHE_PURGE_INTERVAL", 6*time.Hour),
		},

		Captions: CaptionsConfig{
			TierTimeout: getEnvAsDuration("CAPTION_TIER_TIMEOUT", 20*time.Second),
			Languages:   getEnvAsStringSlice("CAPTION_LANGUAGES", []string{"en"}),
		},

		Audio: AudioConfig{
			YTDLPPath:       getEnv("YTDLP_PATH", "yt-dlp"),
			DownloadTimeout: getEnvAsDuration("AUDIO_TIMEOUT", 120*time.Second),
			MinFileBytes:    getEnvAsInt64("AUDIO_MIN_FILE_BYTES", 1000),
		},

		STT: STTConfig{
			APIKey:         getEnv("STT_API_KEY", ""),
			APIURL:         getEnv("STT_API_URL", "https://api.openai.com/v1/audio/transcriptions"),
			Model:          getEnv("STT_MODEL", "whisper-1"),
			Timeout:        getEnvAsDuration("STT_TIMEOUT", 5*time.Minute),
			WhisperURL:     getEnv("WHISPER_SERVICE_URL", "http://localhost:8765"),
			WhisperTimeout: getEnvAsDuration("WHISPER_TIMEOUT", 10*time.Minute),
		},

		Delivery: DeliveryConfig{
			BatchSize:         getEnvAsInt("SEGMENT_BATCH_SIZE", 10),
			KeepAliveInterval: getEnvAsDuration("SSE_KEEPALIVE_INTERVAL", 30*time.Second),
		},

		Archive: ArchiveConfig{
			Key:      getEnv("SPACES_KEY", ""),
			Secret:   getEnv("SPACES_SECRET", ""),
			Region:   getEnv("SPACES_REGION", "nyc3"),
			Bucket:   getEnv("SPACES_BUCKET", ""),
			Endpoint: getEnv("SPACES_ENDPOINT", ""),
		},

		Middleware: defaultDevMiddleware(),
	}

	if os.Getenv("ENV") == "production" {
		cfg.Middleware = defaultProdMiddleware()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}
	if err := validateTimeouts(c); err != nil {
		return err
	}
	if err := validatePipeline(c); err != nil {
		return err
	}
	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.TempDir, "temp directory"},
		{filepath.Dir(c.Cache.DBPath), "database directory"},
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", p.name)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.Captions.TierTimeout <= 0 {
		return errors.New("caption tier timeout must be positive")
	}
	if c.Audio.DownloadTimeout <= 0 {
		return errors.New("audio download timeout must be positive")
	}
	return nil
}

func validatePipeline(c *Config) error {
	if c.Cache.MemoryTTL <= 0 || c.Cache.DurableTTL <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	if c.Delivery.BatchSize <= 0 {
		return errors.New("segment batch size must be positive")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		logrus.WithFields(logrus.Fields{
			"key":   key,
			"value": value,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		logrus.WithFields(logrus.Fields{
			"key":   key,
			"value": value,
		}).Warn("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.WithFields(logrus.Fields{
			"key":   key,
			"value": value,
		}).Warn("Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			return strings.Split(value, ",")
		}
	}
	return defaultValue
}
