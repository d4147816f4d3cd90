// internal/pkg/config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Application
	App AppConfig

	// Local store
	Store StoreConfig

	// Sync orchestration
	Sync SyncConfig

	// Connectivity detection
	Connectivity ConnectivityConfig

	// Redis
	Redis RedisConfig

	// Asynq
	Asynq AsynqConfig

	// AWS
	AWS AWSConfig

	// Security
	Security SecurityConfig

	// Server
	Server ServerConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// StoreConfig holds the embedded database configuration
type StoreConfig struct {
	Path               string `validate:"required,excludes=MISSING_"`
	BusyTimeout        time.Duration
	MaxOpenConns       int
	EnableQueryLogging bool
	MigrationRetries   int
}

// SyncConfig holds sync queue and monitor settings
type SyncConfig struct {
	TickInterval       time.Duration
	SimulatedDelay     time.Duration
	SaleIDMaxAttempts  int
	ReplayEnabled      bool
	ReplayQueue        string
	ReplayMaxRetry     int
	ReplayTaskDeadline time.Duration
}

// ConnectivityConfig selects and tunes the connectivity provider
type ConnectivityConfig struct {
	Mode          string // manual, probe
	InitialOnline bool
	ProbeURL      string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	TTL          time.Duration
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Concurrency     int
	Queues          map[string]int // queue name -> priority
	StrictPriority  bool
	ShutdownTimeout time.Duration
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SecretName      string // optional Secrets Manager entry with S3 credentials
	S3Bucket        string
	S3Endpoint      string // For MinIO in development
	UsePathStyle    bool   // For MinIO compatibility
	ArchiveDir      string // local sale archive when S3Bucket is empty
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	RequestIDHeader   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host              string
	Port              string `validate:"required,excludes=MISSING_"`
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	GracefulTimeout   time.Duration
	EnableHealthCheck bool
}

// Load loads configuration from environment variables
func Load(logger *slog.Logger) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Load .env file in development
	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetTypeByDefaultValue(true)

	setDefaults()

	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := &Config{
		App: AppConfig{
			Name:        viper.GetString("app.name"),
			Environment: env,
			Version:     getEnv("APP_VERSION", "dev"),
			LogLevel:    getEnv("LOG_LEVEL", viper.GetString("log.level")),
			LogFormat:   getEnv("LOG_FORMAT", viper.GetString("log.format")),
			Debug:       getBoolEnv("APP_DEBUG", env == "development"),
		},
		Store: StoreConfig{
			Path:               getEnv("STORE_PATH", "data/portal.db"),
			BusyTimeout:        getDurationEnv("STORE_BUSY_TIMEOUT", 5*time.Second),
			MaxOpenConns:       getIntEnv("STORE_MAX_OPEN_CONNS", 1),
			EnableQueryLogging: getBoolEnv("STORE_QUERY_LOGGING", env == "development"),
			MigrationRetries:   getIntEnv("STORE_MIGRATION_RETRIES", 3),
		},
		Sync: SyncConfig{
			TickInterval:       getDurationEnv("SYNC_TICK_INTERVAL", 30*time.Second),
			SimulatedDelay:     getDurationEnv("SYNC_SIMULATED_DELAY", 2*time.Second),
			SaleIDMaxAttempts:  getIntEnv("SYNC_SALE_ID_MAX_ATTEMPTS", 5),
			ReplayEnabled:      getBoolEnv("SYNC_REPLAY_ENABLED", false),
			ReplayQueue:        getEnv("SYNC_REPLAY_QUEUE", "default"),
			ReplayMaxRetry:     getIntEnv("SYNC_REPLAY_MAX_RETRY", 5),
			ReplayTaskDeadline: getDurationEnv("SYNC_REPLAY_TASK_DEADLINE", 2*time.Minute),
		},
		Connectivity: ConnectivityConfig{
			Mode:          getEnv("CONNECTIVITY_MODE", "manual"),
			InitialOnline: getBoolEnv("CONNECTIVITY_INITIAL_ONLINE", true),
			ProbeURL:      getEnv("CONNECTIVITY_PROBE_URL", ""),
			ProbeInterval: getDurationEnv("CONNECTIVITY_PROBE_INTERVAL", 10*time.Second),
			ProbeTimeout:  getDurationEnv("CONNECTIVITY_PROBE_TIMEOUT", 3*time.Second),
		},
		Redis: RedisConfig{
			Enabled:      getBoolEnv("REDIS_ENABLED", false),
			Host:         redisHost,
			Port:         redisPort,
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			MaxRetries:   getIntEnv("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 2),
			TTL:          getDurationEnv("REDIS_TTL", 10*time.Minute),
		},
		Asynq: AsynqConfig{
			RedisAddr:       fmt.Sprintf("%s:%s", redisHost, redisPort),
			RedisPassword:   getEnv("REDIS_PASSWORD", ""),
			RedisDB:         getIntEnv("ASYNQ_REDIS_DB", 0),
			Concurrency:     getIntEnv("ASYNQ_CONCURRENCY", 5),
			Queues:          parseQueues(getEnv("ASYNQ_QUEUES", "critical:6,default:3,low:1")),
			StrictPriority:  getBoolEnv("ASYNQ_STRICT_PRIORITY", false),
			ShutdownTimeout: getDurationEnv("ASYNQ_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "eu-west-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			SecretName:      getEnv("AWS_SECRET_NAME", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "agent-portal-sales"),
			S3Endpoint:      getEnv("AWS_S3_ENDPOINT", ""),
			UsePathStyle:    getBoolEnv("AWS_S3_PATH_STYLE", env == "development"),
			ArchiveDir:      getEnv("ARCHIVE_DIR", "data/archive"),
		},
		Security: SecurityConfig{
			RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			RateLimitDuration: getDurationEnv("RATE_LIMIT_DURATION", time.Minute),
			AllowedOrigins:    getSliceEnv("ALLOWED_ORIGINS", []string{"*"}),
			SecureHeaders:     getBoolEnv("SECURE_HEADERS", env == "production"),
			RequestIDHeader:   getEnv("REQUEST_ID_HEADER", "X-Request-ID"),
		},
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "127.0.0.1"),
			Port:              getEnv("SERVER_PORT", "8080"),
			ReadTimeout:       getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			MaxHeaderBytes:    getIntEnv("SERVER_MAX_HEADER_BYTES", 1<<20), // 1 MB
			MaxBodyBytes:      int64(getIntEnv("SERVER_MAX_BODY_BYTES", 4<<20)),
			GracefulTimeout:   getDurationEnv("SERVER_GRACEFUL_TIMEOUT", 30*time.Second),
			EnableHealthCheck: getBoolEnv("ENABLE_HEALTH_CHECK", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validateRequired(c); err != nil {
		return err
	}

	if c.Sync.TickInterval <= 0 {
		return fmt.Errorf("sync tick interval must be positive")
	}
	if c.Sync.SimulatedDelay < 0 {
		return fmt.Errorf("sync simulated delay must not be negative")
	}
	if c.Sync.SaleIDMaxAttempts <= 0 {
		return fmt.Errorf("sale id max attempts must be positive")
	}
	if c.Security.RateLimitRequests <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}

	switch c.Connectivity.Mode {
	case "manual":
	case "probe":
		if c.Connectivity.ProbeURL == "" {
			return fmt.Errorf("%w: CONNECTIVITY_PROBE_URL", ErrMissingRequiredConfig)
		}
	default:
		return fmt.Errorf("unknown connectivity mode %q", c.Connectivity.Mode)
	}

	if c.Sync.ReplayEnabled && c.Asynq.RedisAddr == "" {
		return fmt.Errorf("%w: asynq redis address for replay", ErrMissingRequiredConfig)
	}

	if c.IsProduction() {
		return (&ProductionValidator{}).Validate(c)
	}

	return nil
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetRedisAddress returns the formatted redis address
func (c *Config) GetRedisAddress() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

// Helper functions

func setDefaults() {
	viper.SetDefault("app.name", "agent-portal")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	pairs := strings.Split(queuesStr, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, ":")
		if len(parts) == 2 {
			name := strings.TrimSpace(parts[0])
			priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err == nil {
				queues[name] = priority
			}
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
