package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Reaper   ReaperConfig   `mapstructure:"reaper"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the SQL backend. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN returns the connection string for the configured driver.
// Parameters: none.
// Returns:
//   - string: postgres URL/keyword DSN or sqlite file path with pragmas.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return c.URL
		}
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:     c.DBName,
			RawQuery: "sslmode=" + sslmode,
		}
		return u.String()
	}
	return c.Path + "?_busy_timeout=5000"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig selects the job queue backend. Driver is "redis" or "memory".
type QueueConfig struct {
	Driver string `mapstructure:"driver"`
	Name   string `mapstructure:"name"`
}

type WorkerConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	Embedded        bool          `mapstructure:"embedded"`
	PollWait        time.Duration `mapstructure:"poll_wait"`
	PromoteInterval time.Duration `mapstructure:"promote_interval"`
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
	LeaseDuration   time.Duration `mapstructure:"lease_duration"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialDelay    time.Duration `mapstructure:"initial_delay"`
	BackoffFactor   float64       `mapstructure:"backoff_factor"`
}

type ExchangeConfig struct {
	MaxUploadBytes    int64 `mapstructure:"max_upload_bytes"`
	BatchSize         int   `mapstructure:"batch_size"`
	UpsertConcurrency int   `mapstructure:"upsert_concurrency"`
}

type ReaperConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	PendingAfter time.Duration `mapstructure:"pending_after"`
	BatchLimit   int           `mapstructure:"batch_limit"`
}

type NotifyConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
	File        string `mapstructure:"file"`
	FileOnly    bool   `mapstructure:"file_only"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("notify.webhook_url", "NOTIFY_WEBHOOK_URL")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.ResolveEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/catalogx.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.dbname", "catalogx")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./data/exchange")
	v.SetDefault("storage.bucket", "exchange")
	v.SetDefault("storage.prefix", "exchange")

	v.SetDefault("queue.driver", "redis")
	v.SetDefault("queue.name", "catalogx:exchange")

	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.embedded", false)
	v.SetDefault("worker.poll_wait", 2*time.Second)
	v.SetDefault("worker.promote_interval", time.Second)
	v.SetDefault("worker.job_timeout", 10*time.Minute)
	v.SetDefault("worker.lease_duration", 15*time.Minute)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.initial_delay", 5*time.Second)
	v.SetDefault("worker.backoff_factor", 2.0)

	v.SetDefault("exchange.max_upload_bytes", 64<<20)
	v.SetDefault("exchange.batch_size", 500)
	v.SetDefault("exchange.upsert_concurrency", 8)

	v.SetDefault("reaper.interval", 30*time.Second)
	v.SetDefault("reaper.pending_after", 2*time.Minute)
	v.SetDefault("reaper.batch_limit", 100)

	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.retry_count", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.service_name", "catalogx")
	v.SetDefault("log.environment", "local")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch c.Queue.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("queue: unknown driver %q", c.Queue.Driver)
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker: concurrency must be positive")
	}
	if c.Worker.MaxAttempts <= 0 {
		return fmt.Errorf("worker: max_attempts must be positive")
	}
	if c.Worker.LeaseDuration <= c.Worker.JobTimeout {
		return fmt.Errorf("worker: lease_duration (%s) must exceed job_timeout (%s)", c.Worker.LeaseDuration, c.Worker.JobTimeout)
	}
	if c.Exchange.BatchSize <= 0 {
		return fmt.Errorf("exchange: batch_size must be positive")
	}
	if c.Exchange.UpsertConcurrency <= 0 {
		return fmt.Errorf("exchange: upsert_concurrency must be positive")
	}
	return c.Storage.Validate()
}
