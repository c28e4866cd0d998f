package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Sources  SourcesConfig  `mapstructure:"sources"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the job store backend.
// Driver is one of sqlite, postgres, mysql or memory.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver specific connection string.
// URL wins when set; sqlite uses Path.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	default:
		return c.Path
	}
}

// ScoringConfig tunes execution, retry and recovery of scoring jobs.
type ScoringConfig struct {
	Concurrency            int           `mapstructure:"concurrency"`
	QueueSize              int           `mapstructure:"queue_size"`
	MaxAttempts            int           `mapstructure:"max_attempts"`
	MaxRetries             int           `mapstructure:"max_retries"`
	BackoffInitial         time.Duration `mapstructure:"backoff_initial"`
	BackoffMax             time.Duration `mapstructure:"backoff_max"`
	StaleAfter             time.Duration `mapstructure:"stale_after"`
	PendingRedispatchAfter time.Duration `mapstructure:"pending_redispatch_after"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval"`
	ShutdownGrace          time.Duration `mapstructure:"shutdown_grace"`
}

// StorageConfig configures the optional audit archive bucket.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type NotifyConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type SourcesConfig struct {
	ProfilesFile string `mapstructure:"profiles_file"`
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

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment endpoints come from the environment.
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("llm.provider", "LLM_PROVIDER")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("notify.rabbitmq.url", "RABBITMQ_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.LLM.ResolveEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/talentscore.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.timeout", 45*time.Second)
	v.SetDefault("llm.json_mode", true)

	v.SetDefault("scoring.concurrency", 4)
	v.SetDefault("scoring.queue_size", 256)
	v.SetDefault("scoring.max_attempts", 4)
	v.SetDefault("scoring.max_retries", 3)
	v.SetDefault("scoring.backoff_initial", time.Second)
	v.SetDefault("scoring.backoff_max", 30*time.Second)
	v.SetDefault("scoring.stale_after", 15*time.Minute)
	v.SetDefault("scoring.pending_redispatch_after", time.Minute)
	v.SetDefault("scoring.sweep_interval", time.Minute)
	v.SetDefault("scoring.shutdown_grace", 30*time.Second)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.type", "s3compatible")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "talentscore-audit")
	v.SetDefault("storage.region", "auto")

	v.SetDefault("notify.rabbitmq.enabled", false)
	v.SetDefault("notify.rabbitmq.exchange", "talentscore.jobs")
}

// Validate returns the first configuration error found.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	case "memory":
		if c.Sources.ProfilesFile == "" {
			return fmt.Errorf("database driver memory requires sources.profiles_file")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if err := c.LLM.Validate(); err != nil {
		return err
	}

	s := c.Scoring
	if s.Concurrency <= 0 {
		return fmt.Errorf("scoring.concurrency must be positive")
	}
	if s.QueueSize <= 0 {
		return fmt.Errorf("scoring.queue_size must be positive")
	}
	if s.MaxAttempts <= 0 {
		return fmt.Errorf("scoring.max_attempts must be positive")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("scoring.max_retries cannot be negative")
	}
	if s.BackoffMax < s.BackoffInitial {
		return fmt.Errorf("scoring.backoff_max must be >= scoring.backoff_initial")
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if c.Notify.RabbitMQ.Enabled && c.Notify.RabbitMQ.URL == "" {
		return fmt.Errorf("notify.rabbitmq.url is required when rabbitmq is enabled")
	}
	return nil
}
