package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Mail       MailConfig       `yaml:"mail"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// BaseURL is the externally visible origin used when building
	// confirmation links, e.g. "https://example.com".
	BaseURL string `yaml:"base_url"`
}

// GetHost returns the bind host, honoring container environments where
// binding to localhost would make the service unreachable.
func (s ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return s.Host
}

// Addr returns the host:port bind address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.GetHost(), s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis connection settings for the settings store
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MailConfig holds outbound mail settings
type MailConfig struct {
	// Provider selects the sender implementation: "ses" or "smtp".
	Provider  string `yaml:"provider"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`

	SES  SESConfig  `yaml:"ses"`
	SMTP SMTPConfig `yaml:"smtp"`
}

// SESConfig holds AWS SES v2 credentials
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// SMTPConfig holds SMTP relay credentials
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NewsletterConfig holds subscription lifecycle settings
type NewsletterConfig struct {
	// VerificationPath is the public URL segment for confirmation links,
	// appended to base_url: <base_url>/<verification_path>/<token>.
	VerificationPath string `yaml:"verification_path"`
	// ImportFlushSize bounds how many new contacts accumulate before a
	// bulk import flushes to the database.
	ImportFlushSize int `yaml:"import_flush_size"`
	// SweepLimit caps how many stale records a single retention sweep removes.
	SweepLimit int `yaml:"sweep_limit"`
	// SweepOnRegister couples each registration to a best-effort retention
	// sweep so small deployments need no separate scheduler.
	SweepOnRegister bool `yaml:"sweep_on_register"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "smtp"
	}
	if cfg.Mail.SES.Region == "" {
		cfg.Mail.SES.Region = "us-west-2"
	}
	if cfg.Mail.SMTP.Port == 0 {
		cfg.Mail.SMTP.Port = 587
	}
	if cfg.Newsletter.VerificationPath == "" {
		cfg.Newsletter.VerificationPath = "newsletter-verification"
	}
	if cfg.Newsletter.ImportFlushSize == 0 {
		cfg.Newsletter.ImportFlushSize = 100
	}
	if cfg.Newsletter.SweepLimit == 0 {
		cfg.Newsletter.SweepLimit = 1000
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if provider := os.Getenv("MAIL_PROVIDER"); provider != "" {
		cfg.Mail.Provider = provider
	}
	if from := os.Getenv("MAIL_FROM_EMAIL"); from != "" {
		cfg.Mail.FromEmail = from
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.Mail.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.Mail.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.Mail.SES.Region = region
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.Mail.SMTP.Host = host
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		cfg.Mail.SMTP.Username = user
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.Mail.SMTP.Password = password
	}

	return cfg, nil
}
