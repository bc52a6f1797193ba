package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rxledger/statements/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	Storage    StorageConfig    `validate:"required"`
	Email      EmailConfig
	Statement  StatementConfig `validate:"required"`
	Redis      RedisConfig
	Sentry     SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `validate:"required"`
	Port                   int    `validate:"required"`
	User                   string `validate:"required"`
	Password               string
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

// BillingConfig points at the read-only pharmacy billing database the
// statement generator aggregates charge and payment rows from
type BillingConfig struct {
	Driver string `validate:"required,oneof=mysql postgres"`
	DSN    string `validate:"required"`
	// PaidPaymentStatuses are the payment status codes whose charge rows are billable
	PaidPaymentStatuses []string `mapstructure:"paid_payment_statuses" validate:"required,min=1"`
	QueryTimeoutSeconds int      `mapstructure:"query_timeout_seconds"`
}

type StorageProvider string

const (
	StorageProviderLocal StorageProvider = "local"
	StorageProviderS3    StorageProvider = "s3"
)

type StorageConfig struct {
	Provider StorageProvider `validate:"required,oneof=local s3"`
	// Root is the web/storage root returned paths are relative to
	Root string `validate:"required_if=Provider local"`
	// Subpath is the fixed directory under Root statements are written to
	Subpath string `validate:"required"`
	S3      S3Config
}

type S3Config struct {
	Region    string
	Bucket    string
	KeyPrefix string `mapstructure:"key_prefix"`
}

type EmailConfig struct {
	Enabled     bool
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	ReplyTo     string `mapstructure:"reply_to"`
	// RateLimit is the maximum number of sends per second, zero disables pacing
	RateLimit float64 `mapstructure:"rate_limit"`
}

type StatementConfig struct {
	// Schedule is the cron expression for unattended processing passes; empty disables it
	Schedule          string       `mapstructure:"schedule"`
	RunTimeoutMinutes int          `mapstructure:"run_timeout_minutes"`
	AttachmentPrefix  string       `mapstructure:"attachment_prefix"`
	From              BusinessInfo `validate:"required"`
}

// BusinessInfo is the static "from" block printed on every statement
type BusinessInfo struct {
	Name      string `validate:"required"`
	Address   string
	City      string
	Province  string
	Postal    string
	Phone     string
	Fax       string
	Email     string
	TaxNumber string `mapstructure:"tax_number"`
}

type RedisConfig struct {
	Enabled  bool
	Address  string `validate:"required_if=Enabled true"`
	Password string
	DB       int
	// LockTTLSeconds bounds how long a crashed worker can hold the processing lock
	LockTTLSeconds int `mapstructure:"lock_ttl_seconds"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string `validate:"required_if=Enabled true"`
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional, real environment variables win
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file loaded: %v\n", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/rxstatements")

	v.SetEnvPrefix("RXSTATEMENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("billing.driver", "mysql")
	v.SetDefault("billing.paid_payment_statuses", []string{"PAID", "POSTED"})
	v.SetDefault("billing.query_timeout_seconds", 60)
	v.SetDefault("storage.provider", StorageProviderLocal)
	v.SetDefault("storage.root", "./data")
	v.SetDefault("storage.subpath", "statements")
	v.SetDefault("email.rate_limit", 2)
	v.SetDefault("statement.schedule", "@every 5m")
	v.SetDefault("statement.run_timeout_minutes", 30)
	v.SetDefault("statement.attachment_prefix", "Statement")
	v.SetDefault("redis.lock_ttl_seconds", 1800)
	v.SetDefault("sentry.sample_rate", 1.0)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Storage: StorageConfig{
			Provider: StorageProviderLocal,
			Root:     "./data",
			Subpath:  "statements",
		},
		Statement: StatementConfig{
			RunTimeoutMinutes: 30,
			AttachmentPrefix:  "Statement",
			From:              BusinessInfo{Name: "Pharmacy"},
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

func (c BillingConfig) QueryTimeout() time.Duration {
	if c.QueryTimeoutSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

func (c StatementConfig) RunTimeout() time.Duration {
	if c.RunTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.RunTimeoutMinutes) * time.Minute
}

func (c RedisConfig) LockTTL() time.Duration {
	if c.LockTTLSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.LockTTLSeconds) * time.Second
}
