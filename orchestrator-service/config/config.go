package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverSQS      = "sqs"
)

type Config struct {
	ServiceName string    `mapstructure:"service_name"`
	Env         string    `mapstructure:"env"`
	Port        string    `mapstructure:"port"`
	Store       Driver    `mapstructure:"store"`
	Journal     Driver    `mapstructure:"journal"`
	Transport   Driver    `mapstructure:"transport"`
	Database    Database  `mapstructure:"database"`
	Redis       Redis     `mapstructure:"redis"`
	AWS         AWS       `mapstructure:"aws"`
	Dispatch    Dispatch  `mapstructure:"dispatch"`
	Telemetry   Telemetry `mapstructure:"telemetry"`
	Log         Log       `mapstructure:"log"`
	Monitor     Monitor   `mapstructure:"monitor"`
}

// Driver selects an implementation by name
type Driver struct {
	Driver string `mapstructure:"driver"`
}

type Database struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type Redis struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type AWS struct {
	Region            string `mapstructure:"region"`
	EndpointSNS       string `mapstructure:"endpoint_sns"`
	EndpointSQS       string `mapstructure:"endpoint_sqs"`
	SNSTopicArn       string `mapstructure:"sns_topic_arn"`
	SQSQueueURL       string `mapstructure:"sqs_queue_url"`
	VisibilityTimeout int32  `mapstructure:"visibility_timeout"`
}

type Dispatch struct {
	MaxConcurrent int    `mapstructure:"max_concurrent"`
	Policy        string `mapstructure:"policy"`
}

type Telemetry struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Monitor struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
	Interval   time.Duration `mapstructure:"interval"`
}

// ReadConfig loads <ENVIRONMENT>.json from this package's directory,
// overridden by SHIPABOX_* environment variables
func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to get current file")
	}

	return Load(filepath.Dir(filename), getConfigName())
}

// Load reads the named JSON config from dir. A missing file leaves the
// defaults and environment in effect.
func Load(dir, name string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("SHIPABOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "orchestrator-service")
	v.SetDefault("env", getEnv("ENV", "local"))
	v.SetDefault("port", getEnv("PORT", "8080"))

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("journal.driver", DriverMemory)
	v.SetDefault("transport.driver", DriverMemory)

	v.SetDefault("database.url", os.Getenv("DATABASE_URL"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "shipabox")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "shipabox:")

	v.SetDefault("aws.region", getEnv("AWS_DEFAULT_REGION", "us-east-1"))
	v.SetDefault("aws.endpoint_sns", getEnv("AWS_ENDPOINT_URL_SNS", ""))
	v.SetDefault("aws.endpoint_sqs", getEnv("AWS_ENDPOINT_URL_SQS", ""))
	v.SetDefault("aws.sns_topic_arn", getEnv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:shipabox-events"))
	v.SetDefault("aws.sqs_queue_url", getEnv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/shipabox-orchestrator"))
	v.SetDefault("aws.visibility_timeout", 30)

	v.SetDefault("dispatch.max_concurrent", 8)
	v.SetDefault("dispatch.policy", string(domain.PolicyStandard))

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.otlp_endpoint", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("monitor.stale_after", "24h")
	v.SetDefault("monitor.interval", "5m")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate rejects unknown drivers and policies
func (c *Config) Validate() error {
	if err := oneOf("store.driver", c.Store.Driver, DriverMemory, DriverPostgres, DriverRedis); err != nil {
		return err
	}
	if err := oneOf("journal.driver", c.Journal.Driver, DriverMemory, DriverPostgres); err != nil {
		return err
	}
	if err := oneOf("transport.driver", c.Transport.Driver, DriverMemory, DriverSQS); err != nil {
		return err
	}
	if c.Dispatch.MaxConcurrent <= 0 {
		return errors.Errorf("dispatch.max_concurrent must be positive, got %d", c.Dispatch.MaxConcurrent)
	}
	if _, err := domain.ParsePolicy(c.Dispatch.Policy); err != nil {
		return errors.Wrap(err, "dispatch.policy")
	}
	return nil
}

// NeedsDatabase reports whether any component is backed by PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.Store.Driver == DriverPostgres || c.Journal.Driver == DriverPostgres
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

// GetDatabaseURL constructs database URL from config
func (c *Config) GetDatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}
