package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Processor dispatch modes
const (
	// DispatchInline runs the processor from a goroutine pool inside the API process
	DispatchInline = "inline"
	// DispatchQueue publishes jobs to RabbitMQ for the worker service
	DispatchQueue = "queue"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Worker    WorkerConfig    `yaml:"worker"`
	Processor ProcessorConfig `yaml:"processor"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	TimeFormat   string `yaml:"time_format"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ID              string        `yaml:"id"`
	Concurrency     int           `yaml:"concurrency"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsAddr     string        `yaml:"metrics_addr"`
}

// ProcessorConfig describes the external repurposing command and how jobs reach it
type ProcessorConfig struct {
	Dispatch string   `yaml:"dispatch"`
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args"`
	WorkDir  string   `yaml:"work_dir"`
	Env      []string `yaml:"env"`
	// MaxRuntime of zero lets the processor run for as long as it needs
	MaxRuntime  time.Duration `yaml:"max_runtime"`
	Concurrency int           `yaml:"concurrency"`
	QueueSize   int           `yaml:"queue_size"`
	CallbackURL string        `yaml:"callback_url"`
}

// StorageConfig holds the file system layout settings
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	PublicBase  string `yaml:"public_base"`
}

// MaxUploadBytes converts the upload limit to bytes
func (s StorageConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB * 1024 * 1024
}

// Load reads the configuration file, expands ${VAR} references from the
// environment and applies defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Processor.Dispatch == "" {
		c.Processor.Dispatch = DispatchInline
	}
	if c.Processor.Concurrency == 0 {
		c.Processor.Concurrency = 2
	}
	if c.Processor.QueueSize == 0 {
		c.Processor.QueueSize = 16
	}
	if c.Storage.MaxUploadMB == 0 {
		c.Storage.MaxUploadMB = 500
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.RabbitMQ.Consumer.PrefetchCount == 0 {
		c.RabbitMQ.Consumer.PrefetchCount = 1
	}
}

// Validate checks the API service configuration
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}

	switch c.dispatch() {
	case DispatchInline:
		if c.Processor.Command == "" {
			return fmt.Errorf("processor command is required for inline dispatch")
		}
		if c.Processor.Concurrency < 0 {
			return fmt.Errorf("processor concurrency must not be negative")
		}
	case DispatchQueue:
		if c.driver() == DriverMemory {
			return fmt.Errorf("memory database driver cannot be shared with the worker service; use postgres for queue dispatch")
		}
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("invalid processor dispatch: %q (must be %q or %q)", c.Processor.Dispatch, DispatchInline, DispatchQueue)
	}

	return c.validateDatabase()
}

// ValidateWorkerConfig checks the worker service configuration
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Processor.Command == "" {
		return fmt.Errorf("processor command is required")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}

	if c.driver() != DriverPostgres {
		return fmt.Errorf("worker service requires the postgres database driver")
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	return c.validateRabbitMQ()
}

func (c *Config) driver() string {
	if c.Database.Driver == "" {
		return DriverPostgres
	}
	return c.Database.Driver
}

func (c *Config) dispatch() string {
	if c.Processor.Dispatch == "" {
		return DispatchInline
	}
	return c.Processor.Dispatch
}

func (c *Config) validateDatabase() error {
	switch c.driver() {
	case DriverMemory:
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("invalid database driver: %q (must be %q or %q)", c.Database.Driver, DriverPostgres, DriverMemory)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}
