package config

import (
	"fmt"
	"net/url"
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

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Logging    LoggingConfig    `yaml:"logging"`
	App        AppConfig        `yaml:"app"`
	Worker     WorkerConfig     `yaml:"worker"`
	Generation GenerationConfig `yaml:"generation"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Backend    BackendConfig    `yaml:"backend"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
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
	// DeadLetterExchange receives messages rejected without requeue. Empty disables it.
	DeadLetterExchange string `yaml:"dead_letter_exchange"`
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
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// ExecutionTime is how long the simulated engine takes per job.
	ExecutionTime time.Duration `yaml:"execution_time"`
}

// GenerationConfig holds the defaults stored on new generation jobs
type GenerationConfig struct {
	MaxRetries     int `yaml:"max_retries"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// TrackerConfig holds the polling rules of the tracker-service sessions
type TrackerConfig struct {
	MinInterval    time.Duration `yaml:"min_interval"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	SubmitFollowUp time.Duration `yaml:"submit_follow_up"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	PageSize       int           `yaml:"page_size"`
	SurfaceRoot    string        `yaml:"surface_root"`
}

// BackendConfig points the tracker-service at the api-service
type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

const (
	defaultMinInterval    = 2 * time.Second
	defaultPollInterval   = 5 * time.Second
	defaultSubmitFollowUp = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultPageSize       = 20
	defaultBackendTimeout = 15 * time.Second

	// MaxPageSize bounds tracker.page_size and the list API limit.
	MaxPageSize = 100
)

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills the tracker and backend settings left empty
func (c *Config) applyDefaults() {
	if c.Tracker.MinInterval == 0 {
		c.Tracker.MinInterval = defaultMinInterval
	}
	if c.Tracker.PollInterval == 0 {
		c.Tracker.PollInterval = defaultPollInterval
	}
	if c.Tracker.SubmitFollowUp == 0 {
		c.Tracker.SubmitFollowUp = defaultSubmitFollowUp
	}
	if c.Tracker.MaxBackoff == 0 {
		c.Tracker.MaxBackoff = defaultMaxBackoff
	}
	if c.Tracker.PageSize == 0 {
		c.Tracker.PageSize = defaultPageSize
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = defaultBackendTimeout
	}
}

func (c *Config) validateServer() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}
	return nil
}

func (c *Config) validateDatabase() error {
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

// ValidateAPIConfig checks the settings used by api-service
func (c *Config) ValidateAPIConfig() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation max_retries must not be negative")
	}

	if c.Generation.TimeoutSeconds < 0 {
		return fmt.Errorf("generation timeout_seconds must not be negative")
	}

	return nil
}

// ValidateWorkerConfig checks the settings used by worker-service
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.ExecutionTime < 0 {
		return fmt.Errorf("worker execution_time must not be negative")
	}

	return nil
}

// ValidateTrackerConfig checks the settings used by tracker-service
func (c *Config) ValidateTrackerConfig() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base_url is required")
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend base_url: %q", c.Backend.BaseURL)
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be greater than 0")
	}

	t := c.Tracker
	if t.MinInterval <= 0 {
		return fmt.Errorf("tracker min_interval must be greater than 0")
	}

	if t.PollInterval < t.MinInterval {
		return fmt.Errorf("tracker poll_interval (%s) must not be shorter than min_interval (%s)", t.PollInterval, t.MinInterval)
	}

	if t.SubmitFollowUp <= 0 {
		return fmt.Errorf("tracker submit_follow_up must be greater than 0")
	}

	if t.MaxBackoff < t.PollInterval {
		return fmt.Errorf("tracker max_backoff (%s) must not be shorter than poll_interval (%s)", t.MaxBackoff, t.PollInterval)
	}

	if t.PageSize <= 0 || t.PageSize > MaxPageSize {
		return fmt.Errorf("invalid tracker page_size: %d (must be between 1 and %d)", t.PageSize, MaxPageSize)
	}

	return nil
}
