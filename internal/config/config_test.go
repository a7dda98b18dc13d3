package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "genjob_db", cfg.Database.Database)
				assert.Equal(t, "generation_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "generation_queue", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "generation_dlx", cfg.RabbitMQ.Queue.DeadLetterExchange)
				assert.Equal(t, 4, cfg.RabbitMQ.Consumer.PrefetchCount)
				assert.Equal(t, 3, cfg.Generation.MaxRetries)
				assert.Equal(t, 8*time.Second, cfg.Worker.ExecutionTime)
				assert.Equal(t, 5*time.Second, cfg.Tracker.PollInterval)
				assert.Equal(t, "notification-bell", cfg.Tracker.SurfaceRoot)
				assert.Equal(t, "http://localhost:8080", cfg.Backend.BaseURL)
				assert.Equal(t, "genjob-api-service", cfg.App.Name)
			}
		})
	}
}

func TestLoad_TrackerDefaults(t *testing.T) {
	cfg, err := Load("testdata/tracker_defaults.yaml")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Tracker.MinInterval)
	assert.Equal(t, 5*time.Second, cfg.Tracker.PollInterval)
	assert.Equal(t, time.Second, cfg.Tracker.SubmitFollowUp)
	assert.Equal(t, 30*time.Second, cfg.Tracker.MaxBackoff)
	assert.Equal(t, 20, cfg.Tracker.PageSize)
	assert.Equal(t, 15*time.Second, cfg.Backend.Timeout)
	assert.NoError(t, cfg.ValidateTrackerConfig())
}

func validAPIConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "genjob_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "generation_exchange"},
			Queue:    QueueConfig{Name: "generation_queue"},
		},
		Generation: GenerationConfig{MaxRetries: 3},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "invalid database port",
			mutate:    func(c *Config) { c.Database.Port = -1 },
			wantErr:   true,
			errString: "invalid database port",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "negative max retries",
			mutate:    func(c *Config) { c.Generation.MaxRetries = -1 },
			wantErr:   true,
			errString: "max_retries must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAPIConfig()
			tt.mutate(cfg)
			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	valid := func() *Config {
		c := validAPIConfig()
		c.Worker = WorkerConfig{
			Concurrency:       4,
			JobTimeout:        5 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		}
		return c
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "server port is not needed", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, errString: "concurrency must be greater than 0"},
		{name: "zero job timeout", mutate: func(c *Config) { c.Worker.JobTimeout = 0 }, errString: "job_timeout must be greater than 0"},
		{name: "zero heartbeat", mutate: func(c *Config) { c.Worker.HeartbeatInterval = 0 }, errString: "heartbeat_interval must be greater than 0"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.Worker.ShutdownTimeout = 0 }, errString: "shutdown_timeout must be greater than 0"},
		{name: "negative execution time", mutate: func(c *Config) { c.Worker.ExecutionTime = -time.Second }, errString: "execution_time must not be negative"},
		{name: "missing database", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.ValidateWorkerConfig()

			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateTrackerConfig(t *testing.T) {
	valid := func() *Config {
		c := &Config{
			Server:  ServerConfig{Port: 8090},
			Backend: BackendConfig{BaseURL: "http://localhost:8080"},
		}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "https backend", mutate: func(c *Config) { c.Backend.BaseURL = "https://api.example.com/" }},
		{name: "missing backend", mutate: func(c *Config) { c.Backend.BaseURL = "" }, errString: "backend base_url is required"},
		{name: "backend without scheme", mutate: func(c *Config) { c.Backend.BaseURL = "localhost:8080" }, errString: "invalid backend base_url"},
		{name: "zero backend timeout", mutate: func(c *Config) { c.Backend.Timeout = -1 }, errString: "backend timeout"},
		{name: "poll faster than floor", mutate: func(c *Config) { c.Tracker.PollInterval = time.Second }, errString: "must not be shorter than min_interval"},
		{name: "backoff below poll interval", mutate: func(c *Config) { c.Tracker.MaxBackoff = 3 * time.Second }, errString: "must not be shorter than poll_interval"},
		{name: "page size too large", mutate: func(c *Config) { c.Tracker.PageSize = 500 }, errString: "invalid tracker page_size"},
		{name: "invalid server port", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.ValidateTrackerConfig()

			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
		require.NoError(t, cfg.ValidateTrackerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")

		err = cfg.ValidateTrackerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}
