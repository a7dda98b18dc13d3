package bootstrap

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/genjob-notify/internal/config"
)

func TestConfigPath(t *testing.T) {
	t.Setenv("GENJOB_TEST_CONFIG_PATH", "/etc/genjob/env.yaml")

	assert.Equal(t, "flag.yaml", ConfigPath("flag.yaml", "GENJOB_TEST_CONFIG_PATH", "default.yaml"))
	assert.Equal(t, "/etc/genjob/env.yaml", ConfigPath("", "GENJOB_TEST_CONFIG_PATH", "default.yaml"))
	assert.Equal(t, "default.yaml", ConfigPath("", "GENJOB_TEST_UNSET_PATH", "default.yaml"))
}

func TestLoadConfig(t *testing.T) {
	const path = "../config/testdata/valid_config.yaml"

	cfg, err := LoadConfig(path, (*config.Config).ValidateAPIConfig)
	require.NoError(t, err)
	assert.Equal(t, "genjob-api-service", cfg.App.Name)

	_, err = LoadConfig(path, func(*config.Config) error { return errors.New("no queue") })
	assert.ErrorContains(t, err, "invalid config: no queue")

	_, err = LoadConfig("missing.yaml", (*config.Config).ValidateAPIConfig)
	assert.ErrorContains(t, err, "failed to load config")
}

func TestRabbitMQConfig(t *testing.T) {
	cfg, err := config.Load("../config/testdata/valid_config.yaml")
	require.NoError(t, err)

	rc := RabbitMQConfig(&cfg.RabbitMQ)
	assert.Equal(t, "generation_exchange", rc.ExchangeName)
	assert.Equal(t, "generation_queue", rc.QueueName)
	assert.Equal(t, "generation_dlx", rc.DeadLetterExchange)
	assert.Equal(t, "generation.requested", rc.RoutingKey)
	assert.Equal(t, 3, rc.PublishRetries)
	assert.InDelta(t, 2.0, rc.PublishBackoffMult, 0.001)
}

func TestPostgresConfig(t *testing.T) {
	cfg, err := config.Load("../config/testdata/valid_config.yaml")
	require.NoError(t, err)

	pc := PostgresConfig(&cfg.Database)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=genjob_db sslmode=disable", pc.DSN())
	assert.Equal(t, 25, pc.MaxOpenConns)
}
