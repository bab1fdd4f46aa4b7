package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.HoldDuration)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.SweeperEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("HOLD_DURATION", "2m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("RESERVE_RATE_LIMIT", "0")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, 2*time.Minute, cfg.HoldDuration)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 0, cfg.ReserveRateLimit)
}

func TestLoad_RejectsSlowSweep(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "5m")

	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "SWEEP_INTERVAL")
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := Config{StoreDriver: "mysql", HoldDuration: time.Minute, SweepInterval: time.Second, SweepBatch: 1}
	assert.Error(t, cfg.Validate())
}
