package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SEED_ON_START", "")
	t.Setenv("KAFKA_GROUP_ID", "")

	cfg := Load()
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, "uuid", cfg.IDScheme)
	assert.True(t, cfg.SeedOnStart)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "medisetu-audit", cfg.KafkaGroupID)
	assert.Equal(t, 60*time.Second, cfg.AnalysisTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("SEED_ON_START", "false")
	t.Setenv("ANALYSIS_TIMEOUT", "5s")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.SeedOnStart)
	assert.Equal(t, 5*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, 0, cfg.RedisDB)
}
