package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPPort)
	assert.Equal(t, "request.events", cfg.MQExchange)
	assert.Equal(t, "", cfg.RedisAddr)

	assert.Equal(t, 5000.0, cfg.ManagerLimit)
	assert.Equal(t, 15000.0, cfg.DirectorLimit)

	assert.Equal(t, 1, cfg.SLAUrgentDays)
	assert.Equal(t, 2, cfg.SLAHighDays)
	assert.Equal(t, 3, cfg.SLANormalDays)
	assert.Equal(t, 5, cfg.SLALowDays)
	assert.False(t, cfg.BusinessDays)

	assert.Equal(t, time.Hour, cfg.SnapshotFreshness)
	assert.Equal(t, 5*time.Minute, cfg.MonitorInterval)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("API_HTTP_PORT", ":9090")
	t.Setenv("SLA_NORMAL_DAYS", "4")
	t.Setenv("SLA_BUSINESS_DAYS", "true")
	t.Setenv("APPROVAL_MANAGER_LIMIT", "2500")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTPPort)
	assert.Equal(t, 4, cfg.SLANormalDays)
	assert.True(t, cfg.BusinessDays)
	assert.Equal(t, 2500.0, cfg.ManagerLimit)
}
