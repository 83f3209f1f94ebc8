package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 5, cfg.RBACAdminCeiling)
	assert.Contains(t, cfg.RBACModules, "hrms")
	assert.Equal(t, 30*time.Minute, cfg.MatrixSessionTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("RBAC_MODULES", " hrms , lms,,")
	t.Setenv("RBAC_ADMIN_CEILING", "7")
	t.Setenv("APP_ENV", "production")
	t.Setenv("GRANT_CACHE_TTL", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"hrms", "lms"}, cfg.RBACModules)
	assert.Equal(t, 7, cfg.RBACAdminCeiling)
	assert.Equal(t, 90*time.Second, cfg.GrantCacheTTL)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	t.Setenv("RBAC_ADMIN_CEILING", "0")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("RBAC_ADMIN_CEILING", "5")
	t.Setenv("RBAC_MODULES", " , ")
	_, err = LoadConfig()
	require.Error(t, err)
}
