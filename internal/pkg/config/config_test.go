package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"JWT_ACCESS_SECRET":  "a-secret",
		"JWT_REFRESH_SECRET": "r-secret",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "fleet", cfg.Mongo.Database)
	assert.Equal(t, CacheDriverRedis, cfg.Cache.Driver)
	assert.Equal(t, 4, cfg.Audit.Workers)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFrom_Overrides(t *testing.T) {
	env := baseEnv()
	env["ENV"] = "production"
	env["JWT_ACCESS_TTL"] = "5m"
	env["CACHE_DRIVER"] = "memory"
	env["REDIS_DB"] = "3"

	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, CacheDriverMemory, cfg.Cache.Driver)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadFrom_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secrets": {},
		"equal secrets":   {"JWT_ACCESS_SECRET": "same", "JWT_REFRESH_SECRET": "same"},
		"bad driver":      {"JWT_ACCESS_SECRET": "a", "JWT_REFRESH_SECRET": "b", "CACHE_DRIVER": "memcached"},
		"bad duration":    {"JWT_ACCESS_SECRET": "a", "JWT_REFRESH_SECRET": "b", "JWT_ACCESS_TTL": "soon"},
		"no workers":      {"JWT_ACCESS_SECRET": "a", "JWT_REFRESH_SECRET": "b", "AUDIT_WORKERS": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}
