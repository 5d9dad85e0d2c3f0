package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				defaults := DefaultDiscoveryConfig()
				assert.Equal(t, defaults, cfg.Discovery)
				assert.Equal(t, "8080", cfg.App.Port)
				assert.Equal(t, "poi_db", cfg.Mongo.Database)
			},
		},
		{
			name: "valid custom discovery configuration",
			envVars: map[string]string{
				"DISCOVERY_LOCAL_TIMEOUT_MS":   "800",
				"DISCOVERY_HYBRID_TIMEOUT_MS":  "2500",
				"DISCOVERY_MAX_EXPANSIONS":     "3",
				"DISCOVERY_RADIUS_GROWTH":      "1.5",
				"DISCOVERY_CACHE_TTL_SECS":     "300",
				"DISCOVERY_DEDUP_METERS":       "50",
				"ALLOWED_ORIGINS":              "https://a.example, https://b.example",
				"REDIS_ADDR":                   "localhost:6379",
				"REDIS_DB":                     "2",
				"DISCOVERY_MIN_REMOTE_RESULTS": "3",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 800*time.Millisecond, cfg.Discovery.LocalTimeout)
				assert.Equal(t, 2500*time.Millisecond, cfg.Discovery.HybridTimeout)
				assert.Equal(t, 3, cfg.Discovery.MaxExpansions)
				assert.Equal(t, 1.5, cfg.Discovery.RadiusGrowth)
				assert.Equal(t, 300*time.Second, cfg.Discovery.CacheTTL)
				assert.Equal(t, 50.0, cfg.Discovery.DedupMeters)
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.App.AllowedOrigins)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, 2, cfg.Redis.DB)
				assert.Equal(t, 3, cfg.Discovery.MinRemoteResults)
			},
		},
		{
			name: "ranking weights and remote-first budget",
			envVars: map[string]string{
				"DISCOVERY_WEIGHT_RATING":           "0.5",
				"DISCOVERY_WEIGHT_PROXIMITY":        "0.5",
				"DISCOVERY_WEIGHT_POPULARITY":       "0",
				"DISCOVERY_WEIGHT_CATEGORY":         "0",
				"DISCOVERY_WEIGHT_REVIEW_COUNT":     "0",
				"DISCOVERY_REMOTE_FIRST_TIMEOUT_MS": "700",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, RankingWeights{Rating: 0.5, Proximity: 0.5}, cfg.Discovery.Weights)
				assert.Equal(t, 700*time.Millisecond, cfg.Discovery.RemoteFirstTimeout)
				assert.Equal(t, 3000*time.Millisecond, cfg.Discovery.RemoteTimeout)
			},
		},
		{
			name:    "negative ranking weight",
			envVars: map[string]string{"DISCOVERY_WEIGHT_PROXIMITY": "-0.1"},
			wantErr: true,
		},
		{
			name: "all ranking weights zero",
			envVars: map[string]string{
				"DISCOVERY_WEIGHT_RATING":       "0",
				"DISCOVERY_WEIGHT_PROXIMITY":    "0",
				"DISCOVERY_WEIGHT_POPULARITY":   "0",
				"DISCOVERY_WEIGHT_CATEGORY":     "0",
				"DISCOVERY_WEIGHT_REVIEW_COUNT": "0",
			},
			wantErr: true,
		},
		{
			name:    "zero remote-first timeout",
			envVars: map[string]string{"DISCOVERY_REMOTE_FIRST_TIMEOUT_MS": "0"},
			wantErr: true,
		},
		{
			name:    "invalid int value",
			envVars: map[string]string{"REDIS_DB": "not-a-number"},
			wantErr: true,
		},
		{
			name:    "invalid float value",
			envVars: map[string]string{"DISCOVERY_RADIUS_GROWTH": "fast"},
			wantErr: true,
		},
		{
			name:    "too many expansions",
			envVars: map[string]string{"DISCOVERY_MAX_EXPANSIONS": "10"},
			wantErr: true,
		},
		{
			name:    "growth factor out of range",
			envVars: map[string]string{"DISCOVERY_RADIUS_GROWTH": "3"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestDiscoveryConfig_Validate(t *testing.T) {
	d := DefaultDiscoveryConfig()
	require.NoError(t, d.Validate())

	d.MaxRadius = d.DefaultRadius - 1
	assert.Error(t, d.Validate())

	d = DefaultDiscoveryConfig()
	d.MinRemoteResults = 0
	assert.Error(t, d.Validate())
}
