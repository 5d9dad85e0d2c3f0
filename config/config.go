// Package config loads service configuration from a .env file and the
// environment, with defaults for every discovery tunable.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Places    PlacesConfig
	Model     ModelConfig
	Discovery DiscoveryConfig
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Environment        string
	LogLevel           string
	Port               string
	AllowedOrigins     []string
	ExclusionRulesPath string // optional YAML rule file
	POISeedPath        string // JSON catalog seed, used when the catalog is empty
	RateLimitRPS       float64
	RateLimitBurst     int
}

type MongoConfig struct {
	URI      string // empty disables the catalog and persistence
	Database string
}

type RedisConfig struct {
	Addr string // empty falls back to the in-memory result cache
	DB   int
}

type AuthConfig struct {
	JWTSecret     string
	TokenDuration time.Duration
}

// PlacesConfig configures the external places API used as the remote source.
type PlacesConfig struct {
	APIKey  string
	BaseURL string
	RPS     float64
	Burst   int
}

// ModelConfig configures the language model behind the local source and the
// assistant.
type ModelConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// DiscoveryConfig holds the orchestrator tunables.
type DiscoveryConfig struct {
	LocalTimeout       time.Duration
	RemoteTimeout      time.Duration
	RemoteFirstTimeout time.Duration // remote budget before REMOTE_FIRST falls back
	HybridTimeout      time.Duration
	DefaultRadius      float64 // meters
	MaxRadius          float64 // meters
	RadiusGrowth       float64
	MaxExpansions      int
	DedupMeters        float64
	CacheTTL           time.Duration
	CacheGridDegrees   float64
	MinRemoteResults   int
	DefaultMaxResults  int
	DefaultStrategy    string
	CandidatePoolSize  int
	Weights            RankingWeights
}

// RankingWeights are the raw score factor weights; the ranking engine
// re-normalizes them to sum to 1.
type RankingWeights struct {
	Rating             float64
	Proximity          float64
	Popularity         float64
	CategoryPreference float64
	ReviewCount        float64
}

// DefaultDiscoveryConfig returns the tunables used when nothing is configured.
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		LocalTimeout:       1000 * time.Millisecond,
		RemoteTimeout:      3000 * time.Millisecond,
		RemoteFirstTimeout: 1500 * time.Millisecond,
		HybridTimeout:      3000 * time.Millisecond,
		DefaultRadius:      8000,
		MaxRadius:          50000,
		RadiusGrowth:       2.0,
		MaxExpansions:      1,
		DedupMeters:        100,
		CacheTTL:           120 * time.Second,
		CacheGridDegrees:   0.01,
		MinRemoteResults:   1,
		DefaultMaxResults:  10,
		DefaultStrategy:    "HYBRID",
		CandidatePoolSize:  15,
		Weights: RankingWeights{
			Rating:             0.30,
			Proximity:          0.25,
			Popularity:         0.20,
			CategoryPreference: 0.15,
			ReviewCount:        0.10,
		},
	}
}

// Default returns a full configuration with defaults and no credentials.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Environment:    "development",
			LogLevel:       "info",
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			POISeedPath:    "data/pois.json",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Mongo: MongoConfig{Database: "poi_db"},
		Auth:  AuthConfig{TokenDuration: 24 * time.Hour},
		Places: PlacesConfig{
			BaseURL: "https://maps.googleapis.com/maps/api/place",
			RPS:     5,
			Burst:   5,
		},
		Model: ModelConfig{
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 1024,
		},
		Discovery: DefaultDiscoveryConfig(),
	}
}

// Load reads .env (if present) and then the environment, falling back to
// defaults. Returns an error if any variable has an invalid value.
func Load() (*Config, error) {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg := Default()

	parseEnvString("APP_ENV", &cfg.App.Environment)
	parseEnvString("LOG_LEVEL", &cfg.App.LogLevel)
	parseEnvString("PORT", &cfg.App.Port)
	parseEnvString("EXCLUSION_RULES_PATH", &cfg.App.ExclusionRulesPath)
	parseEnvString("POI_SEED_PATH", &cfg.App.POISeedPath)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.App.AllowedOrigins = splitList(v)
	}

	parseEnvString("MONGODB_URI", &cfg.Mongo.URI)
	parseEnvString("MONGODB_DATABASE", &cfg.Mongo.Database)
	parseEnvString("REDIS_ADDR", &cfg.Redis.Addr)
	parseEnvString("JWT_SECRET", &cfg.Auth.JWTSecret)
	parseEnvString("PLACES_API_KEY", &cfg.Places.APIKey)
	parseEnvString("PLACES_BASE_URL", &cfg.Places.BaseURL)
	parseEnvString("ANTHROPIC_API_KEY", &cfg.Model.APIKey)
	parseEnvString("ANTHROPIC_MODEL", &cfg.Model.Model)
	parseEnvString("DISCOVERY_DEFAULT_STRATEGY", &cfg.Discovery.DefaultStrategy)

	d := &cfg.Discovery
	parsers := []error{
		parseEnvFloat("RATE_LIMIT_RPS", &cfg.App.RateLimitRPS),
		parseEnvInt("RATE_LIMIT_BURST", &cfg.App.RateLimitBurst),
		parseEnvInt("REDIS_DB", &cfg.Redis.DB),
		parseEnvDuration("JWT_TTL_HOURS", &cfg.Auth.TokenDuration, time.Hour),
		parseEnvFloat("PLACES_RPS", &cfg.Places.RPS),
		parseEnvInt("PLACES_BURST", &cfg.Places.Burst),
		parseEnvInt64("ANTHROPIC_MAX_TOKENS", &cfg.Model.MaxTokens),
		parseEnvDuration("DISCOVERY_LOCAL_TIMEOUT_MS", &d.LocalTimeout, time.Millisecond),
		parseEnvDuration("DISCOVERY_REMOTE_TIMEOUT_MS", &d.RemoteTimeout, time.Millisecond),
		parseEnvDuration("DISCOVERY_REMOTE_FIRST_TIMEOUT_MS", &d.RemoteFirstTimeout, time.Millisecond),
		parseEnvDuration("DISCOVERY_HYBRID_TIMEOUT_MS", &d.HybridTimeout, time.Millisecond),
		parseEnvFloat("DISCOVERY_DEFAULT_RADIUS_M", &d.DefaultRadius),
		parseEnvFloat("DISCOVERY_MAX_RADIUS_M", &d.MaxRadius),
		parseEnvFloat("DISCOVERY_RADIUS_GROWTH", &d.RadiusGrowth),
		parseEnvInt("DISCOVERY_MAX_EXPANSIONS", &d.MaxExpansions),
		parseEnvFloat("DISCOVERY_DEDUP_METERS", &d.DedupMeters),
		parseEnvDuration("DISCOVERY_CACHE_TTL_SECS", &d.CacheTTL, time.Second),
		parseEnvFloat("DISCOVERY_CACHE_GRID_DEGREES", &d.CacheGridDegrees),
		parseEnvInt("DISCOVERY_MIN_REMOTE_RESULTS", &d.MinRemoteResults),
		parseEnvInt("DISCOVERY_DEFAULT_MAX_RESULTS", &d.DefaultMaxResults),
		parseEnvInt("DISCOVERY_CANDIDATE_POOL", &d.CandidatePoolSize),
		parseEnvFloat("DISCOVERY_WEIGHT_RATING", &d.Weights.Rating),
		parseEnvFloat("DISCOVERY_WEIGHT_PROXIMITY", &d.Weights.Proximity),
		parseEnvFloat("DISCOVERY_WEIGHT_POPULARITY", &d.Weights.Popularity),
		parseEnvFloat("DISCOVERY_WEIGHT_CATEGORY", &d.Weights.CategoryPreference),
		parseEnvFloat("DISCOVERY_WEIGHT_REVIEW_COUNT", &d.Weights.ReviewCount),
	}
	if err := errors.Join(parsers...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every value is in range.
func (c *Config) Validate() error {
	if c.App.Port == "" {
		return errors.New("port must not be empty")
	}
	if c.App.RateLimitRPS <= 0 || c.App.RateLimitBurst <= 0 {
		return fmt.Errorf("request rate limit must be positive (rps=%v, burst=%d)", c.App.RateLimitRPS, c.App.RateLimitBurst)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis db cannot be negative (got %d)", c.Redis.DB)
	}
	if c.Auth.TokenDuration <= 0 {
		return fmt.Errorf("token duration must be positive (got %v)", c.Auth.TokenDuration)
	}
	if c.Places.RPS <= 0 || c.Places.Burst <= 0 {
		return fmt.Errorf("places rate limit must be positive (rps=%v, burst=%d)", c.Places.RPS, c.Places.Burst)
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("model max tokens must be positive (got %d)", c.Model.MaxTokens)
	}
	return c.Discovery.Validate()
}

// Validate checks the discovery tunables.
func (d DiscoveryConfig) Validate() error {
	if d.LocalTimeout <= 0 || d.RemoteTimeout <= 0 || d.RemoteFirstTimeout <= 0 || d.HybridTimeout <= 0 {
		return fmt.Errorf("source timeouts must be positive (local=%v, remote=%v, remote_first=%v, hybrid=%v)",
			d.LocalTimeout, d.RemoteTimeout, d.RemoteFirstTimeout, d.HybridTimeout)
	}
	if d.DefaultRadius <= 0 {
		return fmt.Errorf("default radius must be positive (got %v)", d.DefaultRadius)
	}
	if d.MaxRadius < d.DefaultRadius {
		return fmt.Errorf("max radius %v is below default radius %v", d.MaxRadius, d.DefaultRadius)
	}
	if d.RadiusGrowth < 1.5 || d.RadiusGrowth > 2.0 {
		return fmt.Errorf("radius growth must be between 1.5 and 2.0 (got %v)", d.RadiusGrowth)
	}
	if d.MaxExpansions < 0 || d.MaxExpansions > 3 {
		return fmt.Errorf("max expansions must be between 0 and 3 (got %d)", d.MaxExpansions)
	}
	if d.DedupMeters <= 0 {
		return fmt.Errorf("dedup distance must be positive (got %v)", d.DedupMeters)
	}
	if d.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative (got %v)", d.CacheTTL)
	}
	if d.CacheGridDegrees <= 0 {
		return fmt.Errorf("cache grid must be positive (got %v)", d.CacheGridDegrees)
	}
	if d.MinRemoteResults < 1 {
		return fmt.Errorf("min remote results must be at least 1 (got %d)", d.MinRemoteResults)
	}
	if d.DefaultMaxResults <= 0 {
		return fmt.Errorf("default max results must be positive (got %d)", d.DefaultMaxResults)
	}
	if d.CandidatePoolSize <= 0 {
		return fmt.Errorf("candidate pool size must be positive (got %d)", d.CandidatePoolSize)
	}
	return d.Weights.Validate()
}

// Validate checks that every weight is non-negative and at least one is set.
func (w RankingWeights) Validate() error {
	values := []float64{w.Rating, w.Proximity, w.Popularity, w.CategoryPreference, w.ReviewCount}
	sum := 0.0
	for _, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("ranking weights must be finite and non-negative (got %+v)", w)
		}
		sum += v
	}
	if sum == 0 {
		return errors.New("ranking weights must not all be zero")
	}
	return nil
}

func parseEnvString(key string, target *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func parseEnvInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*target = n
	return nil
}

func parseEnvInt64(key string, target *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*target = n
	return nil
}

func parseEnvFloat(key string, target *float64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*target = f
	return nil
}

// parseEnvDuration reads an integer count of unit.
func parseEnvDuration(key string, target *time.Duration, unit time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*target = time.Duration(n) * unit
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
