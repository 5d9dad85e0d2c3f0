package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadtrip-server/config"
	"roadtrip-server/logger"
	"roadtrip-server/middleware"
	"roadtrip-server/models"
	"roadtrip-server/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		AddSource:   cfg.App.Environment != "production",
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}

	var db *mongo.Database
	if cfg.Mongo.URI != "" {
		client, err := connectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
		db = client.Database(cfg.Mongo.Database)
		log.Info("connected to MongoDB", "database", cfg.Mongo.Database)
	} else {
		log.Warn("MONGODB_URI not set, using in-memory stores")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		client, err := connectRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		log.Info("connected to Redis", "addr", cfg.Redis.Addr)
	} else {
		log.Warn("REDIS_ADDR not set, catalog disabled and results cached in memory")
	}

	app, err := buildApp(ctx, cfg, db, redisClient, log)
	if err != nil {
		return err
	}

	limiter := middleware.NewClientRateLimiter(cfg.App.RateLimitRPS, cfg.App.RateLimitBurst)
	go sweepLimiter(ctx, limiter, time.Minute)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           newRouter(app, cfg, limiter, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", srv.Addr, "environment", cfg.App.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("MongoDB connection failed: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func connectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// buildApp wires the services. db and redisClient may be nil.
func buildApp(ctx context.Context, cfg *config.Config, db *mongo.Database, redisClient *redis.Client, log *slog.Logger) (*application, error) {
	rules, err := services.LoadExclusionRules(cfg.App.ExclusionRulesPath)
	if err != nil {
		return nil, err
	}
	w := cfg.Discovery.Weights
	weights, err := services.NewWeights(w.Rating, w.Proximity, w.Popularity, w.CategoryPreference, w.ReviewCount)
	if err != nil {
		return nil, err
	}
	ranker, err := services.NewRankingEngine(weights)
	if err != nil {
		return nil, err
	}

	var model services.LanguageModel
	anthropicModel, err := services.NewAnthropicModel(services.AnthropicConfig{
		APIKey:     cfg.Model.APIKey,
		Model:      cfg.Model.Model,
		MaxTokens:  cfg.Model.MaxTokens,
		MaxRetries: 1,
	}, log)
	switch {
	case err == nil:
		model = anthropicModel
	case errors.Is(err, services.ErrMissingModelKey):
		log.Warn("ANTHROPIC_API_KEY not set, local source and assistant disabled")
	default:
		return nil, err
	}

	var local services.CandidateSource
	if model != nil {
		local = services.NewLocalSource(model, log)
	}

	var (
		remoteMembers []services.CandidateSource
		places        *services.PlacesClient
		catalog       *services.GeoService
	)
	if cfg.Places.APIKey != "" {
		places = services.NewPlacesClient(services.PlacesConfig{
			APIKey:  cfg.Places.APIKey,
			BaseURL: cfg.Places.BaseURL,
			RPS:     cfg.Places.RPS,
			Burst:   cfg.Places.Burst,
		}, log)
		remoteMembers = append(remoteMembers, places)
	} else {
		log.Warn("PLACES_API_KEY not set, places API disabled")
	}
	if redisClient != nil {
		var collection *mongo.Collection
		if db != nil {
			collection = db.Collection("pois")
		}
		catalog = services.NewGeoService(collection, redisClient, log)
		if err := catalog.Seed(ctx, cfg.App.POISeedPath); err != nil {
			return nil, fmt.Errorf("seeding catalog: %w", err)
		}
		remoteMembers = append(remoteMembers, catalog)
	}
	var remote services.CandidateSource
	if len(remoteMembers) > 0 {
		remote = services.CombineSources("remote", models.SourceRemote, remoteMembers...)
	}

	var cache services.ResultCache = services.NewMemoryCache()
	if redisClient != nil {
		cache = services.NewRedisCache(redisClient, log)
	}

	var (
		travelerStore   services.TravelerStore   = services.NewMemoryTravelerStore()
		preferenceStore services.PreferenceStore = services.NewMemoryPreferenceStore()
	)
	if db != nil {
		mongoTravelers := services.NewMongoTravelerStore(db.Collection("travelers"))
		if err := mongoTravelers.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("traveler indexes: %w", err)
		}
		mongoPreferences := services.NewMongoPreferenceStore(db.Collection("preferences"))
		if err := mongoPreferences.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("preference indexes: %w", err)
		}
		travelerStore, preferenceStore = mongoTravelers, mongoPreferences
	}

	orchestrator := services.NewDiscoveryOrchestrator(cfg.Discovery, services.OrchestratorDeps{
		Local:  local,
		Remote: remote,
		Rules:  rules,
		Ranker: ranker,
		Cache:  cache,
		Logger: log,
	})

	var details services.PlaceDetailer
	if places != nil {
		details = places
	}
	assistant := services.NewAssistant(model, orchestrator, details, services.NewDuckDuckGoSearcher("", 0), log)

	app := &application{
		orchestrator: orchestrator,
		assistant:    assistant,
		preferences:  services.NewPreferenceService(preferenceStore, redisClient, log),
		travelers:    services.NewTravelerService(travelerStore, redisClient, cfg.Auth.JWTSecret, cfg.Auth.TokenDuration, log),
	}
	if catalog != nil {
		app.catalog = catalog
	}
	return app, nil
}
