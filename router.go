package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"roadtrip-server/config"
	"roadtrip-server/handlers"
	"roadtrip-server/middleware"
	"roadtrip-server/services"
)

// application holds the wired services behind the HTTP layer.
type application struct {
	orchestrator *services.DiscoveryOrchestrator
	assistant    *services.Assistant
	preferences  *services.PreferenceService
	travelers    *services.TravelerService
	catalog      handlers.CatalogFinder // nil without Redis
}

func newRouter(app *application, cfg *config.Config, limiter *middleware.ClientRateLimiter, log *slog.Logger) *mux.Router {
	poiHandler := handlers.NewPOIHandler(app.orchestrator, app.catalog, app.preferences, app.travelers, cfg.Discovery.DefaultMaxResults)
	assistantHandler := handlers.NewAssistantHandler(app.assistant, app.travelers)
	preferenceHandler := handlers.NewPreferenceHandler(app.preferences)
	travelerHandler := handlers.NewTravelerHandler(app.travelers)
	authHandler := handlers.NewAuthHandler(app.travelers)

	secret := cfg.Auth.JWTSecret
	rateLimit := middleware.RateLimitMiddleware(limiter, log)

	r := mux.NewRouter()
	r.Use(middleware.ErrorMiddleware(log))
	r.Use(middleware.CORSMiddleware(cfg.App.AllowedOrigins))

	// Auth routes
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.Use(rateLimit)
	authRouter.HandleFunc("/register", authHandler.RegisterTraveler).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/login", authHandler.LoginTraveler).Methods("POST", "OPTIONS")

	// POI routes
	poiRouter := r.PathPrefix("/pois").Subrouter()
	poiRouter.Use(middleware.OptionalJWTMiddleware(secret))
	poiRouter.Handle("/discover", rateLimit(http.HandlerFunc(poiHandler.Discover))).Methods("GET", "OPTIONS")
	poiRouter.HandleFunc("/nearby", poiHandler.GetNearbyPOIs).Methods("GET", "OPTIONS")

	// Assistant routes
	assistantRouter := r.PathPrefix("/assistant").Subrouter()
	assistantRouter.Use(rateLimit, middleware.OptionalJWTMiddleware(secret))
	assistantRouter.HandleFunc("/ask", assistantHandler.Ask).Methods("POST", "OPTIONS")

	// Traveler routes
	travelerRouter := r.PathPrefix("/travelers").Subrouter()
	travelerRouter.Use(middleware.JWTMiddleware(secret))
	travelerRouter.HandleFunc("/me", travelerHandler.Me).Methods("GET", "OPTIONS")
	travelerRouter.HandleFunc("/location", travelerHandler.PingLocation).Methods("POST", "OPTIONS")

	// Preference routes
	preferenceRouter := r.PathPrefix("/preferences").Subrouter()
	preferenceRouter.Use(middleware.JWTMiddleware(secret))
	preferenceRouter.HandleFunc("", preferenceHandler.Get).Methods("GET", "OPTIONS")
	preferenceRouter.HandleFunc("/like", preferenceHandler.Like).Methods("POST", "OPTIONS")
	preferenceRouter.HandleFunc("/dislike", preferenceHandler.Dislike).Methods("POST", "OPTIONS")

	return r
}

func sweepLimiter(ctx context.Context, limiter *middleware.ClientRateLimiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
