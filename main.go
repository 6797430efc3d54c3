package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/database"
	"github.com/username/tradefolio/backend/src/handlers"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/services"
	"github.com/username/tradefolio/backend/src/store"
	"golang.org/x/time/rate"
)

var limiter *rate.Limiter

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool)
	for _, origin := range config.Cfg.AllowedOrigins {
		allowedOrigins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Tradefolio backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	limiter = rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)

	quoteCache := cache.New(config.Cfg.PriceCacheTTL, 2*config.Cfg.PriceCacheTTL)
	reportCache := cache.New(5*time.Minute, 10*time.Minute)

	tradeStore := store.NewTradeStore(database.DB)
	priceService := services.NewPriceService(quoteCache)
	tradeService := services.NewTradeService(tradeStore, priceService, reportCache)

	tradeHandler := handlers.NewTradeHandler(tradeService)
	portfolioHandler := handlers.NewPortfolioHandler(tradeService)
	priceHandler := handlers.NewPriceHandler(priceService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Tradefolio Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/trades", portfolioHandler.HandleGetLedger)
		r.Post("/trades", tradeHandler.HandleCreateTrade)
		r.Get("/trades/{id}", tradeHandler.HandleGetTrade)
		r.Put("/trades/{id}", tradeHandler.HandleUpdateTrade)
		r.Delete("/trades/{id}", tradeHandler.HandleDeleteTrade)
		r.Post("/trades/{id}/close", tradeHandler.HandleCloseTrade)

		r.Get("/campaigns", portfolioHandler.HandleGetCampaigns)
		r.Get("/stats", portfolioHandler.HandleGetStats)
		r.Get("/prices", priceHandler.HandleGetPrices)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
