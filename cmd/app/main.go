package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"papertrade/configs"
	"papertrade/internal/adapter"
	"papertrade/internal/adapter/kafka"
	httpdelivery "papertrade/internal/delivery/http"
	"papertrade/internal/domain"
	"papertrade/internal/infra"
	"papertrade/internal/middleware"
	"papertrade/internal/service"
	"papertrade/internal/usecase"
)

// demoPrices seed the static quote provider
var demoPrices = map[string]float64{
	"AAPL": 187.46,
	"AMZN": 178.22,
	"GOOG": 141.80,
	"MSFT": 410.10,
	"NFLX": 486.88,
	"TSLA": 248.50,
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] .env file not found, using environment variables")
	}

	cfg := configs.Load()
	ctx := context.Background()

	// Storage
	store, err := infra.OpenStore(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Quote provider
	quotes := newQuoteProvider(cfg.Quote)

	// Trade events
	var events domain.TradeEventPublisher = kafka.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		events = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.Printf("[OK] Publishing trades to Kafka topic %q via %v", cfg.Kafka.Topic, cfg.Kafka.Brokers)
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Printf("[WARN] Failed to close trade publisher: %v", err)
		}
	}()

	// Services
	auth := middleware.NewAuth(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accountService := usecase.NewAccountService(store, cfg.Trading.StartingCash)
	tradingService := usecase.NewTradingService(store, quotes, events)
	defer tradingService.Flush()
	portfolioService := service.NewPortfolioService(store, quotes)
	reconcileService := service.NewReconcileService(store)

	// Reconciliation schedule
	scheduler := infra.NewScheduler(reconcileService, cfg.Reconcile.Schedule)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Public API (echo)
	e := echo.New()
	e.HideBanner = true
	httpdelivery.SetupRoutes(e, &httpdelivery.RouterConfig{
		Auth:        auth,
		AuthHandler: httpdelivery.NewAuthHandler(accountService, auth, cfg.Server.Env == "production"),
		UserHandler: httpdelivery.NewUserHandler(tradingService, portfolioService, accountService),
	})

	apiSrv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Ops server (chi)
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", handleHealth(store))
	r.Post("/reconcile/trigger", handleTriggerReconcile(scheduler))

	opsSrv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.OpsPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("PaperTrade API starting on %s", apiSrv.Addr)
	log.Printf("Ops server starting on %s", opsSrv.Addr)
	log.Printf("Environment: %s", cfg.Server.Env)
	log.Printf("Starting cash: $%s | Quotes: %s", cfg.Trading.StartingCash.StringFixed(domain.PriceScale), cfg.Quote.Provider)
	log.Println("========================================")

	for _, srv := range []*http.Server{apiSrv, opsSrv} {
		srv := srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Failed to start server on %s: %v", srv.Addr, err)
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{apiSrv, opsSrv} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] Server on %s forced to shutdown: %v", srv.Addr, err)
		}
	}

	log.Println("[OK] Server exited gracefully")
}

func newQuoteProvider(cfg configs.QuoteConfig) domain.QuoteProvider {
	switch cfg.Provider {
	case "static":
		log.Println("[INFO] Using static demo quotes")
		return adapter.NewStaticQuoteProvider(demoPrices)
	case "iex":
		if cfg.APIKey == "" {
			log.Println("[WARN] API_KEY not set, quote lookups will fail")
		}
		return adapter.NewIEXQuoteClient(cfg.URL, cfg.APIKey, cfg.Timeout)
	default:
		log.Fatalf("Unknown QUOTE_PROVIDER %q (want iex or static)", cfg.Provider)
		return nil
	}
}

// Ops handlers

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] Failed to write response: %v", err)
	}
}

func handleHealth(db interface{ Ping(context.Context) error }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "healthy"
		if err := db.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unhealthy"
		}

		writeJSON(w, status, map[string]string{
			"status":    dbStatus,
			"service":   "papertrade-ops",
			"database":  dbStatus,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleTriggerReconcile(scheduler *infra.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("Manual reconcile triggered via API")

		report, err := scheduler.RunNow(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusConflict
		}
		writeJSON(w, status, report)
	}
}
