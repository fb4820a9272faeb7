package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardshop-bot/internal/catalog"
	"cardshop-bot/internal/command"
	"cardshop-bot/internal/config"
	"cardshop-bot/internal/gateway"
	"cardshop-bot/internal/handler"
	"cardshop-bot/internal/middleware"
	"cardshop-bot/internal/repository"
	"cardshop-bot/internal/router"
	"cardshop-bot/internal/service"
	"cardshop-bot/internal/session"

	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting cardshop bot...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Initialize ledger store based on config
	var store repository.Store
	switch cfg.Ledger.Type {
	case "mysql":
		mysqlStore, err := repository.NewMySQLStore(cfg.Ledger.MySQLDSN())
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		store = mysqlStore
		log.Println("MySQL ledger store initialized")
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteStore(cfg.Ledger.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite ledger store initialized")
	}
	defer store.Close()

	// Initialize session store. Redis failure degrades to memory.
	var sessions session.Store = session.NewMemoryStore(cfg.Session.TTL)
	if cfg.Session.Type == "redis" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddress(),
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Printf("Warning: Redis connection failed, using memory sessions: %v", err)
		} else {
			sessions = session.NewRedisStore(redisClient, cfg.Session.TTL)
			log.Println("Redis session store initialized")
		}
	}

	// Load the catalog file
	cat := catalog.New(cfg.Catalog.Path)
	if err := cat.Load(); err != nil {
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			log.Fatalf("Failed to load catalog from %s: %v", loadErr.Path, loadErr.Err)
		}
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("Catalog loaded from %s, %d types", cfg.Catalog.Path, len(cat.TypesSorted()))

	// Initialize services
	shop := service.NewShop(cat, store, store, store, sessions)

	ctx := context.Background()
	if err := shop.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to reconcile sold codes: %v", err)
	}

	var gatewayClient *gateway.Client
	if cfg.Payment.GatewayEnabled() {
		gatewayClient = gateway.NewClient(cfg.Payment.GatewayURL, cfg.Payment.GatewaySecret)
		log.Println("Payment gateway client initialized")
	} else {
		log.Println("Payment gateway not configured, PIX payloads built locally")
	}

	pixKey := gateway.PixKey{
		Key:      cfg.Payment.PixKey,
		Receiver: cfg.Payment.PixReceiver,
		City:     cfg.Payment.PixCity,
	}
	payments := service.NewPayments(gatewayClient, pixKey, store, store, cfg.Payment.WebhookURL)

	// Background sweep of stale pending charges
	sweeper := service.NewChargeSweeper(store, service.DefaultSweeperConfig())
	sweeper.Start()
	defer sweeper.Stop()

	// Command dispatcher for the messaging front end
	dispatcher := command.NewDispatcher(shop, payments, store, store, cfg.App.AdminIDs)

	// Initialize handlers
	h := handler.New(shop, payments, store, cfg.App.Version)
	commandHandler := handler.NewCommandHandler(dispatcher)

	// Create router
	r := router.New(router.Config{
		Handler:         h,
		CommandHandler:  commandHandler,
		AdminMiddleware: middleware.RequireLoginKey(cfg.App.LoginKey),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
