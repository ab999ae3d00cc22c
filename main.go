package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/address-formatter/app/bootstrap"
	"github.com/address-formatter/app/config"
	"github.com/address-formatter/app/controllers"
	"github.com/address-formatter/app/services"
	"github.com/address-formatter/internal/sink"
	"github.com/address-formatter/routes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default config/app.yaml)")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	flag.Parse()

	// 1. Load configuration
	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// 2. Logger
	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting Address Formatter Service", zap.String("env", cfg.App.Env))
	ctx := context.Background()

	// 3. Parser
	addressParser, err := bootstrap.NewParser(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize parser", zap.Error(err))
	}

	// 4. MongoDB (persistent cache and review queue)
	mongoDB, err := bootstrap.ConnectMongo(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize MongoDB", zap.Error(err))
	}
	if mongoDB != nil {
		defer func() {
			if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
				logger.Error("Error disconnecting MongoDB", zap.Error(err))
			}
		}()
	}

	// 5. Cache tiers
	cacheService, err := bootstrap.NewCache(ctx, cfg, addressParser.RulesVersion(), mongoDB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize cache", zap.Error(err))
	}
	if cacheService != nil {
		defer cacheService.Close()
	}

	// 6. Optional search index and review queue
	var searcher services.AddressSearcher
	index, err := bootstrap.NewAddressIndex(cfg, logger)
	if err != nil {
		logger.Warn("Meilisearch unavailable, search disabled", zap.Error(err))
	} else if index != nil {
		searcher = index
	}

	var reviews services.ReviewLister
	if mongoDB != nil {
		reviews = sink.NewMongoSink(mongoDB, cfg.Sink.Collection, cfg.Sink.ReviewsCollection, logger)
	}

	// 7. Services and controllers
	addressService := services.NewAddressService(addressParser, cacheService, logger)
	adminService := services.NewAdminService(addressService, cacheService, searcher, reviews, logger)

	addressController := controllers.NewAddressController(addressService, logger)
	adminController := controllers.NewAdminController(adminService, cfg.App.Env, logger)

	// 8. Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	routes.SetupAllRoutes(router, addressController, adminController, logger)

	// 9. Serve until interrupted
	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Address Formatter Service listening", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}
