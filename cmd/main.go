package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"chapter/internal/config"
	"chapter/internal/handlers"
	"chapter/internal/live"
	"chapter/internal/middleware"
	rplatform "chapter/internal/platform/redis"
	"chapter/internal/raffle"
	"chapter/internal/registrations"
	"chapter/internal/services"
	"chapter/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	defer logger.Init("chapter", false, cfg.SystemLog, os.Stdout).Close()

	// 1. Pick the registration store
	var store registrations.Store = registrations.NewMemoryStore()
	if cfg.Redis.Enabled {
		rdb, err := rplatform.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		store = registrations.NewRedisStore(rdb)
		logger.Infof("Registrations stored in redis at %s", cfg.Redis.Addr)
	}

	// 2. Start the live update hub
	hub := live.NewHub()
	go hub.Run(ctx)

	// 3. Initialize the Raffle Service
	raffleService := services.NewRaffleService(store, hub,
		raffle.WithFollowUp(cfg.Raffle.CelebrationFollowUp),
	)
	defer raffleService.Shutdown()

	// 4. Load HTML templates and assets from the embedded filesystem.
	templates, err := web.Templates()
	if err != nil {
		logger.Fatalf("Failed to parse templates: %v", err)
	}
	assets, err := web.Assets()
	if err != nil {
		logger.Fatalf("Failed to create assets sub-filesystem: %v", err)
	}

	// 5. Set up the Gin router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	r.StaticFS("/assets", http.FS(assets))
	handlers.NewHTTPHandler(raffleService, store, hub, templates).RegisterRoutes(r)

	// 6. Start the background janitor to close idle draw dialogs
	go func() {
		ticker := time.NewTicker(cfg.Raffle.JanitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := raffleService.CleanUpInactiveSessions(cfg.Raffle.SessionMaxIdle); n > 0 {
					logger.Infof("Closed %d inactive draw sessions.", n)
				}
			}
		}
	}()

	// 7. Run the server
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Server starting on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
}
