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

	"github.com/go-chi/chi/v5"

	"github.com/openscioly/results-api/cache"
	"github.com/openscioly/results-api/config"
	"github.com/openscioly/results-api/db"
	"github.com/openscioly/results-api/handlers"
	"github.com/openscioly/results-api/live"
	"github.com/openscioly/results-api/middleware"
	"github.com/openscioly/results-api/repositories"
	api "github.com/openscioly/results-api/routes"
	"github.com/openscioly/results-api/services"
	"github.com/openscioly/results-api/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	var store cache.Store
	if cfg.RedisURL != "" {
		store, err = cache.NewRedisStore(cfg.RedisURL, 5*time.Second)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("cache connected")
	} else {
		logger.Info("no REDIS_URL configured, running without cache")
	}

	var objects storage.ObjectStore
	if cfg.HasObjectStorage() {
		objects, err = storage.NewCloudflareR2Store(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize object storage", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("object storage initialized")
	} else {
		logger.Info("no R2 settings configured, running without object storage")
	}

	hub := live.NewHub(logger)
	go hub.Run()
	logger.Info("live feed hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	resultRepo := repositories.NewPostgresResultRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	trackRepo := repositories.NewPostgresTrackRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	placingRepo := repositories.NewPostgresPlacingRepository(dbConn)
	penaltyRepo := repositories.NewPostgresPenaltyRepository(dbConn)
	logger.Info("repositories initialized")

	invalidator := cache.NewInvalidator(store, logger)

	authService := services.NewAuthService(userRepo)
	resultService := services.NewResultService(services.ResultServiceDeps{
		DB:          dbConn,
		Results:     resultRepo,
		Events:      eventRepo,
		Tracks:      trackRepo,
		Teams:       teamRepo,
		Placings:    placingRepo,
		Penalties:   penaltyRepo,
		Cache:       store,
		Invalidator: invalidator,
		Objects:     objects,
		Palette:     storage.NewKmeansPaletteExtractor(),
		Feed:        hub,
		Logger:      logger,
	})
	seasonService := services.NewSeasonService(resultRepo, store, logger)
	schoolService := services.NewSchoolService(teamRepo, store, logger)
	logger.Info("services initialized")

	auth := middleware.NewAuthenticator(cfg.JWTSecretKey)
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	resultHandler := handlers.NewResultHandler(resultService, logger)
	seasonHandler := handlers.NewSeasonHandler(seasonService)
	schoolHandler := handlers.NewSchoolHandler(schoolService)
	imageHandler := handlers.NewImageHandler(resultService, objects)
	wsHandler := handlers.NewWSHandler(hub, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(router, auth, authHandler, resultHandler, seasonHandler, schoolHandler, imageHandler, wsHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
