package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/divyanshmehta355/aurahub-notify/internal/bridge"
	"github.com/divyanshmehta355/aurahub-notify/internal/config"
	"github.com/divyanshmehta355/aurahub-notify/internal/hub"
	"github.com/divyanshmehta355/aurahub-notify/internal/logger"
	"github.com/divyanshmehta355/aurahub-notify/internal/metrics"
	"github.com/divyanshmehta355/aurahub-notify/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Close()

	metrics.Initialize()

	h := hub.New()

	// With Redis configured, ingests go through the pub/sub bridge so every
	// instance can deliver to its own connections. Without it, dispatch is
	// local to this process.
	var pusher server.Pusher = h
	var b *bridge.Bridge
	if cfg.BridgeEnabled() {
		var err error
		b, err = bridge.New(cfg.RedisAddr, cfg.RedisPassword, h)
		if err != nil {
			logger.Log.Fatal("failed to connect Redis bridge", zap.Error(err))
		}
		b.Start()
		pusher = b
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(cfg, h, pusher).Router(),
	}

	go func() {
		logger.Log.Info("notification server starting",
			zap.String("port", cfg.Port),
			zap.Bool("bridge", cfg.BridgeEnabled()),
			zap.Bool("hardened_auth", cfg.HardenedAuth()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connections drop without draining: undelivered pushes stay durable in
	// the web app's database and clients reconnect on their own.
	if err := h.Shutdown(ctx); err != nil {
		logger.Log.Warn("hub shutdown", zap.Error(err))
	}
	if b != nil {
		if err := b.Close(); err != nil {
			logger.Log.Warn("bridge close", zap.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("server forced to shut down", zap.Error(err))
	}

	logger.Log.Info("server exited")
}
