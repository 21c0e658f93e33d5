package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/userhub/backend/internal/config"
	"github.com/userhub/backend/internal/database"
	"github.com/userhub/backend/internal/logger"
	"github.com/userhub/backend/internal/server"
	"github.com/userhub/backend/internal/services"
	"github.com/userhub/backend/internal/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Log to both stdout and a rotated file.
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fatalf("ensure log directory: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "userhub.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	logger.WithFields(map[string]interface{}{"version": version.Full()}).
		Infof("starting %s backend", version.Name)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var google services.GoogleVerifier
	if cfg.GoogleClientID != "" {
		verifier, err := services.NewGoogleIDTokenVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			logger.Log().WithError(err).Warn("google sign-in disabled: could not fetch JWKS")
		} else {
			google = verifier
		}
	}

	srv, err := server.New(db, cfg, google)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	logger.WithFields(map[string]interface{}{"port": cfg.HTTPPort}).Info("listening")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
