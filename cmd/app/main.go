package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"TradeCast/internal/di"
	"TradeCast/pkg/config"
	"TradeCast/pkg/logger"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	// A missing .env is normal outside local development.
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv load failed: %v", err)
	}

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg, l)
	if err != nil {
		l.Error("app initialization failed", logger.Error(err))
		os.Exit(1)
	}
	// Released last, after workers drain and the log collector flushes.
	app.AddCloser("infrastructure", func() error {
		cleanup()
		return nil
	})

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		l.Error("app error", logger.Error(err))
		l.Close()
		os.Exit(1)
	}
}
