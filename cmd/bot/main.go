package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pinbot/internal/domain"
	"pinbot/internal/infrastructure/exchange"
	"pinbot/internal/infrastructure/logger"
	"pinbot/internal/infrastructure/notifier"
	"pinbot/internal/infrastructure/storage"
	"pinbot/internal/usecase"
	"pinbot/internal/web"
)

type Config struct {
	Venue struct {
		RESTEndpoint string `yaml:"rest_endpoint"`
		WSEndpoint   string `yaml:"ws_endpoint"`
		UseBookFeed  bool   `yaml:"use_book_feed"`
	} `yaml:"venue"`
	Sync struct {
		IntervalSeconds     int `yaml:"interval_seconds"`
		InitialDelaySeconds int `yaml:"initial_delay_seconds"`
		Concurrency         int `yaml:"concurrency"`
	} `yaml:"sync"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	cfg.Sync.IntervalSeconds = 60
	cfg.Sync.InitialDelaySeconds = 30
	cfg.Sync.Concurrency = 4

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// 1. Load Config (.env carries the secrets)
	_ = godotenv.Load()

	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "pinbot.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Venue Client
	apiKey := os.Getenv("PREDICT_API_KEY")
	if apiKey == "" {
		log.Fatal("PREDICT_API_KEY is not set")
	}
	client := exchange.NewPredictClient(apiKey, cfg.Venue.RESTEndpoint)

	var market domain.MarketData = client
	var feed *exchange.BookFeed
	if cfg.Venue.UseBookFeed {
		feed = exchange.NewBookFeed(cfg.Venue.WSEndpoint, client, log)
		market = feed
	}

	// 5. Init Notifier
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is not set")
	}
	tg := notifier.NewTelegram(botToken)

	// 6. Init Sync Engine
	executor := usecase.NewBatchExecutor(client, log)
	service := usecase.NewSyncService(store, market, client, executor, tg, log)
	worker := usecase.NewSyncWorker(usecase.SyncWorkerConfig{
		Interval:     time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
		InitialDelay: time.Duration(cfg.Sync.InitialDelaySeconds) * time.Second,
		Concurrency:  cfg.Sync.Concurrency,
	}, service, store, log)

	// 7. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)

	// 8. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080 // Default
	}
	server := web.NewServer(port, store, worker, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-stop

	log.Info("Shutting down...")
	cancel()
	if feed != nil {
		_ = feed.Close()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
}
