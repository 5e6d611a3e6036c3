package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/RajashekarChelimala/comrade-backend/internal/config"
	"github.com/RajashekarChelimala/comrade-backend/internal/logger"
	"github.com/RajashekarChelimala/comrade-backend/internal/media"
	"github.com/RajashekarChelimala/comrade-backend/internal/repository/mysql"
	"github.com/RajashekarChelimala/comrade-backend/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.InitLogger(os.Getenv("DEBUG") != "")
	defer zap.L().Sync()

	db := mysql.Init(&cfg.MySQL)
	messageRepo := mysql.NewMessageRepository(db)
	storage := media.NewCloudinary(cfg.Media)
	sweeper := service.NewSweeperService(messageRepo, storage, cfg.Sweep.BatchSize)

	interval := cfg.Sweep.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	zap.S().Infow("media sweeper started", "interval", interval, "batch", cfg.Sweep.BatchSize)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即执行一次
	runOnce(sweeper)

	// 定时执行
	for range ticker.C {
		runOnce(sweeper)
	}
}

func runOnce(sweeper *service.SweeperService) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if _, err := sweeper.RunOnce(ctx); err != nil {
		zap.S().Errorw("media sweep failed", "err", err)
	}
}
