package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/RajashekarChelimala/comrade-backend/internal/config"
	"github.com/RajashekarChelimala/comrade-backend/internal/logger"
	"github.com/RajashekarChelimala/comrade-backend/internal/server"
)

func main() {
	// .env 不存在时忽略，生产环境直接用真实环境变量
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.InitLogger(os.Getenv("DEBUG") != "")
	defer zap.L().Sync()

	app := iris.New()

	bridge, err := server.RegisterRoutes(app, cfg)
	if err != nil {
		zap.S().Fatalw("failed to register routes", "err", err)
	}

	// 事件桥消费循环：把 MQ 里的事件注入本进程的推送中心
	go func() {
		if err := bridge.Run(context.Background()); err != nil {
			zap.S().Errorw("event bridge stopped", "err", err)
		}
	}()

	addr := cfg.Server.Addr()
	zap.S().Infow("web server listening", "addr", addr)
	if err := app.Run(iris.Addr(addr)); err != nil {
		zap.S().Fatalw("failed to run web server", "err", err)
	}
}
