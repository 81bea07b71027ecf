package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aihub/knowledge-go/app/controllers"
	"github.com/aihub/knowledge-go/app/router"
	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/di"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/services"
)

func main() {
	// .env不存在时静默跳过
	_ = godotenv.Load()

	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetAppConfig()

	if err := logger.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	container, err := di.NewContainer()
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}

	if err := container.Invoke(func(svc *services.KnowledgeService) {
		controllers.SetKnowledgeService(svc)
	}); err != nil {
		logger.Fatal("failed to wire knowledge service", zap.Error(err))
	}

	router.Init()

	web.BConfig.AppName = "Knowledge Service"
	web.BConfig.CopyRequestBody = true
	if port, err := strconv.Atoi(cfg.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("starting knowledge service", zap.String("port", cfg.Server.Port))
	web.Run()
}
