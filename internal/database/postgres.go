package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/models"
)

// NewPostgres 建立数据库连接并迁移知识库相关表。
// 数据库未启用时返回nil，上层退化为内存存储。
func NewPostgres(cfg *config.Config) (*gorm.DB, error) {
	if !cfg.Database.Enabled {
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层的sql.DB设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if err := autoMigrate(db); err != nil {
		logger.Warn("database migration warning", zap.Error(err))
	}

	logger.Info("database connected",
		zap.Int("max_open_conns", 100))
	return db, nil
}

// autoMigrate 自动迁移知识库相关表，先主表后块表
func autoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.KnowledgeBase{}); err != nil {
		return fmt.Errorf("migrate knowledge_bases: %w", err)
	}
	if err := db.AutoMigrate(&models.KnowledgeChunk{}); err != nil {
		return fmt.Errorf("migrate knowledge_chunks: %w", err)
	}
	return nil
}
