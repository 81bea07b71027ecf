package di

import (
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/dashscope"
	"github.com/aihub/knowledge-go/internal/database"
	"github.com/aihub/knowledge-go/internal/events"
	"github.com/aihub/knowledge-go/internal/knowledge"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/services"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	providers := []interface{}{
		func() (*config.Config, error) {
			cfg := config.GetAppConfig()
			if cfg == nil {
				return nil, fmt.Errorf("config not loaded")
			}
			return cfg, nil
		},
		database.NewPostgres,
		database.NewRedis,
		newDashScopeService,
		newEmbedder,
		newVectorStore,
		newNotifier,
		knowledge.NewSimilarityEngine,
		newExpander,
		newReranker,
		knowledge.NewEnhancedRetrievalPipeline,
		services.NewKnowledgeService,
	}

	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return err
		}
	}
	return nil
}

// newDashScopeService DashScope统一服务，未配置密钥时为nil
func newDashScopeService(cfg *config.Config) *dashscope.Service {
	if cfg.Knowledge.Embedding.Provider == "dashscope" {
		return dashscope.NewService(cfg.Knowledge.Embedding.APIKey)
	}
	if cfg.Knowledge.Rerank.Enabled {
		return dashscope.NewService(cfg.Knowledge.Rerank.APIKey)
	}
	return nil
}

// newEmbedder 按配置选择embedding provider并套上LRU缓存
func newEmbedder(cfg *config.Config) knowledge.Embedder {
	ec := cfg.Knowledge.Embedding
	ref := knowledge.ModelRef{
		Provider:   ec.Provider,
		Model:      ec.Model,
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Dimensions: ec.Dimensions,
	}
	return knowledge.NewCachingEmbedder(knowledge.NewEmbedder(ref), ref.ID(), ec.CacheSize)
}

// newVectorStore 数据库可用时用数据库存储，否则退化为内存存储
func newVectorStore(cfg *config.Config, db *gorm.DB) knowledge.VectorStore {
	if cfg.Database.Enabled && db != nil {
		return knowledge.NewDatabaseVectorStore(db)
	}
	return knowledge.NewMemoryVectorStore()
}

// newNotifier Kafka可用时发往Kafka，否则写日志
func newNotifier(cfg *config.Config) events.Notifier {
	if cfg.Kafka.Enabled {
		notifier, err := events.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err == nil {
			return notifier
		}
		logger.Warn("kafka notifier unavailable, falling back to log notifier", zap.Error(err))
	}
	return &events.LogNotifier{}
}

func newExpander(cfg *config.Config, svc *dashscope.Service) knowledge.QueryExpander {
	return knowledge.NewLLMQueryExpander(svc, "")
}

func newReranker(cfg *config.Config, svc *dashscope.Service) knowledge.Reranker {
	if !cfg.Knowledge.Rerank.Enabled {
		return &knowledge.HeuristicReranker{}
	}
	return knowledge.NewDashScopeReranker(svc, cfg.Knowledge.Rerank.Model)
}
