package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/config"
	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/events"
	"github.com/aihub/knowledge-go/internal/knowledge"
	"github.com/aihub/knowledge-go/internal/logger"
	"github.com/aihub/knowledge-go/internal/metrics"
	"github.com/aihub/knowledge-go/internal/models"
)

// KnowledgeService 知识库管理服务，负责知识库CRUD、文档入库和检索编排
type KnowledgeService struct {
	db       *gorm.DB
	store    knowledge.VectorStore
	embedder knowledge.Embedder
	engine   *knowledge.SimilarityEngine
	pipeline *knowledge.EnhancedRetrievalPipeline
	notifier events.Notifier
	redis    *redis.Client
	cfg      *config.Config
}

// NewKnowledgeService 创建知识库服务实例
func NewKnowledgeService(
	db *gorm.DB,
	store knowledge.VectorStore,
	embedder knowledge.Embedder,
	engine *knowledge.SimilarityEngine,
	pipeline *knowledge.EnhancedRetrievalPipeline,
	notifier events.Notifier,
	redisClient *redis.Client,
	cfg *config.Config,
) *KnowledgeService {
	if notifier == nil {
		notifier = &events.NoopNotifier{}
	}
	return &KnowledgeService{
		db:       db,
		store:    store,
		embedder: embedder,
		engine:   engine,
		pipeline: pipeline,
		notifier: notifier,
		redis:    redisClient,
		cfg:      cfg,
	}
}

// CreateKnowledgeBaseRequest 创建知识库请求
type CreateKnowledgeBaseRequest struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Description    string  `json:"description"`
	EmbeddingModel string  `json:"embedding_model"`
	Dimensions     int     `json:"dimensions"`
	TopK           int     `json:"top_k"`
	ChunkSize      int     `json:"chunk_size"`
	ChunkOverlap   int     `json:"chunk_overlap"`
	Threshold      float64 `json:"threshold"`
}

// UpdateKnowledgeBaseRequest 更新知识库请求，nil字段保持不变
type UpdateKnowledgeBaseRequest struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	EmbeddingModel *string  `json:"embedding_model"`
	Dimensions     *int     `json:"dimensions"`
	TopK           *int     `json:"top_k"`
	ChunkSize      *int     `json:"chunk_size"`
	ChunkOverlap   *int     `json:"chunk_overlap"`
	Threshold      *float64 `json:"threshold"`
}

// SourceMeta 文档来源信息
type SourceMeta struct {
	Source   string `json:"source"`
	FileName string `json:"file_name"`
}

// SearchRequest 搜索请求，指针字段为nil时使用知识库默认值
type SearchRequest struct {
	KnowledgeBaseID string                    `json:"knowledge_base_id" validate:"required"`
	Query           string                    `json:"query" validate:"required"`
	Threshold       *float64                  `json:"threshold"`
	Limit           *int                      `json:"limit"`
	UseEnhanced     *bool                     `json:"use_enhanced"`
	Pipeline        *knowledge.PipelineConfig `json:"pipeline"`
}

// CreateKnowledgeBase 创建知识库，空参数用配置默认值填充
func (s *KnowledgeService) CreateKnowledgeBase(ctx context.Context, req CreateKnowledgeBaseRequest) (*models.KnowledgeBase, error) {
	if req.Name == "" {
		return nil, apperrors.NewValidationError("knowledge base name is required")
	}

	kc := s.cfg.Knowledge
	kb := &models.KnowledgeBase{
		Name:           req.Name,
		Description:    req.Description,
		EmbeddingModel: req.EmbeddingModel,
		Dimensions:     req.Dimensions,
		TopK:           req.TopK,
		ChunkSize:      req.ChunkSize,
		ChunkOverlap:   req.ChunkOverlap,
		Threshold:      req.Threshold,
	}
	if kb.EmbeddingModel == "" {
		kb.EmbeddingModel = kc.Embedding.Model
	}
	if kb.TopK <= 0 {
		kb.TopK = kc.TopK
	}
	if kb.ChunkSize <= 0 {
		kb.ChunkSize = kc.ChunkSize
	}
	if kb.ChunkOverlap <= 0 {
		kb.ChunkOverlap = kc.ChunkOverlap
	}
	if kb.Threshold <= 0 {
		kb.Threshold = kc.Threshold
	}
	if kb.Dimensions <= 0 {
		kb.Dimensions = s.embedder.Dimensions(ctx)
	}

	// 分块参数在创建时校验，不合法直接拒绝
	if _, err := knowledge.NewChunker(kb.ChunkSize, kb.ChunkOverlap); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(kb).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to create knowledge base").WithCause(err)
	}

	s.publish(ctx, events.Event{
		Type:            events.EventKnowledgeBaseCreated,
		KnowledgeBaseID: kb.ID,
	})
	logger.Info("knowledge base created",
		zap.String("id", kb.ID), zap.String("name", kb.Name),
		zap.Int("dimensions", kb.Dimensions))
	return kb, nil
}

// GetKnowledgeBase 获取单个知识库
func (s *KnowledgeService) GetKnowledgeBase(ctx context.Context, id string) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	if err := s.db.WithContext(ctx).First(&kb, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("knowledge base")
		}
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to load knowledge base").WithCause(err)
	}
	return &kb, nil
}

// ListKnowledgeBases 列出全部知识库
func (s *KnowledgeService) ListKnowledgeBases(ctx context.Context) ([]models.KnowledgeBase, error) {
	var bases []models.KnowledgeBase
	if err := s.db.WithContext(ctx).Order("create_time DESC").Find(&bases).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list knowledge bases").WithCause(err)
	}
	return bases, nil
}

// UpdateKnowledgeBase 部分更新知识库。已有块记录时拒绝修改模型或维度，
// 否则后写入的向量会和已有向量维度不一致。
func (s *KnowledgeService) UpdateKnowledgeBase(ctx context.Context, id string, req UpdateKnowledgeBaseRequest) (*models.KnowledgeBase, error) {
	kb, err := s.GetKnowledgeBase(ctx, id)
	if err != nil {
		return nil, err
	}

	modelChanged := req.EmbeddingModel != nil && *req.EmbeddingModel != kb.EmbeddingModel
	dimsChanged := req.Dimensions != nil && *req.Dimensions != kb.Dimensions
	if modelChanged || dimsChanged {
		var chunkCount int64
		if err := s.db.WithContext(ctx).Model(&models.KnowledgeChunk{}).
			Where("knowledge_base_id = ?", id).Count(&chunkCount).Error; err != nil {
			return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to count chunks").WithCause(err)
		}
		if chunkCount > 0 {
			return nil, apperrors.NewBusinessError(apperrors.ErrCodeConflict,
				"cannot change embedding model or dimensions while the knowledge base has chunks, recreate the knowledge base")
		}
	}

	if req.Name != nil {
		kb.Name = *req.Name
	}
	if req.Description != nil {
		kb.Description = *req.Description
	}
	if req.EmbeddingModel != nil {
		kb.EmbeddingModel = *req.EmbeddingModel
	}
	if req.Dimensions != nil {
		kb.Dimensions = *req.Dimensions
	}
	if req.TopK != nil {
		kb.TopK = *req.TopK
	}
	if req.ChunkSize != nil {
		kb.ChunkSize = *req.ChunkSize
	}
	if req.ChunkOverlap != nil {
		kb.ChunkOverlap = *req.ChunkOverlap
	}
	if req.Threshold != nil {
		kb.Threshold = *req.Threshold
	}

	if _, err := knowledge.NewChunker(kb.ChunkSize, kb.ChunkOverlap); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Save(kb).Error; err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to update knowledge base").WithCause(err)
	}

	s.publish(ctx, events.Event{
		Type:            events.EventKnowledgeBaseUpdated,
		KnowledgeBaseID: kb.ID,
	})
	return kb, nil
}

// DeleteKnowledgeBase 删除知识库并级联删除全部块记录
func (s *KnowledgeService) DeleteKnowledgeBase(ctx context.Context, id string) error {
	if _, err := s.GetKnowledgeBase(ctx, id); err != nil {
		return err
	}

	removed, err := s.store.DeleteByKnowledgeBase(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.KnowledgeBase{}, "id = ?", id).Error; err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to delete knowledge base").WithCause(err)
	}

	s.publish(ctx, events.Event{
		Type:            events.EventKnowledgeBaseDeleted,
		KnowledgeBaseID: id,
		Count:           int(removed),
	})
	logger.Info("knowledge base deleted",
		zap.String("id", id), zap.Int64("chunks_removed", removed))
	return nil
}

// AddDocument 将文档切块、向量化并写入存储。
// 块按顺序逐个向量化；单个块向量化失败时用伪随机向量兜底并打上降级标记，
// 不中断整篇文档的入库。
func (s *KnowledgeService) AddDocument(ctx context.Context, baseID, content string, meta SourceMeta) ([]models.KnowledgeChunk, error) {
	kb, err := s.GetKnowledgeBase(ctx, baseID)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, apperrors.NewValidationError("document content is empty")
	}

	chunker, err := knowledge.NewChunker(kb.ChunkSize, kb.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	pieces := chunker.Split(content)
	if len(pieces) == 0 {
		return nil, nil
	}

	dims := kb.Dimensions
	if dims <= 0 {
		dims = s.embedder.Dimensions(ctx)
	}

	stored := make([]models.KnowledgeChunk, 0, len(pieces))
	for i, piece := range pieces {
		vec, embedErr := s.embedder.Embed(ctx, piece.Text)
		degraded := false
		if embedErr != nil {
			vec = fallbackVector(dims)
			degraded = true
			metrics.IngestDegraded.WithLabelValues(baseID).Inc()
			logger.Warn("embedding failed, storing chunk with fallback vector",
				zap.String("knowledge_base_id", baseID),
				zap.Int("chunk_index", piece.Index),
				zap.Error(embedErr))
		}

		embeddingJSON, err := json.Marshal(vec)
		if err != nil {
			return nil, apperrors.NewSystemError(apperrors.ErrCodeInternalServer, "failed to encode embedding").WithCause(err)
		}

		chunk := models.KnowledgeChunk{
			ID:              uuid.NewString(),
			KnowledgeBaseID: baseID,
			Content:         piece.Text,
			Embedding:       string(embeddingJSON),
			ChunkIndex:      piece.Index,
			Source:          meta.Source,
			FileName:        meta.FileName,
			Degraded:        degraded,
			CreateTime:      time.Now(),
		}
		if err := s.store.Put(ctx, chunk); err != nil {
			return nil, err
		}

		metrics.ChunksIngested.WithLabelValues(baseID).Inc()
		s.publish(ctx, events.Event{
			Type:            events.EventDocumentChunkDone,
			KnowledgeBaseID: baseID,
			ChunkID:         chunk.ID,
			Current:         i + 1,
			Total:           len(pieces),
		})
		stored = append(stored, chunk)
	}

	s.publish(ctx, events.Event{
		Type:            events.EventDocumentsAdded,
		KnowledgeBaseID: baseID,
		Count:           len(stored),
	})
	logger.Info("document added",
		zap.String("knowledge_base_id", baseID),
		zap.String("source", meta.Source),
		zap.Int("chunks", len(stored)))
	return stored, nil
}

// Search 检索知识库。默认走增强管道，管道失败时回退到朴素相似度检索；
// UseEnhanced显式为false时直接走朴素检索。
func (s *KnowledgeService) Search(ctx context.Context, req SearchRequest) ([]knowledge.SearchResult, error) {
	if req.Query == "" {
		return nil, apperrors.NewValidationError("query is required")
	}

	kb, err := s.GetKnowledgeBase(ctx, req.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}

	threshold := kb.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	limit := kb.TopK
	if req.Limit != nil && *req.Limit > 0 {
		limit = *req.Limit
	}

	useEnhanced := req.UseEnhanced == nil || *req.UseEnhanced

	if cached, ok := s.cachedResults(ctx, kb.ID, req.Query, limit, threshold, useEnhanced); ok {
		metrics.SearchTotal.WithLabelValues(kb.ID, "cached").Inc()
		return cached, nil
	}

	start := time.Now()
	defer func() {
		metrics.SearchDuration.WithLabelValues(kb.ID).Observe(time.Since(start).Seconds())
	}()

	queryVec, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		dims := kb.Dimensions
		if dims <= 0 {
			dims = s.embedder.Dimensions(ctx)
		}
		queryVec = fallbackVector(dims)
		logger.Warn("query embedding failed, searching with fallback vector",
			zap.String("knowledge_base_id", kb.ID), zap.Error(err))
	}

	chunks, err := s.store.ListByKnowledgeBase(ctx, kb.ID)
	if err != nil {
		return nil, err
	}
	candidates, err := knowledge.CandidatesFromChunks(chunks)
	if err != nil {
		return nil, err
	}

	// 打分前先统一校验维度，混入异构向量是数据完整性问题，不能静默跳过
	for _, cand := range candidates {
		if len(cand.Vector) != len(queryVec) {
			return nil, apperrors.NewDimensionMismatchError(len(queryVec), len(cand.Vector))
		}
	}

	mode := "plain"
	var results []knowledge.SearchResult
	if useEnhanced {
		cfg := s.pipelineConfig(req.Pipeline)
		results, err = s.pipeline.Search(ctx, req.Query, queryVec, candidates, threshold, limit, cfg)
		if err != nil {
			logger.Warn("enhanced pipeline failed, falling back to plain search",
				zap.String("knowledge_base_id", kb.ID), zap.Error(err))
		} else {
			mode = "enhanced"
		}
	}
	if results == nil {
		results, err = s.engine.Search(queryVec, candidates, threshold, limit)
		if err != nil {
			return nil, err
		}
	}

	metrics.SearchTotal.WithLabelValues(kb.ID, mode).Inc()
	s.storeCachedResults(ctx, kb.ID, req.Query, limit, threshold, useEnhanced, results)
	return results, nil
}

// DeleteChunk 删除单个块，块不存在时返回false而不是报错
func (s *KnowledgeService) DeleteChunk(ctx context.Context, baseID, chunkID string) (bool, error) {
	if _, err := s.GetKnowledgeBase(ctx, baseID); err != nil {
		return false, err
	}

	deleted, err := s.store.DeleteByID(ctx, chunkID)
	if err != nil {
		return false, err
	}
	if deleted {
		s.publish(ctx, events.Event{
			Type:            events.EventDocumentDeleted,
			KnowledgeBaseID: baseID,
			ChunkID:         chunkID,
			Count:           1,
		})
	}
	return deleted, nil
}

// pipelineConfig 解析本次请求生效的管道配置：请求覆盖优先，其次全局配置
func (s *KnowledgeService) pipelineConfig(override *knowledge.PipelineConfig) knowledge.PipelineConfig {
	if override != nil {
		return *override
	}
	ec := s.cfg.Knowledge.Enhanced
	return knowledge.PipelineConfig{
		ExpandQuery:        ec.ExpandQuery,
		Hybrid:             ec.Hybrid,
		Diversity:          ec.Diversity,
		Rerank:             ec.Rerank,
		MaxCandidates:      ec.MaxCandidates,
		DiversityThreshold: ec.DiversityThreshold,
	}
}

// searchCacheKey 缓存键带上本次生效的阈值和检索模式，
// 同一查询换设置后不能命中旧结果
func (s *KnowledgeService) searchCacheKey(baseID, query string, limit int, threshold float64, enhanced bool) string {
	return fmt.Sprintf("knowledge:search:%s:%s:%d:%g:%t", baseID, query, limit, threshold, enhanced)
}

// cachedResults 尝试从Redis取缓存的搜索结果
func (s *KnowledgeService) cachedResults(ctx context.Context, baseID, query string, limit int, threshold float64, enhanced bool) ([]knowledge.SearchResult, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, s.searchCacheKey(baseID, query, limit, threshold, enhanced)).Result()
	if err != nil {
		return nil, false
	}
	var results []knowledge.SearchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, false
	}
	return results, true
}

// storeCachedResults 缓存搜索结果，5分钟过期
func (s *KnowledgeService) storeCachedResults(ctx context.Context, baseID, query string, limit int, threshold float64, enhanced bool, results []knowledge.SearchResult) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	ttl := time.Duration(s.cfg.Redis.TTL) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if err := s.redis.Set(ctx, s.searchCacheKey(baseID, query, limit, threshold, enhanced), data, ttl).Err(); err != nil {
		logger.Warn("failed to cache search results", zap.Error(err))
	}
}

// publish 发事件，失败只记日志不影响主流程
func (s *KnowledgeService) publish(ctx context.Context, event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish knowledge event",
			zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// fallbackVector 生成伪随机兜底向量，保证降级块仍可参与检索
func fallbackVector(dims int) []float32 {
	if dims <= 0 {
		dims = 1536
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = rand.Float32()*2 - 1
	}
	return vec
}
