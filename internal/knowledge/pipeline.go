package knowledge

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/aihub/knowledge-go/internal/logger"
)

// 混合打分的固定权重
const (
	vectorWeight  = 0.7
	lexicalWeight = 0.3
)

// PipelineConfig 增强检索管道的阶段开关
type PipelineConfig struct {
	ExpandQuery        bool    `json:"expand_query"`
	Hybrid             bool    `json:"hybrid"`
	Diversity          bool    `json:"diversity"`
	Rerank             bool    `json:"rerank"`
	MaxCandidates      int     `json:"max_candidates"`
	DiversityThreshold float64 `json:"diversity_threshold"`
}

// DefaultPipelineConfig 默认启用扩写、混合、多样性，关闭rerank
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ExpandQuery:        true,
		Hybrid:             true,
		Diversity:          true,
		Rerank:             false,
		MaxCandidates:      50,
		DiversityThreshold: 0.92,
	}
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 50
	}
	if c.DiversityThreshold <= 0 {
		c.DiversityThreshold = 0.92
	}
	return c
}

// EnhancedRetrievalPipeline 在朴素相似度检索之上叠加扩写、混合打分、
// 多样性过滤和重排。每个阶段失败都在阶段边界捕获并回退到上一阶段的输出，
// 全部失败时结果等价于朴素检索。
type EnhancedRetrievalPipeline struct {
	engine   *SimilarityEngine
	embedder Embedder
	expander QueryExpander
	reranker Reranker
}

// NewEnhancedRetrievalPipeline 创建增强检索管道
func NewEnhancedRetrievalPipeline(engine *SimilarityEngine, embedder Embedder, expander QueryExpander, reranker Reranker) *EnhancedRetrievalPipeline {
	if expander == nil {
		expander = &NoopQueryExpander{}
	}
	if reranker == nil {
		reranker = &NoopReranker{}
	}
	return &EnhancedRetrievalPipeline{
		engine:   engine,
		embedder: embedder,
		expander: expander,
		reranker: reranker,
	}
}

// Search 执行增强检索。queryVec是已算好的查询向量，candidates是知识库的全部候选块。
func (p *EnhancedRetrievalPipeline) Search(ctx context.Context, query string, queryVec []float32, candidates []Candidate, threshold float64, limit int, cfg PipelineConfig) ([]SearchResult, error) {
	cfg = cfg.withDefaults()

	// 基线：朴素相似度检索，作为所有阶段失败时的兜底。
	// 候选池按MaxCandidates取宽，截断到limit留到最后一步，
	// 多样性过滤等中间阶段必须看到完整的候选池
	results, err := p.engine.Search(queryVec, candidates, threshold, cfg.MaxCandidates)
	if err != nil {
		return nil, err
	}

	// 阶段1：查询扩写
	queries := []string{query}
	queryVecs := [][]float32{queryVec}
	if cfg.ExpandQuery {
		variants, err := p.expander.Expand(ctx, query)
		if err != nil {
			logger.Warn("query expansion failed, using original query only",
				zap.String("query", query), zap.Error(err))
		} else {
			for _, variant := range variants {
				vec, err := p.embedder.Embed(ctx, variant)
				if err != nil {
					logger.Warn("failed to embed query variant, skipping",
						zap.String("variant", variant), zap.Error(err))
					continue
				}
				queries = append(queries, variant)
				queryVecs = append(queryVecs, vec)
			}
		}
	}

	// 阶段2：多变体检索与混合打分
	if cfg.ExpandQuery || cfg.Hybrid {
		merged, err := p.mergeSearch(queries, queryVecs, candidates, threshold, cfg)
		if err != nil {
			logger.Warn("hybrid search stage failed, keeping previous results", zap.Error(err))
		} else {
			results = merged
		}
	}

	// 阶段3：多样性过滤
	if cfg.Diversity && len(results) > 1 {
		filtered, err := applyDiversity(results, vectorsByChunkID(candidates), cfg.DiversityThreshold)
		if err != nil {
			logger.Warn("diversity stage failed, keeping previous results", zap.Error(err))
		} else {
			results = filtered
		}
	}

	// 阶段4：重排序
	if cfg.Rerank && len(results) > 0 {
		reranked, err := p.applyRerank(ctx, query, results)
		if err != nil {
			logger.Warn("rerank stage failed, keeping previous results", zap.Error(err))
		} else {
			results = reranked
		}
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// mergeSearch 对每个查询变体做向量检索，可选叠加词面重合度，
// 按chunk去重保留最高混合分，最后按分数降序排序。
func (p *EnhancedRetrievalPipeline) mergeSearch(queries []string, queryVecs [][]float32, candidates []Candidate, threshold float64, cfg PipelineConfig) ([]SearchResult, error) {
	best := make(map[string]SearchResult)
	var order []string

	for i, qv := range queryVecs {
		matches, err := p.engine.Search(qv, candidates, threshold, cfg.MaxCandidates)
		if err != nil {
			return nil, err
		}

		queryTerms := tokenize(queries[i])
		for _, m := range matches {
			if cfg.Hybrid {
				m.LexicalScore = termOverlap(queryTerms, tokenize(m.Content))
				m.Score = vectorWeight*m.VectorScore + lexicalWeight*m.LexicalScore
			}
			prev, seen := best[m.ChunkID]
			if !seen {
				order = append(order, m.ChunkID)
			}
			if !seen || m.Score > prev.Score {
				best[m.ChunkID] = m
			}
		}
	}

	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		results = append(results, best[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// applyDiversity 贪心遍历按分数排好的结果，只保留与所有已保留结果
// 两两相似度都低于阈值的条目
func applyDiversity(results []SearchResult, vectors map[string][]float32, diversityThreshold float64) ([]SearchResult, error) {
	kept := make([]SearchResult, 0, len(results))
	for _, cand := range results {
		candVec, ok := vectors[cand.ChunkID]
		if !ok {
			kept = append(kept, cand)
			continue
		}

		diverse := true
		for _, k := range kept {
			keptVec, ok := vectors[k.ChunkID]
			if !ok {
				continue
			}
			sim, err := CosineSimilarity(candVec, keptVec)
			if err != nil {
				return nil, err
			}
			if sim >= diversityThreshold {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, cand)
		}
	}
	return kept, nil
}

// applyRerank 把当前结果交给重排器重新打分排序，重排只调整顺序不会增加结果
func (p *EnhancedRetrievalPipeline) applyRerank(ctx context.Context, query string, results []SearchResult) ([]SearchResult, error) {
	docs := make([]RerankDocument, len(results))
	byID := make(map[string]SearchResult, len(results))
	for i, r := range results {
		docs[i] = RerankDocument{ID: r.ChunkID, Content: r.Content, Score: r.Score}
		byID[r.ChunkID] = r
	}

	reranked, err := p.reranker.Rerank(ctx, query, docs)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(reranked))
	for _, rr := range reranked {
		orig, ok := byID[rr.Document.ID]
		if !ok {
			continue
		}
		orig.Score = rr.Score
		out = append(out, orig)
	}
	return out, nil
}

// vectorsByChunkID 建立chunk到向量的索引，供多样性过滤使用
func vectorsByChunkID(candidates []Candidate) map[string][]float32 {
	vectors := make(map[string][]float32, len(candidates))
	for _, c := range candidates {
		vectors[c.ChunkID] = c.Vector
	}
	return vectors
}
