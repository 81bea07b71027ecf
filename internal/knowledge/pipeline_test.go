package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExpander 固定返回的查询扩写替身
type stubExpander struct {
	variants []string
	err      error
}

func (s *stubExpander) Expand(ctx context.Context, query string) ([]string, error) {
	return s.variants, s.err
}

// stubReranker 倒序重排，用于验证rerank阶段生效
type stubReranker struct {
	err error
}

func (s *stubReranker) Rerank(ctx context.Context, query string, documents []RerankDocument) ([]RerankResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	results := make([]RerankResult, 0, len(documents))
	for i := len(documents) - 1; i >= 0; i-- {
		results = append(results, RerankResult{
			Document: documents[i],
			Score:    float64(len(documents) - i),
			Rank:     len(documents) - i,
		})
	}
	return results, nil
}

func (s *stubReranker) Ready() bool {
	return true
}

func pipelineFixture(expander QueryExpander, reranker Reranker, embedVec []float32) *EnhancedRetrievalPipeline {
	return NewEnhancedRetrievalPipeline(
		NewSimilarityEngine(),
		&stubEmbedder{vector: embedVec, dims: len(embedVec)},
		expander,
		reranker,
	)
}

func TestPipelineAllStagesFailEqualsPlainSearch(t *testing.T) {
	query := []float32{1, 0}
	candidates := makeCandidates(
		[]float32{1, 0},
		[]float32{1, 1},
		[]float32{0.9, 0.1},
	)

	engine := NewSimilarityEngine()
	plain, err := engine.Search(query, candidates, 0.3, 5)
	require.NoError(t, err)

	pipeline := pipelineFixture(
		&stubExpander{err: errors.New("llm unavailable")},
		&stubReranker{err: errors.New("rerank unavailable")},
		query,
	)
	cfg := PipelineConfig{
		ExpandQuery: true,
		Hybrid:      false,
		Diversity:   false,
		Rerank:      true,
	}

	enhanced, err := pipeline.Search(context.Background(), "query", query, candidates, 0.3, 5, cfg)
	require.NoError(t, err)
	assert.Equal(t, plain, enhanced)
}

func TestPipelineDisabledStagesEqualsPlainSearch(t *testing.T) {
	query := []float32{1, 0}
	candidates := makeCandidates(
		[]float32{1, 0},
		[]float32{0.5, 0.5},
	)

	engine := NewSimilarityEngine()
	plain, err := engine.Search(query, candidates, 0, 5)
	require.NoError(t, err)

	pipeline := pipelineFixture(&NoopQueryExpander{}, &NoopReranker{}, query)
	enhanced, err := pipeline.Search(context.Background(), "query", query, candidates, 0, 5, PipelineConfig{})
	require.NoError(t, err)
	assert.Equal(t, plain, enhanced)
}

func TestPipelineHybridBoostsLexicalMatches(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ChunkID: "vector-only", Content: "completely unrelated words", Vector: []float32{1, 0.1}},
		{ChunkID: "lexical-match", Content: "database migration guide", Vector: []float32{1, 0.15}},
	}

	pipeline := pipelineFixture(&NoopQueryExpander{}, &NoopReranker{}, query)
	cfg := PipelineConfig{Hybrid: true}

	results, err := pipeline.Search(context.Background(), "database migration guide", query, candidates, 0, 5, cfg)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// 词面全匹配的块混合分更高，反超向量分略高的块
	assert.Equal(t, "lexical-match", results[0].ChunkID)
	assert.Equal(t, 1.0, results[0].LexicalScore)
	assert.Equal(t, 0.0, results[1].LexicalScore)
	assert.InDelta(t, vectorWeight*results[0].VectorScore+lexicalWeight, results[0].Score, 1e-9)
}

func TestPipelineExpansionMergesAndDedupes(t *testing.T) {
	query := []float32{1, 0}
	// 变体向量指向另一个方向，能召回原查询召回不到的块
	variantVec := []float32{0, 1}
	candidates := makeCandidates(
		[]float32{1, 0},
		[]float32{0, 1},
	)

	pipeline := NewEnhancedRetrievalPipeline(
		NewSimilarityEngine(),
		&stubEmbedder{vector: variantVec, dims: 2},
		&stubExpander{variants: []string{"rephrased query"}},
		&NoopReranker{},
	)
	cfg := PipelineConfig{ExpandQuery: true}

	results, err := pipeline.Search(context.Background(), "query", query, candidates, 0.5, 5, cfg)
	require.NoError(t, err)

	// 原查询命中a，变体命中b，去重合并
	require.Len(t, results, 2)
	ids := []string{results[0].ChunkID, results[1].ChunkID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestPipelineDiversityFiltersNearDuplicates(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ChunkID: "first", Content: "first", Vector: []float32{1, 0}},
		{ChunkID: "duplicate", Content: "near duplicate", Vector: []float32{1, 0.001}},
		{ChunkID: "different", Content: "different topic", Vector: []float32{0.5, 0.8}},
	}

	pipeline := pipelineFixture(&NoopQueryExpander{}, &NoopReranker{}, query)
	cfg := PipelineConfig{Diversity: true, DiversityThreshold: 0.92}

	results, err := pipeline.Search(context.Background(), "query", query, candidates, 0, 5, cfg)
	require.NoError(t, err)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ChunkID)
	}
	assert.Equal(t, []string{"first", "different"}, ids)
}

func TestPipelineDiversityRunsBeforeLimitTruncation(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ChunkID: "dup1", Content: "first copy", Vector: []float32{1, 0}},
		{ChunkID: "dup2", Content: "second copy", Vector: []float32{1, 0.001}},
		{ChunkID: "other", Content: "different topic", Vector: []float32{0.5, 0.8}},
	}

	pipeline := pipelineFixture(&NoopQueryExpander{}, &NoopReranker{}, query)
	cfg := PipelineConfig{Diversity: true, DiversityThreshold: 0.95}

	// limit小于近重复的数量：多样性过滤必须在完整候选池上跑，
	// 否则近重复块占满limit，不相似的块被挤掉
	results, err := pipeline.Search(context.Background(), "query", query, candidates, 0, 2, cfg)
	require.NoError(t, err)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ChunkID)
	}
	assert.Equal(t, []string{"dup1", "other"}, ids)
}

func TestPipelineRerankReordersOnly(t *testing.T) {
	query := []float32{1, 0}
	candidates := makeCandidates(
		[]float32{1, 0},
		[]float32{1, 0.2},
		[]float32{1, 0.5},
	)

	pipeline := pipelineFixture(&NoopQueryExpander{}, &stubReranker{}, query)
	cfg := PipelineConfig{Rerank: true}

	results, err := pipeline.Search(context.Background(), "query", query, candidates, 0, 5, cfg)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// 替身重排器倒转顺序，但不增加结果
	assert.Equal(t, "c", results[0].ChunkID)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.Equal(t, "a", results[2].ChunkID)
}

func TestPipelineFinalTruncationToLimit(t *testing.T) {
	query := []float32{1, 0}
	candidates := makeCandidates(
		[]float32{1, 0},
		[]float32{1, 0.1},
		[]float32{1, 0.2},
		[]float32{1, 0.3},
	)

	pipeline := pipelineFixture(&NoopQueryExpander{}, &NoopReranker{}, query)
	cfg := PipelineConfig{Hybrid: true, MaxCandidates: 50}

	results, err := pipeline.Search(context.Background(), "query", query, candidates, 0, 2, cfg)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHeuristicReranker(t *testing.T) {
	reranker := &HeuristicReranker{}
	docs := []RerankDocument{
		{ID: "1", Content: "nothing in common", Score: 0.9},
		{ID: "2", Content: "exact query terms here", Score: 0.85},
	}

	results, err := reranker.Rerank(context.Background(), "exact query terms", docs)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "2", results[0].Document.ID)
	assert.Equal(t, 1, results[0].Rank)
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()
	assert.True(t, cfg.ExpandQuery)
	assert.True(t, cfg.Hybrid)
	assert.True(t, cfg.Diversity)
	assert.False(t, cfg.Rerank)
	assert.Equal(t, 50, cfg.MaxCandidates)
	assert.Equal(t, 0.92, cfg.DiversityThreshold)
}
