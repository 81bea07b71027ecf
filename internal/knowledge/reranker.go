package knowledge

import (
	"context"
	"sort"
	"strings"
)

// Reranker 重排序接口。只重排或过滤已有结果，从不添加新结果。
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []RerankDocument) ([]RerankResult, error)
	Ready() bool
}

// RerankDocument 待重排序的文档
type RerankDocument struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"` // 原始分数
}

// RerankResult 重排序结果
type RerankResult struct {
	Document RerankDocument `json:"document"`
	Score    float64        `json:"score"` // 重排序后的分数
	Rank     int            `json:"rank"`  // 重排序后的排名
}

// NoopReranker 默认占位实现，保持原有顺序
type NoopReranker struct{}

func (n *NoopReranker) Rerank(ctx context.Context, query string, documents []RerankDocument) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		results[i] = RerankResult{
			Document: doc,
			Score:    doc.Score,
			Rank:     i + 1,
		}
	}
	return results, nil
}

func (n *NoopReranker) Ready() bool {
	return false
}

// HeuristicReranker 无外部服务时的启发式重排：
// 用查询词覆盖率微调原始分数，覆盖率高的文档小幅提升。
type HeuristicReranker struct{}

func (h *HeuristicReranker) Rerank(ctx context.Context, query string, documents []RerankDocument) ([]RerankResult, error) {
	queryTerms := tokenize(query)

	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		overlap := termOverlap(queryTerms, tokenize(doc.Content))
		results[i] = RerankResult{
			Document: doc,
			Score:    doc.Score*0.8 + overlap*0.2,
		}
	}

	sortRerankResults(results)
	return results, nil
}

func (h *HeuristicReranker) Ready() bool {
	return true
}

// sortRerankResults 按分数降序稳定排序并填充排名
func sortRerankResults(results []RerankResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}

// tokenize 小写分词
func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// termOverlap 查询词在文档词集中的覆盖率，query∩doc / query
func termOverlap(queryTerms, docTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docSet := make(map[string]struct{}, len(docTerms))
	for _, t := range docTerms {
		docSet[t] = struct{}{}
	}
	var hits int
	for _, t := range queryTerms {
		if _, ok := docSet[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}
