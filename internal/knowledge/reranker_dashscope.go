package knowledge

import (
	"context"
	"strings"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/dashscope"
)

// DashScopeReranker 使用阿里云DashScope Rerank API（基于统一服务）
type DashScopeReranker struct {
	service *dashscope.Service
	model   string
}

// NewDashScopeReranker 创建DashScope重排序器，服务不可用时退化为Noop
func NewDashScopeReranker(service *dashscope.Service, model string) Reranker {
	if service == nil || !service.Ready() {
		return &NoopReranker{}
	}
	if model == "" {
		model = "gte-rerank"
	}
	return &DashScopeReranker{
		service: service,
		model:   model,
	}
}

func (r *DashScopeReranker) Rerank(ctx context.Context, query string, documents []RerankDocument) ([]RerankResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidationError("query cannot be empty")
	}
	if len(documents) == 0 {
		return nil, apperrors.NewValidationError("documents cannot be empty")
	}
	if r.service == nil || !r.service.Ready() {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeExternalService, "dashscope service not initialized")
	}

	docContents := make([]string, len(documents))
	for i, doc := range documents {
		docContents[i] = doc.Content
	}

	resp, err := r.service.CreateRerank(ctx, dashscope.RerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docContents,
	})
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeExternalService, "rerank request failed").WithCause(err)
	}
	if len(resp.Output.Results) == 0 {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeExternalService, "rerank response empty")
	}

	// index -> score
	scoreMap := make(map[int]float64, len(resp.Output.Results))
	for _, result := range resp.Output.Results {
		scoreMap[result.Index] = result.RelevanceScore
	}

	results := make([]RerankResult, 0, len(documents))
	for i, doc := range documents {
		results = append(results, RerankResult{
			Document: doc,
			Score:    scoreMap[i],
		})
	}

	sortRerankResults(results)
	return results, nil
}

func (r *DashScopeReranker) Ready() bool {
	return r.service != nil && r.service.Ready()
}
