package knowledge

import (
	"context"
	"strings"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/dashscope"
)

// DashScopeEmbedder 使用阿里云DashScope Embedding API（基于统一服务）
type DashScopeEmbedder struct {
	service *dashscope.Service
	ref     ModelRef
}

// NewDashScopeEmbedder 创建DashScope嵌入向量生成器
func NewDashScopeEmbedder(service *dashscope.Service, ref ModelRef) Embedder {
	if service == nil || !service.Ready() {
		return &NoopEmbedder{}
	}
	if ref.Model == "" {
		ref.Model = "text-embedding-v1"
	}
	return &DashScopeEmbedder{
		service: service,
		ref:     ref,
	}
}

func (e *DashScopeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewEmbeddingError("text is empty")
	}
	if e.service == nil || !e.service.Ready() {
		return nil, apperrors.NewEmbeddingError("dashscope service not initialized")
	}

	req := dashscope.EmbeddingRequest{
		Model: e.ref.Model,
		Input: []string{text},
	}
	// v3/v4模型支持自定义维度
	if e.ref.Dimensions > 0 && (e.ref.Model == "text-embedding-v3" || e.ref.Model == "text-embedding-v4") {
		req.Dimensions = &e.ref.Dimensions
	}

	resp, err := e.service.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, apperrors.NewEmbeddingError("dashscope embedding request failed").WithCause(err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.NewEmbeddingError("dashscope embedding response empty")
	}

	// 转换float64到float32
	embedding := resp.Data[0].Embedding
	result := make([]float32, len(embedding))
	for i, v := range embedding {
		result[i] = float32(v)
	}
	return result, nil
}

func (e *DashScopeEmbedder) Dimensions(ctx context.Context) int {
	return probeDimensions(ctx, e.ref.Dimensions, e.ref.Model, e.Embed)
}

func (e *DashScopeEmbedder) Ready() bool {
	return e.service != nil && e.service.Ready()
}
