package knowledge

import (
	"context"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/dashscope"
)

// ModelRef 已解析的embedding模型描述
type ModelRef struct {
	Provider   string // openai | dashscope | http
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int // 0 表示未声明，由provider探测
}

// ID 缓存键使用的模型标识
func (r ModelRef) ID() string {
	return r.Provider + "/" + r.Model
}

// Embedder 定义文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions(ctx context.Context) int
	Ready() bool
}

// modelDimensions 已知模型的向量宽度，探测失败时的静态兜底
var modelDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
	"text-embedding-v1":      1536,
	"text-embedding-v2":      1536,
	"text-embedding-v3":      1536,
	"text-embedding-v4":      1536,
}

const defaultDimensions = 1536

// staticDimensions 查静态表，未知模型返回默认宽度
func staticDimensions(model string) int {
	if dims, ok := modelDimensions[model]; ok {
		return dims
	}
	return defaultDimensions
}

// probeDimensions 先用声明宽度，否则发一次探测请求量出实际宽度，
// 失败时退回静态表。该函数从不返回错误。
func probeDimensions(ctx context.Context, declared int, model string, embed func(context.Context, string) ([]float32, error)) int {
	if declared > 0 {
		return declared
	}
	if vec, err := embed(ctx, "dimension probe"); err == nil && len(vec) > 0 {
		// 探测被取消时丢弃结果
		if ctx.Err() == nil {
			return len(vec)
		}
	}
	return staticDimensions(model)
}

// NewEmbedder 根据Provider标签选择实现。
// 未配置密钥或端点时退化为NoopEmbedder。
func NewEmbedder(ref ModelRef) Embedder {
	switch ref.Provider {
	case "openai":
		if strings.TrimSpace(ref.APIKey) != "" {
			return NewOpenAIEmbedder(ref)
		}
	case "dashscope":
		if svc := dashscope.NewService(ref.APIKey); svc != nil {
			return NewDashScopeEmbedder(svc, ref)
		}
	default:
		if strings.TrimSpace(ref.BaseURL) != "" {
			return NewHTTPEmbedder(ref)
		}
	}
	return &NoopEmbedder{}
}

// NoopEmbedder 未配置provider时的占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, apperrors.NewEmbeddingError("embedding provider not configured")
}

func (n *NoopEmbedder) Dimensions(ctx context.Context) int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

// OpenAIEmbedder 使用OpenAI Embedding API
type OpenAIEmbedder struct {
	client  *openai.Client
	ref     ModelRef
	limiter sync.Mutex
}

// NewOpenAIEmbedder 创建OpenAI嵌入向量生成器
func NewOpenAIEmbedder(ref ModelRef) *OpenAIEmbedder {
	if ref.Model == "" {
		ref.Model = "text-embedding-3-small"
	}

	cfg := openai.DefaultConfig(strings.TrimSpace(ref.APIKey))
	if ref.BaseURL != "" {
		cfg.BaseURL = ref.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		ref:    ref,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewEmbeddingError("text is empty")
	}
	if e.client == nil {
		return nil, apperrors.NewEmbeddingError("openai client not initialized")
	}

	e.limiter.Lock()
	defer e.limiter.Unlock()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.ref.Model),
		Input: []string{text},
	})
	if err != nil {
		return nil, apperrors.NewEmbeddingError("openai embedding request failed").WithCause(err)
	}
	if len(resp.Data) == 0 {
		return nil, apperrors.NewEmbeddingError("openai embedding response empty")
	}

	embedding := resp.Data[0].Embedding
	result := make([]float32, len(embedding))
	copy(result, embedding)
	return result, nil
}

func (e *OpenAIEmbedder) Dimensions(ctx context.Context) int {
	return probeDimensions(ctx, e.ref.Dimensions, e.ref.Model, e.Embed)
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}
