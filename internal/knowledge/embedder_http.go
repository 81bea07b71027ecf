package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
)

// HTTPEmbedder 调用任意OpenAI风格的embedding HTTP端点
type HTTPEmbedder struct {
	client  *http.Client
	ref     ModelRef
	limiter sync.Mutex
}

// NewHTTPEmbedder 创建通用HTTP嵌入向量生成器
func NewHTTPEmbedder(ref ModelRef) *HTTPEmbedder {
	return &HTTPEmbedder{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		ref: ref,
	}
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewEmbeddingError("text is empty")
	}

	e.limiter.Lock()
	defer e.limiter.Unlock()

	payload, err := json.Marshal(map[string]interface{}{
		"model": e.ref.Model,
		"input": text,
	})
	if err != nil {
		return nil, apperrors.NewEmbeddingError("failed to encode embedding request").WithCause(err)
	}

	url := strings.TrimRight(e.ref.BaseURL, "/") + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewEmbeddingError("failed to create embedding request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.ref.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.ref.APIKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewEmbeddingError("embedding request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewEmbeddingError("failed to read embedding response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewEmbeddingError("embedding endpoint returned HTTP " + resp.Status)
	}

	return parseEmbeddingPayload(body)
}

// parseEmbeddingPayload 按固定顺序尝试三种已知响应形态：
// OpenAI风格 {data:[{embedding:[...]}]}，单对象 {embedding:[...]}，裸数组 [...]。
// 都不匹配时报解析失败，不做进一步的结构猜测。
func parseEmbeddingPayload(body []byte) ([]float32, error) {
	var openaiShape struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &openaiShape); err == nil && len(openaiShape.Data) > 0 && len(openaiShape.Data[0].Embedding) > 0 {
		return openaiShape.Data[0].Embedding, nil
	}

	var objectShape struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &objectShape); err == nil && len(objectShape.Embedding) > 0 {
		return objectShape.Embedding, nil
	}

	var bare []float32
	if err := json.Unmarshal(body, &bare); err == nil && len(bare) > 0 {
		return bare, nil
	}

	return nil, apperrors.NewEmbeddingError("unrecognized embedding response shape")
}

func (e *HTTPEmbedder) Dimensions(ctx context.Context) int {
	return probeDimensions(ctx, e.ref.Dimensions, e.ref.Model, e.Embed)
}

func (e *HTTPEmbedder) Ready() bool {
	return e.ref.BaseURL != ""
}
