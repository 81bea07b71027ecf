package knowledge

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbedCacheSize 默认缓存容量
const DefaultEmbedCacheSize = 100

// CachingEmbedder 用LRU缓存包装任意Embedder，命中时不触发provider调用。
// 失败结果直接返回，不写入缓存。
type CachingEmbedder struct {
	inner   Embedder
	modelID string
	cache   *lru.Cache[string, []float32]
}

// NewCachingEmbedder 创建带缓存的embedder，capacity<=0时使用默认容量
func NewCachingEmbedder(inner Embedder, modelID string, capacity int) *CachingEmbedder {
	if capacity <= 0 {
		capacity = DefaultEmbedCacheSize
	}
	cache, _ := lru.New[string, []float32](capacity)
	return &CachingEmbedder{
		inner:   inner,
		modelID: modelID,
		cache:   cache,
	}
}

func (c *CachingEmbedder) cacheKey(text string) string {
	// 模型与文本之间用NUL分隔，避免拼接歧义
	return c.modelID + "\x00" + text
}

func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	c.cache.Add(key, stored)
	return vec, nil
}

func (c *CachingEmbedder) Dimensions(ctx context.Context) int {
	return c.inner.Dimensions(ctx)
}

func (c *CachingEmbedder) Ready() bool {
	return c.inner.Ready()
}

// Len 当前缓存条目数
func (c *CachingEmbedder) Len() int {
	return c.cache.Len()
}
