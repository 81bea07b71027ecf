package knowledge

import (
	"context"

	"github.com/aihub/knowledge-go/internal/models"
)

// VectorStore 向量存储边界。
// 存储只负责按知识库保存和取回块记录，不做任何排序或相似度计算，
// 检索逻辑全部在SimilarityEngine和pipeline里。
type VectorStore interface {
	// Put 按ID幂等写入块记录
	Put(ctx context.Context, chunk models.KnowledgeChunk) error
	// DeleteByKnowledgeBase 级联删除知识库下全部块，返回删除数量
	DeleteByKnowledgeBase(ctx context.Context, baseID string) (int64, error)
	// DeleteByID 删除单个块，记录不存在时返回false
	DeleteByID(ctx context.Context, chunkID string) (bool, error)
	// ListByKnowledgeBase 按chunk_index顺序取回知识库下全部块
	ListByKnowledgeBase(ctx context.Context, baseID string) ([]models.KnowledgeChunk, error)
	Ready() bool
}
