package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/knowledge-go/internal/models"
)

func TestMemoryStorePutAndList(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	// 乱序写入，读取时按chunk_index排序
	for _, idx := range []int{2, 0, 1} {
		err := store.Put(ctx, models.KnowledgeChunk{
			ID:              string(rune('a' + idx)),
			KnowledgeBaseID: "kb-1",
			Content:         "chunk",
			ChunkIndex:      idx,
		})
		require.NoError(t, err)
	}

	chunks, err := store.ListByKnowledgeBase(ctx, "kb-1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
	}
}

func TestMemoryStorePutIsIdempotent(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	chunk := models.KnowledgeChunk{ID: "c1", KnowledgeBaseID: "kb-1", Content: "v1"}
	require.NoError(t, store.Put(ctx, chunk))
	chunk.Content = "v2"
	require.NoError(t, store.Put(ctx, chunk))

	assert.Equal(t, 1, store.Len())
	chunks, err := store.ListByKnowledgeBase(ctx, "kb-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", chunks[0].Content)
}

func TestMemoryStoreDeleteByKnowledgeBase(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, models.KnowledgeChunk{ID: "a", KnowledgeBaseID: "kb-1"}))
	require.NoError(t, store.Put(ctx, models.KnowledgeChunk{ID: "b", KnowledgeBaseID: "kb-1"}))
	require.NoError(t, store.Put(ctx, models.KnowledgeChunk{ID: "c", KnowledgeBaseID: "kb-2"}))

	deleted, err := store.DeleteByKnowledgeBase(ctx, "kb-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreDeleteByID(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, models.KnowledgeChunk{ID: "a", KnowledgeBaseID: "kb-1"}))

	deleted, err := store.DeleteByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	// 再删同一个块报告no-op
	deleted, err = store.DeleteByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, deleted)
}
