package knowledge

import (
	"context"
	"sort"
	"sync"

	"github.com/aihub/knowledge-go/internal/models"
)

// MemoryVectorStore 进程内存储，用于单机模式和测试
type MemoryVectorStore struct {
	mu     sync.RWMutex
	chunks map[string]models.KnowledgeChunk
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{
		chunks: make(map[string]models.KnowledgeChunk),
	}
}

func (s *MemoryVectorStore) Put(ctx context.Context, chunk models.KnowledgeChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.ID] = chunk
	return nil
}

func (s *MemoryVectorStore) DeleteByKnowledgeBase(ctx context.Context, baseID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, chunk := range s.chunks {
		if chunk.KnowledgeBaseID == baseID {
			delete(s.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryVectorStore) DeleteByID(ctx context.Context, chunkID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[chunkID]; !ok {
		return false, nil
	}
	delete(s.chunks, chunkID)
	return true, nil
}

func (s *MemoryVectorStore) ListByKnowledgeBase(ctx context.Context, baseID string) ([]models.KnowledgeChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.KnowledgeChunk
	for _, chunk := range s.chunks {
		if chunk.KnowledgeBaseID == baseID {
			result = append(result, chunk)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChunkIndex < result[j].ChunkIndex
	})
	return result, nil
}

func (s *MemoryVectorStore) Ready() bool {
	return true
}

// Len 当前存储的块数量
func (s *MemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
