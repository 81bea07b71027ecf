package knowledge

import (
	"encoding/json"
	"math"
	"sort"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/models"
)

// ResultMetadata 搜索结果携带的来源信息
type ResultMetadata struct {
	Source     string `json:"source,omitempty"`
	FileName   string `json:"file_name,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
}

// Candidate 参与相似度计算的候选块
type Candidate struct {
	ChunkID  string
	Content  string
	Vector   []float32
	Degraded bool
	Metadata ResultMetadata
}

// SearchResult 单条搜索结果
type SearchResult struct {
	ChunkID      string         `json:"chunk_id"`
	Content      string         `json:"content"`
	Score        float64        `json:"score"`
	VectorScore  float64        `json:"vector_score"`
	LexicalScore float64        `json:"lexical_score,omitempty"`
	Degraded     bool           `json:"degraded,omitempty"`
	Metadata     ResultMetadata `json:"metadata"`
}

// CandidatesFromChunks 解码存储记录的JSON向量列，转为候选块
func CandidatesFromChunks(chunks []models.KnowledgeChunk) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(chunks))
	for _, chunk := range chunks {
		var vec []float32
		if chunk.Embedding != "" {
			if err := json.Unmarshal([]byte(chunk.Embedding), &vec); err != nil {
				return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError,
					"failed to decode stored embedding").WithCause(err)
			}
		}
		candidates = append(candidates, Candidate{
			ChunkID:  chunk.ID,
			Content:  chunk.Content,
			Vector:   vec,
			Degraded: chunk.Degraded,
			Metadata: ResultMetadata{
				Source:     chunk.Source,
				FileName:   chunk.FileName,
				ChunkIndex: chunk.ChunkIndex,
			},
		})
	}
	return candidates, nil
}

// CosineSimilarity 计算两个向量的余弦相似度。
// 长度不一致属于数据完整性错误，必须上抛；零向量相似度为0。
// 用float64累加避免长向量上的精度损失。
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperrors.NewDimensionMismatchError(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// 浮点误差可能略微越界
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// SimilarityEngine 朴素的全量余弦相似度检索
type SimilarityEngine struct{}

// NewSimilarityEngine 创建相似度检索引擎
func NewSimilarityEngine() *SimilarityEngine {
	return &SimilarityEngine{}
}

// Search 对所有候选块打分，过滤低于threshold的结果，按分数降序排序后截断到limit。
// 分数相同的结果保持候选块的原始顺序。任何一个候选块维度不一致都会让整个搜索失败。
func (e *SimilarityEngine) Search(queryVec []float32, candidates []Candidate, threshold float64, limit int) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(candidates))
	for _, cand := range candidates {
		score, err := CosineSimilarity(queryVec, cand.Vector)
		if err != nil {
			return nil, err
		}
		if score < threshold {
			continue
		}
		results = append(results, SearchResult{
			ChunkID:     cand.ChunkID,
			Content:     cand.Content,
			Score:       score,
			VectorScore: score,
			Degraded:    cand.Degraded,
			Metadata:    cand.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
