package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
)

func TestCosineSimilaritySelf(t *testing.T) {
	vec := []float32{0.5, -0.2, 0.8, 0.1}
	sim, err := CosineSimilarity(vec, vec)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarityOpposite(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}
	sim, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))
}

func makeCandidates(vectors ...[]float32) []Candidate {
	candidates := make([]Candidate, len(vectors))
	for i, vec := range vectors {
		candidates[i] = Candidate{
			ChunkID: string(rune('a' + i)),
			Content: "chunk " + string(rune('a'+i)),
			Vector:  vec,
		}
	}
	return candidates
}

func TestSearchFiltersByThreshold(t *testing.T) {
	engine := NewSimilarityEngine()
	query := []float32{1, 0}
	candidates := makeCandidates(
		[]float32{1, 0},    // sim 1.0
		[]float32{1, 1},    // sim ~0.707
		[]float32{0, 1},    // sim 0
		[]float32{-1, 0.1}, // sim 负
	)

	results, err := engine.Search(query, candidates, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "b", results[1].ChunkID)
}

func TestSearchSortsDescendingAndTruncates(t *testing.T) {
	engine := NewSimilarityEngine()
	query := []float32{1, 0}
	candidates := makeCandidates(
		[]float32{1, 1},
		[]float32{1, 0},
		[]float32{1, 0.5},
	)

	results, err := engine.Search(query, candidates, 0, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ChunkID)
	assert.Equal(t, "c", results[1].ChunkID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearchStableTies(t *testing.T) {
	engine := NewSimilarityEngine()
	query := []float32{1, 0}
	// 两个同分候选，保持插入顺序
	candidates := makeCandidates(
		[]float32{2, 0},
		[]float32{3, 0},
	)

	results, err := engine.Search(query, candidates, 0, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "b", results[1].ChunkID)
}

func TestSearchDimensionMismatchFailsWhole(t *testing.T) {
	engine := NewSimilarityEngine()
	query := []float32{1, 0}
	candidates := makeCandidates(
		[]float32{1, 0},
		[]float32{1, 0, 0}, // 维度不一致
	)

	_, err := engine.Search(query, candidates, 0, 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))
}

func TestSearchScoreBounds(t *testing.T) {
	engine := NewSimilarityEngine()
	query := []float32{0.3, 0.7, 0.2}
	candidates := makeCandidates(
		[]float32{0.3, 0.7, 0.2},
		[]float32{-0.3, -0.7, -0.2},
		[]float32{0.9, 0.1, 0.4},
	)

	results, err := engine.Search(query, candidates, -1, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, -1.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}
