package knowledge

import (
	apperrors "github.com/aihub/knowledge-go/internal/errors"
)

// Chunk 表示分块后的文本结构
type Chunk struct {
	Index int
	Text  string
}

// Chunker 文本分块器，按rune滑动窗口切分，相邻块之间保留overlap个字符的重叠
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器，参数非法时返回配置错误
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, apperrors.NewInvalidConfigError("chunk size must be positive")
	}
	if overlap < 0 {
		return nil, apperrors.NewInvalidConfigError("chunk overlap must not be negative")
	}
	if overlap >= chunkSize {
		return nil, apperrors.NewInvalidConfigError("chunk overlap must be smaller than chunk size")
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}, nil
}

// ChunkSize 返回分块窗口大小
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// ChunkOverlap 返回相邻块的重叠字符数
func (c *Chunker) ChunkOverlap() int {
	return c.chunkOverlap
}

// Split 将文本切分为多个chunk。
// 按rune计数而不是字节，保证多字节文本不会被从字符中间截断；
// 块内容原样保留，不做任何空白归一化，便于按重叠拼回原文。
func (c *Chunker) Split(text string) []Chunk {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	step := c.chunkSize - c.chunkOverlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}
