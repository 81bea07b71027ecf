package knowledge

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/aihub/knowledge-go/internal/errors"
	"github.com/aihub/knowledge-go/internal/models"
)

// DatabaseVectorStore 基于PostgreSQL的退化向量存储，向量以JSON列保存
type DatabaseVectorStore struct {
	db *gorm.DB
}

func NewDatabaseVectorStore(db *gorm.DB) *DatabaseVectorStore {
	return &DatabaseVectorStore{db: db}
}

func (s *DatabaseVectorStore) Put(ctx context.Context, chunk models.KnowledgeChunk) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&chunk).Error
	if err != nil {
		return apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to store chunk").WithCause(err)
	}
	return nil
}

func (s *DatabaseVectorStore) DeleteByKnowledgeBase(ctx context.Context, baseID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("knowledge_base_id = ?", baseID).
		Delete(&models.KnowledgeChunk{})
	if result.Error != nil {
		return 0, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to delete chunks").WithCause(result.Error)
	}
	return result.RowsAffected, nil
}

func (s *DatabaseVectorStore) DeleteByID(ctx context.Context, chunkID string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("id = ?", chunkID).
		Delete(&models.KnowledgeChunk{})
	if result.Error != nil {
		return false, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to delete chunk").WithCause(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *DatabaseVectorStore) ListByKnowledgeBase(ctx context.Context, baseID string) ([]models.KnowledgeChunk, error) {
	var chunks []models.KnowledgeChunk
	err := s.db.WithContext(ctx).
		Where("knowledge_base_id = ?", baseID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, apperrors.NewSystemError(apperrors.ErrCodeDatabaseError, "failed to list chunks").WithCause(err)
	}
	return chunks, nil
}

func (s *DatabaseVectorStore) Ready() bool {
	return s.db != nil
}
