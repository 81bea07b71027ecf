package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KnowledgeBase 知识库
type KnowledgeBase struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Name           string    `gorm:"size:200;not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	EmbeddingModel string    `gorm:"column:embedding_model;size:100" json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	TopK           int       `gorm:"column:top_k" json:"top_k"`
	ChunkSize      int       `gorm:"column:chunk_size" json:"chunk_size"`
	ChunkOverlap   int       `gorm:"column:chunk_overlap" json:"chunk_overlap"`
	Threshold      float64   `json:"threshold"`
	CreateTime     time.Time `gorm:"column:create_time" json:"create_time"`
	UpdateTime     time.Time `gorm:"column:update_time" json:"update_time"`

	// 关系
	Chunks []KnowledgeChunk `gorm:"foreignKey:KnowledgeBaseID" json:"-"`
}

func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}

// BeforeCreate 创建前生成UUID并填充时间戳
func (kb *KnowledgeBase) BeforeCreate(tx *gorm.DB) error {
	if kb.ID == "" {
		kb.ID = uuid.NewString()
	}
	now := time.Now()
	if kb.CreateTime.IsZero() {
		kb.CreateTime = now
	}
	kb.UpdateTime = now
	return nil
}

// BeforeUpdate 更新前刷新时间戳
func (kb *KnowledgeBase) BeforeUpdate(tx *gorm.DB) error {
	kb.UpdateTime = time.Now()
	return nil
}

// KnowledgeChunk 知识块
type KnowledgeChunk struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	KnowledgeBaseID string    `gorm:"column:knowledge_base_id;size:36;not null;index" json:"knowledge_base_id"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	Embedding       string    `gorm:"type:json" json:"-"` // JSON编码的float32数组
	ChunkIndex      int       `gorm:"column:chunk_index;not null" json:"chunk_index"`
	Source          string    `gorm:"size:500" json:"source"`
	FileName        string    `gorm:"column:file_name;size:255" json:"file_name"`
	Degraded        bool      `json:"degraded"` // 向量化失败后使用了降级向量
	CreateTime      time.Time `gorm:"column:create_time" json:"create_time"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}

// BeforeCreate 创建前生成UUID
func (c *KnowledgeChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreateTime.IsZero() {
		c.CreateTime = time.Now()
	}
	return nil
}
