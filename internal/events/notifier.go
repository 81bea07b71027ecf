package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aihub/knowledge-go/internal/logger"
)

// EventType 事件类型
type EventType string

const (
	EventKnowledgeBaseCreated EventType = "knowledge_base.created"
	EventKnowledgeBaseUpdated EventType = "knowledge_base.updated"
	EventKnowledgeBaseDeleted EventType = "knowledge_base.deleted"
	EventDocumentChunkDone    EventType = "document.chunk_processed"
	EventDocumentsAdded       EventType = "documents.added"
	EventDocumentDeleted      EventType = "document.deleted"
)

// Event 知识库生命周期事件
type Event struct {
	Type            EventType `json:"type"`
	KnowledgeBaseID string    `json:"knowledge_base_id"`
	ChunkID         string    `json:"chunk_id,omitempty"`
	Count           int       `json:"count,omitempty"`   // 删除或新增的数量
	Current         int       `json:"current,omitempty"` // 入库进度，当前块序号
	Total           int       `json:"total,omitempty"`   // 入库进度，总块数
	Timestamp       time.Time `json:"timestamp"`
}

// Notifier 事件通知接口。事件投递失败不阻塞主流程，由调用方决定如何记录。
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// NoopNotifier 丢弃所有事件
type NoopNotifier struct{}

func (n *NoopNotifier) Publish(ctx context.Context, event Event) error {
	return nil
}

// LogNotifier 把事件写入日志，单机模式下的默认实现
type LogNotifier struct{}

func (n *LogNotifier) Publish(ctx context.Context, event Event) error {
	logger.Info("knowledge event",
		zap.String("type", string(event.Type)),
		zap.String("knowledge_base_id", event.KnowledgeBaseID),
		zap.String("chunk_id", event.ChunkID),
		zap.Int("count", event.Count))
	return nil
}
