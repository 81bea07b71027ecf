package knowledge

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/aihub/knowledge-go/internal/models"
)

func newMockStore(t *testing.T) (*DatabaseVectorStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewDatabaseVectorStore(db), mock
}

func TestDatabaseStorePut(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`^INSERT INTO "knowledge_chunks"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Put(context.Background(), models.KnowledgeChunk{
		ID:              "c1",
		KnowledgeBaseID: "kb-1",
		Content:         "hello",
		Embedding:       "[0.1,0.2]",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreDeleteByKnowledgeBase(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`^DELETE FROM "knowledge_chunks"`).
		WithArgs("kb-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := store.DeleteByKnowledgeBase(context.Background(), "kb-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreDeleteByIDAbsent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`^DELETE FROM "knowledge_chunks"`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := store.DeleteByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreListByKnowledgeBase(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "knowledge_base_id", "content", "embedding", "chunk_index"}).
		AddRow("c1", "kb-1", "first", "[1,0]", 0).
		AddRow("c2", "kb-1", "second", "[0,1]", 1)
	mock.ExpectQuery(`^SELECT \* FROM "knowledge_chunks"`).
		WithArgs("kb-1").
		WillReturnRows(rows)

	chunks, err := store.ListByKnowledgeBase(context.Background(), "kb-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1", chunks[0].ID)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreListError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`^SELECT \* FROM "knowledge_chunks"`).
		WithArgs("kb-1").
		WillReturnError(assert.AnError)

	_, err := store.ListByKnowledgeBase(context.Background(), "kb-1")
	require.Error(t, err)
}
