package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fireflies/backend/internal/database"
	"fireflies/backend/internal/model"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewSQLiteRepository(db), mock
}

func TestSQLiteRepository_GetChat(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta("SELECT id, user_id, title, created_at, updated_at FROM chats WHERE id = ?")

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now().UTC()
		mock.ExpectQuery(query).WithArgs("chat-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at", "updated_at"}).
				AddRow("chat-1", "user-1", "Halo", now, now))

		chat, err := repo.GetChat(ctx, "chat-1")

		require.NoError(t, err)
		assert.Equal(t, "Halo", chat.Title)
		assert.Equal(t, "user-1", chat.UserID)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(query).WithArgs("missing").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetChat(ctx, "missing")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteRepository_AddMessage(t *testing.T) {
	ctx := context.Background()
	insert := regexp.QuoteMeta("INSERT INTO messages (id, chat_id, role, content, model, timestamp, metadata)")
	update := regexp.QuoteMeta("UPDATE chats SET updated_at = ? WHERE id = ?")
	msg := &model.Message{
		ID:        "msg-1",
		Role:      model.RoleAssistant,
		Content:   "jawaban",
		Timestamp: time.Now().UTC(),
		Metadata:  json.RawMessage(`{"command":"search"}`),
	}

	t.Run("commits insert and timestamp bump", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(insert).
			WithArgs("msg-1", "chat-1", model.RoleAssistant, "jawaban", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(update).WithArgs(sqlmock.AnyArg(), "chat-1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.AddMessage(ctx, msg, "chat-1"))
	})

	t.Run("rolls back when the insert fails", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(insert).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := repo.AddMessage(ctx, msg, "chat-1")

		assert.ErrorContains(t, err, "disk full")
	})

	t.Run("unknown chat", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.AddMessage(ctx, msg, "chat-x")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteRepository_UpdateChatTitle_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE chats SET title = ?, updated_at = ? WHERE id = ?")).
		WithArgs("Baru", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateChatTitle(context.Background(), "missing", "Baru")

	assert.ErrorIs(t, err, ErrNotFound)
}

// TestSQLiteRepository_RoundTrip runs against a migrated SQLite file.
func TestSQLiteRepository_RoundTrip(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	db, err := database.InitDB(filepath.Join(t.TempDir(), "fireflies.db"))
	require.NoError(t, err)
	defer db.Close()
	repo := NewSQLiteRepository(db)

	now := time.Now().UTC()
	require.NoError(t, repo.CreateChat(ctx, &model.Chat{ID: "c1", UserID: "u1", Title: "Pertama", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repo.CreateChat(ctx, &model.Chat{ID: "c2", UserID: "u1", Title: "Kedua", CreatedAt: now, UpdatedAt: now.Add(-time.Second)}))
	require.NoError(t, repo.CreateChat(ctx, &model.Chat{ID: "c3", UserID: "u2", Title: "Lain", CreatedAt: now, UpdatedAt: now}))

	modelName := "FireFlies:latest"
	require.NoError(t, repo.AddMessage(ctx, &model.Message{ID: "m1", Role: model.RoleUser, Content: "hai", Timestamp: now}, "c1"))
	require.NoError(t, repo.AddMessage(ctx, &model.Message{
		ID: "m2", Role: model.RoleAssistant, Content: "halo", Model: &modelName,
		Timestamp: now.Add(time.Millisecond), Metadata: json.RawMessage(`{"command":"chat"}`),
	}, "c1"))

	// ACT
	chats, err := repo.GetChats(ctx, "u1")
	require.NoError(t, err)
	messages, err := repo.GetMessages(ctx, "c1")
	require.NoError(t, err)

	// ASSERT
	require.Len(t, chats, 2)
	assert.Equal(t, "c1", chats[0].ID, "AddMessage bumps updated_at")

	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Nil(t, messages[0].Model)
	require.NotNil(t, messages[1].Model)
	assert.Equal(t, modelName, *messages[1].Model)
	assert.Equal(t, "chat", messages[1].DecodeMetadata().Command)

	require.NoError(t, repo.UpdateChatTitle(ctx, "c1", "Baru"))
	chat, err := repo.GetChat(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Baru", chat.Title)

	require.NoError(t, repo.DeleteChat(ctx, "c1"))
	_, err = repo.GetChat(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	messages, err = repo.GetMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.ErrorIs(t, repo.DeleteChat(ctx, "c1"), ErrNotFound)
}
