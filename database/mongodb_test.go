package database

import (
	"context"
	"testing"
	"time"

	"chat-relay/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// 整合測試：在容器裡跑真正的 MongoDB 驗證完整的寫入/查詢/刪除流程
func TestMongoStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}

	ctx := context.Background()

	container, err := mongodb.RunContainer(ctx, testcontainers.WithImage("mongo:6"))
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate mongodb container: %v", err)
		}
	}()

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := ConnectMongoDB(uri, "chat_relay_test")
	require.NoError(t, err)
	defer store.Disconnect()

	base := time.Now().UTC().Truncate(time.Millisecond)

	// 故意亂序寫入，驗證查詢結果依時間升序
	second, err := store.InsertMessage(ctx, models.Message{
		RoomID: "lobby", SessionID: "session_lobby_0", Sender: "Bob", Text: "hey", Timestamp: base.Add(time.Second),
	})
	require.NoError(t, err)
	first, err := store.InsertMessage(ctx, models.Message{
		RoomID: "lobby", SessionID: "session_lobby_0", Sender: "Alice", Text: "hi", Timestamp: base,
	})
	require.NoError(t, err)
	require.False(t, first.ID.IsZero())
	require.False(t, second.ID.IsZero())

	// 其他會話的訊息不能混進查詢結果
	_, err = store.InsertMessage(ctx, models.Message{
		RoomID: "lobby", SessionID: "session_lobby_999", Sender: "Carol", Text: "later", Timestamp: base.Add(2 * time.Second),
	})
	require.NoError(t, err)

	messages, err := store.SessionMessages(ctx, "lobby", "session_lobby_0")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Alice", messages[0].Sender)
	assert.Equal(t, "hi", messages[0].Text)
	assert.Equal(t, "Bob", messages[1].Sender)
	assert.True(t, !messages[1].Timestamp.Before(messages[0].Timestamp))

	// 批次刪除只影響指定的會話
	deleted, err := store.DeleteSessionMessages(ctx, "lobby", "session_lobby_0")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	empty, err := store.SessionMessages(ctx, "lobby", "session_lobby_0")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	remaining, err := store.SessionMessages(ctx, "lobby", "session_lobby_999")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
