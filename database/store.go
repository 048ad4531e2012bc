package database

import (
	"context"

	"chat-relay/models"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// MessageStore 定義訊息持久化的操作介面，方便在測試中替換實作
type MessageStore interface {
	// InsertMessage 儲存一筆訊息並回傳帶有資料庫 ID 的結果
	InsertMessage(ctx context.Context, message models.Message) (models.Message, error)
	// SessionMessages 依時間升序回傳指定聊天室+會話的所有訊息
	SessionMessages(ctx context.Context, roomID, sessionID string) ([]models.Message, error)
	// DeleteSessionMessages 刪除指定聊天室+會話的所有訊息，回傳刪除筆數
	DeleteSessionMessages(ctx context.Context, roomID, sessionID string) (int64, error)
}
