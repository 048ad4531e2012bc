package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"chat-relay/models"

	"github.com/redis/go-redis/v9"
)

const (
	historyKeyPrefix = "history:"
	historyTTL       = 30 * time.Second
)

// CachedStore 在 MessageStore 外包一層 Redis 快取（cache-aside 模式）
// 只快取歷史訊息的讀取；寫入與刪除會使對應的快取失效
// 快取本身出錯時直接回退到內層 store，不影響請求結果
type CachedStore struct {
	inner  MessageStore
	client *redis.Client
}

// NewCachedStore 建立快取層；client 為 nil 時所有操作直接透傳
func NewCachedStore(inner MessageStore, client *redis.Client) *CachedStore {
	return &CachedStore{inner: inner, client: client}
}

func historyKey(roomID, sessionID string) string {
	return fmt.Sprintf("%s%s:%s", historyKeyPrefix, roomID, sessionID)
}

// InsertMessage 寫入內層 store，成功後讓該會話的歷史快取失效
func (c *CachedStore) InsertMessage(ctx context.Context, message models.Message) (models.Message, error) {
	stored, err := c.inner.InsertMessage(ctx, message)
	if err != nil {
		return models.Message{}, err
	}
	c.invalidate(ctx, stored.RoomID, stored.SessionID)
	return stored, nil
}

// SessionMessages 優先從 Redis 取得歷史訊息，未命中時回退到內層 store 並回填
func (c *CachedStore) SessionMessages(ctx context.Context, roomID, sessionID string) ([]models.Message, error) {
	if c.client == nil {
		return c.inner.SessionMessages(ctx, roomID, sessionID)
	}

	key := historyKey(roomID, sessionID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var messages []models.Message
		if err := json.Unmarshal(data, &messages); err == nil {
			return messages, nil
		}
		log.Printf("Error decoding cached history for %s, falling back to store", key)
	} else if err != redis.Nil {
		log.Printf("Error reading history cache for %s: %v", key, err)
	}

	messages, err := c.inner.SessionMessages(ctx, roomID, sessionID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(messages); err == nil {
		if err := c.client.Set(ctx, key, encoded, historyTTL).Err(); err != nil {
			log.Printf("Error writing history cache for %s: %v", key, err)
		}
	}
	return messages, nil
}

// DeleteSessionMessages 刪除內層資料並讓快取失效
func (c *CachedStore) DeleteSessionMessages(ctx context.Context, roomID, sessionID string) (int64, error) {
	deleted, err := c.inner.DeleteSessionMessages(ctx, roomID, sessionID)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, roomID, sessionID)
	return deleted, nil
}

func (c *CachedStore) invalidate(ctx context.Context, roomID, sessionID string) {
	if c.client == nil {
		return
	}
	key := historyKey(roomID, sessionID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("Error invalidating history cache for %s: %v", key, err)
	}
}
