package models

import (
	"time"
)

// ChatSession 代表一個聊天室目前的活躍會話記錄（僅存在記憶體中）
// 會話超過閒置時間後即視為過期，下一次加入會建立新的會話
type ChatSession struct {
	SessionID    string
	RoomID       string
	LastActivity time.Time
	UserCount    int
}
