package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EnvelopeType 定義伺服器發送給客戶端的訊框類型
type EnvelopeType string

const (
	EnvelopeTypeSession      EnvelopeType = "session"      // 加入時回傳的會話編號
	EnvelopeTypeNotification EnvelopeType = "notification" // 加入/離開通知
	EnvelopeTypeMessage      EnvelopeType = "message"      // 聊天訊息轉發
)

// Message 代表一筆持久化的聊天訊息
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RoomID    string             `bson:"roomId" json:"roomId"`       // 聊天室ID
	SessionID string             `bson:"sessionId" json:"sessionId"` // 會話ID
	Sender    string             `bson:"sender" json:"sender"`
	Text      string             `bson:"text" json:"text"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"` // 由伺服器指定
}

// ChatPayload 是客戶端傳來的原始訊息格式
type ChatPayload struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Envelope 是伺服器發送給客戶端的統一訊框
type Envelope struct {
	Type      EnvelopeType `json:"type"`
	SessionID string       `json:"sessionId,omitempty"`
	Sender    string       `json:"sender,omitempty"`
	Message   string       `json:"message,omitempty"`
}
