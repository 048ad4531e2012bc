package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"chat-relay/database"

	"github.com/gorilla/mux"
)

// DeleteMessagesResponse 定義批次刪除訊息的回應體
type DeleteMessagesResponse struct {
	Success      bool  `json:"success"`
	DeletedCount int64 `json:"deletedCount"`
}

// MessageHandler 提供歷史訊息的查詢與刪除，持久層由外部注入
type MessageHandler struct {
	store database.MessageStore
}

// NewMessageHandler 創建並返回一個新的 MessageHandler 實例
func NewMessageHandler(store database.MessageStore) *MessageHandler {
	return &MessageHandler{store: store}
}

// GetSessionMessages 處理獲取指定聊天室+會話歷史訊息的請求
func (h *MessageHandler) GetSessionMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := vars["roomId"]
	sessionID := vars["sessionId"]

	messages, err := h.store.SessionMessages(r.Context(), roomID, sessionID)
	if err != nil {
		log.Printf("Error getting messages for room %s session %s: %v", roomID, sessionID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// DeleteSessionMessages 處理刪除指定聊天室+會話所有訊息的請求
func (h *MessageHandler) DeleteSessionMessages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	roomID := vars["roomId"]
	sessionID := vars["sessionId"]

	deleted, err := h.store.DeleteSessionMessages(r.Context(), roomID, sessionID)
	if err != nil {
		log.Printf("Error deleting messages for room %s session %s: %v", roomID, sessionID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DeleteMessagesResponse{
		Success:      true,
		DeletedCount: deleted,
	})
}

// HealthCheck 簡單的存活檢查
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Chat relay server is running")
}
