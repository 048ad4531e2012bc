package websocket

import (
	"fmt"
	"sync"
	"time"

	"chat-relay/models"
)

// SessionTimeout 會話閒置超過此時間即視為過期
const SessionTimeout = 5 * time.Minute

// SessionRegistry 管理每個聊天室目前的活躍會話
// 每個聊天室同一時間最多只有一個活躍會話；過期的會話不會立即刪除，
// 下一次加入時才會建立新的會話記錄覆蓋掉舊的對應
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession // roomID -> 活躍會話
	clock    func() time.Time               // 測試時可替換
}

// NewSessionRegistry 創建並返回一個新的 SessionRegistry 實例
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*models.ChatSession),
		clock:    time.Now,
	}
}

// newSessionID 依聊天室與創建時間產生會話編號，同一(聊天室,時間)組合必定唯一
func newSessionID(roomID string, now time.Time) string {
	return fmt.Sprintf("session_%s_%d", roomID, now.UnixMilli())
}

// GetOrCreate 取得聊天室目前的活躍會話編號
// 沒有記錄或記錄已過期時建立新的會話；否則刷新活動時間並增加人數
func (r *SessionRegistry) GetOrCreate(roomID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	session, ok := r.sessions[roomID]
	if ok && now.Sub(session.LastActivity) < SessionTimeout {
		session.LastActivity = now
		session.UserCount++
		return session.SessionID
	}

	// 過期的會話編號仍可用於查詢歷史訊息，但不再接受新的加入
	session = &models.ChatSession{
		SessionID:    newSessionID(roomID, now),
		RoomID:       roomID,
		LastActivity: now,
		UserCount:    1,
	}
	r.sessions[roomID] = session
	return session.SessionID
}

// Touch 在有訊息流量時刷新會話的活動時間；聊天室沒有記錄時不做任何事
func (r *SessionRegistry) Touch(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, ok := r.sessions[roomID]; ok {
		session.LastActivity = r.clock()
	}
}

// OnLeave 參與者離開時減少會話人數並刷新活動時間
// 即使人數歸零也不刪除記錄，留給下一次加入時的過期檢查處理
func (r *SessionRegistry) OnLeave(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[roomID]
	if !ok {
		return
	}
	if session.UserCount > 0 {
		session.UserCount--
	}
	session.LastActivity = r.clock()
}

// EvictExpired 移除已過期且沒有參與者的會話記錄，回傳移除的數量
// 由 Hub 的定期清理任務呼叫，避免閒置聊天室的記錄無限累積
func (r *SessionRegistry) EvictExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	evicted := 0
	for roomID, session := range r.sessions {
		if session.UserCount == 0 && now.Sub(session.LastActivity) >= SessionTimeout {
			delete(r.sessions, roomID)
			evicted++
		}
	}
	return evicted
}

// ActiveSession 回傳聊天室目前的活躍會話編號；沒有活躍會話時回傳空字串
// 只讀查詢，不會刷新活動時間
func (r *SessionRegistry) ActiveSession(roomID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[roomID]
	if !ok || r.clock().Sub(session.LastActivity) >= SessionTimeout {
		return ""
	}
	return session.SessionID
}
