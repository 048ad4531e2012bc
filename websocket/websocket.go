package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"chat-relay/database" // 引入 database 套件
	"chat-relay/models"   // 引入 models 套件

	"github.com/gorilla/websocket"
)

const (
	// 將訊息寫入到遠端對等點的最長時間
	writeWait = 10 * time.Second

	// 允許從遠端對等點讀取下一個 pong 訊息的最長時間。
	pongWait = 60 * time.Second

	// 發送 ping 訊息給遠端對等點的週期。
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// 定期清理過期會話的週期
	reapInterval = time.Minute
)

// upgrader 用於將 HTTP 連線升級為 WebSocket 連線
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 設定true:允許所有來源的連線
		return true
	},
}

// Client 代表一個 WebSocket 客戶端
type Client struct {
	hub       *Hub                 // 負責管理所有客戶端和訊息流
	conn      *websocket.Conn      // WebSocket 連線物件，透過它來讀寫訊息
	send      chan models.Envelope // 用於發送訊框的緩衝通道
	Username  string               // 客戶端顯示名稱（未經驗證，由客戶端提供）
	RoomID    string               // 客戶端所在的聊天室ID
	SessionID string               // 客戶端所屬的會話ID
}

// 讀取用戶傳來的訊息，持久化後丟給 Hub 廣播
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("Client disconnected gracefully.")
			} else {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		// 解析收到的訊息為 {sender, message}；格式錯誤就丟棄，不回傳錯誤給客戶端
		var payload models.ChatPayload
		if err := json.Unmarshal(p, &payload); err != nil {
			log.Printf("Error unmarshalling message: %v", err)
			continue
		}
		if payload.Sender == "" || payload.Message == "" {
			log.Printf("Dropping message with empty sender or text in room %s", c.RoomID)
			continue
		}

		// 有訊息流量就刷新會話的活動時間
		c.hub.sessions.Touch(c.RoomID)

		// 填充聊天室資訊、會話資訊和伺服器時間戳
		msg := models.Message{
			RoomID:    c.RoomID,
			SessionID: c.SessionID,
			Sender:    payload.Sender,
			Text:      payload.Message,
			Timestamp: time.Now(),
		}

		// 持久化失敗就放棄這則訊息的廣播，連線保持開啟
		stored, err := c.hub.store.InsertMessage(context.Background(), msg)
		if err != nil {
			log.Printf("Error saving message to database: %v", err)
			continue
		}

		// 廣播給同會話的所有參與者（包含發送者本人，以伺服器回聲為準）
		c.hub.broadcast <- outbound{
			roomID:    c.RoomID,
			sessionID: c.SessionID,
			payload: models.Envelope{
				Type:    models.EnvelopeTypeMessage,
				Sender:  stored.Sender,
				Message: stored.Text,
			},
		}
	}
}

// 接收 Hub 廣播來的訊框，丟給前端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case envelope, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 如果這個 channel 被關閉了（ok == false），就送出 CloseMessage
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			jsonEnvelope, err := json.Marshal(envelope)
			if err != nil {
				log.Printf("Error marshalling envelope: %v", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, jsonEnvelope); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}

		// 接收定時器以保持連線活躍並檢測客戶端是否仍在線。
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// outbound 是一筆要廣播的訊框，範圍限定在同一聊天室的同一會話
type outbound struct {
	roomID    string
	sessionID string
	payload   models.Envelope
	exclude   *Client // 不接收這筆廣播的客戶端（離開通知不發給離開者本人）
}

// Hub 維護所有活躍的 WebSocket 客戶端，並處理訊框的廣播
// 成員表只在 Run 的迴圈中變動，避免加鎖
type Hub struct {
	clients       map[*Client]bool
	clientsByRoom map[string]map[*Client]bool // 按聊天室ID索引的客戶端
	sessions      *SessionRegistry
	store         database.MessageStore
	broadcast     chan outbound
	register      chan *Client
	unregister    chan *Client
}

// NewHub 創建並返回一個新的 Hub 實例
func NewHub(sessions *SessionRegistry, store database.MessageStore) *Hub {
	return &Hub{
		broadcast:     make(chan outbound),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		clients:       make(map[*Client]bool),
		clientsByRoom: make(map[string]map[*Client]bool),
		sessions:      sessions,
		store:         store,
	}
}

// Run 啟動 Hub 的運行迴圈
func (h *Hub) Run() {
	reaper := time.NewTicker(reapInterval)
	defer reaper.Stop()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if _, ok := h.clientsByRoom[client.RoomID]; !ok {
				h.clientsByRoom[client.RoomID] = make(map[*Client]bool)
			}
			h.clientsByRoom[client.RoomID][client] = true
			log.Printf("Client %s registered to room %s session %s. Total clients in room: %d",
				client.Username, client.RoomID, client.SessionID, len(h.clientsByRoom[client.RoomID]))

		case client := <-h.unregister:
			// 以成員表為準，重複的關閉事件只會處理一次
			if _, ok := h.clients[client]; ok {
				h.removeClient(client)
				log.Printf("Client %s unregistered from room %s. Total clients in room: %d",
					client.Username, client.RoomID, len(h.clientsByRoom[client.RoomID]))
			}

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-reaper.C:
			if evicted := h.sessions.EvictExpired(); evicted > 0 {
				log.Printf("Reaper evicted %d expired session(s)", evicted)
			}
		}
	}
}

// removeClient 將客戶端從成員表移除並完成離開的記帳：
// 先廣播離開通知給同會話的其他人，再從兩個成員表刪除、關閉 send 通道、
// 減少會話人數。重複呼叫只會處理一次；只能在 Run 的迴圈中呼叫
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	h.fanOut(outbound{
		roomID:    client.RoomID,
		sessionID: client.SessionID,
		payload: models.Envelope{
			Type:    models.EnvelopeTypeNotification,
			Message: fmt.Sprintf("%s left the room", client.Username),
		},
		exclude: client,
	})

	delete(h.clients, client)
	if clientsInRoom, ok := h.clientsByRoom[client.RoomID]; ok {
		delete(clientsInRoom, client)
		if len(clientsInRoom) == 0 {
			delete(h.clientsByRoom, client.RoomID) // 如果房間沒有客戶端了，就刪除房間
		}
	}
	close(client.send)
	h.sessions.OnLeave(client.RoomID)
}

// fanOut 將訊框發送給指定聊天室中屬於同一會話的所有客戶端
// 只能在 Run 的迴圈中呼叫
func (h *Hub) fanOut(message outbound) {
	clientsInRoom, ok := h.clientsByRoom[message.roomID]
	if !ok {
		log.Printf("Room %s not found for broadcasting message.", message.roomID)
		return
	}
	var dropped []*Client
	for client := range clientsInRoom {
		if client == message.exclude || client.SessionID != message.sessionID {
			continue
		}
		select {
		case client.send <- message.payload:
		default:
			// 客戶端的緩衝滿了代表它已經跟不上，視同離開處理
			dropped = append(dropped, client)
		}
	}
	// 等迴圈結束才移除，避免一邊迭代一邊改動成員表
	// 被移除者的離開通知和會話人數記帳都和正常離開走同一條路
	for _, client := range dropped {
		log.Printf("Client channel is full, unregistered client %s from room %s", client.Username, client.RoomID)
		h.removeClient(client)
	}
}

// HandleConnections 處理 WebSocket 連線請求
func (h *Hub) HandleConnections(w http.ResponseWriter, r *http.Request) {
	// 從 URL 查詢參數中獲取聊天室與顯示名稱
	roomID := r.URL.Query().Get("room")
	username := r.URL.Query().Get("user")

	if roomID == "" || username == "" {
		http.Error(w, "Room and user are required for WebSocket connection", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	// 決定這次加入屬於哪個會話：沿用未過期的會話，否則建立新的
	sessionID := h.sessions.GetOrCreate(roomID)

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan models.Envelope, 256),
		Username:  username,
		RoomID:    roomID,
		SessionID: sessionID,
	}
	h.register <- client

	// 只發給新加入者：告知它被分配到的會話編號
	client.send <- models.Envelope{
		Type:      models.EnvelopeTypeSession,
		SessionID: sessionID,
	}

	// 廣播加入通知給同會話的所有人（包含新加入者本人）
	// register 和 broadcast 由同一個迴圈依序處理，保證通知在註冊之後送達
	h.broadcast <- outbound{
		roomID:    roomID,
		sessionID: sessionID,
		payload: models.Envelope{
			Type:    models.EnvelopeTypeNotification,
			Message: fmt.Sprintf("%s joined the room", username),
		},
	}

	go client.writePump()
	client.readPump() // readPump 會在連線關閉時自動取消註冊
}
