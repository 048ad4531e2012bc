package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/config"
	"chat-relay/database"
	"chat-relay/handlers"
	"chat-relay/websocket"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors" // 引入 CORS 庫
)

func main() {
	cfg := config.LoadConfig()

	mongoStore, err := database.ConnectMongoDB(cfg.MongoDBURI, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoStore.Disconnect()

	// 有設定 REDIS_ADDR 才啟用歷史訊息快取
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unavailable at %s, running without history cache: %v", cfg.RedisAddr, err)
			redisClient = nil
		} else {
			log.Println("Connected to Redis, history cache enabled.")
		}
	}
	store := database.NewCachedStore(mongoStore, redisClient)

	sessions := websocket.NewSessionRegistry()
	hub := websocket.NewHub(sessions, store)
	go hub.Run()

	messageHandler := handlers.NewMessageHandler(store)

	router := mux.NewRouter()

	// 存活檢查路由
	router.HandleFunc("/", handlers.HealthCheck).Methods("GET")

	// WebSocket 連線路由
	router.HandleFunc("/ws", hub.HandleConnections)

	// 歷史訊息 API 路由
	router.HandleFunc("/messages/{roomId}/{sessionId}", messageHandler.GetSessionMessages).Methods("GET")
	router.HandleFunc("/messages/{roomId}/{sessionId}", messageHandler.DeleteSessionMessages).Methods("DELETE")

	// 設置 CORS 中介軟體
	// 聊天轉發服務對任何前端開放，實際生產環境應限制 AllowedOrigins
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	// 將 CORS 中介軟體應用到你的路由上
	handler := c.Handler(router)

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		IdleTimeout:  120 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// 如果錯誤不是因為主動關閉伺服器，就記錄錯誤並結束程式
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	//當按下 Ctrl+C，程式會收到 SIGINT
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %s, shutting down server...", sig)

	//最多等30秒關閉，避免資料損壞，請求中斷
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited gracefully.")
}
