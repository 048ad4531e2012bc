package database

import (
	"context"
	"log"
	"time"

	"chat-relay/models" // 引入 models 套件

	"go.mongodb.org/mongo-driver/bson" // 引入 bson 套件
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const messagesCollection = "messages"

// MongoStore 透過 MongoDB 實作 MessageStore
type MongoStore struct {
	client *mongo.Client
	dbName string
}

// ConnectMongoDB 建立並初始化 MongoDB 連線，回傳可注入的 MongoStore
func ConnectMongoDB(uri, name string) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary to verify connection
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	log.Println("Connected to MongoDB successfully!")
	store := &MongoStore{client: client, dbName: name}

	// 建立複合索引加速依聊天室+會話查詢歷史訊息
	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "roomId", Value: 1}, // value:1代表升序(由舊到新)
			{Key: "sessionId", Value: 1},
			{Key: "timestamp", Value: 1},
		},
	}
	_, err = store.collection().Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		return nil, err
	}

	return store, nil
}

func (s *MongoStore) collection() *mongo.Collection {
	return s.client.Database(s.dbName).Collection(messagesCollection)
}

// InsertMessage 將新的聊天訊息插入到 MongoDB
func (s *MongoStore) InsertMessage(ctx context.Context, message models.Message) (models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.collection().InsertOne(ctx, message)
	if err != nil {
		log.Printf("Error inserting message: %v", err)
		return models.Message{}, err
	}

	// 設置訊息的 ID 為資料庫生成的唯一 ID
	message.ID = result.InsertedID.(primitive.ObjectID)
	return message, nil
}

// SessionMessages 獲取指定聊天室+會話的歷史訊息（依時間升序）
func (s *MongoStore) SessionMessages(ctx context.Context, roomID, sessionID string) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"roomId": roomID, "sessionId": sessionID}
	findOptions := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := s.collection().Find(ctx, filter, findOptions)
	if err != nil {
		log.Printf("Error finding messages for room %s session %s: %v", roomID, sessionID, err)
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []models.Message{} // 保證沒有資料時回傳空陣列而不是 null
	if err = cursor.All(ctx, &messages); err != nil {
		log.Printf("Error decoding messages for room %s session %s: %v", roomID, sessionID, err)
		return nil, err
	}
	return messages, nil
}

// DeleteSessionMessages 刪除指定聊天室+會話的所有訊息
func (s *MongoStore) DeleteSessionMessages(ctx context.Context, roomID, sessionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.collection().DeleteMany(ctx, bson.M{"roomId": roomID, "sessionId": sessionID})
	if err != nil {
		log.Printf("Error deleting messages for room %s session %s: %v", roomID, sessionID, err)
		return 0, err
	}
	return result.DeletedCount, nil
}

// Disconnect 關閉 MongoDB 連線
func (s *MongoStore) Disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		log.Printf("Error disconnecting from MongoDB: %v", err)
	} else {
		log.Println("Disconnected from MongoDB.")
	}
}
