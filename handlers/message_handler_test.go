package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-relay/database/mocks"
	"chat-relay/models"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/mock/gomock"
)

func newTestRouter(store *mocks.MockMessageStore) *mux.Router {
	handler := NewMessageHandler(store)
	router := mux.NewRouter()
	router.HandleFunc("/messages/{roomId}/{sessionId}", handler.GetSessionMessages).Methods("GET")
	router.HandleFunc("/messages/{roomId}/{sessionId}", handler.DeleteSessionMessages).Methods("DELETE")
	return router
}

func TestGetSessionMessagesReturnsOrderedHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)

	now := time.Now().UTC().Truncate(time.Millisecond)
	history := []models.Message{
		{ID: primitive.NewObjectID(), RoomID: "lobby", SessionID: "session_lobby_0", Sender: "Alice", Text: "hi", Timestamp: now},
		{ID: primitive.NewObjectID(), RoomID: "lobby", SessionID: "session_lobby_0", Sender: "Bob", Text: "hey", Timestamp: now.Add(time.Second)},
	}
	store.EXPECT().
		SessionMessages(gomock.Any(), "lobby", "session_lobby_0").
		Return(history, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/messages/lobby/session_lobby_0", nil)
	newTestRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got []models.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Sender)
	assert.Equal(t, "hi", got[0].Text)
	assert.Equal(t, "Bob", got[1].Sender)
	assert.True(t, got[1].Timestamp.After(got[0].Timestamp))
}

func TestGetSessionMessagesEmptyIsJSONArray(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().
		SessionMessages(gomock.Any(), "lobby", "session_lobby_0").
		Return([]models.Message{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/messages/lobby/session_lobby_0", nil)
	newTestRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// 沒有訊息時必須回傳空陣列而不是 null
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetSessionMessagesStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().
		SessionMessages(gomock.Any(), "lobby", "session_lobby_0").
		Return(nil, assert.AnError)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/messages/lobby/session_lobby_0", nil)
	newTestRouter(store).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDeleteSessionMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().
		DeleteSessionMessages(gomock.Any(), "lobby", "session_lobby_0").
		Return(int64(3), nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/messages/lobby/session_lobby_0", nil)
	newTestRouter(store).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp DeleteMessagesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(3), resp.DeletedCount)
}

func TestDeleteSessionMessagesStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().
		DeleteSessionMessages(gomock.Any(), "lobby", "session_lobby_0").
		Return(int64(0), assert.AnError)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/messages/lobby/session_lobby_0", nil)
	newTestRouter(store).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	HealthCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chat relay server is running", w.Body.String())
}
