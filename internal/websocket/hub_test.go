package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay-backend/internal/middleware"
	"chatrelay-backend/internal/models"
	"chatrelay-backend/internal/repository"
	"chatrelay-backend/internal/services"
)

type indexFrame struct {
	Type    string            `json:"type"`
	Payload models.IndexEvent `json:"payload"`
}

func dialHub(t *testing.T, hub *Hub, userID string) *gorilla.Conn {
	t.Helper()
	srv := httptest.NewServer(middleware.Principal(userID)(http.HandlerFunc(hub.HandleWebSocket)))
	t.Cleanup(srv.Close)

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.connections[userID]) == 1
	}, time.Second, 10*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *gorilla.Conn) indexFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame indexFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHub_RejectsMissingPrincipal(t *testing.T) {
	hub := NewHub(nil)

	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHub_PublishesChatServiceEventsWithoutRedis(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	conn := dialHub(t, hub, "1")

	store := repository.NewMemoryStore()
	chats := services.NewChatService(store, store, nil, hub)
	ctx := context.Background()

	_, err := chats.SaveChatLog(ctx, "1", "3", []models.ConversationTurn{{Role: models.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	frame := readFrame(t, conn)
	assert.Equal(t, models.EventChatCreated, frame.Type)
	assert.Equal(t, "3", frame.Payload.ChatID)

	require.NoError(t, chats.RenameChat(ctx, "1", "3", "Trip planning"))
	frame = readFrame(t, conn)
	assert.Equal(t, models.EventChatRenamed, frame.Type)
	assert.Equal(t, "Trip planning", frame.Payload.Title)

	require.NoError(t, chats.DeleteChat(ctx, "1", "3"))
	frame = readFrame(t, conn)
	assert.Equal(t, models.EventChatDeleted, frame.Type)
}

func TestHub_PublishOnlyReachesTargetUser(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	other := dialHub(t, hub, "2")

	hub.Publish(context.Background(), "1", models.WSMessage{Type: models.EventChatDeleted})

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "user 2 must not receive user 1's events")
}
