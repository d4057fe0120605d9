package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay-backend/internal/models"
	"chatrelay-backend/internal/repository"
	"chatrelay-backend/internal/services"
)

func newChatHandler() *ChatHandler {
	store := repository.NewMemoryStore()
	return NewChatHandler(services.NewChatService(store, store, nil, nil))
}

func chatRequest(method, target string, body interface{}, params map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	return withUser(req, "1")
}

func saveChat(t *testing.T, h *ChatHandler, id string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.SaveChatLog(rr, chatRequest(http.MethodPost, "/chatLog", models.ChatLogRequest{
		UserID:  "1",
		ID:      models.LooseID(id),
		History: []models.ConversationTurn{{Role: "user", Content: "hello " + id}, {Role: "model", Content: "hi"}},
	}, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, id, rr.Body.String())
}

func decodeChats(t *testing.T, rr *httptest.ResponseRecorder) []models.ChatSummary {
	t.Helper()
	var chats []models.ChatSummary
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&chats))
	return chats
}

func TestSaveChatLog_ReturnsChatID(t *testing.T) {
	h := newChatHandler()
	saveChat(t, h, "1")

	rr := httptest.NewRecorder()
	h.ListChats(rr, chatRequest(http.MethodGet, "/userChats", nil, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []models.ChatSummary{{ChatID: "1", Title: "New Chat"}}, decodeChats(t, rr))
}

func TestSaveChatLog_FallsBackToPrincipal(t *testing.T) {
	h := newChatHandler()

	rr := httptest.NewRecorder()
	h.SaveChatLog(rr, chatRequest(http.MethodPost, "/chatLog", models.ChatLogRequest{
		ID:      "2",
		History: []models.ConversationTurn{{Role: "user", Content: "x"}},
	}, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.GetChat(rr, chatRequest(http.MethodGet, "/userChats/2", nil, map[string]string{"id": "2"}))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSaveChatLog_Validation(t *testing.T) {
	h := newChatHandler()

	rr := httptest.NewRecorder()
	h.SaveChatLog(rr, chatRequest(http.MethodPost, "/chatLog", models.ChatLogRequest{UserID: "1"}, nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/chatLog", bytes.NewBufferString("not json"))
	rr = httptest.NewRecorder()
	h.SaveChatLog(rr, withUser(req, "1"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNextChatID(t *testing.T) {
	h := newChatHandler()

	rr := httptest.NewRecorder()
	h.NextChatID(rr, chatRequest(http.MethodGet, "/chatIndex/1", nil, map[string]string{"userId": "1"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "1", rr.Body.String())

	for _, id := range []string{"1", "3", "4"} {
		saveChat(t, h, id)
	}

	rr = httptest.NewRecorder()
	h.NextChatID(rr, chatRequest(http.MethodGet, "/chatIndex/1", nil, map[string]string{"userId": "1"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "5", rr.Body.String())
}

func TestListChats_NoIndex(t *testing.T) {
	h := newChatHandler()

	rr := httptest.NewRecorder()
	h.ListChats(rr, chatRequest(http.MethodGet, "/userChats", nil, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetChat(t *testing.T) {
	h := newChatHandler()
	saveChat(t, h, "3")

	rr := httptest.NewRecorder()
	h.GetChat(rr, chatRequest(http.MethodGet, "/userChats/3", nil, map[string]string{"id": "3"}))
	require.Equal(t, http.StatusOK, rr.Code)

	var tr models.ChatTranscript
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&tr))
	assert.Equal(t, "3", tr.ChatID)
	assert.Equal(t, "hello 3", tr.History[0].Content)

	rr = httptest.NewRecorder()
	h.GetChat(rr, chatRequest(http.MethodGet, "/userChats/9", nil, map[string]string{"id": "9"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestRenameChat(t *testing.T) {
	h := newChatHandler()
	for _, id := range []string{"1", "3", "4"} {
		saveChat(t, h, id)
	}

	rr := httptest.NewRecorder()
	h.RenameChat(rr, chatRequest(http.MethodPut, "/rename/3", models.RenameRequest{NewName: "Trip planning"}, map[string]string{"id": "3"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Chat renamed successfully"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ListChats(rr, chatRequest(http.MethodGet, "/userChats", nil, nil))
	assert.Equal(t, []models.ChatSummary{
		{ChatID: "1", Title: "New Chat"},
		{ChatID: "3", Title: "Trip planning"},
		{ChatID: "4", Title: "New Chat"},
	}, decodeChats(t, rr))
}

func TestRenameChat_Errors(t *testing.T) {
	h := newChatHandler()
	saveChat(t, h, "1")

	tests := []struct {
		name   string
		id     string
		body   interface{}
		status int
	}{
		{"unknown chat", "9", models.RenameRequest{NewName: "x"}, http.StatusNotFound},
		{"empty title", "1", models.RenameRequest{NewName: ""}, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.RenameChat(rr, chatRequest(http.MethodPut, "/rename/"+tc.id, tc.body, map[string]string{"id": tc.id}))
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestDeleteChat_KeepsTranscript(t *testing.T) {
	h := newChatHandler()
	for _, id := range []string{"1", "3", "4"} {
		saveChat(t, h, id)
	}

	rr := httptest.NewRecorder()
	h.DeleteChat(rr, chatRequest(http.MethodDelete, "/delete/4", nil, map[string]string{"id": "4"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Chat deleted successfully"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ListChats(rr, chatRequest(http.MethodGet, "/userChats", nil, nil))
	chats := decodeChats(t, rr)
	require.Len(t, chats, 2)
	assert.Equal(t, "3", chats[1].ChatID)

	rr = httptest.NewRecorder()
	h.GetChat(rr, chatRequest(http.MethodGet, "/userChats/4", nil, map[string]string{"id": "4"}))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.DeleteChat(rr, chatRequest(http.MethodDelete, "/delete/4", nil, map[string]string{"id": "4"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSaveChatLog_AcceptsNumericIDs(t *testing.T) {
	h := newChatHandler()

	req := httptest.NewRequest(http.MethodPost, "/chatLog", bytes.NewBufferString(
		`{"userId":1,"id":2,"history":[{"role":"user","content":"hi"}]}`))
	rr := httptest.NewRecorder()
	h.SaveChatLog(rr, withUser(req, "1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2", rr.Body.String())
}
