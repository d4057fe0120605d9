package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"chatrelay-backend/internal/middleware"
	"chatrelay-backend/internal/models"
	"chatrelay-backend/internal/services"
)

type ChatHandler struct {
	chats *services.ChatService
}

func NewChatHandler(chats *services.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// SaveChatLog stores a finished conversation and replies with its chat id.
func (h *ChatHandler) SaveChatLog(w http.ResponseWriter, r *http.Request) {
	var req models.ChatLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := strings.TrimSpace(string(req.UserID))
	if userID == "" {
		userID = middleware.GetUserID(r.Context())
	}

	transcript, err := h.chats.SaveChatLog(r.Context(), userID, string(req.ID), req.History)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeText(w, http.StatusOK, transcript.ChatID)
}

func (h *ChatHandler) NextChatID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if strings.TrimSpace(userID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "userId is required", r))
		return
	}

	next, err := h.chats.NextChatID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, next)
}

func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.ListChats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chats)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	transcript, err := h.chats.FetchChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transcript)
}

func (h *ChatHandler) RenameChat(w http.ResponseWriter, r *http.Request) {
	var req models.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	err := h.chats.RenameChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id"), req.NewName)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Chat renamed successfully"})
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := h.chats.DeleteChat(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Chat deleted successfully"})
}
