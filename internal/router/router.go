package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chatrelay-backend/internal/handlers"
	"chatrelay-backend/internal/middleware"
	"chatrelay-backend/internal/websocket"
)

func New(
	generateHandler *handlers.GenerateHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	clientURL string,
	defaultUserID string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(clientURL))
	r.Use(middleware.Principal(defaultUserID))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ──── Relay ────
	r.Post("/generate", generateHandler.Generate)

	// ──── Chat persistence ────
	r.Post("/chatLog", chatHandler.SaveChatLog)
	r.Get("/chatIndex/{userId}", chatHandler.NextChatID)
	r.Get("/userChats", chatHandler.ListChats)
	r.Get("/userChats/{id}", chatHandler.GetChat)
	r.Put("/rename/{id}", chatHandler.RenameChat)
	r.Delete("/delete/{id}", chatHandler.DeleteChat)

	// ──── WebSocket ────
	r.Get("/ws", wsHub.HandleWebSocket)

	return r
}
