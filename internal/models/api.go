package models

// WSMessage is a frame pushed to websocket clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventChatCreated = "chat_created"
	EventChatRenamed = "chat_renamed"
	EventChatDeleted = "chat_deleted"
)

// IndexEvent describes a change to a user's chat index.
type IndexEvent struct {
	UserID string `json:"userId"`
	ChatID string `json:"chatId"`
	Title  string `json:"title,omitempty"`
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
