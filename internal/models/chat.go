package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Role tags a turn as coming from the user or from the model.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// DefaultChatTitle is the title every new chat summary starts with.
const DefaultChatTitle = "New Chat"

// ConversationTurn represents a single message in a conversation.
type ConversationTurn struct {
	Role    Role   `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// ChatTranscript is the full stored history of one chat.
type ChatTranscript struct {
	UserID    string             `json:"userId" bson:"userId"`
	ChatID    string             `json:"id" bson:"id"`
	History   []ConversationTurn `json:"history" bson:"history"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ChatSummary is the list entry for a chat. The client reads the id as "_id".
type ChatSummary struct {
	ChatID string `json:"_id" bson:"_id"`
	Title  string `json:"title" bson:"title"`
}

// ChatIndex is the per-user ordered list of chat summaries.
type ChatIndex struct {
	UserID string        `json:"userId" bson:"userId"`
	Chats  []ChatSummary `json:"chats" bson:"chats"`
}

// Find returns the position of chatID in the index, or -1.
func (ix *ChatIndex) Find(chatID string) int {
	if ix == nil {
		return -1
	}
	for i, c := range ix.Chats {
		if c.ChatID == chatID {
			return i
		}
	}
	return -1
}

// GenerateRequest is the payload sent to the generate endpoint.
// ChatID and Persist are optional; with Persist set the finished exchange is
// stored as part of the same request.
type GenerateRequest struct {
	History []ConversationTurn `json:"history"`
	Message string             `json:"message"`
	ChatID  string             `json:"chatId,omitempty"`
	Persist bool               `json:"persist,omitempty"`
}

// ChatLogRequest stores a finished transcript.
type ChatLogRequest struct {
	UserID  LooseID            `json:"userId"`
	ID      LooseID            `json:"id"`
	History []ConversationTurn `json:"history"`
}

// LooseID decodes from either a JSON string or a JSON number. Web clients send
// numeric ids.
type LooseID string

func (id *LooseID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = LooseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrap(err, "id must be a string or a number")
	}
	*id = LooseID(n.String())
	return nil
}

type RenameRequest struct {
	NewName string `json:"newName"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// NormalizeRole maps a client supplied role onto one of the two recognized tags.
func NormalizeRole(role string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return RoleUser, true
	case "model", "assistant":
		return RoleModel, true
	}
	return "", false
}
