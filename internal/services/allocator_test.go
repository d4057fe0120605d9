package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatrelay-backend/internal/models"
)

func index(ids ...string) *models.ChatIndex {
	ix := &models.ChatIndex{UserID: "1"}
	for _, id := range ids {
		ix.Chats = append(ix.Chats, models.ChatSummary{ChatID: id, Title: models.DefaultChatTitle})
	}
	return ix
}

func TestNextChatID(t *testing.T) {
	tests := []struct {
		name     string
		index    *models.ChatIndex
		expected int
	}{
		{"nil index", nil, 1},
		{"empty index", index(), 1},
		{"single chat", index("1"), 2},
		{"gaps after deletes", index("1", "3", "4"), 5},
		{"unordered", index("9", "2", "5"), 10},
		{"skips non numeric ids", index("abc", "2"), 3},
		{"only non numeric ids", index("abc"), 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NextChatID(tc.index))
		})
	}
}
