package services

import (
	"strconv"
	"strings"

	"chatrelay-backend/internal/models"
)

// NextChatID returns max(existing numeric ids)+1, or 1 for a missing or empty
// index. Ids that are not integers are ignored. Nothing is reserved, so two
// callers reading the same index get the same id.
func NextChatID(ix *models.ChatIndex) int {
	if ix == nil {
		return 1
	}

	found := false
	maxID := 0
	for _, c := range ix.Chats {
		n, err := strconv.Atoi(strings.TrimSpace(c.ChatID))
		if err != nil {
			continue
		}
		if !found || n > maxID {
			maxID = n
			found = true
		}
	}

	if !found {
		return 1
	}
	return maxID + 1
}
