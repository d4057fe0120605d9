package services

import (
	"fmt"
	"strings"

	"chatrelay-backend/internal/models"
)

// NormalizeHistory maps every role onto user/model and rejects turns with an
// unknown role or empty content. The input slice is not modified.
func NormalizeHistory(history []models.ConversationTurn) ([]models.ConversationTurn, error) {
	out := make([]models.ConversationTurn, len(history))
	for i, turn := range history {
		role, ok := models.NormalizeRole(string(turn.Role))
		if !ok {
			return nil, newValidationError(fmt.Sprintf("history[%d].role", i), "role must be user or model")
		}
		if strings.TrimSpace(turn.Content) == "" {
			return nil, newValidationError(fmt.Sprintf("history[%d].content", i), "content is required")
		}
		out[i] = models.ConversationTurn{Role: role, Content: turn.Content}
	}
	return out, nil
}
