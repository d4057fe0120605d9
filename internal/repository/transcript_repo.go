package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"chatrelay-backend/internal/models"
)

type TranscriptRepo struct {
	pool *pgxpool.Pool
}

func NewTranscriptRepo(pool *pgxpool.Pool) *TranscriptRepo {
	return &TranscriptRepo{pool: pool}
}

// Save upserts the transcript for (userID, chatID). The history is replaced
// whole and created_at is kept from the first save.
func (r *TranscriptRepo) Save(ctx context.Context, userID, chatID string, history []models.ConversationTurn) (*models.ChatTranscript, error) {
	if history == nil {
		history = []models.ConversationTurn{}
	}
	historyBytes, err := json.Marshal(history)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode history")
	}

	t := &models.ChatTranscript{UserID: userID, ChatID: chatID, History: history}

	query := `INSERT INTO chat_transcripts (user_id, chat_id, history)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, chat_id) DO UPDATE SET history = EXCLUDED.history, updated_at = NOW()
		RETURNING created_at, updated_at`

	if err := r.pool.QueryRow(ctx, query, userID, chatID, historyBytes).Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to save transcript %s/%s", userID, chatID)
	}
	return t, nil
}

// Fetch returns the newest transcript for the chat, preferring the longer
// history when two rows share an update time.
func (r *TranscriptRepo) Fetch(ctx context.Context, userID, chatID string) (*models.ChatTranscript, error) {
	t := &models.ChatTranscript{}
	var historyBytes []byte

	query := `SELECT user_id, chat_id, history, created_at, updated_at
		FROM chat_transcripts WHERE user_id = $1 AND chat_id = $2
		ORDER BY updated_at DESC, jsonb_array_length(history) DESC
		LIMIT 1`

	err := r.pool.QueryRow(ctx, query, userID, chatID).Scan(
		&t.UserID, &t.ChatID, &historyBytes, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch transcript %s/%s", userID, chatID)
	}

	if err := json.Unmarshal(historyBytes, &t.History); err != nil {
		return nil, errors.Wrap(err, "failed to decode history")
	}
	return t, nil
}
