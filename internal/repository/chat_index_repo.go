package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"chatrelay-backend/internal/models"
)

// ChatIndexRepo keeps one JSONB array of summaries per user. Every operation
// is a single statement; concurrent writers for the same user race and the
// last write wins.
type ChatIndexRepo struct {
	pool *pgxpool.Pool
}

func NewChatIndexRepo(pool *pgxpool.Pool) *ChatIndexRepo {
	return &ChatIndexRepo{pool: pool}
}

// EnsureSummary inserts a summary unless one with chatID already exists. It
// reports whether the index changed.
func (r *ChatIndexRepo) EnsureSummary(ctx context.Context, userID, chatID, defaultTitle string) (bool, error) {
	query := `INSERT INTO chat_indexes (user_id, chats)
		VALUES ($1, jsonb_build_array(jsonb_build_object('_id', $2::text, 'title', $3::text)))
		ON CONFLICT (user_id) DO UPDATE SET chats = chat_indexes.chats || EXCLUDED.chats
		WHERE NOT chat_indexes.chats @> jsonb_build_array(jsonb_build_object('_id', $2::text))`

	tag, err := r.pool.Exec(ctx, query, userID, chatID, defaultTitle)
	if err != nil {
		return false, errors.Wrapf(err, "failed to ensure summary %s/%s", userID, chatID)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChatIndexRepo) Rename(ctx context.Context, userID, chatID, newTitle string) error {
	query := `UPDATE chat_indexes SET chats = (
			SELECT jsonb_agg(
				CASE WHEN elem->>'_id' = $2 THEN jsonb_set(elem, '{title}', to_jsonb($3::text)) ELSE elem END
				ORDER BY ord)
			FROM jsonb_array_elements(chats) WITH ORDINALITY AS t(elem, ord))
		WHERE user_id = $1 AND chats @> jsonb_build_array(jsonb_build_object('_id', $2::text))`

	tag, err := r.pool.Exec(ctx, query, userID, chatID, newTitle)
	if err != nil {
		return errors.Wrapf(err, "failed to rename chat %s/%s", userID, chatID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ChatIndexRepo) Delete(ctx context.Context, userID, chatID string) error {
	query := `UPDATE chat_indexes SET chats = COALESCE((
			SELECT jsonb_agg(elem ORDER BY ord)
			FROM jsonb_array_elements(chats) WITH ORDINALITY AS t(elem, ord)
			WHERE elem->>'_id' <> $2), '[]'::jsonb)
		WHERE user_id = $1 AND chats @> jsonb_build_array(jsonb_build_object('_id', $2::text))`

	tag, err := r.pool.Exec(ctx, query, userID, chatID)
	if err != nil {
		return errors.Wrapf(err, "failed to delete chat %s/%s", userID, chatID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ChatIndexRepo) List(ctx context.Context, userID string) (*models.ChatIndex, error) {
	var chatsBytes []byte
	err := r.pool.QueryRow(ctx, "SELECT chats FROM chat_indexes WHERE user_id = $1", userID).Scan(&chatsBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load chat index for %s", userID)
	}

	ix := &models.ChatIndex{UserID: userID, Chats: []models.ChatSummary{}}
	if err := json.Unmarshal(chatsBytes, &ix.Chats); err != nil {
		return nil, errors.Wrap(err, "failed to decode chat index")
	}
	return ix, nil
}
