package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay-backend/internal/models"
)

func seedIndex(t *testing.T, s *MemoryStore, userID string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := s.EnsureSummary(context.Background(), userID, id, models.DefaultChatTitle)
		require.NoError(t, err)
	}
}

func TestMemoryStore_EnsureSummaryIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.EnsureSummary(ctx, "1", "7", models.DefaultChatTitle)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.EnsureSummary(ctx, "1", "7", models.DefaultChatTitle)
	require.NoError(t, err)
	assert.False(t, created)

	ix, err := s.List(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []models.ChatSummary{{ChatID: "7", Title: "New Chat"}}, ix.Chats)
}

func TestMemoryStore_EnsureSummaryKeepsExistingTitle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedIndex(t, s, "1", "1")
	require.NoError(t, s.Rename(ctx, "1", "1", "Groceries"))

	_, err := s.EnsureSummary(ctx, "1", "1", models.DefaultChatTitle)
	require.NoError(t, err)

	ix, err := s.List(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", ix.Chats[0].Title)
}

func TestMemoryStore_ListMissingUser(t *testing.T) {
	_, err := NewMemoryStore().List(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RenameOnlyTouchesTarget(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedIndex(t, s, "1", "1", "3", "4")

	require.NoError(t, s.Rename(ctx, "1", "3", "Trip planning"))

	ix, err := s.List(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []models.ChatSummary{
		{ChatID: "1", Title: "New Chat"},
		{ChatID: "3", Title: "Trip planning"},
		{ChatID: "4", Title: "New Chat"},
	}, ix.Chats)
}

func TestMemoryStore_RenameNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	assert.ErrorIs(t, s.Rename(ctx, "1", "3", "x"), ErrNotFound)

	seedIndex(t, s, "1", "1")
	assert.ErrorIs(t, s.Rename(ctx, "1", "3", "x"), ErrNotFound)
}

func TestMemoryStore_DeleteDoesNotCascade(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedIndex(t, s, "1", "1", "3", "4")
	_, err := s.Save(ctx, "1", "4", []models.ConversationTurn{{Role: models.RoleUser, Content: "hi"}})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "1", "4"))

	ix, err := s.List(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []models.ChatSummary{
		{ChatID: "1", Title: "New Chat"},
		{ChatID: "3", Title: "New Chat"},
	}, ix.Chats)

	tr, err := s.Fetch(ctx, "1", "4")
	require.NoError(t, err)
	assert.Equal(t, "hi", tr.History[0].Content)

	assert.ErrorIs(t, s.Delete(ctx, "1", "4"), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "2", "1"), ErrNotFound)
}

func TestMemoryStore_SaveUpsertsByChatID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	first, err := s.Save(ctx, "1", "2", []models.ConversationTurn{{Role: models.RoleUser, Content: "hello"}})
	require.NoError(t, err)

	clock = clock.Add(time.Minute)
	second, err := s.Save(ctx, "1", "2", []models.ConversationTurn{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleModel, Content: "hi there"},
	})
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := s.Fetch(ctx, "1", "2")
	require.NoError(t, err)
	assert.Len(t, got.History, 2)
}

func TestMemoryStore_FetchMissing(t *testing.T) {
	_, err := NewMemoryStore().Fetch(context.Background(), "1", "9")
	assert.ErrorIs(t, err, ErrNotFound)
}
