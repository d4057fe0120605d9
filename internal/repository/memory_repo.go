package repository

import (
	"context"
	"sync"
	"time"

	"chatrelay-backend/internal/models"
)

type transcriptKey struct {
	userID string
	chatID string
}

// MemoryStore is a process-local Transcript Store and Chat Index used for
// development and tests. The mutex only keeps the maps consistent; callers
// still see read-modify-write semantics across separate calls.
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[transcriptKey]*models.ChatTranscript
	indexes     map[string]*models.ChatIndex
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transcripts: make(map[transcriptKey]*models.ChatTranscript),
		indexes:     make(map[string]*models.ChatIndex),
		now:         time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, userID, chatID string, history []models.ConversationTurn) (*models.ChatTranscript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	key := transcriptKey{userID, chatID}
	t, ok := s.transcripts[key]
	if !ok {
		t = &models.ChatTranscript{UserID: userID, ChatID: chatID, CreatedAt: now}
		s.transcripts[key] = t
	}
	t.History = append([]models.ConversationTurn{}, history...)
	t.UpdatedAt = now

	out := *t
	return &out, nil
}

func (s *MemoryStore) Fetch(ctx context.Context, userID, chatID string) (*models.ChatTranscript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[transcriptKey{userID, chatID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	out.History = append([]models.ConversationTurn{}, t.History...)
	return &out, nil
}

func (s *MemoryStore) EnsureSummary(ctx context.Context, userID, chatID, defaultTitle string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix, ok := s.indexes[userID]
	if !ok {
		s.indexes[userID] = &models.ChatIndex{
			UserID: userID,
			Chats:  []models.ChatSummary{{ChatID: chatID, Title: defaultTitle}},
		}
		return true, nil
	}
	if ix.Find(chatID) != -1 {
		return false, nil
	}
	ix.Chats = append(ix.Chats, models.ChatSummary{ChatID: chatID, Title: defaultTitle})
	return true, nil
}

func (s *MemoryStore) Rename(ctx context.Context, userID, chatID, newTitle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix, ok := s.indexes[userID]
	if !ok {
		return ErrNotFound
	}
	i := ix.Find(chatID)
	if i == -1 {
		return ErrNotFound
	}
	ix.Chats[i].Title = newTitle
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ix, ok := s.indexes[userID]
	if !ok {
		return ErrNotFound
	}
	i := ix.Find(chatID)
	if i == -1 {
		return ErrNotFound
	}
	ix.Chats = append(ix.Chats[:i:i], ix.Chats[i+1:]...)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, userID string) (*models.ChatIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, ok := s.indexes[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.ChatIndex{
		UserID: ix.UserID,
		Chats:  append([]models.ChatSummary{}, ix.Chats...),
	}, nil
}
