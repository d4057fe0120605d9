package services

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"chatrelay-backend/internal/models"
	"chatrelay-backend/internal/repository"
)

type TranscriptStore interface {
	Save(ctx context.Context, userID, chatID string, history []models.ConversationTurn) (*models.ChatTranscript, error)
	Fetch(ctx context.Context, userID, chatID string) (*models.ChatTranscript, error)
}

type ChatIndexStore interface {
	EnsureSummary(ctx context.Context, userID, chatID, defaultTitle string) (bool, error)
	Rename(ctx context.Context, userID, chatID, newTitle string) error
	Delete(ctx context.Context, userID, chatID string) error
	List(ctx context.Context, userID string) (*models.ChatIndex, error)
}

// IndexCache caches whole chat indexes. Implementations treat backend errors
// as misses.
type IndexCache interface {
	Get(ctx context.Context, userID string) (*models.ChatIndex, bool)
	Set(ctx context.Context, ix *models.ChatIndex)
	Invalidate(ctx context.Context, userID string)
}

// EventPublisher delivers index changes to connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, userID string, msg models.WSMessage)
}

type ChatService struct {
	transcripts TranscriptStore
	index       ChatIndexStore
	cache       IndexCache
	events      EventPublisher

	// generations counts index writes per user. A cache fill is dropped when
	// a write happened while the index was being read.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewChatService wires the stores. cache and events may be nil.
func NewChatService(transcripts TranscriptStore, index ChatIndexStore, cache IndexCache, events EventPublisher) *ChatService {
	if cache == nil {
		cache = noopCache{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &ChatService{
		transcripts: transcripts,
		index:       index,
		cache:       cache,
		events:      events,
		generations: make(map[string]uint64),
	}
}

// SaveChatLog stores the finished transcript and makes sure the chat is listed
// in the user's index under the default title.
func (s *ChatService) SaveChatLog(ctx context.Context, userID, chatID string, history []models.ConversationTurn) (*models.ChatTranscript, error) {
	userID = strings.TrimSpace(userID)
	chatID = strings.TrimSpace(chatID)
	if userID == "" {
		return nil, newValidationError("userId", "userId is required")
	}
	if chatID == "" {
		return nil, newValidationError("id", "id is required")
	}

	normalized, err := NormalizeHistory(history)
	if err != nil {
		return nil, err
	}

	transcript, err := s.transcripts.Save(ctx, userID, chatID, normalized)
	if err != nil {
		return nil, err
	}

	created, err := s.index.EnsureSummary(ctx, userID, chatID, models.DefaultChatTitle)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)

	if created {
		s.events.Publish(ctx, userID, models.WSMessage{
			Type:    models.EventChatCreated,
			Payload: models.IndexEvent{UserID: userID, ChatID: chatID, Title: models.DefaultChatTitle},
		})
	}

	log.Info().Str("user_id", userID).Str("chat_id", chatID).Int("turns", len(normalized)).Bool("new_chat", created).Msg("chat log saved")
	return transcript, nil
}

func (s *ChatService) FetchChat(ctx context.Context, userID, chatID string) (*models.ChatTranscript, error) {
	return s.transcripts.Fetch(ctx, userID, chatID)
}

func (s *ChatService) ListChats(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	ix, err := s.loadIndex(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ix.Chats, nil
}

// NextChatID derives the next id from the stored index without reserving it.
// It never reads the cache, so a stale entry cannot hand out a taken id.
func (s *ChatService) NextChatID(ctx context.Context, userID string) (int, error) {
	ix, err := s.index.List(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return NextChatID(ix), nil
}

func (s *ChatService) RenameChat(ctx context.Context, userID, chatID, newTitle string) error {
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return newValidationError("newName", "newName is required")
	}

	if err := s.index.Rename(ctx, userID, chatID, newTitle); err != nil {
		return err
	}
	s.invalidate(ctx, userID)

	s.events.Publish(ctx, userID, models.WSMessage{
		Type:    models.EventChatRenamed,
		Payload: models.IndexEvent{UserID: userID, ChatID: chatID, Title: newTitle},
	})
	return nil
}

// DeleteChat removes the chat from the index only. The transcript is kept and
// can still be fetched by id.
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	if err := s.index.Delete(ctx, userID, chatID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)

	s.events.Publish(ctx, userID, models.WSMessage{
		Type:    models.EventChatDeleted,
		Payload: models.IndexEvent{UserID: userID, ChatID: chatID},
	})
	return nil
}

func (s *ChatService) loadIndex(ctx context.Context, userID string) (*models.ChatIndex, error) {
	if ix, ok := s.cache.Get(ctx, userID); ok {
		return ix, nil
	}

	s.mu.Lock()
	gen := s.generations[userID]
	s.mu.Unlock()

	ix, err := s.index.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] == gen {
		s.cache.Set(ctx, ix)
	} else {
		log.Debug().Str("user_id", userID).Msg("index changed during read, skipping cache fill")
	}
	return ix, nil
}

// invalidate bumps the user's generation before dropping the cache entry so
// that a concurrent loadIndex cannot put the pre-write index back.
func (s *ChatService) invalidate(ctx context.Context, userID string) {
	s.mu.Lock()
	s.generations[userID]++
	s.mu.Unlock()
	s.cache.Invalidate(ctx, userID)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*models.ChatIndex, bool) { return nil, false }
func (noopCache) Set(context.Context, *models.ChatIndex)                 {}
func (noopCache) Invalidate(context.Context, string)                     {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, models.WSMessage) {}
