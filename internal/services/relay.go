package services

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"chatrelay-backend/internal/models"
)

// RelaySession is one validated /generate request.
type RelaySession struct {
	UserID  string
	ChatID  string
	Persist bool
	History []models.ConversationTurn
	Message string
}

// RelayResult describes what was forwarded to the client.
type RelayResult struct {
	Fragments int
	Reply     string
}

// MessageRelay forwards a conversation to the generator and hands every
// fragment to the caller as soon as it arrives.
type MessageRelay struct {
	generator Generator
	chats     *ChatService
}

func NewMessageRelay(generator Generator, chats *ChatService) *MessageRelay {
	return &MessageRelay{generator: generator, chats: chats}
}

// Prepare validates the request, normalizes roles and, in persist mode,
// allocates a chat id when the client did not send one.
func (m *MessageRelay) Prepare(ctx context.Context, userID string, req models.GenerateRequest) (*RelaySession, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, newValidationError("message", "message is required")
	}

	history, err := NormalizeHistory(req.History)
	if err != nil {
		return nil, err
	}

	sess := &RelaySession{
		UserID:  userID,
		ChatID:  strings.TrimSpace(req.ChatID),
		Persist: req.Persist,
		History: history,
		Message: req.Message,
	}

	if sess.Persist && sess.ChatID == "" {
		if m.chats == nil {
			return nil, errors.New("persist requested but no chat store configured")
		}
		next, err := m.chats.NextChatID(ctx, userID)
		if err != nil {
			return nil, err
		}
		sess.ChatID = strconv.Itoa(next)
	}
	return sess, nil
}

// Stream runs one generation. emit is called once per fragment, in the order
// the generator produced them. A backend failure is returned as
// *GenerationError; a cancelled ctx returns ctx.Err(). The result always
// reflects what was emitted.
func (m *MessageRelay) Stream(ctx context.Context, sess *RelaySession, emit func(fragment string) error) (*RelayResult, error) {
	result := &RelayResult{}

	stream, err := m.generator.StreamReply(ctx, sess.History, sess.Message)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, &GenerationError{Err: err}
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		fragment, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Reply = reply.String()
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, &GenerationError{Err: err, Fragments: result.Fragments}
		}
		if fragment == "" {
			continue
		}

		if err := emit(fragment); err != nil {
			result.Reply = reply.String()
			return result, errors.Wrap(err, "failed to write fragment")
		}
		result.Fragments++
		reply.WriteString(fragment)
	}

	result.Reply = reply.String()
	log.Debug().Str("user_id", sess.UserID).Int("fragments", result.Fragments).Int("reply_len", len(result.Reply)).Msg("relay stream completed")
	return result, nil
}

// Persist stores history + message + reply as the chat's transcript. It is
// only meaningful after a complete stream.
func (m *MessageRelay) Persist(ctx context.Context, sess *RelaySession, result *RelayResult) error {
	if m.chats == nil {
		return errors.New("no chat store configured")
	}
	history := make([]models.ConversationTurn, 0, len(sess.History)+2)
	history = append(history, sess.History...)
	history = append(history, models.ConversationTurn{Role: models.RoleUser, Content: sess.Message})
	if result.Reply != "" {
		history = append(history, models.ConversationTurn{Role: models.RoleModel, Content: result.Reply})
	}

	_, err := m.chats.SaveChatLog(ctx, sess.UserID, sess.ChatID, history)
	return err
}
