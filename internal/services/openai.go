package services

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"chatrelay-backend/internal/models"
)

const defaultOpenAIModel = openai.GPT4oMini

type OpenAIService struct {
	client   *openai.Client
	model    string
	rateChan rateSlots
}

func NewOpenAIService(apiKey, model string, concurrentReqs int) *OpenAIService {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIService{
		client:   openai.NewClient(apiKey),
		model:    model,
		rateChan: newRateSlots(concurrentReqs),
	}
}

func (s *OpenAIService) StreamReply(ctx context.Context, history []models.ConversationTurn, message string) (FragmentStream, error) {
	if err := s.rateChan.acquire(ctx); err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: toOpenAIMessages(history, message),
		Stream:   true,
	}
	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		s.rateChan.release()
		return nil, errors.Wrap(err, "failed to open OpenAI stream")
	}

	log.Debug().Int("history_len", len(history)).Str("model", s.model).Msg("OpenAI stream started")
	return &openaiStream{stream: stream, release: s.rateChan.release}, nil
}

type openaiStream struct {
	stream  *openai.ChatCompletionStream
	release func()
	once    sync.Once
}

func (o *openaiStream) Next() (string, error) {
	for {
		resp, err := o.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", errors.Wrap(err, "openai stream receive failed")
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (o *openaiStream) Close() error {
	o.once.Do(func() {
		o.stream.Close()
		o.release()
	})
	return nil
}

// toOpenAIMessages maps the model role onto OpenAI's assistant role and
// appends the new user message.
func toOpenAIMessages(history []models.ConversationTurn, message string) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == models.RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: message})
}
