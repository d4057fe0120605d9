package services

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"chatrelay-backend/internal/models"
)

const defaultGeminiModel = "gemini-1.5-flash"

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan rateSlots
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Gemini client")
	}

	if modelName == "" {
		modelName = defaultGeminiModel
	}
	model := client.GenerativeModel(modelName)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockLowAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockLowAndAbove},
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: newRateSlots(concurrentReqs),
	}, nil
}

func (s *GeminiService) Close() {
	if err := s.client.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close gemini client")
	}
}

// StreamReply starts a chat session seeded with history and sends message.
// The rate slot is held until the returned stream is closed.
func (s *GeminiService) StreamReply(ctx context.Context, history []models.ConversationTurn, message string) (FragmentStream, error) {
	if err := s.rateChan.acquire(ctx); err != nil {
		return nil, err
	}

	cs := s.model.StartChat()
	cs.History = toGenaiHistory(history)

	log.Debug().Int("history_len", len(history)).Msg("Gemini stream started")
	iter := cs.SendMessageStream(ctx, genai.Text(message))
	return &geminiStream{iter: iter, release: s.rateChan.release}, nil
}

type geminiStream struct {
	iter     *genai.GenerateContentResponseIterator
	release  func()
	once     sync.Once
	received int
}

func (g *geminiStream) Next() (string, error) {
	for {
		resp, err := g.iter.Next()
		if err == iterator.Done {
			log.Debug().Int("chunks_received", g.received).Msg("Gemini stream completed")
			return "", io.EOF
		}
		if err != nil {
			return "", errors.Wrap(err, "gemini stream receive failed")
		}
		g.received++
		if text := extractText(resp); text != "" {
			return text, nil
		}
	}
}

func (g *geminiStream) Close() error {
	g.once.Do(g.release)
	return nil
}

func toGenaiHistory(history []models.ConversationTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		contents = append(contents, &genai.Content{
			Role:  string(turn.Role),
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return contents
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
