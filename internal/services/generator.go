package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"chatrelay-backend/internal/models"
)

// FragmentStream is a lazy, finite sequence of generated text. Next returns
// io.EOF once the reply is complete. Close must always be called.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

// Generator is the generative backend: given a history and a new message it
// opens a fragment stream for the reply.
type Generator interface {
	StreamReply(ctx context.Context, history []models.ConversationTurn, message string) (FragmentStream, error)
}

type GeneratorConfig struct {
	Provider       string
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIModel    string
	ConcurrentReqs int
}

// NewGenerator builds the generator for the configured provider. The returned
// close func releases the provider client.
func NewGenerator(cfg GeneratorConfig) (Generator, func(), error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		g, err := NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ConcurrentReqs)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case "openai":
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.ConcurrentReqs), func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown generative provider %q", cfg.Provider)
	}
}

// rateSlots is a token bucket bounding concurrent backend sessions.
type rateSlots chan struct{}

func newRateSlots(n int) rateSlots {
	if n < 1 {
		n = 1
	}
	slots := make(rateSlots, n)
	for i := 0; i < n; i++ {
		slots <- struct{}{}
	}
	return slots
}

func (r rateSlots) acquire(ctx context.Context) error {
	select {
	case <-r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return errors.New("timeout waiting for generation slot")
	}
}

func (r rateSlots) release() {
	r <- struct{}{}
}
