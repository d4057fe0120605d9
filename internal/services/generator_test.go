package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay-backend/internal/models"
)

func TestToGenaiHistory(t *testing.T) {
	contents := toGenaiHistory([]models.ConversationTurn{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleModel, Content: "hello"},
	})

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("hello")}, contents[1].Parts)
}

func TestExtractText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("foo"), genai.Text("bar")}}},
			{Content: nil},
		},
	}
	assert.Equal(t, "foobar", extractText(resp))
	assert.Equal(t, "", extractText(nil))
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := toOpenAIMessages([]models.ConversationTurn{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleModel, Content: "hello"},
	}, "how are you")

	require.Len(t, msgs, 3)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[2].Role)
	assert.Equal(t, "how are you", msgs[2].Content)
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	_, _, err := NewGenerator(GeneratorConfig{Provider: "markov"})
	assert.Error(t, err)
}

func TestNewGenerator_OpenAI(t *testing.T) {
	g, closeFn, err := NewGenerator(GeneratorConfig{Provider: "openai", OpenAIAPIKey: "sk-test"})
	require.NoError(t, err)
	defer closeFn()

	svc, ok := g.(*OpenAIService)
	require.True(t, ok)
	assert.Equal(t, defaultOpenAIModel, svc.model)
}

func TestRateSlots_BlockUntilReleased(t *testing.T) {
	slots := newRateSlots(1)
	require.NoError(t, slots.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, slots.acquire(ctx), context.DeadlineExceeded)

	slots.release()
	assert.NoError(t, slots.acquire(context.Background()))
}
