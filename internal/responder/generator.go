package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/serenlab/serenia/internal/aggregator"
)

const (
	defaultChatModel   = "gpt-4o-mini"
	defaultTemperature = 0.7
	defaultMaxTokens   = 500

	// Resource bodies go into the prompt as excerpts, not full documents.
	excerptLimit = 200
)

// Generator produces a conversational reply from the aggregated context.
// Implementations may fail; the orchestrator falls back to templates.
type Generator interface {
	Generate(ctx context.Context, c *aggregator.Context) (string, error)
}

// OpenAIGenerator backs Generate with a chat completion. It also speaks to
// any OpenAI-compatible endpoint (DeepSeek) via a base URL override.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

func NewOpenAIGenerator(apiKey, baseURL, model string) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultChatModel
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, c *aggregator.Context) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		Messages:    buildMessages(c),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages lays out the request as system prompt, prior turns, then
// the current message, so the model sees the dialogue it is continuing.
func buildMessages(c *aggregator.Context) []openai.ChatCompletionMessage {
	turns := c.Conversation.RecentTurns
	// The current message is persisted before the context builds, so it
	// usually sits at the tail of the history already; don't send it twice.
	if n := len(turns); n > 0 && turns[n-1].Role == "user" && turns[n-1].Content == c.Message {
		turns = turns[:n-1]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem, Content: systemPrompt(c),
	})
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role: role, Content: turn.Content,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: c.Message,
	})
}

func systemPrompt(c *aggregator.Context) string {
	var b strings.Builder
	b.WriteString("Eres SerenIA, una acompañante de bienestar emocional con enfoque espiritual cristiano. ")
	b.WriteString("Responde en español, con calidez y compasión, sin dar consejos médicos.\n\n")

	fmt.Fprintf(&b, "Estado del usuario: ánimo promedio %.1f, tendencia %s, nivel de riesgo %s.\n",
		c.User.MoodPattern.AverageScore, c.User.MoodPattern.Trend, c.Risk.Assessment.Tier)
	if len(c.User.RecentMoods) > 0 {
		latest := c.User.RecentMoods[0]
		fmt.Fprintf(&b, "Ánimo actual: %d/10", latest.Score)
		if latest.Description != "" {
			fmt.Fprintf(&b, " (%s)", latest.Description)
		}
		b.WriteString(".\n")
	}

	if len(c.Conversation.RecentTopics) > 0 {
		fmt.Fprintf(&b, "Temas recientes: %s.\n", strings.Join(c.Conversation.RecentTopics, ", "))
	}
	if len(c.Wellness.Content) > 0 {
		b.WriteString("Material de apoyo disponible:\n")
		for _, r := range c.Wellness.Content {
			fmt.Fprintf(&b, "- %s: %s\n", r.Content.Title, excerpt(r.Content.Body))
		}
	}
	if c.Risk.Assessment.InterventionNeeded {
		b.WriteString("\nIMPORTANTE: el usuario muestra señales de riesgo. Prioriza su seguridad, ")
		b.WriteString("valida sus emociones y menciona la línea de crisis 1-800-273-8255.\n")
	}
	return b.String()
}

func excerpt(body string) string {
	runes := []rune(body)
	if len(runes) <= excerptLimit {
		return body
	}
	return string(runes[:excerptLimit]) + "..."
}
