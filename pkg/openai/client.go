package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"chatwarden/pkg/logger"
)

// Client represents an OpenAI API client used to give the warden's stock
// announcements a friendlier voice.
type Client struct {
	client *openai.Client
	model  string
	logger *logger.Logger
}

// New creates a new OpenAI client
func New(apiKey, apiBase, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if apiBase != "" {
		config.BaseURL = apiBase
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger.New("openai"),
	}
}

// RephraseAnnouncement asks the model to restate a chat announcement in a
// friendly tone, keeping the meaning and any numbers intact. Returns an
// error on any failure; callers fall back to the original text.
func (c *Client) RephraseAnnouncement(text string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	prompt := fmt.Sprintf(`
You help run a group chat that is only open during scheduled hours.
Rephrase the following announcement in one short friendly sentence.
Keep the exact meaning and keep any numbers unchanged. Reply with the
sentence only, no quotes and no extra text.

Announcement: %s
`, text)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 120,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("chat completion returned empty text")
	}

	c.logger.Debug("Rephrased announcement: %s", out)
	return out, nil
}
