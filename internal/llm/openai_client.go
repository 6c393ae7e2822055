package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

var ErrNotConfigured = errors.New("no language model configured")

type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client. baseURL may be empty for the public API.
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (c *OpenAIClient) Draft(ctx context.Context, input DraftInput) (string, error) {
	if strings.TrimSpace(input.Prompt) == "" {
		return "", fmt.Errorf("empty prompt")
	}

	system := messageSystemPrompt
	if input.Kind == DraftInviteNote {
		limit := input.MaxChars
		if limit <= 0 {
			limit = 300
		}
		system = fmt.Sprintf(inviteSystemPrompt, limit)
	}

	var sb strings.Builder
	sb.WriteString("INSTRUCTION:\n" + input.Prompt + "\n\n")
	if input.Name != "" {
		sb.WriteString("RECIPIENT NAME:\n" + input.Name + "\n\n")
	}
	if input.Headline != "" {
		sb.WriteString("RECIPIENT HEADLINE:\n" + input.Headline + "\n")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
		MaxTokens:   400,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	content := resp.Choices[0].Message.Content
	var out DraftOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", fmt.Errorf("json parse error: %w | content: %s", err, content)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", fmt.Errorf("model returned empty text")
	}
	return Truncate(text, input.MaxChars), nil
}

// Truncate cuts s to at most max runes, preferring a word boundary.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)[:max]
	cut := string(runes)
	if i := strings.LastIndexAny(cut, " \n"); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
