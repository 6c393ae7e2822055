package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOpenAI(t *testing.T, reply string, seen *openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDraftInviteNote(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := fakeOpenAI(t, `{"text":"Hi Jane, enjoyed your talk on Go schedulers. Would love to connect."}`, &req)

	c, err := NewOpenAIClient("test-key", srv.URL+"/v1", "")
	require.NoError(t, err)

	text, err := c.Draft(context.Background(), DraftInput{
		Kind:     DraftInviteNote,
		Prompt:   "mention her scheduler talk",
		Name:     "Jane Doe",
		MaxChars: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Jane, enjoyed your talk on Go schedulers. Would love to connect.", text)

	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "300 characters")
	assert.Contains(t, req.Messages[1].Content, "Jane Doe")
	assert.Equal(t, openai.GPT4oMini, req.Model)
}

func TestDraftTruncatesToLimit(t *testing.T) {
	long := strings.Repeat("word ", 100)
	srv := fakeOpenAI(t, `{"text":"`+long+`"}`, nil)
	c, err := NewOpenAIClient("k", srv.URL+"/v1", "gpt-4o")
	require.NoError(t, err)

	text, err := c.Draft(context.Background(), DraftInput{Kind: DraftInviteNote, Prompt: "x", MaxChars: 50})
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(text)), 50)
}

func TestDraftRejectsBadReplies(t *testing.T) {
	for _, reply := range []string{`not json`, `{"text":"   "}`} {
		srv := fakeOpenAI(t, reply, nil)
		c, err := NewOpenAIClient("k", srv.URL+"/v1", "")
		require.NoError(t, err)
		_, err = c.Draft(context.Background(), DraftInput{Kind: DraftMessage, Prompt: "say hi"})
		assert.Error(t, err, reply)
	}
}

func TestNewOpenAIClientNeedsKey(t *testing.T) {
	_, err := NewOpenAIClient("", "", "")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "hello world", Truncate("hello world again", 12))
	assert.Equal(t, "abcdef", Truncate("abcdefghij", 6))
	assert.Equal(t, "anything", Truncate("anything", 0))
}
