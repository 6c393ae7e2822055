// Package llm drafts outreach text from a short instruction using an OpenAI
// chat model.
package llm

import "context"

type DraftKind string

const (
	DraftInviteNote DraftKind = "invite_note"
	DraftMessage    DraftKind = "message"
)

// DraftInput is what the model knows about the recipient.
type DraftInput struct {
	Kind     DraftKind
	Prompt   string
	Name     string
	Headline string
	// MaxChars caps the result; zero means no cap.
	MaxChars int
}

type DraftOutput struct {
	Text string `json:"text"`
}

// Composer turns a prompt into ready-to-send text.
type Composer interface {
	Draft(ctx context.Context, input DraftInput) (string, error)
}
