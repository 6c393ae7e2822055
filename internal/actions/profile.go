package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/llm"
	"github.com/nbenliogludev/go-browser-run-engine/internal/retry"
)

func (j *job) sendInvite(ctx context.Context, p automation.ConnectionRequestPayload) (*InviteResult, error) {
	profile := normalizeProfileURL(p.ProfileURL)
	if err := j.open(ctx, profile); err != nil {
		return nil, err
	}

	if pending, err := j.exists(ctx, j.sel().Profile.Pending); err != nil {
		return nil, err
	} else if pending {
		return nil, automation.NotApplicable("invitation already pending")
	}
	if degree := j.degree(ctx); isFirstDegree(degree) {
		return nil, automation.NotApplicable("already connected")
	}

	note, err := j.compose(ctx, p.Message, p.Prompt, llm.DraftInviteNote, automation.MaxInviteNote)
	if err != nil {
		return nil, err
	}

	ctl, err := j.locate(ctx, j.sel().Profile.Connect, j.sel().Profile.MoreConnect, "connect")
	if err != nil {
		if pending, _ := j.exists(ctx, j.sel().Profile.MorePending); pending {
			return nil, automation.NotApplicable("invitation already pending")
		}
		return nil, err
	}
	if err := j.h.Click(ctx, j.page, ctl); err != nil {
		return nil, err
	}

	send, err := j.prepareInvite(ctx, note)
	if err != nil {
		return nil, err
	}
	if err := j.submit(ctx, send, p.DryRun); err != nil {
		return nil, err
	}

	return &InviteResult{ProfileURL: profile, Message: MsgInviteSent, Note: note, DryRun: p.DryRun}, nil
}

// prepareInvite fills the invitation dialog and returns the selector of the
// button that sends it.
func (j *job) prepareInvite(ctx context.Context, note string) (string, error) {
	s := j.sel().Invite
	if err := j.waitVisible(ctx, s.Modal); err != nil {
		return "", err
	}
	if note == "" {
		if ok, _ := j.exists(ctx, s.SendWithoutNote); ok {
			return s.SendWithoutNote, nil
		}
		return s.Send, nil
	}

	if err := j.waitVisible(ctx, s.AddNote); err != nil {
		return "", err
	}
	if err := j.h.Click(ctx, j.page, s.AddNote); err != nil {
		return "", err
	}
	if err := j.waitVisible(ctx, s.Note); err != nil {
		return "", err
	}
	if err := j.h.Type(ctx, j.page, s.Note, note); err != nil {
		return "", err
	}
	return s.Send, nil
}

func (j *job) sendMessage(ctx context.Context, p automation.SendMessagePayload) (*MessageResult, error) {
	profile := normalizeProfileURL(p.ProfileURL)
	if err := j.open(ctx, profile); err != nil {
		return nil, err
	}

	text, err := j.compose(ctx, p.Message, p.Prompt, llm.DraftMessage, 0)
	if err != nil {
		return nil, err
	}
	if err := j.openConversation(ctx); err != nil {
		return nil, err
	}

	s := j.sel().Message
	if err := j.h.Type(ctx, j.page, s.Compose, text); err != nil {
		return nil, err
	}
	if err := j.submit(ctx, s.Send, p.DryRun); err != nil {
		return nil, err
	}

	return &MessageResult{ProfileURL: profile, Message: MsgMessageSent, Text: text, DryRun: p.DryRun}, nil
}

// openConversation opens the message overlay for the current profile.
func (j *job) openConversation(ctx context.Context) error {
	ctl, err := j.locate(ctx, j.sel().Profile.Message, j.sel().Profile.MoreMessage, "message")
	if err != nil {
		return err
	}
	if err := j.h.Click(ctx, j.page, ctl); err != nil {
		return err
	}
	return j.waitRetry(ctx, j.sel().Message.Compose)
}

func (j *job) connectionStatus(ctx context.Context, p automation.ConnectionStatusPayload) (*StatusResult, error) {
	profile := normalizeProfileURL(p.ProfileURL)
	if err := j.open(ctx, profile); err != nil {
		return nil, err
	}

	res := &StatusResult{ProfileURL: profile, Status: StatusNotConnected, Degree: j.degree(ctx)}
	pending, err := j.exists(ctx, j.sel().Profile.Pending)
	if err != nil {
		return nil, err
	}
	switch {
	case pending:
		res.Status = StatusPending
	case isFirstDegree(res.Degree):
		res.Status = StatusConnected
	}
	return res, nil
}

func (j *job) messages(ctx context.Context, p automation.GetMessagesPayload) (*MessagesResult, error) {
	profile := normalizeProfileURL(p.ProfileURL)
	if err := j.open(ctx, profile); err != nil {
		return nil, err
	}
	if err := j.openConversation(ctx); err != nil {
		return nil, err
	}

	res := &MessagesResult{ProfileURL: profile, Messages: []string{}}
	if ok, _ := j.exists(ctx, j.sel().Message.Thread); !ok {
		// new conversation, nothing exchanged yet
		return res, nil
	}
	texts, err := j.page.Texts(ctx, j.sel().Message.Event)
	if err != nil {
		return nil, err
	}
	texts = compact(texts)
	if p.Limit > 0 && len(texts) > p.Limit {
		texts = texts[len(texts)-p.Limit:]
	}
	res.Messages = texts
	return res, nil
}

// locate resolves an action control. It tries the primary button, then the
// same action inside the "More" menu, and otherwise reports the action as
// not applicable to this profile.
func (j *job) locate(ctx context.Context, primary, inMenu, action string) (string, error) {
	if ok, err := j.exists(ctx, primary); err != nil {
		return "", err
	} else if ok {
		return primary, nil
	}

	prof := j.sel().Profile
	if ok, err := j.exists(ctx, prof.More); err != nil {
		return "", err
	} else if !ok {
		return "", automation.NotApplicable("no " + action + " control on profile")
	}

	err := retry.Step(ctx, j.e.policy, func(ctx context.Context) error {
		if open, _ := j.exists(ctx, prof.MoreMenu); open {
			return nil
		}
		if err := j.h.Click(ctx, j.page, prof.More); err != nil {
			return err
		}
		return j.waitVisible(ctx, prof.MoreMenu)
	})
	if err != nil {
		return "", err
	}

	if ok, err := j.exists(ctx, inMenu); err != nil {
		return "", err
	} else if ok {
		return inMenu, nil
	}
	return "", automation.NotApplicable("no " + action + " control on profile")
}

func (j *job) degree(ctx context.Context) string {
	sel := j.sel().Profile.Distance
	if ok, _ := j.exists(ctx, sel); !ok {
		return ""
	}
	text, err := j.page.Text(ctx, sel)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func isFirstDegree(degree string) bool {
	return strings.Contains(degree, "1st")
}

// compose returns the literal text if given, otherwise drafts one from
// prompt using the profile currently open.
func (j *job) compose(ctx context.Context, text, prompt string, kind llm.DraftKind, max int) (string, error) {
	if text != "" || prompt == "" {
		return llm.Truncate(strings.TrimSpace(text), max), nil
	}
	if j.e.composer == nil {
		return "", &automation.ValidationError{
			Field:  "prompt",
			Reason: "prompt given but no language model is configured",
			Err:    fmt.Errorf("%w: %w", automation.ErrInvalidPayload, llm.ErrNotConfigured),
		}
	}

	in := llm.DraftInput{Kind: kind, Prompt: prompt, MaxChars: max}
	if ok, _ := j.exists(ctx, j.sel().Profile.Name); ok {
		in.Name, _ = j.page.Text(ctx, j.sel().Profile.Name)
	}
	if ok, _ := j.exists(ctx, j.sel().Profile.Headline); ok {
		in.Headline, _ = j.page.Text(ctx, j.sel().Profile.Headline)
	}
	return j.e.composer.Draft(ctx, in)
}
