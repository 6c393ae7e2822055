package actions

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser/browsertest"
	"github.com/nbenliogludev/go-browser-run-engine/internal/humanize"
	"github.com/nbenliogludev/go-browser-run-engine/internal/llm"
	"github.com/nbenliogludev/go-browser-run-engine/internal/retry"
)

var sel = DefaultSelectors()

const profileURL = "https://www.linkedin.com/in/jane-doe"

func instantHuman() *humanize.Humanizer {
	return humanize.New(
		humanize.WithSeed(1),
		humanize.WithScale(0),
		humanize.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
}

func testExecutor(opts ...Option) *Executor {
	base := []Option{
		WithHumanizer(instantHuman),
		WithRetryPolicy(retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}),
		WithWaitTimeout(time.Second),
	}
	return NewExecutor(append(base, opts...)...)
}

// invitablePage is a profile with a primary connect button and an open
// invitation dialog.
func invitablePage() *browsertest.Page {
	p := browsertest.NewPage().Show(
		sel.Page.Ready,
		sel.Profile.Name,
		sel.Profile.Connect,
		sel.Invite.Modal,
		sel.Invite.AddNote,
		sel.Invite.Note,
		sel.Invite.Send,
		sel.Invite.SendWithoutNote,
	)
	p.TextOf[sel.Profile.Name] = "Jane Doe"
	return p
}

func TestInviteDryRunMatchesLiveUpToSubmit(t *testing.T) {
	for _, note := range []string{"", "Hi"} {
		t.Run("note="+note, func(t *testing.T) {
			dryPage, livePage := invitablePage(), invitablePage()
			ex := testExecutor()

			dry, err := ex.Execute(context.Background(), dryPage, automation.ConnectionRequestPayload{ProfileURL: profileURL, Message: note, DryRun: true})
			require.NoError(t, err)
			_, err = ex.Execute(context.Background(), livePage, automation.ConnectionRequestPayload{ProfileURL: profileURL, Message: note})
			require.NoError(t, err)

			submit := sel.Invite.Send
			if note == "" {
				submit = sel.Invite.SendWithoutNote
			}

			dryCalls, liveCalls := dryPage.Calls(), livePage.Calls()
			require.Greater(t, len(liveCalls), len(dryCalls))
			assert.Equal(t, dryCalls, liveCalls[:len(dryCalls)], "steps before submit must be identical")
			assert.Equal(t, "click "+submit, liveCalls[len(liveCalls)-1])
			for _, c := range liveCalls[len(dryCalls) : len(liveCalls)-1] {
				assert.Equal(t, "mouse", c)
			}
			assert.Zero(t, dryPage.Count("click "+submit))
			assert.Equal(t, "wait "+submit, dryCalls[len(dryCalls)-1])

			res := dry.(*InviteResult)
			assert.Equal(t, MsgInviteSent, res.Message)
			assert.True(t, res.DryRun)
			assert.Equal(t, profileURL+"/", res.ProfileURL)
		})
	}
}

func TestInviteTypesNote(t *testing.T) {
	page := invitablePage()
	_, err := testExecutor().Execute(context.Background(), page, automation.ConnectionRequestPayload{ProfileURL: profileURL, Message: "Hi Jane"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count("click "+sel.Invite.AddNote))
	assert.Equal(t, 1, page.Count("type "+sel.Invite.Note+" Hi Jane"))
	assert.Equal(t, 1, page.Count("navigate "+profileURL+"/"))
}

func TestInviteFallsBackToMoreMenu(t *testing.T) {
	page := invitablePage().Hide(sel.Profile.Connect).Show(sel.Profile.More)
	page.OnClick = func(p *browsertest.Page, selector string) {
		if selector == sel.Profile.More {
			p.Show(sel.Profile.MoreMenu, sel.Profile.MoreConnect)
		}
	}

	_, err := testExecutor().Execute(context.Background(), page, automation.ConnectionRequestPayload{ProfileURL: profileURL})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count("click "+sel.Profile.More))
	assert.Equal(t, 1, page.Count("click "+sel.Profile.MoreConnect))
	assert.Equal(t, 1, page.Count("click "+sel.Invite.SendWithoutNote))
}

func TestInviteNotApplicable(t *testing.T) {
	cases := map[string]func() *browsertest.Page{
		"no control anywhere": func() *browsertest.Page {
			return invitablePage().Hide(sel.Profile.Connect)
		},
		"menu without connect": func() *browsertest.Page {
			return invitablePage().Hide(sel.Profile.Connect).Show(sel.Profile.More, sel.Profile.MoreMenu)
		},
		"already pending": func() *browsertest.Page {
			return invitablePage().Show(sel.Profile.Pending)
		},
		"already connected": func() *browsertest.Page {
			p := invitablePage().Show(sel.Profile.Distance)
			p.TextOf[sel.Profile.Distance] = "· 1st"
			return p
		},
	}
	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			page := build()
			_, err := testExecutor().Execute(context.Background(), page, automation.ConnectionRequestPayload{ProfileURL: profileURL})
			require.ErrorIs(t, err, automation.ErrNotApplicable)
			assert.Zero(t, page.Count("click "+sel.Invite.Send))
			assert.Zero(t, page.Count("click "+sel.Invite.SendWithoutNote))
		})
	}
}

type stubComposer struct {
	got  llm.DraftInput
	text string
	err  error
}

func (s *stubComposer) Draft(_ context.Context, in llm.DraftInput) (string, error) {
	s.got = in
	return s.text, s.err
}

func TestInviteDraftsNoteFromPrompt(t *testing.T) {
	composer := &stubComposer{text: "Hi Jane, let's connect."}
	page := invitablePage()

	out, err := testExecutor(WithComposer(composer)).Execute(context.Background(), page,
		automation.ConnectionRequestPayload{ProfileURL: profileURL, Prompt: "friendly", DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "Hi Jane, let's connect.", out.(*InviteResult).Note)
	assert.Equal(t, "Jane Doe", composer.got.Name)
	assert.Equal(t, llm.DraftInviteNote, composer.got.Kind)
	assert.Equal(t, automation.MaxInviteNote, composer.got.MaxChars)
}

func TestPromptWithoutComposerIsValidation(t *testing.T) {
	_, err := testExecutor().Execute(context.Background(), invitablePage(),
		automation.ConnectionRequestPayload{ProfileURL: profileURL, Prompt: "friendly"})
	var verr *automation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "prompt", verr.Field)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func messagePage() *browsertest.Page {
	return browsertest.NewPage().Show(sel.Page.Ready, sel.Profile.Message, sel.Message.Compose, sel.Message.Send)
}

func TestSendMessage(t *testing.T) {
	page := messagePage()
	out, err := testExecutor().Execute(context.Background(), page, automation.SendMessagePayload{ProfileURL: profileURL, Message: "Hello there"})
	require.NoError(t, err)

	res := out.(*MessageResult)
	assert.Equal(t, MsgMessageSent, res.Message)
	assert.Equal(t, "Hello there", res.Text)
	calls := page.Calls()
	assert.Equal(t, "click "+sel.Message.Send, calls[len(calls)-1])
	assert.Equal(t, 1, page.Count("type "+sel.Message.Compose+" Hello there"))
}

func TestSendMessageDryRunSkipsSend(t *testing.T) {
	page := messagePage()
	_, err := testExecutor().Execute(context.Background(), page, automation.SendMessagePayload{ProfileURL: profileURL, Message: "Hello", DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, page.Count("click "+sel.Message.Send))
	assert.Equal(t, 1, page.Count("wait "+sel.Message.Send))
}

func TestSendMessageNotConnected(t *testing.T) {
	page := browsertest.NewPage().Show(sel.Page.Ready)
	_, err := testExecutor().Execute(context.Background(), page, automation.SendMessagePayload{ProfileURL: profileURL, Message: "Hello"})
	assert.ErrorIs(t, err, automation.ErrNotApplicable)
}

func TestConnectionStatus(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(p *browsertest.Page)
		status ConnectionStatus
	}{
		{"connected", func(p *browsertest.Page) {
			p.Show(sel.Profile.Distance)
			p.TextOf[sel.Profile.Distance] = "· 1st"
		}, StatusConnected},
		{"pending", func(p *browsertest.Page) { p.Show(sel.Profile.Pending) }, StatusPending},
		{"stranger", func(p *browsertest.Page) {
			p.Show(sel.Profile.Distance)
			p.TextOf[sel.Profile.Distance] = "· 3rd+"
		}, StatusNotConnected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := browsertest.NewPage().Show(sel.Page.Ready)
			tc.setup(page)
			out, err := testExecutor().Execute(context.Background(), page, automation.ConnectionStatusPayload{ProfileURL: profileURL})
			require.NoError(t, err)
			assert.Equal(t, tc.status, out.(*StatusResult).Status)
		})
	}
}

func TestGetMessagesKeepsLatest(t *testing.T) {
	page := messagePage().Show(sel.Message.Thread)
	page.TextsOf[sel.Message.Event] = []string{"one", " ", "two", "three"}

	out, err := testExecutor().Execute(context.Background(), page, automation.GetMessagesPayload{ProfileURL: profileURL, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, out.(*MessagesResult).Messages)
}

func TestNavigationFailureSurfaces(t *testing.T) {
	page := invitablePage()
	page.Fail["navigate "+profileURL+"/"] = errors.New("net::ERR_TOO_MANY_REDIRECTS")

	_, err := testExecutor().Execute(context.Background(), page, automation.ConnectionStatusPayload{ProfileURL: profileURL})
	require.ErrorIs(t, err, browser.ErrNavigation)
	assert.Contains(t, err.Error(), "ERR_TOO_MANY_REDIRECTS")
}

type bogusPayload struct{}

func (bogusPayload) RunType() automation.RunType { return "BOGUS" }

func TestExecuteRejectsUnknownPayload(t *testing.T) {
	_, err := testExecutor().Execute(context.Background(), browsertest.NewPage(), bogusPayload{})
	assert.ErrorIs(t, err, automation.ErrUnknownRunType)
}

func TestPerformReleasesSession(t *testing.T) {
	page := browsertest.NewPage().Show(sel.Page.Ready)
	f := browsertest.NewFactory(page)
	scope := browser.Scope{Factory: f, CaptureOnFailure: true}

	_, err := testExecutor().Perform(context.Background(), scope, browser.SessionSpec{}, automation.SendMessagePayload{ProfileURL: profileURL, Message: "x"})
	require.ErrorIs(t, err, automation.ErrNotApplicable)
	assert.Equal(t, 0, f.Open())
	_, ok := browser.SnapshotFrom(err)
	assert.True(t, ok)
}

func TestLoadSelectorsOverlay(t *testing.T) {
	path := t.TempDir() + "/sel.yaml"
	require.NoError(t, os.WriteFile(path, []byte("baseUrl: https://example.test/\nprofile:\n  connect: button.c\n"), 0o600))

	s, err := LoadSelectors(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", s.BaseURL)
	assert.Equal(t, "button.c", s.Profile.Connect)
	assert.Equal(t, sel.Profile.Message, s.Profile.Message)
	assert.True(t, strings.HasPrefix(sel.BaseURL, "https://"))
}
