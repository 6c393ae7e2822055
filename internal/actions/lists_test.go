package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser/browsertest"
)

func searchPage() *browsertest.Page {
	button := sel.Search.Connect + `[aria-label="Invite Ann Lee to connect"]`
	p := browsertest.NewPage().Show(
		sel.Page.Ready,
		sel.Search.Result,
		sel.Search.Next,
		button,
		sel.Invite.Modal,
		sel.Invite.Send,
		sel.Invite.SendWithoutNote,
		sel.Invite.Dismiss,
	)
	p.AttrsOf[sel.Search.Link+"@href"] = []string{"/in/ann-lee/?miniProfile=1", "https://www.linkedin.com/in/bo-chen/"}
	p.TextsOf[sel.Search.Name] = []string{"Ann Lee", "Bo Chen"}
	p.AttrsOf[sel.Search.Connect+"@aria-label"] = []string{"Invite Ann Lee to connect"}
	return p
}

func TestFindConnectionsCollectsAcrossPages(t *testing.T) {
	page := searchPage()
	out, err := testExecutor().Execute(context.Background(), page, automation.FindConnectionsPayload{Keywords: "go engineer", MaxPages: 2})
	require.NoError(t, err)

	res := out.(*SearchResult)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, []Person{
		{Name: "Ann Lee", ProfileURL: "https://www.linkedin.com/in/ann-lee/"},
		{Name: "Bo Chen", ProfileURL: "https://www.linkedin.com/in/bo-chen/"},
	}, res.People)
	assert.Empty(t, res.Invited)
	assert.Equal(t, 1, page.Count("click "+sel.Search.Next))
	assert.Equal(t, 1, page.Count("navigate https://www.linkedin.com/search/results/people/?keywords=go+engineer"))
}

func TestFindConnectionsDryRunInvitesWithoutSending(t *testing.T) {
	page := searchPage()
	out, err := testExecutor().Execute(context.Background(), page,
		automation.FindConnectionsPayload{Keywords: "go", MaxPages: 1, Connect: true, DryRun: true})
	require.NoError(t, err)

	res := out.(*SearchResult)
	assert.Equal(t, []string{"Ann Lee"}, res.Invited)
	assert.Zero(t, page.Count("click "+sel.Invite.SendWithoutNote))
	assert.Equal(t, 1, page.Count("click "+sel.Invite.Dismiss))
	assert.Zero(t, page.Count("click "+sel.Search.Next))
}

func TestFindConnectionsRespectsInviteBudget(t *testing.T) {
	page := searchPage()
	out, err := testExecutor(WithMaxInvites(1)).Execute(context.Background(), page,
		automation.FindConnectionsPayload{Keywords: "go", MaxPages: 3, Connect: true})
	require.NoError(t, err)
	assert.Len(t, out.(*SearchResult).Invited, 1)
	assert.Equal(t, 1, page.Count("click "+sel.Invite.SendWithoutNote))
}

func TestFindConnectionsRetriesNextPage(t *testing.T) {
	page := searchPage()
	clicks := 0
	page.OnClick = func(p *browsertest.Page, selector string) {
		if selector != sel.Search.Next {
			return
		}
		clicks++
		if clicks == 1 {
			// first click lands while the list re-renders
			p.Hide(sel.Search.Result)
			return
		}
		p.Show(sel.Search.Result)
	}

	out, err := testExecutor().Execute(context.Background(), page, automation.FindConnectionsPayload{Keywords: "go", MaxPages: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, out.(*SearchResult).Pages)
	assert.Equal(t, 2, clicks)
}

func TestCompanyPeople(t *testing.T) {
	button := sel.Company.Connect + `[aria-label="Invite Cy Park to connect"]`
	page := browsertest.NewPage().Show(
		sel.Page.Ready, sel.Company.Link, sel.Company.Person, button,
		sel.Invite.Modal, sel.Invite.Send,
	)
	page.AttrsOf[sel.Company.Link+"@href"] = []string{"https://www.linkedin.com/company/acme/?trk=x"}
	page.AttrsOf[sel.Company.PersonLink+"@href"] = []string{"/in/cy-park/"}
	page.TextsOf[sel.Company.PersonName] = []string{"Cy Park"}
	page.AttrsOf[sel.Company.Connect+"@aria-label"] = []string{"Invite Cy Park to connect"}

	out, err := testExecutor().Execute(context.Background(), page, automation.CompanyPeoplePayload{CompanyName: "Acme", MaxPages: 2})
	require.NoError(t, err)

	res := out.(*SearchResult)
	assert.Equal(t, "Acme", res.Company)
	assert.Equal(t, []Person{{Name: "Cy Park", ProfileURL: "https://www.linkedin.com/in/cy-park/"}}, res.People)
	assert.Equal(t, []string{"Cy Park"}, res.Invited)
	assert.Equal(t, 1, page.Count("navigate https://www.linkedin.com/company/acme/people/"))
	assert.Equal(t, 1, page.Count("click "+sel.Invite.Send))
}

func TestCompanyPeopleUnknownCompany(t *testing.T) {
	page := browsertest.NewPage().Show(sel.Page.Ready)
	_, err := testExecutor().Execute(context.Background(), page, automation.CompanyPeoplePayload{CompanyName: "Nope", MaxPages: 1})
	assert.ErrorIs(t, err, automation.ErrNotApplicable)
}

func TestDownloadConnectionsStopsWhenListSettles(t *testing.T) {
	page := browsertest.NewPage().Show(sel.Page.Ready, sel.Connections.Card)
	page.AttrsOf[sel.Connections.Link+"@href"] = []string{"/in/a/", "/in/b/"}
	page.TextsOf[sel.Connections.Name] = []string{"A", "B"}
	page.TextsOf[sel.Connections.Occupation] = []string{"Engineer", "Designer"}

	out, err := testExecutor().Execute(context.Background(), page, automation.DownloadConnectionsPayload{MaxScrolls: 40})
	require.NoError(t, err)

	res := out.(*ConnectionsResult)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, "Designer", res.Connections[1].Headline)
	assert.Equal(t, stableRounds+1, page.Count("wheel"))
}

func TestRecentPosts(t *testing.T) {
	page := browsertest.NewPage().Show(sel.Page.Ready, sel.Posts.Item+", "+sel.Posts.Empty, sel.Posts.Item)
	page.AttrsOf[sel.Posts.Item+"@data-urn"] = []string{"urn:li:activity:1", "urn:li:activity:2", "urn:li:activity:3"}
	page.TextsOf[sel.Posts.Text] = []string{"first", "second", "third"}

	out, err := testExecutor().Execute(context.Background(), page, automation.RecentPostsPayload{ProfileURL: profileURL, Limit: 2})
	require.NoError(t, err)

	res := out.(*PostsResult)
	assert.Equal(t, []Post{{URN: "urn:li:activity:1", Text: "first"}, {URN: "urn:li:activity:2", Text: "second"}}, res.Posts)
	assert.Equal(t, 1, page.Count("navigate "+profileURL+"/recent-activity/all/"))
	assert.Zero(t, page.Count("wheel"))
}

func TestRecentPostsEmptyFeed(t *testing.T) {
	page := browsertest.NewPage().Show(sel.Page.Ready, sel.Posts.Item+", "+sel.Posts.Empty)
	out, err := testExecutor().Execute(context.Background(), page, automation.RecentPostsPayload{ProfileURL: profileURL, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, out.(*PostsResult).Posts)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "Jane Doe", inviteeName("Invite Jane Doe to connect"))
	assert.Equal(t, `"a \"b\""`, cssString(`a "b"`))
	assert.Equal(t, "https://x.test/in/a/", normalizeProfileURL("https://x.test/in/a?x=1#top"))
	assert.Equal(t, []string{"a", "b"}, compact([]string{" a ", "", "b"}))
}
