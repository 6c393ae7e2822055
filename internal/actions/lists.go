package actions

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/retry"
)

// stableRounds is how many scroll rounds without new cards end an infinite
// list.
const stableRounds = 3

func (j *job) findConnections(ctx context.Context, p automation.FindConnectionsPayload) (*SearchResult, error) {
	s := j.sel().Search
	res := &SearchResult{Keywords: p.Keywords, People: []Person{}, Invited: []string{}, DryRun: p.DryRun}

	target := j.absolute(fmt.Sprintf(s.PeoplePath, url.QueryEscape(p.Keywords)))
	if err := j.open(ctx, target); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	for page := 1; page <= p.MaxPages; page++ {
		if err := j.waitRetry(ctx, s.Result); err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}
		res.Pages = page
		if err := j.h.Scroll(ctx, j.page, 2); err != nil {
			return nil, err
		}

		people, err := j.collect(ctx, s.Link, s.Name)
		if err != nil {
			return nil, err
		}
		for _, person := range people {
			if !seen[person.ProfileURL] {
				seen[person.ProfileURL] = true
				res.People = append(res.People, person)
			}
		}

		if p.Connect {
			invited, err := j.inviteListed(ctx, s.Connect, p.Message, p.DryRun, j.e.maxInvites-len(res.Invited))
			if err != nil {
				return nil, err
			}
			res.Invited = append(res.Invited, invited...)
		}

		if page == p.MaxPages {
			break
		}
		if ok, err := j.exists(ctx, s.Next); err != nil {
			return nil, err
		} else if !ok {
			break
		}
		// advancing is the flakiest step: the list re-renders under us
		err = retry.Step(ctx, j.e.policy, func(ctx context.Context) error {
			if err := j.h.Click(ctx, j.page, s.Next); err != nil {
				return err
			}
			return j.waitVisible(ctx, s.Result)
		})
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (j *job) companyPeople(ctx context.Context, p automation.CompanyPeoplePayload) (*SearchResult, error) {
	s := j.sel().Company
	res := &SearchResult{Company: p.CompanyName, People: []Person{}, Invited: []string{}, DryRun: p.DryRun}

	if err := j.open(ctx, j.absolute(fmt.Sprintf(s.SearchPath, url.QueryEscape(p.CompanyName)))); err != nil {
		return nil, err
	}
	if err := j.waitRetry(ctx, s.Link); err != nil {
		return nil, automation.NotApplicable("company " + p.CompanyName + " not found")
	}
	links, err := j.page.Attrs(ctx, s.Link, "href")
	if err != nil {
		return nil, err
	}
	links = compact(links)
	if len(links) == 0 {
		return nil, automation.NotApplicable("company " + p.CompanyName + " not found")
	}

	people := strings.TrimRight(j.absolute(stripQuery(links[0])), "/") + "/" + s.PeoplePath
	if err := j.open(ctx, people); err != nil {
		return nil, err
	}
	if err := j.waitRetry(ctx, s.Person); err != nil {
		return nil, err
	}

	for round := 1; round <= p.MaxPages; round++ {
		res.Pages = round
		if err := j.h.Scroll(ctx, j.page, 2); err != nil {
			return nil, err
		}
		if round == p.MaxPages {
			break
		}
		more, err := j.exists(ctx, s.ShowMore)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if err := retry.Step(ctx, j.e.policy, func(ctx context.Context) error {
			return j.h.Click(ctx, j.page, s.ShowMore)
		}); err != nil {
			return nil, err
		}
	}

	found, err := j.collect(ctx, s.PersonLink, s.PersonName)
	if err != nil {
		return nil, err
	}
	res.People = append(res.People, found...)

	invited, err := j.inviteListed(ctx, s.Connect, "", p.DryRun, j.e.maxInvites)
	if err != nil {
		return nil, err
	}
	res.Invited = invited
	return res, nil
}

// inviteListed sends an invitation from every connect button matched by
// selector, up to budget. Each button is addressed by its own label so a
// dry run, which leaves the buttons in place, never visits one twice.
func (j *job) inviteListed(ctx context.Context, selector, note string, dry bool, budget int) ([]string, error) {
	invited := []string{}
	if budget <= 0 {
		return invited, nil
	}
	labels, err := j.page.Attrs(ctx, selector, "aria-label")
	if err != nil {
		return nil, err
	}

	for _, label := range compact(labels) {
		if len(invited) >= budget {
			break
		}
		button := selector + "[aria-label=" + cssString(label) + "]"
		if err := j.h.Click(ctx, j.page, button); err != nil {
			return nil, err
		}
		send, err := j.prepareInvite(ctx, note)
		if err != nil {
			return nil, err
		}
		if err := j.submit(ctx, send, dry); err != nil {
			return nil, err
		}
		if open, _ := j.exists(ctx, j.sel().Invite.Dismiss); open {
			if err := j.h.Click(ctx, j.page, j.sel().Invite.Dismiss); err != nil {
				return nil, err
			}
		}
		invited = append(invited, inviteeName(label))
	}
	return invited, nil
}

func (j *job) downloadConnections(ctx context.Context, p automation.DownloadConnectionsPayload) (*ConnectionsResult, error) {
	s := j.sel().Connections
	if err := j.open(ctx, j.absolute(s.Path)); err != nil {
		return nil, err
	}
	if err := j.waitRetry(ctx, s.Card); err != nil {
		return nil, err
	}

	last, stable := -1, 0
	for i := 0; i < p.MaxScrolls && stable < stableRounds; i++ {
		links, err := j.page.Attrs(ctx, s.Link, "href")
		if err != nil {
			return nil, err
		}
		if len(links) == last {
			stable++
		} else {
			stable = 0
		}
		last = len(links)

		if err := j.h.Scroll(ctx, j.page, 1); err != nil {
			return nil, err
		}
		if more, _ := j.exists(ctx, s.ShowMore); more {
			if err := j.h.Click(ctx, j.page, s.ShowMore); err != nil {
				return nil, err
			}
		}
	}

	people, err := j.collect(ctx, s.Link, s.Name)
	if err != nil {
		return nil, err
	}
	occupations, err := j.page.Texts(ctx, s.Occupation)
	if err != nil {
		return nil, err
	}
	if len(occupations) == len(people) {
		for i := range people {
			people[i].Headline = strings.TrimSpace(occupations[i])
		}
	}
	return &ConnectionsResult{Total: len(people), Connections: people}, nil
}

func (j *job) recentPosts(ctx context.Context, p automation.RecentPostsPayload) (*PostsResult, error) {
	s := j.sel().Posts
	profile := normalizeProfileURL(p.ProfileURL)
	res := &PostsResult{ProfileURL: profile, Posts: []Post{}}

	if err := j.open(ctx, profile+s.Path); err != nil {
		return nil, err
	}
	if err := j.waitRetry(ctx, s.Item+", "+s.Empty); err != nil {
		return nil, err
	}
	if ok, err := j.exists(ctx, s.Item); err != nil {
		return nil, err
	} else if !ok {
		return res, nil
	}

	for bursts := 0; bursts < p.Limit/3+2; bursts++ {
		urns, err := j.page.Attrs(ctx, s.Item, "data-urn")
		if err != nil {
			return nil, err
		}
		if len(urns) >= p.Limit {
			break
		}
		if err := j.h.Scroll(ctx, j.page, 1); err != nil {
			return nil, err
		}
	}

	urns, err := j.page.Attrs(ctx, s.Item, "data-urn")
	if err != nil {
		return nil, err
	}
	texts, err := j.page.Texts(ctx, s.Text)
	if err != nil {
		return nil, err
	}
	for i, urn := range urns {
		if len(res.Posts) >= p.Limit {
			break
		}
		post := Post{URN: urn}
		if i < len(texts) {
			post.Text = strings.TrimSpace(texts[i])
		}
		res.Posts = append(res.Posts, post)
	}
	return res, nil
}

// collect zips profile links with their display names.
func (j *job) collect(ctx context.Context, linkSel, nameSel string) ([]Person, error) {
	links, err := j.page.Attrs(ctx, linkSel, "href")
	if err != nil {
		return nil, err
	}
	names, err := j.page.Texts(ctx, nameSel)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	out := make([]Person, 0, len(links))
	for i, href := range links {
		if href == "" {
			continue
		}
		profile := normalizeProfileURL(j.absolute(href))
		if seen[profile] {
			continue
		}
		seen[profile] = true
		person := Person{ProfileURL: profile}
		if i < len(names) {
			person.Name = strings.TrimSpace(names[i])
		}
		out = append(out, person)
	}
	return out, nil
}

func (j *job) absolute(ref string) string {
	base, err := url.Parse(j.sel().BaseURL + "/")
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// normalizeProfileURL drops query and fragment and ensures a trailing slash.
func normalizeProfileURL(raw string) string {
	return strings.TrimRight(stripQuery(raw), "/") + "/"
}

func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery, u.Fragment = "", ""
	return u.String()
}

// inviteeName turns "Invite Jane Doe to connect" into "Jane Doe".
func inviteeName(label string) string {
	name := strings.TrimPrefix(label, "Invite ")
	return strings.TrimSpace(strings.TrimSuffix(name, " to connect"))
}

func cssString(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}

func compact(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
