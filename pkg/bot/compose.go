// Package bot composes and publishes the account's posts: the pinned
// introduction post and one post per trending link.
package bot

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/otherjamesbrown/skyfeed/client"
	"github.com/otherjamesbrown/skyfeed/config"
	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
	"github.com/otherjamesbrown/skyfeed/pkg/rankstore"
	"github.com/otherjamesbrown/skyfeed/pkg/richtext"
)

// MaxMentions caps the accounts credited on a link post.
const MaxMentions = 3

// minTitleGraphemes is the shortest title kept before mentions are dropped
// to make room.
const minTitleGraphemes = 40

// EntryContent is a trending link as stored for posting.
type EntryContent struct {
	Title            string                      `json:"title"`
	URL              string                      `json:"url"`
	RecommendedPosts []rankstore.RecommendedPost `json:"recommended_posts"`
}

// ComposeAnnouncement builds the introduction post:
//
//	<Title><Intro>
//
//	- <feed 1>
//	- <feed 2>
//
//	<FooterText><FooterLink>.
func ComposeAnnouncement(a config.AnnouncementConfig) (*richtext.Post, error) {
	if a.Title == "" {
		return nil, fmt.Errorf("%w: announcement title is empty", sferrors.ErrValidation)
	}

	b := richtext.NewBuilder()
	if a.URL != "" {
		b.Link(a.Title, a.URL)
	} else {
		b.Text(a.Title)
	}
	b.Text(a.Intro)

	for i, f := range a.Feeds {
		if i == 0 {
			b.Text("\n\n- ")
		} else {
			b.Text("\n- ")
		}
		b.Link(f.Label, f.URL)
	}

	if a.FooterText != "" || a.FooterLink.Label != "" {
		b.Text("\n\n" + a.FooterText)
		if a.FooterLink.Label != "" {
			b.Link(a.FooterLink.Label, a.FooterLink.URL)
		}
		b.Text(".")
	}

	post, err := b.Build()
	if err != nil {
		return nil, err
	}
	if n := richtext.GraphemeLen(post.Text); n > richtext.MaxPostGraphemes {
		return nil, fmt.Errorf("%w: announcement is %d graphemes, limit %d",
			sferrors.ErrValidation, n, richtext.MaxPostGraphemes)
	}
	return post, nil
}

// AnnouncementEmbed returns the record embed for the announcement, or nil.
func AnnouncementEmbed(a config.AnnouncementConfig) client.Embed {
	if a.EmbedURI == "" {
		return nil
	}
	return client.RecordEmbed{URI: a.EmbedURI, CID: a.EmbedCID}
}

// mention is a credited account.
type mention struct {
	handle string
	did    string
}

// ComposeEntry builds a link post:
//
//	<title, linked to the URL>
//	<hostname>
//
//	Recommended: @a @b @c
//
// The title is truncated on grapheme boundaries so the whole post fits in
// MaxPostGraphemes.
func ComposeEntry(e EntryContent) (*richtext.Post, error) {
	host, err := Hostname(e.URL)
	if err != nil {
		return nil, err
	}

	title := norm.NFC.String(strings.Join(strings.Fields(e.Title), " "))
	if title == "" {
		title = e.URL
	}

	mentions := creditedAccounts(e.RecommendedPosts)
	tail := "\n" + host
	if len(mentions) > 0 {
		tail += "\n\nRecommended:"
		for _, m := range mentions {
			tail += " @" + m.handle
		}
	}

	budget := richtext.MaxPostGraphemes - richtext.GraphemeLen(tail)
	if budget < minTitleGraphemes && len(mentions) > 0 {
		mentions = nil
		tail = "\n" + host
		budget = richtext.MaxPostGraphemes - richtext.GraphemeLen(tail)
	}
	if budget < 1 {
		return nil, fmt.Errorf("%w: hostname %q leaves no room for a title", sferrors.ErrValidation, host)
	}
	title = richtext.TruncateGraphemes(title, budget)

	b := richtext.NewBuilder().
		Link(title, e.URL).
		Text("\n" + host)
	if len(mentions) > 0 {
		b.Text("\n\nRecommended:")
		for _, m := range mentions {
			b.Text(" ").Mention("@"+m.handle, m.did)
		}
	}
	return b.Build()
}

// creditedAccounts picks up to MaxMentions distinct handles, in rank order,
// whose post URI names a DID.
func creditedAccounts(posts []rankstore.RecommendedPost) []mention {
	seen := make(map[string]bool, len(posts))
	var out []mention
	for _, p := range posts {
		handle := strings.TrimPrefix(strings.TrimSpace(p.Handle), "@")
		if handle == "" || seen[handle] {
			continue
		}
		did, err := DIDFromATURI(p.AtURI)
		if err != nil {
			continue
		}
		seen[handle] = true
		out = append(out, mention{handle: handle, did: did})
		if len(out) == MaxMentions {
			break
		}
	}
	return out
}

// DIDFromATURI returns the repository DID of an at:// URI, e.g.
// "at://did:plc:abc/app.bsky.feed.post/3k" -> "did:plc:abc".
func DIDFromATURI(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return "", fmt.Errorf("%w: not an at:// uri: %q", sferrors.ErrValidation, uri)
	}
	authority, _, _ := strings.Cut(rest, "/")
	if !strings.HasPrefix(authority, "did:") || len(authority) <= len("did:") {
		return "", fmt.Errorf("%w: at:// uri has no did: %q", sferrors.ErrValidation, uri)
	}
	return authority, nil
}

// Hostname returns the host of rawURL without a leading "www.".
func Hostname(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: invalid link url %q", sferrors.ErrValidation, rawURL)
	}
	return strings.TrimPrefix(u.Hostname(), "www."), nil
}
