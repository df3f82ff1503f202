package rankstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/otherjamesbrown/skyfeed/pkg/blend"
	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// RecommendedPost is a post that shared a trending link.
type RecommendedPost struct {
	Rank     int    `json:"rank"`
	AtURI    string `json:"at_uri"`
	Username string `json:"username"`
	Handle   string `json:"handle"`
	Text     string `json:"text,omitempty"`
}

// Link is one trending link in a snapshot.
type Link struct {
	Rank             int               `json:"rank"`
	URL              string            `json:"url"`
	Title            string            `json:"title"`
	Host             string            `json:"host,omitempty"`
	RecommendedPosts []RecommendedPost `json:"recommended_posts"`
}

// Snapshot is the link aggregation's top-links document.
type Snapshot struct {
	TopHour []Link `json:"top_hour"`
	TopDay  []Link `json:"top_day"`
	TopWeek []Link `json:"top_week"`
}

// ParseSnapshot decodes a top-links document.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", sferrors.ErrMalformedUpstream, err)
	}
	return &s, nil
}

// Lists flattens each window into post URIs: links in rank order, and within
// a link its recommended posts in the order given. Posts without a URI are
// dropped.
func (s *Snapshot) Lists() blend.Lists {
	return blend.Lists{
		WindowHour: postURIs(s.TopHour),
		WindowDay:  postURIs(s.TopDay),
		WindowWeek: postURIs(s.TopWeek),
	}
}

func postURIs(links []Link) []string {
	out := make([]string, 0, len(links)*2)
	for _, l := range links {
		for _, p := range l.RecommendedPosts {
			if p.AtURI != "" {
				out = append(out, p.AtURI)
			}
		}
	}
	return out
}

// Import writes every window of the snapshot to s and returns how many items
// each window received.
func Import(ctx context.Context, s Store, snap *Snapshot) (map[string]int, error) {
	counts := make(map[string]int, len(DefaultWindows))
	lists := snap.Lists()
	for _, w := range DefaultWindows {
		if err := s.Put(ctx, w, lists[w]); err != nil {
			return counts, fmt.Errorf("import %s: %w", w, err)
		}
		counts[w] = len(lists[w])
	}
	return counts, nil
}
