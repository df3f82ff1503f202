package feedgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/blend"
	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// CollectionFeedGenerator is the record collection feed URIs point into.
const CollectionFeedGenerator = "app.bsky.feed.generator"

// Registry is an immutable set of feed definitions. The server swaps whole
// registries on reload.
type Registry struct {
	did          string
	hostname     string
	publisherDID string
	defaultFeed  string
	maxAge       time.Duration
	names        []string
	feeds        map[string]blend.Blender
}

// NewRegistry validates cfg and builds a registry from it.
func NewRegistry(cfg config.FeedgenConfig) (*Registry, error) {
	feeds, err := cfg.Blenders()
	if err != nil {
		return nil, err
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("%w: no feeds configured", sferrors.ErrValidation)
	}
	if _, ok := feeds[cfg.DefaultFeed]; !ok {
		return nil, fmt.Errorf("%w: default feed %q is not defined", sferrors.ErrValidation, cfg.DefaultFeed)
	}

	return &Registry{
		did:          cfg.DID(),
		hostname:     cfg.Hostname,
		publisherDID: cfg.PublisherDID,
		defaultFeed:  cfg.DefaultFeed,
		maxAge:       cfg.CacheMaxAge,
		names:        cfg.FeedNames(),
		feeds:        feeds,
	}, nil
}

// DID returns the service DID, or "" when no hostname is configured.
func (r *Registry) DID() string { return r.did }

// Names returns the feed names in sorted order.
func (r *Registry) Names() []string { return r.names }

// MaxAge returns the Cache-Control max-age for skeleton responses.
func (r *Registry) MaxAge() time.Duration { return r.maxAge }

// Lookup resolves the feed query parameter. An empty value selects the
// default feed and a bare name is looked up as is. An at:// URI must name a
// feed generator record owned by this service's publisher or service DID;
// its record key is the feed name. URIs naming another repository or
// collection are unknown, and name then echoes the requested value.
func (r *Registry) Lookup(feed string) (string, blend.Blender, bool) {
	if feed == "" {
		b, ok := r.feeds[r.defaultFeed]
		return r.defaultFeed, b, ok
	}

	name := feed
	if strings.HasPrefix(feed, "at://") {
		authority, collection, rkey, ok := splitATURI(feed)
		if !ok || collection != CollectionFeedGenerator || !r.owns(authority) {
			return feed, blend.Blender{}, false
		}
		name = rkey
	}
	b, ok := r.feeds[name]
	return name, b, ok
}

// owns reports whether did publishes this registry's feeds. With neither a
// publisher nor a service DID configured every authority is accepted.
func (r *Registry) owns(did string) bool {
	if r.publisherDID == "" && r.did == "" {
		return true
	}
	return did != "" && (did == r.publisherDID || did == r.did)
}

// FeedURI returns the at:// URI of the generator record for name.
func (r *Registry) FeedURI(name string) string {
	owner := r.publisherDID
	if owner == "" {
		owner = r.did
	}
	return "at://" + owner + "/" + CollectionFeedGenerator + "/" + name
}

// splitATURI splits at://<authority>/<collection>/<rkey>.
func splitATURI(s string) (authority, collection, rkey string, ok bool) {
	rest, found := strings.CutPrefix(s, "at://")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
