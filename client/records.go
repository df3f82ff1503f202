package client

import (
	"encoding/json"
	"time"

	"github.com/otherjamesbrown/skyfeed/pkg/richtext"
)

// Record and embed type identifiers.
const (
	CollectionPost    = "app.bsky.feed.post"
	TypeEmbedRecord   = "app.bsky.embed.record"
	TypeEmbedExternal = "app.bsky.embed.external"
)

// DefaultLangs is attached to posts that do not set Langs.
var DefaultLangs = []string{"en"}

// PostRecord is the app.bsky.feed.post record body.
type PostRecord struct {
	Type      string           `json:"$type"`
	Text      string           `json:"text"`
	Facets    []richtext.Facet `json:"facets,omitempty"`
	CreatedAt string           `json:"createdAt"`
	Langs     []string         `json:"langs,omitempty"`
	Embed     Embed            `json:"embed,omitempty"`
}

// NewPostRecord wraps a composed post. createdAt is written in UTC.
func NewPostRecord(post *richtext.Post, createdAt time.Time) *PostRecord {
	return &PostRecord{
		Type:      CollectionPost,
		Text:      post.Text,
		Facets:    post.Facets,
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
		Langs:     DefaultLangs,
	}
}

// WithEmbed sets the embed and returns r.
func (r *PostRecord) WithEmbed(e Embed) *PostRecord {
	r.Embed = e
	return r
}

// Embed is RecordEmbed or ExternalEmbed.
type Embed interface {
	EmbedType() string
}

// RecordEmbed quotes another record, e.g. a feed generator.
type RecordEmbed struct {
	URI string
	CID string
}

// ExternalEmbed is a link card.
type ExternalEmbed struct {
	URI         string
	Title       string
	Description string
}

func (RecordEmbed) EmbedType() string   { return TypeEmbedRecord }
func (ExternalEmbed) EmbedType() string { return TypeEmbedExternal }

// MarshalJSON writes {"$type": ..., "record": {"uri": ..., "cid": ...}}.
func (e RecordEmbed) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string    `json:"$type"`
		Record RecordRef `json:"record"`
	}{TypeEmbedRecord, RecordRef{URI: e.URI, CID: e.CID}})
}

// MarshalJSON writes {"$type": ..., "external": {...}}.
func (e ExternalEmbed) MarshalJSON() ([]byte, error) {
	type external struct {
		URI         string `json:"uri"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	return json.Marshal(struct {
		Type     string   `json:"$type"`
		External external `json:"external"`
	}{TypeEmbedExternal, external{e.URI, e.Title, e.Description}})
}
