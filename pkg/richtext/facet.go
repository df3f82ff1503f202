package richtext

import (
	"encoding/json"
	"fmt"
)

// Facet feature type identifiers.
const (
	TypeLink    = "app.bsky.richtext.facet#link"
	TypeMention = "app.bsky.richtext.facet#mention"
	TypeTag     = "app.bsky.richtext.facet#tag"
)

// ByteSlice is a half-open byte range [ByteStart, ByteEnd) into the UTF-8 text.
type ByteSlice struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

// Facet annotates one span of a post's text.
type Facet struct {
	Index    ByteSlice `json:"index"`
	Features []Feature `json:"features"`
}

// Slice returns the substring of text the facet covers.
func (f Facet) Slice(text string) (string, error) {
	if err := f.Index.check(len(text)); err != nil {
		return "", err
	}
	return text[f.Index.ByteStart:f.Index.ByteEnd], nil
}

func (b ByteSlice) check(textLen int) error {
	if b.ByteStart < 0 || b.ByteStart > b.ByteEnd || b.ByteEnd > textLen {
		return fmt.Errorf("%w: facet [%d, %d) outside text of %d bytes",
			ErrIndexOutOfRange, b.ByteStart, b.ByteEnd, textLen)
	}
	return nil
}

// Feature is one of Link, Mention or Tag.
type Feature interface {
	// FeatureType returns the $type identifier written on the wire.
	FeatureType() string
}

// Link points a span at a URI.
type Link struct {
	URI string
}

// Mention points a span at an account identity.
type Mention struct {
	DID string
}

// Tag marks a span as a hashtag. The tag excludes the leading '#'.
type Tag struct {
	Tag string
}

func (Link) FeatureType() string    { return TypeLink }
func (Mention) FeatureType() string { return TypeMention }
func (Tag) FeatureType() string     { return TypeTag }

// MarshalJSON writes {"$type": ..., "uri": ...}.
func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"$type"`
		URI  string `json:"uri"`
	}{TypeLink, l.URI})
}

// MarshalJSON writes {"$type": ..., "did": ...}.
func (m Mention) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"$type"`
		DID  string `json:"did"`
	}{TypeMention, m.DID})
}

// MarshalJSON writes {"$type": ..., "tag": ...}.
func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"$type"`
		Tag  string `json:"tag"`
	}{TypeTag, t.Tag})
}

// rawFeature is the union of every feature's wire fields.
type rawFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
	DID  string `json:"did"`
	Tag  string `json:"tag"`
}

// UnmarshalJSON decodes the features array by $type. Unknown types are an error.
func (f *Facet) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index    ByteSlice    `json:"index"`
		Features []rawFeature `json:"features"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.Index = raw.Index
	f.Features = make([]Feature, 0, len(raw.Features))
	for _, rf := range raw.Features {
		switch rf.Type {
		case TypeLink:
			f.Features = append(f.Features, Link{URI: rf.URI})
		case TypeMention:
			f.Features = append(f.Features, Mention{DID: rf.DID})
		case TypeTag:
			f.Features = append(f.Features, Tag{Tag: rf.Tag})
		default:
			return fmt.Errorf("unknown facet feature type %q", rf.Type)
		}
	}
	return nil
}
