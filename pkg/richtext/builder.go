package richtext

import "strings"

// Post is assembled text plus the facets that annotate it.
type Post struct {
	Text   string  `json:"text"`
	Facets []Facet `json:"facets"`
}

// Step is one text-construction instruction: literal text when Feature is
// nil, otherwise an entity whose display text the feature annotates.
type Step struct {
	Text    string
	Feature Feature
}

// Plain returns a literal-text step.
func Plain(s string) Step {
	return Step{Text: s}
}

// Entity returns a step that appends display and annotates it with f.
func Entity(display string, f Feature) Step {
	return Step{Text: display, Feature: f}
}

// Compose runs steps through a Builder.
func Compose(steps ...Step) (*Post, error) {
	b := NewBuilder()
	for _, s := range steps {
		if s.Feature == nil {
			b.Text(s.Text)
			continue
		}
		b.Entity(s.Text, s.Feature)
	}
	return b.Build()
}

// span is an entity position in UTF-16 code units.
type span struct {
	start   int
	end     int
	feature Feature
}

// Builder assembles text while tracking entity positions. Positions are
// recorded in UTF-16 code units as segments are appended and converted to
// byte offsets once, in Build.
type Builder struct {
	buf    strings.Builder
	cursor int
	spans  []span
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Text appends literal text.
func (b *Builder) Text(s string) *Builder {
	b.buf.WriteString(s)
	b.cursor += UTF16Len(s)
	return b
}

// Link appends display text annotated as a link to uri.
func (b *Builder) Link(display, uri string) *Builder {
	return b.Entity(display, Link{URI: uri})
}

// Mention appends display text (usually "@handle") annotated with did.
func (b *Builder) Mention(display, did string) *Builder {
	return b.Entity(display, Mention{DID: did})
}

// Entity appends display text annotated with f.
func (b *Builder) Entity(display string, f Feature) *Builder {
	start := b.cursor
	b.Text(display)
	b.spans = append(b.spans, span{start: start, end: b.cursor, feature: f})
	return b
}

// Len16 returns the current length in UTF-16 code units.
func (b *Builder) Len16() int {
	return b.cursor
}

// String returns the text assembled so far.
func (b *Builder) String() string {
	return b.buf.String()
}

// Build returns the assembled text and its facets in text order.
func (b *Builder) Build() (*Post, error) {
	text := NewText(b.buf.String())

	facets := make([]Facet, 0, len(b.spans))
	for _, s := range b.spans {
		f, err := facetAt(text, s.start, s.end, s.feature)
		if err != nil {
			return nil, err
		}
		facets = append(facets, f)
	}

	return &Post{Text: text.String(), Facets: facets}, nil
}

// facetAt converts a UTF-16 span into a byte-indexed facet.
func facetAt(text *Text, start, end int, f Feature) (Facet, error) {
	index, err := text.ByteRange(start, end, UnitUTF16)
	if err != nil {
		return Facet{}, err
	}
	return Facet{Index: index, Features: []Feature{f}}, nil
}
