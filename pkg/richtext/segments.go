package richtext

import (
	"fmt"
	"slices"
)

// Segment is a run of text with the features that cover it. Plain runs have
// no features.
type Segment struct {
	Text     string
	Features []Feature
}

// Annotated reports whether the segment is covered by a facet.
func (s Segment) Annotated() bool {
	return len(s.Features) > 0
}

// Segments splits text into plain and annotated runs. Facets may arrive in
// any order; they must lie inside the text and must not overlap.
func Segments(text string, facets []Facet) ([]Segment, error) {
	sorted := slices.Clone(facets)
	slices.SortStableFunc(sorted, func(a, b Facet) int {
		return a.Index.ByteStart - b.Index.ByteStart
	})

	var segments []Segment
	cursor := 0
	for _, f := range sorted {
		if err := f.Index.check(len(text)); err != nil {
			return nil, err
		}
		if f.Index.ByteStart < cursor {
			return nil, fmt.Errorf("%w: facet at byte %d overlaps previous facet ending at %d",
				ErrIndexOutOfRange, f.Index.ByteStart, cursor)
		}
		if cursor < f.Index.ByteStart {
			segments = append(segments, Segment{Text: text[cursor:f.Index.ByteStart]})
		}
		if f.Index.ByteStart < f.Index.ByteEnd {
			segments = append(segments, Segment{
				Text:     text[f.Index.ByteStart:f.Index.ByteEnd],
				Features: f.Features,
			})
		}
		cursor = f.Index.ByteEnd
	}
	if cursor < len(text) {
		segments = append(segments, Segment{Text: text[cursor:]})
	}

	return segments, nil
}
