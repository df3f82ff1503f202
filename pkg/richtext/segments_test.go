package richtext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegments_RoundTrip(t *testing.T) {
	post, err := NewBuilder().
		Text("Hi 😀 ").
		Mention("@alice", "did:plc:alice").
		Text(", see ").
		Link("this", "https://example.com").
		Build()
	require.NoError(t, err)

	segments, err := Segments(post.Text, post.Facets)
	require.NoError(t, err)
	require.Len(t, segments, 4)

	var rebuilt strings.Builder
	for _, s := range segments {
		rebuilt.WriteString(s.Text)
	}
	assert.Equal(t, post.Text, rebuilt.String())

	assert.False(t, segments[0].Annotated())
	assert.Equal(t, "@alice", segments[1].Text)
	assert.True(t, segments[1].Annotated())
	assert.Equal(t, "this", segments[3].Text)
}

func TestSegments_UnsortedInput(t *testing.T) {
	text := "ab cd"
	facets := []Facet{
		{Index: ByteSlice{3, 5}, Features: []Feature{Tag{Tag: "cd"}}},
		{Index: ByteSlice{0, 2}, Features: []Feature{Tag{Tag: "ab"}}},
	}

	segments, err := Segments(text, facets)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, "ab", segments[0].Text)
	assert.Equal(t, " ", segments[1].Text)
	assert.Equal(t, "cd", segments[2].Text)

	// Input slice is left untouched.
	assert.Equal(t, 3, facets[0].Index.ByteStart)
}

func TestSegments_Errors(t *testing.T) {
	overlapping := []Facet{
		{Index: ByteSlice{0, 3}},
		{Index: ByteSlice{2, 4}},
	}
	_, err := Segments("abcdef", overlapping)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	outside := []Facet{{Index: ByteSlice{4, 9}}}
	_, err = Segments("abcdef", outside)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSegments_NoFacets(t *testing.T) {
	segments, err := Segments("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, []Segment{{Text: "plain"}}, segments)

	segments, err = Segments("", nil)
	require.NoError(t, err)
	assert.Empty(t, segments)
}
