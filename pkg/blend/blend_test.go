package blend

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

func exampleLists() Lists {
	return Lists{
		"hour": {"A", "B", "C", "D", "E"},
		"day":  {"A", "F", "G", "H", "I", "J", "K", "L", "M", "N"},
	}
}

func TestBlend_DefaultPattern(t *testing.T) {
	got := Blend(exampleLists(), DefaultPattern(), 0)
	want := []string{"A", "B", "C", "D", "F", "E", "G", "H", "I", "J", "K", "L", "M", "N"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Blend() mismatch (-want +got):\n%s", diff)
	}
}

func TestBlend_Limit(t *testing.T) {
	full := Blend(exampleLists(), DefaultPattern(), 0)
	require.GreaterOrEqual(t, len(full), 10)

	got := Blend(exampleLists(), DefaultPattern(), 3)
	assert.Equal(t, []string{"A", "B", "C"}, got)
	assert.Equal(t, full[:3], got)
}

func TestBlend_NonPositiveLimitMeansNoCap(t *testing.T) {
	full := Blend(exampleLists(), DefaultPattern(), 0)
	assert.Equal(t, full, Blend(exampleLists(), DefaultPattern(), -5))
	assert.Equal(t, full, Blend(exampleLists(), DefaultPattern(), 1000))
}

func TestBlend_Degraded(t *testing.T) {
	tests := []struct {
		name    string
		lists   Lists
		pattern Pattern
	}{
		{name: "all lists empty", lists: Lists{"hour": {}, "day": {}, "week": {}}, pattern: DefaultPattern()},
		{name: "nil lists", lists: nil, pattern: DefaultPattern()},
		{name: "empty pattern", lists: exampleLists(), pattern: Pattern{}},
		{name: "unknown list", lists: exampleLists(), pattern: Pattern{{List: "month", Position: 0}}},
		{name: "positions past end", lists: exampleLists(), pattern: Pattern{{List: "hour", Position: 9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Blend(tt.lists, tt.pattern, 10)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestBlend_Deterministic(t *testing.T) {
	first := Blend(exampleLists(), DefaultPattern(), 0)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Blend(exampleLists(), DefaultPattern(), 0))
	}
}

func TestInterleave_KeepsDuplicates(t *testing.T) {
	p, err := ParsePatternString("hour0 day0 hour1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A", "B"}, Interleave(exampleLists(), p))
}

func TestDedup(t *testing.T) {
	in := []string{"a", "b", "a", "c", "b", "d"}
	once := Dedup(in)
	assert.Equal(t, []string{"a", "b", "c", "d"}, once)
	assert.Equal(t, once, Dedup(once))
	assert.Equal(t, []string{"a", "b", "a", "c", "b", "d"}, in, "input must not be modified")
}

func TestBlendFlatten(t *testing.T) {
	lists := Lists{
		"hour": {"1", "2"},
		"day":  {"2", "3"},
		"week": {"4"},
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, BlendFlatten(lists, []string{"hour", "day", "week"}, 0))
	assert.Equal(t, []string{"4", "2", "3"}, BlendFlatten(lists, []string{"week", "day"}, 0))
	assert.Equal(t, []string{"1", "2"}, BlendFlatten(lists, []string{"hour", "missing", "day"}, 2))
	assert.Empty(t, BlendFlatten(lists, nil, 0))
}

func TestBlender(t *testing.T) {
	t.Run("pattern", func(t *testing.T) {
		b := NewPatternBlender(DefaultPattern())
		assert.Equal(t, []string{"hour", "day", "week"}, b.Lists())
		assert.Equal(t, Blend(exampleLists(), DefaultPattern(), 4), b.Apply(exampleLists(), 4))
	})

	t.Run("flatten", func(t *testing.T) {
		b := NewFlattenBlender("day", "hour")
		assert.Equal(t, []string{"day", "hour"}, b.Lists())
		assert.Equal(t, []string{"A", "F", "G"}, b.Apply(exampleLists(), 3))
	})

	t.Run("zero value", func(t *testing.T) {
		var b Blender
		assert.Empty(t, b.Lists())
		got := b.Apply(exampleLists(), 0)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePattern, m)

	m, err = ParseMode("flatten")
	require.NoError(t, err)
	assert.Equal(t, ModeFlatten, m)

	_, err = ParseMode("random")
	assert.True(t, sferrors.IsValidation(err))
}
