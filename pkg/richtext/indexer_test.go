package richtext

import (
	"errors"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

func TestNewText_Lengths(t *testing.T) {
	text := NewText("aé😀")

	assert.Equal(t, 7, text.Len())
	assert.Equal(t, 4, text.Len16())
	assert.Equal(t, 3, text.RuneLen())
	assert.Equal(t, "aé😀", text.String())
}

func TestText_UTF8Offset(t *testing.T) {
	text := NewText("aé😀")

	tests := []struct {
		name    string
		offset  int
		want    int
		wantErr bool
	}{
		{"start", 0, 0, false},
		{"after ascii", 1, 1, false},
		{"after two-byte char", 2, 3, false},
		{"inside surrogate pair", 3, 0, true},
		{"end", 4, 7, false},
		{"past end", 5, 0, true},
		{"negative", -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := text.UTF8Offset(tt.offset)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrIndexOutOfRange))
				assert.True(t, sferrors.IsContractViolation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestText_UTF8OffsetFromRunes(t *testing.T) {
	text := NewText("aé😀")

	for i, want := range []int{0, 1, 3, 7} {
		got, err := text.UTF8OffsetFromRunes(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "rune offset %d", i)
	}

	_, err := text.UTF8OffsetFromRunes(4)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = text.UTF8OffsetFromRunes(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestText_ByteRange(t *testing.T) {
	text := NewText("a😀b")

	got, err := text.ByteRange(1, 3, UnitUTF16)
	require.NoError(t, err)
	assert.Equal(t, ByteSlice{ByteStart: 1, ByteEnd: 5}, got)

	got, err = text.ByteRange(1, 2, UnitRunes)
	require.NoError(t, err)
	assert.Equal(t, ByteSlice{ByteStart: 1, ByteEnd: 5}, got)

	_, err = text.ByteRange(1, 2, UnitUTF16)
	assert.ErrorIs(t, err, ErrIndexOutOfRange, "utf-16 offset 2 splits the pair")
	_, err = text.ByteRange(2, 1, UnitRunes)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = text.ByteRange(0, 4, UnitRunes)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = text.ByteRange(0, 1, Unit("bytes"))
	assert.ErrorIs(t, err, sferrors.ErrContractViolation)
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("runes")
	require.NoError(t, err)
	assert.Equal(t, UnitRunes, u)

	u, err = ParseUnit("utf16")
	require.NoError(t, err)
	assert.Equal(t, UnitUTF16, u)

	_, err = ParseUnit("bytes")
	assert.True(t, sferrors.IsValidation(err))
}

func TestText_UTF16Offset(t *testing.T) {
	text := NewText("aé😀")

	for b, want := range map[int]int{0: 0, 1: 1, 3: 2, 7: 4} {
		got, err := text.UTF16Offset(b)
		require.NoError(t, err)
		assert.Equal(t, want, got, "byte offset %d", b)
	}

	for _, b := range []int{2, 4, 5, 6, 8, -1} {
		_, err := text.UTF16Offset(b)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, "byte offset %d", b)
	}
}

func TestText_ASCIIOffsetsMatch(t *testing.T) {
	s := "The Blue Report is a site that rounds up links."
	text := NewText(s)

	for i := 0; i <= len(s); i++ {
		got, err := text.UTF8Offset(i)
		require.NoError(t, err)
		assert.Equal(t, i, got)
	}
}

func TestText_MatchesReencoding(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"Hi 😀 @alice",
		"€100 — ünïcödé",
		"日本語のテキスト",
		"🇯🇵 flags and 👍🏽 skin tones",
		"mixed a😀b😀c",
	}

	for _, s := range inputs {
		text := NewText(s)
		units := utf16.Encode([]rune(s))
		require.Equal(t, len(units), text.Len16(), "Len16 for %q", s)

		for i := 0; i <= len(units); i++ {
			if i > 0 && i < len(units) && utf16.IsSurrogate(rune(units[i])) && utf16.IsSurrogate(rune(units[i-1])) &&
				units[i] >= 0xDC00 {
				// Low half of a pair: not a character boundary.
				_, err := text.UTF8Offset(i)
				assert.ErrorIs(t, err, ErrIndexOutOfRange)
				continue
			}
			want := len(string(utf16.Decode(units[:i])))
			got, err := text.UTF8Offset(i)
			require.NoError(t, err, "offset %d of %q", i, s)
			assert.Equal(t, want, got, "offset %d of %q", i, s)
		}
	}
}

func TestUTF16Len(t *testing.T) {
	assert.Equal(t, 0, UTF16Len(""))
	assert.Equal(t, 5, UTF16Len("hello"))
	assert.Equal(t, 1, UTF16Len("€"))
	assert.Equal(t, 2, UTF16Len("😀"))
	assert.Equal(t, 6, UTF16Len("Hi 😀 "))
}
