// Package richtext builds rich-text posts: a text payload plus facets that
// annotate byte ranges of its UTF-8 encoding with links, mentions and tags.
//
// Composition code counts positions in UTF-16 code units, the unit the
// network's clients use for string length. The wire format wants UTF-8 byte
// offsets. Text is the single place where one is translated into the other.
package richtext

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// ErrIndexOutOfRange is returned for offsets that do not name a character
// boundary inside the text.
var ErrIndexOutOfRange = fmt.Errorf("%w: index out of range", sferrors.ErrContractViolation)

// midPair marks the UTF-16 position between the two halves of a surrogate pair.
const midPair = -1

// Text is an immutable string with precomputed offset tables.
type Text struct {
	s string

	// units[i] is the UTF-8 byte offset of UTF-16 code unit i, or midPair.
	// It has one trailing entry equal to len(s).
	units []int

	// runes[i] is the UTF-8 byte offset of code point i, plus a trailing len(s).
	runes []int
}

// NewText indexes s. Invalid UTF-8 bytes count as one code unit each.
func NewText(s string) *Text {
	t := &Text{
		s:     s,
		units: make([]int, 0, len(s)+1),
		runes: make([]int, 0, len(s)+1),
	}

	for b := 0; b < len(s); {
		r, width := utf8.DecodeRuneInString(s[b:])
		t.runes = append(t.runes, b)
		t.units = append(t.units, b)
		if utf16.RuneLen(r) == 2 {
			t.units = append(t.units, midPair)
		}
		b += width
	}
	t.units = append(t.units, len(s))
	t.runes = append(t.runes, len(s))

	return t
}

// String returns the wrapped text.
func (t *Text) String() string {
	return t.s
}

// Len returns the length of the UTF-8 encoding in bytes.
func (t *Text) Len() int {
	return len(t.s)
}

// Len16 returns the length of the text in UTF-16 code units.
func (t *Text) Len16() int {
	return len(t.units) - 1
}

// RuneLen returns the number of code points in the text.
func (t *Text) RuneLen() int {
	return len(t.runes) - 1
}

// UTF8Offset returns the number of bytes the UTF-8 encoding of the first i
// UTF-16 code units occupies.
func (t *Text) UTF8Offset(i int) (int, error) {
	if i < 0 || i > t.Len16() {
		return 0, fmt.Errorf("%w: utf-16 offset %d not in [0, %d]", ErrIndexOutOfRange, i, t.Len16())
	}
	off := t.units[i]
	if off == midPair {
		return 0, fmt.Errorf("%w: utf-16 offset %d splits a surrogate pair", ErrIndexOutOfRange, i)
	}
	return off, nil
}

// UTF8OffsetFromRunes is UTF8Offset for a code-point offset.
func (t *Text) UTF8OffsetFromRunes(i int) (int, error) {
	if i < 0 || i > t.RuneLen() {
		return 0, fmt.Errorf("%w: rune offset %d not in [0, %d]", ErrIndexOutOfRange, i, t.RuneLen())
	}
	return t.runes[i], nil
}

// Unit names the counting unit of a caller-supplied offset.
type Unit string

// Offset units.
const (
	UnitUTF16 Unit = "utf16"
	UnitRunes Unit = "runes"
)

// ParseUnit parses "utf16" or "runes".
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(s); u {
	case UnitUTF16, UnitRunes:
		return u, nil
	}
	return "", fmt.Errorf("%w: unknown offset unit %q (want utf16 or runes)", sferrors.ErrValidation, s)
}

// ByteRange converts the span [start, end), counted in unit, to UTF-8 byte
// offsets.
func (t *Text) ByteRange(start, end int, unit Unit) (ByteSlice, error) {
	if start > end {
		return ByteSlice{}, fmt.Errorf("%w: span start %d after end %d", ErrIndexOutOfRange, start, end)
	}
	offset := t.UTF8Offset
	switch unit {
	case UnitUTF16:
	case UnitRunes:
		offset = t.UTF8OffsetFromRunes
	default:
		return ByteSlice{}, fmt.Errorf("%w: unknown offset unit %q", sferrors.ErrContractViolation, unit)
	}

	byteStart, err := offset(start)
	if err != nil {
		return ByteSlice{}, err
	}
	byteEnd, err := offset(end)
	if err != nil {
		return ByteSlice{}, err
	}
	return ByteSlice{ByteStart: byteStart, ByteEnd: byteEnd}, nil
}

// UTF16Offset maps a byte offset back to UTF-16 code units. The byte offset
// must sit on a character boundary.
func (t *Text) UTF16Offset(b int) (int, error) {
	if b < 0 || b > len(t.s) {
		return 0, fmt.Errorf("%w: byte offset %d not in [0, %d]", ErrIndexOutOfRange, b, len(t.s))
	}
	// units is sorted once the midPair markers are skipped.
	lo, hi := 0, len(t.units)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		m := mid
		if t.units[m] == midPair {
			m--
		}
		switch {
		case t.units[m] == b:
			return m, nil
		case t.units[m] < b:
			lo = mid + 1
		default:
			hi = m - 1
		}
	}
	return 0, fmt.Errorf("%w: byte offset %d is inside a character", ErrIndexOutOfRange, b)
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
