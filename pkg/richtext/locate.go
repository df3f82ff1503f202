package richtext

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// ErrMarkerNotFound is returned when post-hoc location finds no match.
var ErrMarkerNotFound = fmt.Errorf("%w: marker not found", sferrors.ErrNotFound)

// LocateMention finds the first "@handle" token in already-assembled text and
// returns a mention facet for it. Prefer Builder.Mention, which knows the
// position without scanning.
//
// An '@' only counts when it starts a token and is followed by exactly the
// handle, so "bob@example.com" or "@alice.bsky.social" never match a search
// for "alice". A trailing sentence period is left outside the span. If the
// same "@handle" token appears earlier in unrelated text, that earlier
// occurrence wins.
func LocateMention(text, handle, did string) (Facet, error) {
	handle = strings.TrimRight(strings.TrimPrefix(handle, "@"), ".-")
	if handle == "" {
		return Facet{}, fmt.Errorf("%w: empty handle", sferrors.ErrContractViolation)
	}
	token := "@" + handle

	for from := 0; from < len(text); {
		i := strings.Index(text[from:], token)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(token)
		if startsToken(text, start) && !continuesHandle(text[end:]) {
			return facetForBytes(text, start, end, Mention{DID: did})
		}
		from = start + 1
	}
	return Facet{}, fmt.Errorf("%w: %q", ErrMarkerNotFound, token)
}

// LocateLink finds the first occurrence of display and annotates it with uri.
func LocateLink(text, display, uri string) (Facet, error) {
	if display == "" {
		return Facet{}, fmt.Errorf("%w: empty link text", sferrors.ErrContractViolation)
	}
	i := strings.Index(text, display)
	if i < 0 {
		return Facet{}, fmt.Errorf("%w: %q", ErrMarkerNotFound, display)
	}
	return facetForBytes(text, i, i+len(display), Link{URI: uri})
}

// facetForBytes routes a scanned byte span through the UTF-16 index so that
// both the positional and the scanning paths share one conversion.
func facetForBytes(s string, start, end int, f Feature) (Facet, error) {
	text := NewText(s)
	start16, err := text.UTF16Offset(start)
	if err != nil {
		return Facet{}, err
	}
	end16, err := text.UTF16Offset(end)
	if err != nil {
		return Facet{}, err
	}
	return facetAt(text, start16, end16, f)
}

func startsToken(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isHandleRune(r)
}

// continuesHandle reports whether rest would extend the handle just matched.
// A '.' only continues it when another handle character follows.
func continuesHandle(rest string) bool {
	if rest == "" {
		return false
	}
	r, w := utf8.DecodeRuneInString(rest)
	if r == '.' {
		next, _ := utf8.DecodeRuneInString(rest[w:])
		return w < len(rest) && (unicode.IsLetter(next) || unicode.IsDigit(next))
	}
	return isHandleRune(r)
}

func isHandleRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}
