package richtext

import (
	"strings"

	"github.com/rivo/uniseg"
)

// MaxPostGraphemes is the longest post text the network accepts.
const MaxPostGraphemes = 300

// Ellipsis is appended to truncated text.
const Ellipsis = "…"

// GraphemeLen returns the number of user-perceived characters in s.
func GraphemeLen(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// TruncateGraphemes shortens s to at most n grapheme clusters, ending with
// Ellipsis when anything was cut. Clusters are never split.
func TruncateGraphemes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if GraphemeLen(s) <= n {
		return s
	}

	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for kept := 0; kept < n-1 && g.Next(); kept++ {
		b.WriteString(g.Str())
	}
	return strings.TrimRight(b.String(), " ") + Ellipsis
}
