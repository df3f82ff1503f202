package blend

import (
	"fmt"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// Lists maps a list name (a ranking window such as "hour") to its items,
// best first.
type Lists map[string][]string

// Interleave walks the pattern and collects lists[slot.List][slot.Position]
// for every slot that exists. Slots naming an unknown list or a position past
// the end of a short list are skipped. Duplicates are kept.
func Interleave(lists Lists, pattern Pattern) []string {
	out := make([]string, 0, len(pattern))
	for _, slot := range pattern {
		items := lists[slot.List]
		if slot.Position < 0 || slot.Position >= len(items) {
			continue
		}
		out = append(out, items[slot.Position])
	}
	return out
}

// Flatten concatenates lists in the given name order. Unknown names are skipped.
func Flatten(lists Lists, order []string) []string {
	n := 0
	for _, name := range order {
		n += len(lists[name])
	}
	out := make([]string, 0, n)
	for _, name := range order {
		out = append(out, lists[name]...)
	}
	return out
}

// Dedup keeps the first occurrence of every item in its original relative order.
func Dedup(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Truncate returns the first limit items. A non-positive limit means no cap.
func Truncate(items []string, limit int) []string {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// Blend interleaves lists by pattern, removes duplicates and caps the result.
func Blend(lists Lists, pattern Pattern, limit int) []string {
	return Truncate(Dedup(Interleave(lists, pattern)), limit)
}

// BlendFlatten concatenates lists in order, removes duplicates and caps the result.
func BlendFlatten(lists Lists, order []string, limit int) []string {
	return Truncate(Dedup(Flatten(lists, order)), limit)
}

// Mode selects how a Blender combines its lists.
type Mode string

const (
	// ModePattern interleaves lists slot by slot.
	ModePattern Mode = "pattern"
	// ModeFlatten concatenates whole lists in a fixed order.
	ModeFlatten Mode = "flatten"
)

// ParseMode accepts "pattern", "flatten" or "" (pattern).
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModePattern:
		return ModePattern, nil
	case ModeFlatten:
		return ModeFlatten, nil
	default:
		return "", fmt.Errorf("%w: unknown blend mode %q", sferrors.ErrValidation, s)
	}
}

// Blender binds a mode to its pattern or list order. The zero value blends
// nothing.
type Blender struct {
	Mode    Mode
	Pattern Pattern
	Order   []string
}

// NewPatternBlender returns a Blender in pattern mode.
func NewPatternBlender(p Pattern) Blender {
	return Blender{Mode: ModePattern, Pattern: p}
}

// NewFlattenBlender returns a Blender in flatten mode.
func NewFlattenBlender(order ...string) Blender {
	return Blender{Mode: ModeFlatten, Order: order}
}

// Lists returns the list names the blender reads, so callers fetch only those.
func (b Blender) Lists() []string {
	if b.Mode == ModeFlatten {
		return append([]string(nil), b.Order...)
	}
	return b.Pattern.Lists()
}

// Apply blends lists and caps the result at limit (non-positive means no cap).
func (b Blender) Apply(lists Lists, limit int) []string {
	if b.Mode == ModeFlatten {
		return BlendFlatten(lists, b.Order, limit)
	}
	return Blend(lists, b.Pattern, limit)
}
