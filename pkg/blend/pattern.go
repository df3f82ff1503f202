// Package blend merges independently ranked lists into a single feed.
//
// A Pattern says, for each output position, which list and which rank to draw
// from. Patterns are configuration: they are parsed from strings such as
// "hour0" or "day12" and never derived at runtime.
package blend

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// Slot selects the item at Position (0-based) of the named list.
type Slot struct {
	List     string
	Position int
}

// String returns the compact form, e.g. "day3".
func (s Slot) String() string {
	return s.List + strconv.Itoa(s.Position)
}

// Pattern is an ordered sequence of slots.
type Pattern []Slot

// Lists returns the distinct list names the pattern references, in first-use order.
func (p Pattern) Lists() []string {
	seen := make(map[string]bool, 4)
	var names []string
	for _, s := range p {
		if !seen[s.List] {
			seen[s.List] = true
			names = append(names, s.List)
		}
	}
	return names
}

// Strings returns the compact form of every slot.
func (p Pattern) Strings() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.String()
	}
	return out
}

// ParseSlot parses the compact "<list><position>" form. The list name is the
// non-digit prefix and must not be empty; the position is a decimal suffix.
func ParseSlot(s string) (Slot, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) + 1
	if i == 0 || i == len(s) {
		return Slot{}, fmt.Errorf("%w: slot %q must be a list name followed by a position", sferrors.ErrValidation, s)
	}
	pos, err := strconv.Atoi(s[i:])
	if err != nil {
		return Slot{}, fmt.Errorf("%w: slot %q: %v", sferrors.ErrValidation, s, err)
	}
	return Slot{List: s[:i], Position: pos}, nil
}

// ParsePattern parses a list of compact slots.
func ParsePattern(slots []string) (Pattern, error) {
	p := make(Pattern, 0, len(slots))
	for _, s := range slots {
		slot, err := ParseSlot(s)
		if err != nil {
			return nil, err
		}
		p = append(p, slot)
	}
	return p, nil
}

// ParsePatternString parses a comma or whitespace separated pattern.
func ParsePatternString(s string) (Pattern, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	return ParsePattern(fields)
}

// defaultPattern front-loads the hour list, hands over to day, and lets
// week fill the tail.
var defaultPattern = []string{
	"hour0", "hour1", "hour2", "day0", "hour3",
	"day1", "hour4", "day2", "week0", "day3",
	"hour5", "day4", "week1", "day5", "week2",
	"day6", "week3", "day7", "week4", "day8",
	"week5", "day9", "week6", "week7", "week8",
}

// DefaultPattern returns the 25-slot hour/day/week pattern.
func DefaultPattern() Pattern {
	p, err := ParsePattern(defaultPattern)
	if err != nil {
		panic(fmt.Sprintf("blend: invalid default pattern: %v", err))
	}
	return p
}
