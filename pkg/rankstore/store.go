// Package rankstore reads and writes the ranked lists the feed generator
// blends. Each list is keyed by its time window ("hour", "day", "week") and
// holds post identifiers best first.
//
// Every backend honours the same contract: a window that was never written
// reads as an empty list, and stored data that is not a JSON array of
// strings is reported as ErrMalformedUpstream.
package rankstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/otherjamesbrown/skyfeed/pkg/blend"
	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// Standard windows written by the link aggregation.
const (
	WindowHour = "hour"
	WindowDay  = "day"
	WindowWeek = "week"
)

// DefaultWindows lists the standard windows, shortest first.
var DefaultWindows = []string{WindowHour, WindowDay, WindowWeek}

// Store fetches and replaces ranked lists.
type Store interface {
	// Fetch returns the list for window. A missing window is an empty list.
	Fetch(ctx context.Context, window string) ([]string, error)

	// Put replaces the list for window.
	Put(ctx context.Context, window string, items []string) error
}

// Named is implemented by stores that report a backend name for metrics.
type Named interface {
	Backend() string
}

// Freshness is implemented by backends that record when each window was
// last written.
type Freshness interface {
	UpdatedAt(ctx context.Context) (map[string]time.Time, error)
}

// BackendName returns s.Backend() when available, otherwise "custom".
func BackendName(s Store) string {
	if n, ok := s.(Named); ok {
		return n.Backend()
	}
	return "custom"
}

// FetchAll fetches every window concurrently. The first error cancels the
// remaining fetches and is returned.
func FetchAll(ctx context.Context, s Store, windows []string) (blend.Lists, error) {
	results := make([][]string, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		g.Go(func() error {
			items, err := s.Fetch(gctx, w)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", w, err)
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lists := make(blend.Lists, len(windows))
	for i, w := range windows {
		lists[w] = results[i]
	}
	return lists, nil
}

// CheckWindow rejects window names that cannot be used as keys.
func CheckWindow(window string) error {
	if window == "" || strings.ContainsAny(window, ": \t\n") {
		return fmt.Errorf("%w: invalid window name %q", sferrors.ErrContractViolation, window)
	}
	return nil
}

// decodeList parses a stored JSON array. JSON null decodes as empty.
func decodeList(window string, data []byte) ([]string, error) {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: window %s: %v", sferrors.ErrMalformedUpstream, window, err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// encodeList is the inverse of decodeList. A nil list encodes as [].
func encodeList(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}
	return json.Marshal(items)
}
