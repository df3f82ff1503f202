package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

// Entry is a stored link post.
type Entry struct {
	URLHash     string       `db:"url_hash" json:"url_hash"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	Published   bool         `db:"published" json:"published"`
	PublishedAt *time.Time   `db:"published_at" json:"published_at,omitempty"`
	Content     EntryContent `db:"content" json:"content"`
}

// HashURL returns the key an entry is stored under.
func HashURL(u string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(u))
}

// EntrySource is what the publisher needs from entry storage.
type EntrySource interface {
	Unpublished(ctx context.Context) ([]Entry, error)
	MarkPublished(ctx context.Context, urlHash string) error
}

// EntryStore keeps entries in the feed_entries table.
type EntryStore struct {
	pool *pgxpool.Pool
}

// NewEntryStore wraps pool. Run db.RunMigrations first.
func NewEntryStore(pool *pgxpool.Pool) *EntryStore {
	return &EntryStore{pool: pool}
}

// Add stores content unless an entry for the same URL exists. It reports
// whether a row was inserted.
func (s *EntryStore) Add(ctx context.Context, content EntryContent) (bool, error) {
	if content.URL == "" {
		return false, fmt.Errorf("%w: entry url is empty", sferrors.ErrValidation)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO feed_entries (url_hash, content)
		VALUES ($1, $2)
		ON CONFLICT (url_hash) DO NOTHING`,
		HashURL(content.URL), content)
	if err != nil {
		return false, fmt.Errorf("inserting entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Unpublished returns entries not yet posted, oldest first.
func (s *EntryStore) Unpublished(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT url_hash, created_at, published, published_at, content
		FROM feed_entries
		WHERE NOT published
		ORDER BY created_at, url_hash`)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[Entry])
	if err != nil {
		return nil, fmt.Errorf("%w: reading entries: %v", sferrors.ErrMalformedUpstream, err)
	}
	return entries, nil
}

// Get returns one entry.
func (s *EntryStore) Get(ctx context.Context, urlHash string) (*Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT url_hash, created_at, published, published_at, content
		FROM feed_entries
		WHERE url_hash = $1`, urlHash)
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[Entry])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: entry %s", sferrors.ErrNotFound, urlHash)
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}
	return e, nil
}

// MarkPublished flags an entry as posted.
func (s *EntryStore) MarkPublished(ctx context.Context, urlHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE feed_entries
		SET published = TRUE, published_at = NOW()
		WHERE url_hash = $1 AND NOT published`, urlHash)
	if err != nil {
		return fmt.Errorf("marking %s published: %w", urlHash, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := s.Get(ctx, urlHash); err != nil {
		return err
	}
	return fmt.Errorf("%w: entry %s", sferrors.ErrAlreadyPublished, urlHash)
}
