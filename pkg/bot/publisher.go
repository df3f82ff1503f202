package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/otherjamesbrown/skyfeed/client"
	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/pkg/logging"
	"github.com/otherjamesbrown/skyfeed/pkg/observability"
)

// Post kinds, used as the metrics "kind" label.
const (
	KindAnnouncement = "announcement"
	KindEntry        = "entry"
)

// Poster creates post records.
type Poster interface {
	Post(ctx context.Context, rec *client.PostRecord) (*client.RecordRef, error)
}

// Options configures a Publisher.
type Options struct {
	// DryRun writes composed records to Out instead of posting them.
	DryRun bool
	Out    io.Writer

	// Interval is the pause between consecutive posts.
	Interval time.Duration

	Logger  logging.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer

	// Now stamps createdAt. Defaults to time.Now.
	Now func() time.Time
}

// Result counts the outcome of a publishing run.
type Result struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Publisher composes and posts.
type Publisher struct {
	poster  Poster
	entries EntrySource
	opts    Options
}

// NewPublisher creates a Publisher. entries may be nil when only
// announcements are posted.
func NewPublisher(poster Poster, entries EntrySource, opts Options) *Publisher {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = observability.NewTracer()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Publisher{poster: poster, entries: entries, opts: opts}
}

// Announce posts the introduction post. In dry-run mode it returns a nil ref.
func (p *Publisher) Announce(ctx context.Context, a config.AnnouncementConfig) (*client.RecordRef, error) {
	ctx, span := p.opts.Tracer.StartPublishSpan(ctx, KindAnnouncement, "")
	post, err := ComposeAnnouncement(a)
	if err != nil {
		observability.EndSpan(span, err)
		p.opts.Metrics.RecordPost(KindAnnouncement, observability.OutcomeError)
		return nil, err
	}

	rec := client.NewPostRecord(post, p.opts.Now()).WithEmbed(AnnouncementEmbed(a))
	ref, err := p.send(ctx, KindAnnouncement, rec)
	observability.EndSpan(span, err)
	return ref, err
}

// PublishPending posts every unpublished entry, oldest first, and marks each
// one published. An entry that fails is logged and left for the next run.
func (p *Publisher) PublishPending(ctx context.Context) (Result, error) {
	var res Result
	if p.entries == nil {
		return res, fmt.Errorf("no entry store configured")
	}

	pending, err := p.entries.Unpublished(ctx)
	if err != nil {
		return res, err
	}
	p.opts.Logger.Info("Publishing pending entries", logging.F("count", len(pending)), logging.F("dry_run", p.opts.DryRun))

	for i, e := range pending {
		if i > 0 && !p.opts.DryRun {
			if err := p.wait(ctx); err != nil {
				return res, err
			}
		}

		log := p.opts.Logger.With(logging.F("url_hash", e.URLHash), logging.F("url", e.Content.URL))
		ok, err := p.publishEntry(ctx, e)
		switch {
		case err != nil:
			res.Failed++
			log.Warn("Entry not published", logging.Err(err))
		case ok:
			res.Published++
			log.Info("Entry published")
		default:
			res.Skipped++
		}
	}
	return res, nil
}

// publishEntry reports true when the entry was actually posted.
func (p *Publisher) publishEntry(ctx context.Context, e Entry) (bool, error) {
	ctx, span := p.opts.Tracer.StartPublishSpan(ctx, KindEntry, e.URLHash)

	post, err := ComposeEntry(e.Content)
	if err != nil {
		observability.EndSpan(span, err)
		p.opts.Metrics.RecordPost(KindEntry, observability.OutcomeError)
		return false, err
	}

	rec := client.NewPostRecord(post, p.opts.Now())
	ref, err := p.send(ctx, KindEntry, rec)
	if err != nil || ref == nil {
		observability.EndSpan(span, err)
		return false, err
	}

	err = p.entries.MarkPublished(ctx, e.URLHash)
	observability.EndSpan(span, err)
	if err != nil {
		return false, fmt.Errorf("posted as %s but not marked: %w", ref.URI, err)
	}
	return true, nil
}

// send posts rec, or prints it in dry-run mode and returns a nil ref.
func (p *Publisher) send(ctx context.Context, kind string, rec *client.PostRecord) (*client.RecordRef, error) {
	if p.opts.DryRun {
		enc := json.NewEncoder(p.opts.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("writing record: %w", err)
		}
		p.opts.Metrics.RecordPost(kind, observability.OutcomeSkipped)
		return nil, nil
	}

	ref, err := p.poster.Post(ctx, rec)
	if err != nil {
		p.opts.Metrics.RecordPost(kind, observability.OutcomeError)
		return nil, err
	}
	p.opts.Metrics.RecordPost(kind, observability.OutcomeOK)
	return ref, nil
}

func (p *Publisher) wait(ctx context.Context) error {
	if p.opts.Interval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.opts.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
