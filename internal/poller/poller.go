// Package poller is the orchestration core: it maintains a durable
// cursor over inbound mentions, fetches new ones on a fixed interval,
// dispatches each to the handler in chronological order, and sends
// the replies. One cycle runs to completion before the next starts,
// so per-principal state is never written concurrently.
package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mikeshasaco/pokemonbot/internal/model"
)

// Reply is the outbound response for one mention. MediaPaths are
// optional image files; the reply degrades to text-only when they
// cannot be uploaded.
type Reply struct {
	Text       string
	MediaPaths []string
}

// Handler turns one mention into a reply. Implementations must
// tolerate duplicate delivery of the same mention id: the cursor
// advances only after a successful reply, so a crash mid-batch
// redelivers the unacknowledged tail.
type Handler interface {
	Handle(ctx context.Context, m model.Mention) Reply
}

// FetchOptions narrow a mentions fetch. Exactly one of SinceID and
// StartTime is set: SinceID after the first cycle, StartTime for the
// bounded lookback window on first run.
type FetchOptions struct {
	SinceID    string
	StartTime  time.Time
	MaxResults int
}

// FeedClient is the social feed collaborator. FetchMentions returns
// mentions newest first, as the provider delivers them.
type FeedClient interface {
	FetchMentions(ctx context.Context, opts FetchOptions) ([]model.Mention, error)
	PostReply(ctx context.Context, text, inReplyToID string, mediaIDs []string) error
	UploadMedia(ctx context.Context, path string) (string, error)
}

// CursorStore persists the last successfully processed mention id.
type CursorStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, mentionID string) error
}

// RateLimitError is a provider rate-limit signal carrying the time
// the limit resets.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.Reset.Format(time.RFC3339))
}

const (
	// rateLimitMargin pads the provider's reset time.
	rateLimitMargin = time.Second
	// mediaUploadAttempts bounds retries for a reply's media set.
	mediaUploadAttempts = 3
	// mediaUploadDelay is the fixed wait between media upload retries.
	mediaUploadDelay = 2 * time.Second
)

// Config holds poller settings.
type Config struct {
	Handle       string        // bot @handle, without the @
	Interval     time.Duration // time between cycles
	Lookback     time.Duration // first-run window
	MessageDelay time.Duration // pause between mentions in one cycle
	MaxResults   int
}

// Poller runs the polling loop.
type Poller struct {
	feed    FeedClient
	handler Handler
	cursor  CursorStore
	cfg     Config

	lastID string
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// New creates a Poller. The cursor is loaded lazily on the first cycle.
func New(feed FeedClient, handler Handler, cursor CursorStore, cfg Config) *Poller {
	return &Poller{
		feed:    feed,
		handler: handler,
		cursor:  cursor,
		cfg:     cfg,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Run polls immediately, then on the configured interval until the
// context is cancelled. Cycles never overlap.
func (p *Poller) Run(ctx context.Context) error {
	saved, err := p.cursor.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load poll cursor: %w", err)
	}
	p.lastID = saved

	log.Info().
		Str("cursor", p.lastID).
		Dur("interval", p.cfg.Interval).
		Msg("Poller started")

	p.RunCycle(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// RunCycle fetches and processes every new mention once. Errors are
// handled inside; a fatal error abandons the rest of the cycle and
// the next scheduled cycle starts fresh.
func (p *Poller) RunCycle(ctx context.Context) {
	mentions, err := p.fetchWithRetry(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Polling cycle abandoned")
		return
	}
	if len(mentions) == 0 {
		log.Debug().Msg("No new mentions")
		return
	}

	log.Info().Int("count", len(mentions)).Msg("Processing new mentions")

	// Provider order is newest first; process chronologically.
	for i := len(mentions) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		p.process(ctx, mentions[i])

		if err := p.sleep(ctx, p.cfg.MessageDelay); err != nil {
			return
		}
	}
}

// fetchWithRetry fetches mentions, waiting out rate limits and
// retrying generic errors per the backoff policy.
func (p *Poller) fetchWithRetry(ctx context.Context) ([]model.Mention, error) {
	opts := FetchOptions{MaxResults: p.cfg.MaxResults}
	if p.lastID != "" {
		opts.SinceID = p.lastID
	} else {
		opts.StartTime = p.now().Add(-p.cfg.Lookback)
	}

	for attempt := 1; ; attempt++ {
		mentions, err := p.feed.FetchMentions(ctx, opts)
		if err == nil {
			return mentions, nil
		}

		var rl *RateLimitError
		if errors.As(err, &rl) {
			wait := rl.Reset.Sub(p.now()) + rateLimitMargin
			if wait < 0 {
				wait = rateLimitMargin
			}
			log.Warn().Dur("wait", wait).Msg("Rate limited, waiting for reset")
			if err := p.sleep(ctx, wait); err != nil {
				return nil, err
			}
			// Resume on the next scheduled cycle.
			return nil, nil
		}

		wait, stop := Backoff(attempt)
		if stop {
			return nil, fmt.Errorf("fetch retries exhausted: %w", err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("Fetch failed, retrying")
		if err := p.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// process handles one mention end to end. The cursor advances only
// after a reply was actually sent, including the text-only fallback;
// a total send failure leaves it alone so the mention is redelivered.
func (p *Poller) process(ctx context.Context, m model.Mention) {
	if !strings.Contains(strings.ToLower(m.Text), "@"+strings.ToLower(p.cfg.Handle)) {
		log.Debug().Str("mention_id", m.ID).Msg("Not a direct mention, skipping")
		return
	}

	log.Info().
		Str("mention_id", m.ID).
		Str("author_id", m.AuthorID).
		Str("text", m.Text).
		Msg("Processing mention")

	reply := p.handler.Handle(ctx, m)

	if !p.send(ctx, m.ID, reply) {
		log.Error().Str("mention_id", m.ID).Msg("Reply failed, cursor not advanced")
		return
	}

	p.lastID = m.ID
	if err := p.cursor.Save(ctx, m.ID); err != nil {
		// The in-memory cursor still advanced; a restart would
		// reprocess from the last persisted id, which downstream
		// handlers tolerate.
		log.Error().Err(err).Str("mention_id", m.ID).Msg("Failed to persist cursor")
	}
}

// send posts the reply, attaching media when the whole set uploads.
// A failed reply-with-media is retried once without media. Returns
// whether any send succeeded.
func (p *Poller) send(ctx context.Context, inReplyTo string, reply Reply) bool {
	mediaIDs := p.uploadMedia(ctx, reply.MediaPaths)

	err := p.feed.PostReply(ctx, reply.Text, inReplyTo, mediaIDs)
	if err == nil {
		return true
	}
	log.Error().Err(err).Str("mention_id", inReplyTo).Msg("Failed to send reply")

	if len(mediaIDs) > 0 {
		if err := p.feed.PostReply(ctx, reply.Text, inReplyTo, nil); err == nil {
			log.Info().Str("mention_id", inReplyTo).Msg("Reply sent without media")
			return true
		}
	}
	return false
}

// uploadMedia uploads the reply's media set, retrying the whole set a
// bounded number of times. All files must upload or none attach.
func (p *Poller) uploadMedia(ctx context.Context, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}

	for attempt := 1; attempt <= mediaUploadAttempts; attempt++ {
		ids := make([]string, 0, len(paths))
		ok := true
		for _, path := range paths {
			id, err := p.feed.UploadMedia(ctx, path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Msg("Media upload failed")
				ok = false
				break
			}
			ids = append(ids, id)
		}
		if ok {
			return ids
		}
		if attempt < mediaUploadAttempts {
			if err := p.sleep(ctx, mediaUploadDelay); err != nil {
				return nil
			}
		}
	}

	log.Warn().Msg("All media upload attempts failed, replying without media")
	return nil
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
