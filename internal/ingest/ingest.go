// Package ingest turns raw feed documents into stored entries.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"islet/internal/fetcher"
	"islet/internal/model"
	"islet/internal/shortid"
	"islet/internal/storage"
)

// UpdateWindow is the minimum interval between two fetches of the same feed
// unless the caller forces an override.
const UpdateWindow = 24 * time.Hour

// ErrAlreadyExists is returned when subscribing to a feed link that is
// already subscribed.
var ErrAlreadyExists = errors.New("already subscribed")

// ErrRateLimited is returned when a feed was fetched too recently.
// Use force to override.
var ErrRateLimited = errors.New("feed was updated recently, use force to override")

// ParserName selects the extraction strategy for a feed.
type ParserName string

// The known extraction strategies.
const (
	ParserBase       ParserName = "Base"       // body only
	ParserHasTitle   ParserName = "HasTitle"   // prepend the entry title
	ParserHasSummary ParserName = "HasSummary" // use the richer content field
)

// ValidParser reports whether name is a known strategy.
func ValidParser(name string) bool {
	switch ParserName(name) {
	case ParserBase, ParserHasTitle, ParserHasSummary:
		return true
	}
	return false
}

// Engine subscribes to feeds and re-ingests them into storage.
type Engine struct {
	store storage.Storage
	fetch *fetcher.Fetcher
	log   *slog.Logger
}

// New creates an ingestion engine.
func New(store storage.Storage, fetch *fetcher.Fetcher, log *slog.Logger) *Engine {
	return &Engine{store: store, fetch: fetch, log: log}
}

// Subscribe adds a feed and ingests its current entries. The link must not
// be subscribed yet; the check runs before any network work.
func (e *Engine) Subscribe(ctx context.Context, link string, parser ParserName) (*model.Feed, error) {
	exists, err := e.store.FeedLinkExists(ctx, link)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, link)
	}

	raw, err := e.fetch.Fetch(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", link, err)
	}
	parsed, err := gofeed.NewParser().ParseString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", link, err)
	}

	feedID := shortid.FeedID(time.Now(), func(id string) bool {
		taken, err := e.store.FeedIDExists(ctx, id)
		return err == nil && taken
	})

	feed := &model.Feed{
		ID:      feedID,
		Link:    link,
		Website: parsed.Link,
		Title:   model.Truncate(parsed.Title, model.ShortStrSizeLimit),
		Updated: time.Now().Format(model.RFC3339),
		Parser:  string(parser),
	}
	if parsed.Author != nil {
		feed.AuthorName = model.Truncate(parsed.Author.Name, model.ShortStrSizeLimit)
	}

	entries, err := EntriesFromFeed(parsed, feed)
	if err != nil {
		return nil, err
	}

	if err := e.store.InsertFeed(ctx, feed); err != nil {
		return nil, err
	}
	if err := e.store.ReplaceEntries(ctx, feed.ID, entries, feed.Updated); err != nil {
		return nil, err
	}
	return feed, nil
}

// Update re-ingests one feed, replacing its entire entry set. A non-empty
// parser overrides the stored strategy first. Sentinel feeds are never
// fetchable; recent fetches are rejected unless forced.
func (e *Engine) Update(ctx context.Context, feedID string, parser ParserName, force bool) (int, error) {
	if model.IsSentinelFeed(feedID) {
		return 0, fmt.Errorf("feed %s is a built-in bucket, not a subscription", feedID)
	}
	feed, err := e.store.GetFeed(ctx, feedID)
	if err != nil {
		return 0, err
	}

	if parser != "" && string(parser) != feed.Parser {
		if err := e.store.UpdateFeedParser(ctx, feed.ID, string(parser)); err != nil {
			return 0, err
		}
		feed.Parser = string(parser)
	}

	if !force {
		if updated, err := time.Parse(model.RFC3339, feed.Updated); err == nil {
			if time.Since(updated) < UpdateWindow {
				return 0, ErrRateLimited
			}
		}
	}

	raw, err := e.fetch.Fetch(ctx, feed.Link)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", feed.Link, err)
	}
	parsed, err := gofeed.NewParser().ParseString(string(raw))
	if err != nil {
		return 0, fmt.Errorf("parse feed %s: %w", feed.Link, err)
	}

	entries, err := EntriesFromFeed(parsed, feed)
	if err != nil {
		return 0, err
	}

	updated := time.Now().Format(model.RFC3339)
	if err := e.store.ReplaceEntries(ctx, feed.ID, entries, updated); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// UpdateAll re-ingests every subscription sequentially. Feeds inside the
// rate-limit window are skipped, and one feed's failure never aborts the
// batch. The number of successfully updated feeds is returned.
func (e *Engine) UpdateAll(ctx context.Context) int {
	feeds, err := e.store.ListSubscriptions(ctx)
	if err != nil {
		e.log.Error("list subscriptions", "error", err)
		return 0
	}

	updated := 0
	for _, feed := range feeds {
		if ctx.Err() != nil {
			return updated
		}
		n, err := e.Update(ctx, feed.ID, "", false)
		switch {
		case errors.Is(err, ErrRateLimited):
			e.log.Info("skip recently updated feed", "feed_id", feed.ID, "title", feed.Title)
		case err != nil:
			e.log.Error("update feed", "feed_id", feed.ID, "title", feed.Title, "error", err)
		default:
			e.log.Info("updated feed", "feed_id", feed.ID, "title", feed.Title, "entries", n)
			updated++
		}
	}
	return updated
}

// EntriesFromFeed converts a parsed feed document into bounded News
// entries owned by feed.
func EntriesFromFeed(parsed *gofeed.Feed, feed *model.Feed) ([]model.Entry, error) {
	entries := make([]model.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		published, err := itemPubDate(item)
		if err != nil {
			return nil, err
		}

		body, err := itemBody(item, ParserName(feed.Parser))
		if err != nil {
			return nil, err
		}

		pubTime, _ := time.Parse(model.RFC3339, published)
		entries = append(entries, model.Entry{
			ID:        shortid.RandomID(pubTime),
			Content:   model.Truncate(body, model.EntrySizeLimit),
			Link:      model.Truncate(item.Link, model.ShortStrSizeLimit),
			Published: published,
			FeedID:    feed.ID,
			FeedName:  feed.Title,
			Bucket:    model.News,
		})
	}
	return entries, nil
}

func itemPubDate(item *gofeed.Item) (string, error) {
	if item.Published != "" {
		return ParsePubDate(item.Published)
	}
	if item.Updated != "" {
		return ParsePubDate(item.Updated)
	}
	return "", fmt.Errorf("item %q carries no published date", item.Title)
}

func itemBody(item *gofeed.Item, parser ParserName) (string, error) {
	source := item.Description
	if parser == ParserHasSummary && item.Content != "" {
		source = item.Content
	}

	body, err := ExtractText(source)
	if err != nil {
		return "", fmt.Errorf("extract item %q: %w", item.Title, err)
	}
	if parser == ParserHasTitle && item.Title != "" {
		body = item.Title + "\n" + body
	}
	return body, nil
}
