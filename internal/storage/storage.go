// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"islet/internal/model"
)

// ErrNotFound is returned when a query matches no rows.
var ErrNotFound = errors.New("not found")

// ErrNoRows is returned when a mutation the caller believed targeted an
// existing row affected nothing. It signals stale caller state or a logic
// bug, not a normal miss.
var ErrNoRows = errors.New("zero rows affected")

// ErrInvalidBucket is returned when an operation is applied to an entry
// whose bucket does not allow it.
var ErrInvalidBucket = errors.New("invalid bucket for this operation")

// Storage is the interface for all persistence operations.
type Storage interface {
	InitApp(ctx context.Context, name string) error

	GetConfig(ctx context.Context) (*model.AppConfig, error)
	UpdateConfig(ctx context.Context, cfg *model.AppConfig) error

	NextSequenceID(ctx context.Context, now time.Time) (string, error)

	GetCurrentList(ctx context.Context) (model.CurrentList, error)
	UpdateCurrentList(ctx context.Context, list model.CurrentList) error
	NthCurrent(ctx context.Context, n int) (string, error)

	GetFeed(ctx context.Context, id string) (*model.Feed, error)
	FeedLinkExists(ctx context.Context, link string) (bool, error)
	FeedIDExists(ctx context.Context, id string) (bool, error)
	InsertFeed(ctx context.Context, feed *model.Feed) error
	DeleteFeed(ctx context.Context, id string) error
	UpdateFeedID(ctx context.Context, oldID, newID string) error
	UpdateFeedTitle(ctx context.Context, id, title string) error
	UpdateFeedLink(ctx context.Context, id, link string) error
	UpdateFeedWebsite(ctx context.Context, id, website string) error
	UpdateFeedAuthor(ctx context.Context, id, author string) error
	UpdateFeedParser(ctx context.Context, id, parser string) error
	ListSubscriptions(ctx context.Context) ([]model.Feed, error)
	SearchFeeds(ctx context.Context, keyword string) ([]model.Feed, error)

	InsertEntry(ctx context.Context, entry *model.Entry, tags []string) error
	ReplaceEntries(ctx context.Context, feedID string, entries []model.Entry, updated string) error
	DeleteEntry(ctx context.Context, id string) error
	GetEntry(ctx context.Context, id string) (*model.Entry, error)
	GetEntriesByPrefix(ctx context.Context, prefix string) ([]model.Entry, error)
	MoveToFav(ctx context.Context, entryID, newID string) error
	ToggleBucket(ctx context.Context, id string) (*model.Entry, error)

	FirstEntry(ctx context.Context, buckets []model.Bucket) (*model.Entry, error)
	NextEntry(ctx context.Context, buckets []model.Bucket, cursor string) (*model.Entry, error)
	GotoDate(ctx context.Context, buckets []model.Bucket, datePrefix string) (*model.Entry, error)
	EntriesByDate(ctx context.Context, bucket model.Bucket, datePrefix string, limit int) ([]model.Entry, error)
	CountByDate(ctx context.Context, buckets []model.Bucket, datePrefix string) (int, error)
	EntriesByFeed(ctx context.Context, feedID string, limit int) ([]model.Entry, error)
	CountByFeed(ctx context.Context, feedID string) (int, error)
	RecentEntries(ctx context.Context, bucket model.Bucket, limit int) ([]model.Entry, error)
	SearchContent(ctx context.Context, keyword string, buckets []model.Bucket, limit int) ([]model.Entry, error)

	AllTags(ctx context.Context) ([]string, error)
	TagsByName(ctx context.Context, keyword string) ([]string, error)
	EntriesByTag(ctx context.Context, tag string, buckets []model.Bucket, limit int) ([]model.Entry, error)

	CountPublic(ctx context.Context) (int, error)
	PublicEntriesAfter(ctx context.Context, cursor string, limit int) ([]model.Entry, error)
	RecentPublic(ctx context.Context, limit int) ([]model.Entry, error)

	Close() error
}
