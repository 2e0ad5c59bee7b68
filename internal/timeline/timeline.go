// Package timeline implements cursor-driven reading of stored entries.
package timeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"islet/internal/model"
	"islet/internal/storage"
)

// ErrEmpty is reported when a timeline has no entry left to show. The
// cursor has been reset, so the next call starts from the most recent entry.
var ErrEmpty = errors.New("no more entries")

// Timeline reads one bucket-filtered view of the entry table, advancing a
// cursor persisted in the application configuration.
type Timeline struct {
	store   storage.Storage
	buckets []model.Bucket
	cursor  func(*model.AppConfig) *string
}

// Mine is the view over the user's own entries (Public and Private).
func Mine(store storage.Storage) *Timeline {
	return &Timeline{
		store:   store,
		buckets: []model.Bucket{model.Public, model.Private},
		cursor:  func(cfg *model.AppConfig) *string { return &cfg.TLCursor },
	}
}

// News is the view over ingested subscription entries.
func News(store storage.Storage) *Timeline {
	return &Timeline{
		store:   store,
		buckets: []model.Bucket{model.News},
		cursor:  func(cfg *model.AppConfig) *string { return &cfg.NewsCursor },
	}
}

// Next shows the entry following the persisted cursor and advances it. An
// empty cursor starts from the most recent entry. When nothing is left the
// cursor resets and ErrEmpty is reported.
func (t *Timeline) Next(ctx context.Context) (*model.Entry, error) {
	cfg, err := t.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	cursor := t.cursor(cfg)

	var entry *model.Entry
	if *cursor == "" {
		entry, err = t.store.FirstEntry(ctx, t.buckets)
	} else {
		entry, err = t.store.NextEntry(ctx, t.buckets, *cursor)
	}
	if errors.Is(err, storage.ErrNotFound) {
		*cursor = ""
		if err := t.store.UpdateConfig(ctx, cfg); err != nil {
			return nil, err
		}
		if err := t.store.UpdateCurrentList(ctx, nil); err != nil {
			return nil, err
		}
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}

	*cursor = entry.Published
	if err := t.store.UpdateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	if err := t.store.UpdateCurrentList(ctx, model.CurrentList{entry.ID}); err != nil {
		return nil, err
	}
	return entry, nil
}

// First resets the cursor and shows the newest entry.
func (t *Timeline) First(ctx context.Context) (*model.Entry, error) {
	cfg, err := t.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	*t.cursor(cfg) = ""
	if err := t.store.UpdateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return t.Next(ctx)
}

// Goto jumps to the oldest entry published at or after the date prefix and
// moves the cursor there. Not finding one leaves the cursor untouched.
func (t *Timeline) Goto(ctx context.Context, datePrefix string) (*model.Entry, error) {
	entry, err := t.store.GotoDate(ctx, t.buckets, datePrefix)
	if err != nil {
		return nil, err
	}

	cfg, err := t.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	*t.cursor(cfg) = entry.Published
	if err := t.store.UpdateConfig(ctx, cfg); err != nil {
		return nil, err
	}
	if err := t.store.UpdateCurrentList(ctx, model.CurrentList{entry.ID}); err != nil {
		return nil, err
	}
	return entry, nil
}

// ByDate lists entries of a day (or any published prefix), newest first.
// Multiple buckets are queried separately, concatenated, and re-sorted.
// The produced IDs become the current selection list.
func (t *Timeline) ByDate(ctx context.Context, buckets []model.Bucket, datePrefix string, limit int) ([]model.Entry, error) {
	if len(buckets) == 0 {
		buckets = t.buckets
	}

	var entries []model.Entry
	for _, bucket := range buckets {
		got, err := t.store.EntriesByDate(ctx, bucket, datePrefix, limit)
		if err != nil {
			return nil, err
		}
		entries = append(entries, got...)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Published > entries[j].Published
	})

	list := make(model.CurrentList, len(entries))
	for i, e := range entries {
		list[i] = e.ID
	}
	if err := t.store.UpdateCurrentList(ctx, list); err != nil {
		return nil, err
	}
	return entries, nil
}

// Today lists today's entries.
func (t *Timeline) Today(ctx context.Context, buckets []model.Bucket, limit int) ([]model.Entry, error) {
	return t.ByDate(ctx, buckets, time.Now().Format("2006-01-02"), limit)
}

// Yesterday lists yesterday's entries.
func (t *Timeline) Yesterday(ctx context.Context, buckets []model.Bucket, limit int) ([]model.Entry, error) {
	return t.ByDate(ctx, buckets, time.Now().AddDate(0, 0, -1).Format("2006-01-02"), limit)
}

// Count counts entries published under the given date prefix.
func (t *Timeline) Count(ctx context.Context, buckets []model.Bucket, datePrefix string) (int, error) {
	if len(buckets) == 0 {
		buckets = t.buckets
	}
	return t.store.CountByDate(ctx, buckets, datePrefix)
}
