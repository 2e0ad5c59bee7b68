package timeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"islet/internal/model"
	"islet/internal/storage"
)

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.InitApp(context.Background(), "Test Blog"); err != nil {
		t.Fatalf("init app: %v", err)
	}
	return s
}

func seed(t *testing.T, s storage.Storage, id, published string, bucket model.Bucket) {
	t.Helper()
	feedID := model.PublicFeedID
	switch bucket {
	case model.Private:
		feedID = model.PrivateFeedID
	case model.News:
		feedID = "MJ4J6A"
	}
	e := model.Entry{
		ID: id, Content: "entry " + id, Published: published,
		FeedID: feedID, Bucket: bucket,
	}
	if err := s.InsertEntry(context.Background(), &e, nil); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestNextWalksAndWraps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 3; i++ {
		seed(t, s, fmt.Sprintf("1KA%d", i), fmt.Sprintf("2026-08-0%dT10:00:00+00:00", i), model.Public)
	}
	// A News entry must never appear in the personal view.
	seed(t, s, "NEWS1", "2026-08-04T10:00:00+00:00", model.News)

	tl := Mine(s)
	var walked []string
	for i := 0; i < 3; i++ {
		entry, err := tl.Next(ctx)
		if err != nil {
			t.Fatalf("next #%d: %v", i+1, err)
		}
		walked = append(walked, entry.ID)

		list, err := s.GetCurrentList(ctx)
		if err != nil {
			t.Fatalf("get current list: %v", err)
		}
		if len(list) != 1 || list[0] != entry.ID {
			t.Errorf("current list = %v, want just %s", list, entry.ID)
		}
	}
	if diff := cmp.Diff([]string{"1KA3", "1KA2", "1KA1"}, walked); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}

	// Exhausted: the cursor resets and the next read starts over.
	if _, err := tl.Next(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("after the last entry: %v, want ErrEmpty", err)
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.TLCursor != "" {
		t.Errorf("cursor after wrap = %q, want empty", cfg.TLCursor)
	}
	entry, err := tl.Next(ctx)
	if err != nil {
		t.Fatalf("next after wrap: %v", err)
	}
	if entry.ID != "1KA3" {
		t.Errorf("entry after wrap = %s, want the newest again", entry.ID)
	}
}

func TestNextOnEmptyTimeline(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := Mine(s).Next(ctx); !errors.Is(err, ErrEmpty) {
		t.Fatalf("next on empty store: %v, want ErrEmpty", err)
	}
}

func TestFirstResetsCursor(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed(t, s, "1KA1", "2026-08-01T10:00:00+00:00", model.Public)
	seed(t, s, "1KA2", "2026-08-02T10:00:00+00:00", model.Private)

	tl := Mine(s)
	if _, err := tl.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := tl.Next(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}

	entry, err := tl.First(ctx)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if entry.ID != "1KA2" {
		t.Errorf("First = %s, want the newest entry", entry.ID)
	}
}

func TestSeparateCursors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	feed := model.Feed{ID: "MJ4J6A", Link: "https://example.com/rss", Title: "Example"}
	if err := s.InsertFeed(ctx, &feed); err != nil {
		t.Fatalf("insert feed: %v", err)
	}
	seed(t, s, "1KA1", "2026-08-01T10:00:00+00:00", model.Public)
	seed(t, s, "NEWS1", "2026-08-02T10:00:00+00:00", model.News)

	mine, err := Mine(s).Next(ctx)
	if err != nil {
		t.Fatalf("mine next: %v", err)
	}
	if mine.ID != "1KA1" {
		t.Errorf("personal view returned %s", mine.ID)
	}

	news, err := News(s).Next(ctx)
	if err != nil {
		t.Fatalf("news next: %v", err)
	}
	if news.ID != "NEWS1" {
		t.Errorf("news view returned %s", news.ID)
	}

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.TLCursor == cfg.NewsCursor {
		t.Error("the two views share a cursor")
	}
}

func TestGoto(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed(t, s, "1KA1", "2026-08-01T10:00:00+00:00", model.Public)
	seed(t, s, "1KA2", "2026-08-05T10:00:00+00:00", model.Public)

	tl := Mine(s)
	entry, err := tl.Goto(ctx, "2026-08-03")
	if err != nil {
		t.Fatalf("goto: %v", err)
	}
	if entry.ID != "1KA2" {
		t.Errorf("Goto = %s, want the first entry at or after the date", entry.ID)
	}

	// A miss leaves the cursor where it was.
	if _, err := tl.Goto(ctx, "2026-09-01"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("goto past the end: %v, want ErrNotFound", err)
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if cfg.TLCursor != entry.Published {
		t.Errorf("cursor = %q, want untouched %q", cfg.TLCursor, entry.Published)
	}
}

func TestByDate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed(t, s, "1KA1", "2026-08-01T09:00:00+00:00", model.Public)
	seed(t, s, "1KA2", "2026-08-01T12:00:00+00:00", model.Private)
	seed(t, s, "1KA3", "2026-08-01T15:00:00+00:00", model.Public)
	seed(t, s, "1KA4", "2026-08-02T10:00:00+00:00", model.Public)

	tl := Mine(s)
	entries, err := tl.ByDate(ctx, nil, "2026-08-01", 10)
	if err != nil {
		t.Fatalf("by date: %v", err)
	}

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]string{"1KA3", "1KA2", "1KA1"}, ids); diff != "" {
		t.Errorf("merged order mismatch (-want +got):\n%s", diff)
	}

	list, err := s.GetCurrentList(ctx)
	if err != nil {
		t.Fatalf("get current list: %v", err)
	}
	if diff := cmp.Diff(model.CurrentList(ids), list); diff != "" {
		t.Errorf("selection list mismatch (-want +got):\n%s", diff)
	}

	only, err := tl.ByDate(ctx, []model.Bucket{model.Public}, "2026-08-01", 10)
	if err != nil {
		t.Fatalf("by date filtered: %v", err)
	}
	if len(only) != 2 {
		t.Errorf("filtered ByDate = %d entries, want 2", len(only))
	}

	n, err := tl.Count(ctx, nil, "2026-08-01")
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v; want 3", n, err)
	}
}
