package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"islet/internal/model"
	"islet/internal/storage"
)

func newTestPublisher(t *testing.T) (*Publisher, storage.Storage) {
	t.Helper()
	ctx := context.Background()

	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.InitApp(ctx, "Test Blog"); err != nil {
		t.Fatalf("init app: %v", err)
	}
	if err := s.UpdateFeedLink(ctx, model.PublicFeedID, "https://blog.example.com/atom.xml"); err != nil {
		t.Fatalf("set link: %v", err)
	}
	if err := s.UpdateFeedAuthor(ctx, model.PublicFeedID, "Alice"); err != nil {
		t.Fatalf("set author: %v", err)
	}

	p, err := New(s)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	return p, s
}

func seedPublic(t *testing.T, s storage.Storage, n int, content string) {
	t.Helper()
	for i := 1; i <= n; i++ {
		e := model.Entry{
			ID:        fmt.Sprintf("1KA%02d", i),
			Content:   fmt.Sprintf("%s %d", content, i),
			Published: fmt.Sprintf("2026-07-%02dT10:00:00+00:00", i),
			FeedID:    model.PublicFeedID,
			Bucket:    model.Public,
		}
		if err := s.InsertEntry(context.Background(), &e, nil); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestCheckIncompleteProfile(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPublisher(t)

	if _, err := p.Check(ctx); err != nil {
		t.Fatalf("check with complete profile: %v", err)
	}

	if err := s.UpdateFeedAuthor(ctx, model.PublicFeedID, ""); err != nil {
		t.Fatalf("clear author: %v", err)
	}
	if _, err := p.Check(ctx); !errors.Is(err, ErrIncompleteProfile) {
		t.Errorf("check without author: %v, want ErrIncompleteProfile", err)
	}

	if err := p.Publish(ctx, t.TempDir(), 10, true); !errors.Is(err, ErrIncompleteProfile) {
		t.Errorf("publish without author: %v, want ErrIncompleteProfile", err)
	}
}

func TestPublishPagination(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPublisher(t)
	seedPublic(t, s, 6, "post")

	dir := filepath.Join(t.TempDir(), "site")
	if err := p.Publish(ctx, dir, 2, false); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// Six entries in pages of two: p1 and p2 hold the older chunks, the
	// newest chunk is index.html.
	p1 := readOutput(t, dir, "p1.html")
	p2 := readOutput(t, dir, "p2.html")
	index := readOutput(t, dir, "index.html")

	if !strings.Contains(p1, "post 1") || !strings.Contains(p1, "post 2") {
		t.Error("p1.html misses the oldest entries")
	}
	if !strings.Contains(index, "post 5") || !strings.Contains(index, "post 6") {
		t.Error("index.html misses the newest entries")
	}
	if strings.Contains(index, "post 1") {
		t.Error("index.html holds entries of an older page")
	}

	// Chain: p1 <-> p2 <-> index, index without a newer link.
	if !strings.Contains(p1, `href="p2.html"`) {
		t.Error("p1.html does not link to the newer p2.html")
	}
	if !strings.Contains(p2, `href="p1.html"`) || !strings.Contains(p2, `href="index.html"`) {
		t.Error("p2.html does not link to both neighbours")
	}
	if !strings.Contains(index, `href="p2.html"`) {
		t.Error("index.html does not link to the older p2.html")
	}
	if strings.Contains(index, "Newer") {
		t.Error("index.html carries a newer-page link")
	}

	for _, name := range []string{"atom.xml", "simple.css", "style.css"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing output file %s: %v", name, err)
		}
	}
}

func TestPublishEmpty(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPublisher(t)

	dir := filepath.Join(t.TempDir(), "site")
	if err := p.Publish(ctx, dir, 10, false); err != nil {
		t.Fatalf("publish: %v", err)
	}
	index := readOutput(t, dir, "index.html")
	if !strings.Contains(index, "Test Blog") {
		t.Error("index.html misses the blog title")
	}
	if _, err := os.Stat(filepath.Join(dir, "p1.html")); err == nil {
		t.Error("an empty blog produced an extra page")
	}
}

func TestPublishNeedsForce(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPublisher(t)

	dir := filepath.Join(t.TempDir(), "site")
	if err := p.Publish(ctx, dir, 10, false); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := p.Publish(ctx, dir, 10, false); !errors.Is(err, ErrNeedForce) {
		t.Fatalf("republish without force: %v, want ErrNeedForce", err)
	}
	if err := p.Publish(ctx, dir, 10, true); err != nil {
		t.Fatalf("republish with force: %v", err)
	}
}

func TestRepublishKeepsCustomStyle(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPublisher(t)

	dir := filepath.Join(t.TempDir(), "site")
	if err := p.Publish(ctx, dir, 10, false); err != nil {
		t.Fatalf("publish: %v", err)
	}

	custom := "body { color: rebeccapurple; }"
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte(custom), 0o644); err != nil {
		t.Fatalf("write custom style: %v", err)
	}

	if err := p.Publish(ctx, dir, 10, true); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if got := readOutput(t, dir, "style.css"); got != custom {
		t.Error("republish overwrote the customized style.css")
	}
}

func TestAtomDocument(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPublisher(t)
	seedPublic(t, s, 3, "a <tag> & more")

	dir := filepath.Join(t.TempDir(), "site")
	if err := p.Publish(ctx, dir, 10, false); err != nil {
		t.Fatalf("publish: %v", err)
	}

	atom := readOutput(t, dir, "atom.xml")
	if !strings.Contains(atom, "<title>Test Blog</title>") {
		t.Error("atom.xml misses the feed title")
	}
	if !strings.Contains(atom, "urn:uuid:") {
		t.Error("atom.xml misses the feed uuid")
	}
	if strings.Count(atom, "<entry>") != 3 {
		t.Errorf("atom.xml holds %d entries, want 3", strings.Count(atom, "<entry>"))
	}
	if strings.Contains(atom, "a <tag>") {
		t.Error("entry content was not xml-escaped")
	}
	if !strings.Contains(atom, "a &lt;tag&gt; &amp; more") {
		t.Error("escaped entry content is missing")
	}

	// The uuid derives from the feed link, so republishing keeps it stable.
	if err := p.Publish(ctx, dir, 10, true); err != nil {
		t.Fatalf("republish: %v", err)
	}
	again := readOutput(t, dir, "atom.xml")
	id := func(doc string) string {
		start := strings.Index(doc, "<id>")
		return doc[start : start+60]
	}
	if id(atom) != id(again) {
		t.Error("the feed uuid changed between runs")
	}
}

func TestAtomShrinksToFit(t *testing.T) {
	ctx := context.Background()
	p, s := newTestPublisher(t)

	// Thirty near-limit entries render well past the size budget, forcing
	// the document to drop its older half until it fits.
	big := strings.Repeat("x", model.EntrySizeLimit-10)
	seedPublic(t, s, model.AtomEntriesLimit, big)

	dir := filepath.Join(t.TempDir(), "site")
	if err := p.Publish(ctx, dir, 50, false); err != nil {
		t.Fatalf("publish: %v", err)
	}

	atom := readOutput(t, dir, "atom.xml")
	if len(atom) > model.FeedSizeLimit {
		t.Fatalf("atom.xml is %d bytes, over the %d limit", len(atom), model.FeedSizeLimit)
	}
	n := strings.Count(atom, "<entry>")
	if n == 0 || n >= model.AtomEntriesLimit {
		t.Errorf("atom.xml holds %d entries, want a shrunken non-empty set", n)
	}
}
