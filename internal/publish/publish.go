// Package publish renders the Public bucket to static HTML and Atom files.
package publish

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/google/uuid"

	"islet/internal/model"
	"islet/internal/storage"
)

// DefaultOutputDir receives the rendered files when no directory is given.
const DefaultOutputDir = "public"

const atomFilename = "atom.xml"

// ErrIncompleteProfile is reported when the public feed's link, title, or
// author are unset. Publishing makes no sense before they are.
var ErrIncompleteProfile = errors.New(
	"the feed's title, link and author must be set before publishing")

// ErrNeedForce is reported when the output directory already exists and the
// caller did not confirm overwriting. A normal outcome, not a failure.
var ErrNeedForce = errors.New("output folder exists, use force to overwrite")

// ErrEntryTooLarge is reported when even a single entry cannot fit the
// Atom document inside the size budget.
var ErrEntryTooLarge = errors.New("a single entry exceeds the feed size limit")

//go:embed templates
var templatesFS embed.FS

var staticFiles = []string{"simple.css", "style.css"}

// Link is one navigation target on a rendered page.
type Link struct {
	Name string
	Href string
}

// Links wires a page to its neighbours. PrevPage points at the newer page,
// NextPage at the older one; index.html carries no PrevPage.
type Links struct {
	PrevPage Link
	NextPage Link
	Footer   Link
}

type pageData struct {
	Feed    *model.Feed
	Entries []model.Entry
	Links   Links
}

type atomData struct {
	Feed    *model.Feed
	UUID    string
	Updated string
	Entries []model.Entry
}

// Publisher renders the Public-bucket entries to a static site.
type Publisher struct {
	store    storage.Storage
	pageTmpl *htmltemplate.Template
	atomTmpl *texttemplate.Template
}

// New creates a Publisher with the embedded templates.
func New(store storage.Storage) (*Publisher, error) {
	pageTmpl, err := htmltemplate.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	atomTmpl, err := texttemplate.New(atomFilename).
		Funcs(texttemplate.FuncMap{"xml": xmlEscape}).
		ParseFS(templatesFS, "templates/atom.xml")
	if err != nil {
		return nil, fmt.Errorf("parse atom template: %w", err)
	}
	return &Publisher{store: store, pageTmpl: pageTmpl, atomTmpl: atomTmpl}, nil
}

// Check verifies the public feed's profile is complete enough to publish.
func (p *Publisher) Check(ctx context.Context) (*model.Feed, error) {
	feed, err := p.store.GetFeed(ctx, model.PublicFeedID)
	if err != nil {
		return nil, err
	}
	if feed.Link == "" || feed.Title == "" || feed.AuthorName == "" {
		return nil, ErrIncompleteProfile
	}
	return feed, nil
}

// Publish renders all pages, the Atom document, and the static assets into
// outputDir. An existing directory is only overwritten when force is set.
func (p *Publisher) Publish(ctx context.Context, outputDir string, pageN int, force bool) error {
	feed, err := p.Check(ctx)
	if err != nil {
		return err
	}

	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	if err := ensureDir(outputDir, force); err != nil {
		return err
	}

	feed.Updated = time.Now().Format(model.RFC3339)

	if err := p.writePages(ctx, outputDir, feed, pageN); err != nil {
		return err
	}
	if err := p.writeAtom(ctx, outputDir, feed); err != nil {
		return err
	}
	return copyStatic(outputDir)
}

// writePages walks the Public entries oldest to newest in chunks of pageN.
// All but the newest chunk become p1.html, p2.html, ...; the newest chunk
// is index.html.
func (p *Publisher) writePages(ctx context.Context, outputDir string, feed *model.Feed, pageN int) error {
	total, err := p.store.CountPublic(ctx)
	if err != nil {
		return err
	}

	pages := (total + pageN - 1) / pageN
	if pages == 0 {
		pages = 1
	}

	cursor := ""
	for i := 1; i <= pages; i++ {
		entries, err := p.store.PublicEntriesAfter(ctx, cursor, pageN)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			cursor = entries[len(entries)-1].Published
		}

		name := fmt.Sprintf("p%d.html", i)
		if i == pages {
			name = "index.html"
		}

		var links Links
		if i > 1 {
			links.NextPage = Link{Name: "Older", Href: fmt.Sprintf("p%d.html", i-1)}
		}
		switch {
		case i == pages:
			// The newest page has nothing newer.
		case i == pages-1:
			links.PrevPage = Link{Name: "Newer", Href: "index.html"}
		default:
			links.PrevPage = Link{Name: "Newer", Href: fmt.Sprintf("p%d.html", i+1)}
		}

		var buf bytes.Buffer
		data := pageData{Feed: feed, Entries: entries, Links: links}
		if err := p.pageTmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(outputDir, name), buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// writeAtom renders the newest entries into atom.xml, halving the entry
// list until the document fits inside the size budget.
func (p *Publisher) writeAtom(ctx context.Context, outputDir string, feed *model.Feed) error {
	entries, err := p.store.RecentPublic(ctx, model.AtomEntriesLimit)
	if err != nil {
		return err
	}

	feedUUID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(feed.Link))
	data := atomData{
		Feed:    feed,
		UUID:    feedUUID.String(),
		Updated: feed.Updated,
		Entries: entries,
	}

	for {
		var buf bytes.Buffer
		if err := p.atomTmpl.ExecuteTemplate(&buf, atomFilename, data); err != nil {
			return fmt.Errorf("render atom: %w", err)
		}
		if buf.Len() <= model.FeedSizeLimit {
			return os.WriteFile(filepath.Join(outputDir, atomFilename), buf.Bytes(), 0o644)
		}
		if len(data.Entries) <= 1 {
			return fmt.Errorf("%w (%d bytes > %d)", ErrEntryTooLarge, buf.Len(), model.FeedSizeLimit)
		}
		data.Entries = data.Entries[:len(data.Entries)/2]
	}
}

func ensureDir(dir string, force bool) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o750)
	}
	if err != nil {
		return fmt.Errorf("stat output folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder", dir)
	}
	if !force {
		return ErrNeedForce
	}
	return nil
}

// copyStatic writes the stylesheet files, skipping any that already exist
// so user customizations survive republishing.
func copyStatic(outputDir string) error {
	for _, name := range staticFiles {
		dst := filepath.Join(outputDir, name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		data, err := templatesFS.ReadFile("templates/" + name)
		if err != nil {
			return fmt.Errorf("read asset %s: %w", name, err)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("write asset %s: %w", name, err)
		}
	}
	return nil
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
