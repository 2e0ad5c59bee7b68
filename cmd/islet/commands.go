package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"islet/internal/fetcher"
	"islet/internal/ingest"
	"islet/internal/model"
	"islet/internal/publish"
	"islet/internal/storage"
	"islet/internal/timeline"
)

func cmdPost(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	private := fs.Bool("pri", false, "post to the private bucket")
	filename := fs.String("f", "", "post the content of a file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	content := strings.Join(fs.Args(), " ")
	if *filename != "" {
		data, err := os.ReadFile(*filename)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		content = string(data)
	}
	if strings.TrimSpace(content) == "" {
		// No message given, fall back to the clipboard.
		pasted, err := clipboard.ReadAll()
		if err != nil || strings.TrimSpace(pasted) == "" {
			return fmt.Errorf("nothing to post: give a message, a file, or fill the clipboard")
		}
		content = pasted
	}

	id, err := a.store.NextSequenceID(ctx, time.Now())
	if err != nil {
		return err
	}
	entry, err := model.NewPost(id, content, model.MyBucket(*private), time.Now())
	if err != nil {
		return err
	}
	tags := model.ExtractTags(entry.Content)
	if err := a.store.InsertEntry(ctx, &entry, tags); err != nil {
		return err
	}
	printEntry(1, &entry, false)
	return nil
}

func cmdTimeline(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("tl", flag.ExitOnError)
	first := fs.Bool("first", false, "read the latest message")
	next := fs.Bool("next", false, "read the next message")
	gotoDate := fs.String("go", "", "move the cursor to a date (YYYY-MM-DD)")
	today := fs.Bool("today", false, "read today's messages")
	yesterday := fs.Bool("yesterday", false, "read yesterday's messages")
	datePrefix := fs.String("date", "", "read messages of a date")
	count := fs.String("count", "", "count messages of a date")
	pub := fs.Bool("pub", false, "public messages only")
	pri := fs.Bool("pri", false, "private messages only")
	fav := fs.Bool("fav", false, "favorite messages only")
	limit := fs.Int("limit", 0, "limit the number of messages")
	zen := fs.Bool("zen", false, "zen mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := a.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if *limit <= 0 {
		*limit = cfg.CLIPageN
	}
	zenClear(cfg, *zen)

	var buckets []model.Bucket
	switch {
	case *pub:
		buckets = []model.Bucket{model.Public}
	case *pri:
		buckets = []model.Bucket{model.Private}
	case *fav:
		buckets = []model.Bucket{model.Fav}
	}

	tl := timeline.Mine(a.store)
	switch {
	case *today:
		entries, err := tl.Today(ctx, buckets, *limit)
		if err != nil {
			return err
		}
		printEntryList(entries, false)
	case *yesterday:
		entries, err := tl.Yesterday(ctx, buckets, *limit)
		if err != nil {
			return err
		}
		printEntryList(entries, false)
	case *datePrefix != "":
		entries, err := tl.ByDate(ctx, buckets, *datePrefix, *limit)
		if err != nil {
			return err
		}
		printEntryList(entries, false)
	case *count != "":
		n, err := tl.Count(ctx, buckets, *count)
		if err != nil {
			return err
		}
		fmt.Printf("Found %d messages on %s\n", n, *count)
	case *fav:
		entries, err := a.store.RecentEntries(ctx, model.Fav, *limit)
		if err != nil {
			return err
		}
		if err := rememberSelection(ctx, a, entries); err != nil {
			return err
		}
		printEntryList(entries, true)
	case *gotoDate != "":
		entry, err := tl.Goto(ctx, *gotoDate)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("No messages at or after %s\n", *gotoDate)
			return nil
		}
		if err != nil {
			return err
		}
		printEntry(1, entry, false)
	case *first:
		return showNext(tl.First(ctx))
	default:
		_ = next // "tl" and "tl -next" are the same thing
		return showNext(tl.Next(ctx))
	}
	return nil
}

func showNext(entry *model.Entry, err error) error {
	if errors.Is(err, timeline.ErrEmpty) {
		fmt.Println("No more messages, the cursor is back at the top.")
		return nil
	}
	if err != nil {
		return err
	}
	printEntry(1, entry, false)
	return nil
}

func cmdNews(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("news", flag.ExitOnError)
	follow := fs.String("follow", "", "subscribe a feed")
	parser := fs.String("parser", "", "parser: Base, HasTitle or HasSummary")
	list := fs.Bool("list", false, "list all subscriptions")
	feedID := fs.String("feed", "", "show messages of a feed")
	update := fs.String("u", "", "update a feed by id, or 'all'")
	setName := fs.String("set-name", "", "change the title of a feed (requires -feed)")
	setID := fs.String("set-id", "", "change the id of a feed (requires -feed)")
	first := fs.Bool("first", false, "read the latest message")
	next := fs.Bool("next", false, "read the next message")
	gotoDate := fs.String("go", "", "move the cursor to a date (YYYY-MM-DD)")
	limit := fs.Int("limit", 0, "limit the number of messages")
	force := fs.Bool("force", false, "force to update or delete")
	like := fs.String("like", "", "move an entry to the Fav bucket")
	del := fs.String("delete", "", "delete a feed by id")
	toggleLink := fs.Bool("toggle-link", false, "toggle always showing entry links")
	zen := fs.Bool("zen", false, "zen mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := a.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if *limit <= 0 {
		*limit = cfg.CLIPageN
	}
	zenClear(cfg, *zen)

	if *parser != "" && !ingest.ValidParser(*parser) {
		return fmt.Errorf("unknown parser %q (Base, HasTitle, HasSummary)", *parser)
	}

	switch {
	case *toggleLink:
		cfg.NewsShowLink = !cfg.NewsShowLink
		fmt.Printf("[Always Show Link] %v\n", cfg.NewsShowLink)
		return a.store.UpdateConfig(ctx, cfg)
	case *list:
		feeds, err := a.store.ListSubscriptions(ctx)
		if err != nil {
			return err
		}
		printFeedList(feeds)
		return nil
	case *follow != "":
		engine, err := a.newEngine(cfg)
		if err != nil {
			return err
		}
		name := ingest.ParserBase
		if *parser != "" {
			name = ingest.ParserName(*parser)
		}
		feed, err := engine.Subscribe(ctx, *follow, name)
		if err != nil {
			return err
		}
		fmt.Println("Subscribed:")
		printFeed(feed)
		return nil
	case *update != "":
		engine, err := a.newEngine(cfg)
		if err != nil {
			return err
		}
		if strings.EqualFold(*update, "all") {
			n := engine.UpdateAll(ctx)
			fmt.Printf("Updated %d feeds.\n", n)
			return nil
		}
		n, err := engine.Update(ctx, *update, ingest.ParserName(*parser), *force)
		if err != nil {
			return err
		}
		fmt.Printf("OK. %d entries.\n", n)
		return nil
	case *like != "":
		return moveToFav(ctx, a, *like)
	case *setID != "":
		if *feedID == "" {
			return fmt.Errorf("-set-id requires -feed to name the feed being renamed")
		}
		if err := a.store.UpdateFeedID(ctx, *feedID, *setID); err != nil {
			return err
		}
		return printOneFeed(ctx, a, *setID)
	case *setName != "":
		if *feedID == "" {
			return fmt.Errorf("-set-name requires -feed to name the feed being renamed")
		}
		if err := a.store.UpdateFeedTitle(ctx, *feedID, *setName); err != nil {
			return err
		}
		return printOneFeed(ctx, a, *feedID)
	case *feedID != "":
		total, err := a.store.CountByFeed(ctx, *feedID)
		if err != nil {
			return err
		}
		entries, err := a.store.EntriesByFeed(ctx, *feedID, *limit)
		if err != nil {
			return err
		}
		if err := rememberSelection(ctx, a, entries); err != nil {
			return err
		}
		if total > 0 {
			fmt.Printf("Total %d items in [%s], showing %d.\n\n", total, *feedID, len(entries))
		}
		printEntryList(entries, cfg.NewsShowLink)
		return nil
	case *del != "":
		if err := printOneFeed(ctx, a, *del); err != nil {
			return err
		}
		if !confirm("Confirm deletion") {
			fmt.Println("Canceled.")
			return nil
		}
		if err := a.store.DeleteFeed(ctx, *del); err != nil {
			return err
		}
		fmt.Println("OK, deleted.")
		return nil
	case *gotoDate != "":
		entry, err := timeline.News(a.store).Goto(ctx, *gotoDate)
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Printf("No messages at or after %s\n", *gotoDate)
			return nil
		}
		if err != nil {
			return err
		}
		printEntry(1, entry, cfg.NewsShowLink)
		return nil
	case *first:
		entry, err := timeline.News(a.store).First(ctx)
		return showNewsNext(cfg, entry, err)
	default:
		_ = next
		entry, err := timeline.News(a.store).Next(ctx)
		return showNewsNext(cfg, entry, err)
	}
}

func showNewsNext(cfg *model.AppConfig, entry *model.Entry, err error) error {
	if errors.Is(err, timeline.ErrEmpty) {
		fmt.Println("No more news, the cursor is back at the top.")
		fmt.Println("Try 'islet news -follow [url]' to subscribe a feed.")
		return nil
	}
	if err != nil {
		return err
	}
	printEntry(1, entry, cfg.NewsShowLink)
	return nil
}

func (a *app) newEngine(cfg *model.AppConfig) (*ingest.Engine, error) {
	f, err := fetcher.NewWithProxy(cfg)
	if err != nil {
		return nil, err
	}
	return ingest.New(a.store, f, a.log), nil
}

func cmdLike(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: islet like <id>")
	}
	return moveToFav(ctx, a, args[0])
}

func moveToFav(ctx context.Context, a *app, ref string) error {
	entry, err := resolveEntry(ctx, a, ref)
	if err != nil || entry == nil {
		return err
	}
	newID, err := a.store.NextSequenceID(ctx, time.Now())
	if err != nil {
		return err
	}
	if err := a.store.MoveToFav(ctx, entry.ID, newID); err != nil {
		return err
	}
	moved, err := a.store.GetEntry(ctx, newID)
	if err != nil {
		return err
	}
	fmt.Println("Moved to Fav:")
	printEntry(1, moved, false)
	return nil
}

func cmdToggle(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: islet toggle <id>")
	}
	entry, err := resolveEntry(ctx, a, args[0])
	if err != nil || entry == nil {
		return err
	}
	toggled, err := a.store.ToggleBucket(ctx, entry.ID)
	if err != nil {
		return err
	}
	printEntry(1, toggled, false)
	return nil
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: islet delete <id>")
	}
	entry, err := resolveEntry(ctx, a, args[0])
	if err != nil || entry == nil {
		return err
	}
	printEntry(1, entry, true)
	if !confirm("Confirm deletion (cannot be undone)") {
		fmt.Println("Canceled.")
		return nil
	}
	if err := a.store.DeleteEntry(ctx, entry.ID); err != nil {
		return err
	}
	fmt.Println("OK, deleted.")
	return nil
}

func cmdCopy(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("copy", flag.ExitOnError)
	link := fs.Bool("link", false, "copy the link instead of the content")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: islet copy [-link] <id>")
	}

	entry, err := resolveEntry(ctx, a, fs.Arg(0))
	if err != nil || entry == nil {
		return err
	}

	text := entry.Content
	if *link {
		if entry.Link == "" {
			return fmt.Errorf("entry %s has no link", entry.ID)
		}
		text = entry.Link
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	fmt.Println("Copied.")
	return nil
}

func cmdSearch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	byTag := fs.Bool("tag", false, "search by tag only")
	contain := fs.Bool("contain", false, "search message content only")
	bucketName := fs.String("bucket", "all", "all, public, private, news or fav")
	allTags := fs.Bool("all-tags", false, "list all tags")
	allFeeds := fs.Bool("feeds", false, "list feeds by title")
	limit := fs.Int("limit", 0, "limit the number of results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := a.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if *limit <= 0 {
		*limit = cfg.CLIPageN
	}

	keyword := strings.TrimSpace(fs.Arg(0))
	if keyword == "" && !*allTags && !*allFeeds {
		return fmt.Errorf("usage: islet search <keyword>")
	}

	buckets, err := parseBucket(*bucketName)
	if err != nil {
		return err
	}

	switch {
	case *allTags:
		var tags []string
		if keyword != "" {
			tags, err = a.store.TagsByName(ctx, keyword)
		} else {
			tags, err = a.store.AllTags(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Found %d tags: %s\n", len(tags), strings.Join(tags, " "))
		return nil
	case *allFeeds:
		var feeds []model.Feed
		if keyword != "" {
			feeds, err = a.store.SearchFeeds(ctx, keyword)
		} else {
			feeds, err = a.store.ListSubscriptions(ctx)
		}
		if err != nil {
			return err
		}
		printFeedList(feeds)
		return nil
	case *byTag:
		return searchTag(ctx, a, keyword, buckets, *limit, true)
	case *contain:
		return searchContent(ctx, a, keyword, buckets, *limit)
	default:
		// Tag first, content as the fallback.
		found, err := searchTagQuiet(ctx, a, keyword, buckets, *limit)
		if err != nil {
			return err
		}
		if !found {
			return searchContent(ctx, a, keyword, buckets, *limit)
		}
		return nil
	}
}

func searchTag(ctx context.Context, a *app, keyword string, buckets []model.Bucket, limit int, report bool) error {
	entries, err := a.store.EntriesByTag(ctx, keyword, buckets, limit)
	if err != nil {
		return err
	}
	if err := rememberSelection(ctx, a, entries); err != nil {
		return err
	}
	if len(entries) == 0 && report {
		fmt.Printf("Tag #%s not found.\n", keyword)
		return nil
	}
	printEntryList(entries, true)
	return nil
}

func searchTagQuiet(ctx context.Context, a *app, keyword string, buckets []model.Bucket, limit int) (bool, error) {
	entries, err := a.store.EntriesByTag(ctx, keyword, buckets, limit)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}
	if err := rememberSelection(ctx, a, entries); err != nil {
		return false, err
	}
	printEntryList(entries, true)
	return true, nil
}

func searchContent(ctx context.Context, a *app, keyword string, buckets []model.Bucket, limit int) error {
	entries, err := a.store.SearchContent(ctx, keyword, buckets, limit)
	if err != nil {
		return err
	}
	if err := rememberSelection(ctx, a, entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("Nothing contains %q.\n", keyword)
		return nil
	}
	printEntryList(entries, true)
	return nil
}

func cmdPublish(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	info := fs.Bool("info", false, "show the public feed profile")
	setTitle := fs.String("set-title", "", "set the title of the public feed")
	setAuthor := fs.String("set-author", "", "set the author of the public feed")
	setLink := fs.String("set-link", "", "set the URL the feed will be served from")
	setWebsite := fs.String("set-website", "", "set the URL of your home page")
	output := fs.String("out", "", "output folder (default 'public')")
	pageN := fs.Int("n", 0, "entries per page")
	force := fs.Bool("force", false, "confirm overwriting the output folder")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *info:
		return printPublicProfile(ctx, a)
	case *setTitle != "":
		if err := a.store.UpdateFeedTitle(ctx, model.PublicFeedID, *setTitle); err != nil {
			return err
		}
		return printPublicProfile(ctx, a)
	case *setAuthor != "":
		if err := a.store.UpdateFeedAuthor(ctx, model.PublicFeedID, *setAuthor); err != nil {
			return err
		}
		return printPublicProfile(ctx, a)
	case *setLink != "":
		if err := a.store.UpdateFeedLink(ctx, model.PublicFeedID, *setLink); err != nil {
			return err
		}
		return printPublicProfile(ctx, a)
	case *setWebsite != "":
		if err := a.store.UpdateFeedWebsite(ctx, model.PublicFeedID, *setWebsite); err != nil {
			return err
		}
		return printPublicProfile(ctx, a)
	}

	cfg, err := a.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if *pageN <= 0 {
		*pageN = cfg.WebPageN
	}

	pub, err := publish.New(a.store)
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, *output, *pageN, *force); err != nil {
		return err
	}
	dir := *output
	if dir == "" {
		dir = publish.DefaultOutputDir
	}
	fmt.Printf("OK. Rendered into %s\n", dir)
	return nil
}

func printPublicProfile(ctx context.Context, a *app) error {
	feed, err := a.store.GetFeed(ctx, model.PublicFeedID)
	if err != nil {
		return err
	}
	fmt.Println("Visitors of the published HTML/Atom will see:")
	fmt.Printf("[Title]   %s\n", feed.Title)
	fmt.Printf("[Link]    %s\n", feed.Link)
	fmt.Printf("[Author]  %s\n", feed.AuthorName)
	fmt.Printf("[Website] %s\n", feed.Website)
	return nil
}

func cmdProxy(ctx context.Context, a *app, args []string) error {
	cfg, err := a.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		value := strings.ToLower(args[0])
		switch {
		case value == "true":
			cfg.UseProxy = true
		case value == "false":
			cfg.UseProxy = false
		case strings.HasPrefix(value, "http"):
			cfg.HTTPProxy = args[0]
		default:
			return fmt.Errorf("the proxy should be 'true', 'false' or an http(s) URL")
		}
		if err := a.store.UpdateConfig(ctx, cfg); err != nil {
			return err
		}
	}
	fmt.Printf("[http_proxy] %s\n", cfg.HTTPProxy)
	fmt.Printf("[use_proxy] %v\n", cfg.UseProxy)
	return nil
}

func cmdZen(ctx context.Context, a *app, _ []string) error {
	cfg, err := a.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	cfg.ZenMode = !cfg.ZenMode
	fmt.Printf("[Zen Mode Always ON] %v\n", cfg.ZenMode)
	return a.store.UpdateConfig(ctx, cfg)
}

func cmdInfo(ctx context.Context, a *app, _ []string) error {
	cfg, err := a.store.GetConfig(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("[version] %s\n", version)
	fmt.Printf("[database] %s\n", a.conf.DatabasePath)
	fmt.Printf("[Zen Mode Always ON] %v\n", cfg.ZenMode)
	fmt.Printf("[http_proxy] %s\n", cfg.HTTPProxy)
	fmt.Printf("[use_proxy] %v\n", cfg.UseProxy)
	return nil
}

// resolveEntry turns a user-supplied reference into exactly one entry. A
// small number is looked up in the current selection list; anything else is
// an ID prefix. An ambiguous prefix prints the candidates and returns nil.
func resolveEntry(ctx context.Context, a *app, ref string) (*model.Entry, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		id, err := a.store.NthCurrent(ctx, n)
		if err != nil {
			return nil, err
		}
		return a.store.GetEntry(ctx, id)
	}

	if len(ref) < 4 {
		return nil, fmt.Errorf("id prefix %q is too short (4+ characters)", ref)
	}
	entries, err := a.store.GetEntriesByPrefix(ctx, ref)
	if err != nil {
		return nil, err
	}
	switch len(entries) {
	case 0:
		return nil, fmt.Errorf("entry %s: %w", ref, storage.ErrNotFound)
	case 1:
		return &entries[0], nil
	default:
		fmt.Printf("%q matches %d entries, give a longer prefix:\n\n", ref, len(entries))
		printEntryList(entries, false)
		return nil, nil
	}
}

func rememberSelection(ctx context.Context, a *app, entries []model.Entry) error {
	list := make(model.CurrentList, len(entries))
	for i, e := range entries {
		list[i] = e.ID
	}
	return a.store.UpdateCurrentList(ctx, list)
}

func parseBucket(name string) ([]model.Bucket, error) {
	switch strings.ToLower(name) {
	case "", "all":
		return nil, nil
	case "public":
		return []model.Bucket{model.Public}, nil
	case "private":
		return []model.Bucket{model.Private}, nil
	case "news":
		return []model.Bucket{model.News}, nil
	case "fav":
		return []model.Bucket{model.Fav}, nil
	}
	return nil, fmt.Errorf("unknown bucket %q", name)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func zenClear(cfg *model.AppConfig, zen bool) {
	if cfg.ZenMode || zen {
		fmt.Print("\033[2J\033[H")
	}
}
