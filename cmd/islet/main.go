// Command islet is a single-user microblog for the terminal: post short
// messages locally, follow RSS/Atom feeds, and publish the public part as
// a static HTML site with an Atom feed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"islet/internal/config"
	"islet/internal/storage"
)

const version = "1.0.0"

const usage = `islet - a single-user microblog with feed subscriptions

Usage: islet <command> [options]

Commands:
  init <name>   Set the name of your microblog and initialize it
  post          Post a message (arguments, -f file, or clipboard)
  tl            Read your own timeline
  news          Subscribe and read feeds
  like <id>     Move a news entry to the Fav bucket
  toggle <id>   Toggle Public/Private of an entry
  delete <id>   Delete an entry
  copy <id>     Copy the content (or -link) of an entry
  search        Search entries by tag or keyword
  publish       Render the public entries to HTML and Atom
  proxy         Show or set the HTTP proxy
  zen           Toggle zen mode
  info          Show paths and settings

Run 'islet <command> -h' for command options.
`

type app struct {
	store storage.Storage
	conf  *config.Config
	log   *slog.Logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	conf, err := config.Load()
	if err != nil {
		fatal(err)
	}
	log := newLogger(conf.LogLevel)
	ctx := context.Background()

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "init" {
		if err := cmdInit(ctx, conf, args); err != nil {
			fatal(err)
		}
		return
	}

	a, err := openApp(conf, log)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = a.store.Close() }()

	commands := map[string]func(context.Context, *app, []string) error{
		"post":    cmdPost,
		"tl":      cmdTimeline,
		"news":    cmdNews,
		"like":    cmdLike,
		"toggle":  cmdToggle,
		"delete":  cmdDelete,
		"copy":    cmdCopy,
		"search":  cmdSearch,
		"publish": cmdPublish,
		"proxy":   cmdProxy,
		"zen":     cmdZen,
		"info":    cmdInfo,
	}

	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}
	if err := run(ctx, a, args); err != nil {
		fatal(err)
	}
}

func openApp(conf *config.Config, log *slog.Logger) (*app, error) {
	if _, err := os.Stat(conf.DatabasePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("not initialized, run 'islet init <name>' first")
	}
	store, err := storage.NewSQLite(conf.DatabasePath)
	if err != nil {
		return nil, err
	}
	return &app{store: store, conf: conf, log: log}, nil
}

// cmdInit creates the database file and seeds it. The file's presence is
// the sentinel for "already initialized".
func cmdInit(ctx context.Context, conf *config.Config, args []string) error {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("usage: islet init <name>")
	}
	name := strings.Join(args, " ")

	if _, err := os.Stat(conf.DatabasePath); err == nil {
		return fmt.Errorf("already initialized (%s)", conf.DatabasePath)
	}
	if err := os.MkdirAll(filepath.Dir(conf.DatabasePath), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	store, err := storage.NewSQLite(conf.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.InitApp(ctx, name); err != nil {
		return err
	}
	fmt.Printf("OK. Initialized %q at %s\n", name, conf.DatabasePath)
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
