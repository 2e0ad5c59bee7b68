package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"islet/internal/model"
)

var (
	metaStyle    = lipgloss.NewStyle().Faint(true)
	indexStyle   = lipgloss.NewStyle().Bold(true)
	privateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	linkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Underline(true)
)

// printEntry writes one entry with its position in the current selection,
// so the number can be used as a reference in the next command.
func printEntry(n int, e *model.Entry, showLink bool) {
	meta := fmt.Sprintf("[%s] (%s)", e.ID, shortDate(e.Published))
	if e.Bucket == model.News && e.FeedName != "" {
		meta = fmt.Sprintf("[%s] (%s) %s", e.ID, shortDate(e.Published), e.FeedName)
	}
	header := indexStyle.Render(fmt.Sprintf("%d.", n)) + " " + metaStyle.Render(meta)
	if e.Bucket == model.Private {
		header += " " + privateStyle.Render("[private]")
	}
	fmt.Println(header)
	fmt.Println(e.Content)
	if showLink && e.Link != "" {
		fmt.Println(linkStyle.Render(e.Link))
	}
	fmt.Println()
}

func printEntryList(entries []model.Entry, showLink bool) {
	if len(entries) == 0 {
		fmt.Println("No messages found.")
		return
	}
	for i := range entries {
		printEntry(i+1, &entries[i], showLink)
	}
}

func printFeed(f *model.Feed) {
	fmt.Printf("%s %s\n", indexStyle.Render("["+f.ID+"]"), f.Title)
	fmt.Printf("    %s\n", linkStyle.Render(f.Link))
	details := []string{"parser: " + f.Parser}
	if f.Updated != "" {
		details = append(details, "updated: "+shortDate(f.Updated))
	}
	fmt.Printf("    %s\n\n", metaStyle.Render(strings.Join(details, ", ")))
}

func printFeedList(feeds []model.Feed) {
	if len(feeds) == 0 {
		fmt.Println("No subscriptions. Try 'islet news -follow [url]'.")
		return
	}
	for i := range feeds {
		printFeed(&feeds[i])
	}
}

func printOneFeed(ctx context.Context, a *app, id string) error {
	feed, err := a.store.GetFeed(ctx, id)
	if err != nil {
		return err
	}
	printFeed(feed)
	return nil
}

// shortDate trims an RFC3339 timestamp down to its date and time.
func shortDate(published string) string {
	if len(published) >= 16 {
		return strings.Replace(published[:16], "T", " ", 1)
	}
	return published
}
