// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// RFC3339 is the timestamp layout used everywhere in storage. Values in this
// layout sort lexicographically, so `published` doubles as the cursor key.
const RFC3339 = "2006-01-02T15:04:05-07:00"

// Size limits, all in bytes.
const (
	KB                = 1024
	EntrySizeLimit    = KB      // one entry's content
	ShortStrSizeLimit = 256     // links, titles, author names
	FeedSizeLimit     = 30 * KB // rendered feed document, margin included
	AtomEntriesLimit  = 30      // newest entries included in atom.xml
)

// Ellipsis marks content that was cut by Truncate.
const Ellipsis = " ..."

// Bucket classifies an entry's visibility and origin.
type Bucket string

// The four entry buckets.
const (
	Public  Bucket = "Public"
	Private Bucket = "Private"
	News    Bucket = "News"
	Fav     Bucket = "Fav"
)

// Sentinel feed IDs representing the user's own buckets. They are created at
// init time and can never be deleted or renamed.
const (
	PublicFeedID  = "Public"
	PrivateFeedID = "Private"
	FavFeedID     = "Fav"
)

// IsSentinelFeed reports whether id names one of the built-in self-feeds.
// Comparison is case-insensitive, matching the storage collation.
func IsSentinelFeed(id string) bool {
	return strings.EqualFold(id, PublicFeedID) ||
		strings.EqualFold(id, PrivateFeedID) ||
		strings.EqualFold(id, FavFeedID)
}

// MyBucket maps the private flag of a new post to its bucket.
func MyBucket(private bool) Bucket {
	if private {
		return Private
	}
	return Public
}

// Entry is one posted or ingested message.
type Entry struct {
	ID        string
	Content   string // size limit: EntrySizeLimit
	Link      string // size limit: ShortStrSizeLimit, empty for self posts
	Published string // RFC3339, also the cursor/sort key
	FeedID    string
	FeedName  string // denormalized feed title, may go stale until rename
	Bucket    Bucket
}

// Feed is a subscribable source or one of the built-in self-feeds.
type Feed struct {
	ID         string
	Link       string // the feed's own retrievable URL, unique
	Website    string // optional human home page
	Title      string // size limit: ShortStrSizeLimit
	AuthorName string // size limit: ShortStrSizeLimit
	Updated    string // RFC3339 of last successful ingestion
	Parser     string // extraction strategy name
}

// AppConfig is the single persisted configuration row.
type AppConfig struct {
	TLCursor     string `json:"tl_cursor"`
	NewsCursor   string `json:"news_cursor"`
	NewsShowLink bool   `json:"news_show_link"`
	ZenMode      bool   `json:"zen_mode"`
	CLIPageN     int    `json:"cli_page_n"`
	WebPageN     int    `json:"web_page_n"`
	HTTPProxy    string `json:"http_proxy"`
	UseProxy     bool   `json:"use_proxy"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() AppConfig {
	return AppConfig{
		CLIPageN: 9,
		WebPageN: 50,
		UseProxy: true,
	}
}

// CurrentList is the ephemeral selection produced by the last listing,
// indexed 1..N by the user.
type CurrentList []string

// NewPost builds a self-authored entry. Content is stripped of surrounding
// whitespace and rejected when it exceeds EntrySizeLimit.
func NewPost(id, content string, bucket Bucket, now time.Time) (Entry, error) {
	content = strings.TrimSpace(content)
	if size := len(content); size > EntrySizeLimit {
		return Entry{}, fmt.Errorf("size %d > limit(%d)", size, EntrySizeLimit)
	}

	feedID := PublicFeedID
	if bucket == Private {
		feedID = PrivateFeedID
	}
	return Entry{
		ID:        id,
		Content:   content,
		Published: now.Format(RFC3339),
		FeedID:    feedID,
		Bucket:    bucket,
	}, nil
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 codepoint,
// appending Ellipsis when anything was cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i] + Ellipsis
}

var tagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ExtractTags returns the unique #tag tokens in content, lowercased, in
// order of first appearance.
func ExtractTags(content string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(content, -1) {
		tag := strings.ToLower(m[1])
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
