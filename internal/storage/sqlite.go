package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"islet/internal/model"
	"islet/internal/shortid"
	"islet/migrations"
)

// Metadata keys for the singleton values kept in the metadata table.
const (
	appConfigKey   = "app-config"
	currentIDKey   = "current-id"
	currentListKey = "current-list"
)

const entryColumns = "id, content, link, published, feed_id, feed_name, bucket"
const feedColumns = "id, link, website, title, author_name, updated, parser"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	// Cascades are applied as explicit statements inside transactions, so the
	// data flow stays visible in the code.
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// InitApp seeds the default configuration, the sequence ID, the empty
// selection list, and the three sentinel feeds. Each piece is written only
// if absent, so re-running is harmless.
func (s *SQLite) InitApp(ctx context.Context, name string) error {
	if _, err := s.getMetadata(ctx, appConfigKey); errors.Is(err, ErrNotFound) {
		cfg := model.DefaultConfig()
		raw, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if err := s.insertMetadata(ctx, appConfigKey, string(raw)); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if _, err := s.getMetadata(ctx, currentIDKey); errors.Is(err, ErrNotFound) {
		first := shortid.First(time.Now())
		if err := s.insertMetadata(ctx, currentIDKey, first.String()); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if _, err := s.getMetadata(ctx, currentListKey); errors.Is(err, ErrNotFound) {
		if err := s.insertMetadata(ctx, currentListKey, "[]"); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	sentinels := []model.Feed{
		{ID: model.PublicFeedID, Link: "", Title: name},
		{ID: model.PrivateFeedID, Link: "islet://private", Title: "My Private Channel"},
		{ID: model.FavFeedID, Link: "islet://fav", Title: "Favorites"},
	}
	for i := range sentinels {
		_, err := s.GetFeed(ctx, sentinels[i].ID)
		if errors.Is(err, ErrNotFound) {
			if err := s.InsertFeed(ctx, &sentinels[i]); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) getMetadata(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE name = ?`, name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", name, err)
	}
	return value, nil
}

func (s *SQLite) insertMetadata(ctx context.Context, name, value string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata (name, value) VALUES (?, ?)`, name, value,
	); err != nil {
		return fmt.Errorf("insert metadata %s: %w", name, err)
	}
	return nil
}

func (s *SQLite) updateMetadata(ctx context.Context, name, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE metadata SET value = ? WHERE name = ?`, value, name,
	)
	if err != nil {
		return fmt.Errorf("update metadata %s: %w", name, err)
	}
	return checkAffected(res, "update metadata "+name)
}

// GetConfig returns the persisted application configuration.
func (s *SQLite) GetConfig(ctx context.Context) (*model.AppConfig, error) {
	raw, err := s.getMetadata(ctx, appConfigKey)
	if err != nil {
		return nil, err
	}
	var cfg model.AppConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// UpdateConfig persists the application configuration.
func (s *SQLite) UpdateConfig(ctx context.Context, cfg *model.AppConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return s.updateMetadata(ctx, appConfigKey, string(raw))
}

// NextSequenceID advances the persisted self-post counter and returns the
// newly minted identifier.
func (s *SQLite) NextSequenceID(ctx context.Context, now time.Time) (string, error) {
	raw, err := s.getMetadata(ctx, currentIDKey)
	if err != nil {
		return "", err
	}
	id, err := shortid.Parse(raw)
	if err != nil {
		return "", err
	}
	next := id.Next(now).String()
	if err := s.updateMetadata(ctx, currentIDKey, next); err != nil {
		return "", err
	}
	return next, nil
}

// GetCurrentList returns the selection produced by the last listing.
func (s *SQLite) GetCurrentList(ctx context.Context) (model.CurrentList, error) {
	raw, err := s.getMetadata(ctx, currentListKey)
	if err != nil {
		return nil, err
	}
	var list model.CurrentList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("unmarshal current list: %w", err)
	}
	return list, nil
}

// UpdateCurrentList overwrites the selection list.
func (s *SQLite) UpdateCurrentList(ctx context.Context, list model.CurrentList) error {
	if list == nil {
		list = model.CurrentList{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal current list: %w", err)
	}
	return s.updateMetadata(ctx, currentListKey, string(raw))
}

// NthCurrent resolves a 1-based reference against the selection list.
func (s *SQLite) NthCurrent(ctx context.Context, n int) (string, error) {
	list, err := s.GetCurrentList(ctx)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(list) {
		return "", fmt.Errorf("index %d out of range (list has %d items)", n, len(list))
	}
	return list[n-1], nil
}

// GetFeed returns a single feed by its ID.
func (s *SQLite) GetFeed(ctx context.Context, id string) (*model.Feed, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feed WHERE id = ?`, id,
	)
	return scanFeed(row)
}

// FeedLinkExists reports whether a feed with the given link is already
// subscribed. Checked before any network fetch.
func (s *SQLite) FeedLinkExists(ctx context.Context, link string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed WHERE link = ?`, link,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check feed link: %w", err)
	}
	return count > 0, nil
}

// FeedIDExists reports whether a feed ID is taken.
func (s *SQLite) FeedIDExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed WHERE id = ?`, id,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check feed id: %w", err)
	}
	return count > 0, nil
}

// InsertFeed inserts a new feed row.
func (s *SQLite) InsertFeed(ctx context.Context, feed *model.Feed) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed (`+feedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		feed.ID, feed.Link, feed.Website, feed.Title, feed.AuthorName, feed.Updated, feed.Parser,
	)
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}
	return nil
}

// DeleteFeed removes a feed, its entries, and their tags in one transaction.
// Sentinel feeds are not deletable.
func (s *SQLite) DeleteFeed(ctx context.Context, id string) error {
	if model.IsSentinelFeed(id) {
		return fmt.Errorf("feed %s is built-in and cannot be deleted", id)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tag WHERE entry_id IN (SELECT id FROM entry WHERE feed_id = ?)`, id,
	); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entry WHERE feed_id = ?`, id); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM feed WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	if err := checkAffected(res, "delete feed "+id); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateFeedID renames a feed's primary key and cascades the change to all
// owned entries in the same transaction.
func (s *SQLite) UpdateFeedID(ctx context.Context, oldID, newID string) error {
	if model.IsSentinelFeed(oldID) || model.IsSentinelFeed(newID) {
		return fmt.Errorf("built-in feed IDs cannot be renamed or taken")
	}
	taken, err := s.FeedIDExists(ctx, newID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("feed id %s is already taken", newID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE feed SET id = ? WHERE id = ?`, newID, oldID)
	if err != nil {
		return fmt.Errorf("update feed id: %w", err)
	}
	if err := checkAffected(res, "update feed id "+oldID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE entry SET feed_id = ? WHERE feed_id = ?`, newID, oldID,
	); err != nil {
		return fmt.Errorf("update entries feed id: %w", err)
	}
	return tx.Commit()
}

// UpdateFeedTitle sets a feed's title and propagates it to the denormalized
// feed_name on every owned entry, in the same transaction.
func (s *SQLite) UpdateFeedTitle(ctx context.Context, id, title string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE feed SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("update feed title: %w", err)
	}
	if err := checkAffected(res, "update feed title "+id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE entry SET feed_name = ? WHERE feed_id = ?`, title, id,
	); err != nil {
		return fmt.Errorf("update entries feed name: %w", err)
	}
	return tx.Commit()
}

// UpdateFeedLink sets the feed's own retrievable URL.
func (s *SQLite) UpdateFeedLink(ctx context.Context, id, link string) error {
	return s.execOne(ctx, `UPDATE feed SET link = ? WHERE id = ?`, "update feed link", link, id)
}

// UpdateFeedWebsite sets the feed's human home page.
func (s *SQLite) UpdateFeedWebsite(ctx context.Context, id, website string) error {
	return s.execOne(ctx, `UPDATE feed SET website = ? WHERE id = ?`, "update feed website", website, id)
}

// UpdateFeedAuthor sets the feed's author name.
func (s *SQLite) UpdateFeedAuthor(ctx context.Context, id, author string) error {
	return s.execOne(ctx, `UPDATE feed SET author_name = ? WHERE id = ?`, "update feed author", author, id)
}

// UpdateFeedParser sets the extraction strategy used for the feed.
func (s *SQLite) UpdateFeedParser(ctx context.Context, id, parser string) error {
	return s.execOne(ctx, `UPDATE feed SET parser = ? WHERE id = ?`, "update feed parser", parser, id)
}

// ListSubscriptions returns all subscribed feeds, excluding the sentinels.
func (s *SQLite) ListSubscriptions(ctx context.Context) ([]model.Feed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+feedColumns+` FROM feed
		 WHERE id NOT IN (?, ?, ?) ORDER BY updated DESC`,
		model.PublicFeedID, model.PrivateFeedID, model.FavFeedID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFeeds(rows)
}

// SearchFeeds returns subscribed feeds whose title contains keyword.
func (s *SQLite) SearchFeeds(ctx context.Context, keyword string) ([]model.Feed, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+feedColumns+` FROM feed
		 WHERE id NOT IN (?, ?, ?) AND title LIKE ? ORDER BY updated DESC`,
		model.PublicFeedID, model.PrivateFeedID, model.FavFeedID, "%"+keyword+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("search feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanFeeds(rows)
}

// InsertEntry inserts a single entry and its tag rows.
func (s *SQLite) InsertEntry(ctx context.Context, entry *model.Entry, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertEntryTx(ctx, tx, entry); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tag (name, entry_id) VALUES (?, ?)`, tag, entry.ID,
		); err != nil {
			return fmt.Errorf("insert tag %s: %w", tag, err)
		}
	}
	return tx.Commit()
}

func insertEntryTx(ctx context.Context, tx *sql.Tx, entry *model.Entry) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entry (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Content, entry.Link, entry.Published,
		entry.FeedID, entry.FeedName, string(entry.Bucket),
	); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// ReplaceEntries swaps a feed's entire entry set for the given batch and
// bumps the feed's updated timestamp, all in one transaction. Entries that
// were moved to Fav no longer carry this feed_id and are unaffected.
func (s *SQLite) ReplaceEntries(ctx context.Context, feedID string, entries []model.Entry, updated string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entry WHERE feed_id = ?`, feedID); err != nil {
		return fmt.Errorf("delete old entries: %w", err)
	}
	for i := range entries {
		if err := insertEntryTx(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `UPDATE feed SET updated = ? WHERE id = ?`, updated, feedID)
	if err != nil {
		return fmt.Errorf("update feed timestamp: %w", err)
	}
	if err := checkAffected(res, "update feed timestamp "+feedID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteEntry removes an entry and its tag rows.
func (s *SQLite) DeleteEntry(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tag WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("delete tags: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM entry WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if err := checkAffected(res, "delete entry "+id); err != nil {
		return err
	}
	return tx.Commit()
}

// GetEntry returns a single entry by its full ID.
func (s *SQLite) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entry WHERE id = ?`, id,
	)
	return scanEntry(row)
}

// GetEntriesByPrefix returns the entries whose ID starts with prefix. An
// exact match wins outright; otherwise multiple rows mean the prefix is
// ambiguous and the caller should ask for a longer one.
func (s *SQLite) GetEntriesByPrefix(ctx context.Context, prefix string) ([]model.Entry, error) {
	entry, err := s.GetEntry(ctx, prefix)
	if err == nil {
		return []model.Entry{*entry}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entry WHERE id LIKE ? ORDER BY id`, prefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("query entries by prefix: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// MoveToFav reassigns a News entry to the Fav bucket under a freshly minted
// identifier. The original row is replaced, not duplicated.
func (s *SQLite) MoveToFav(ctx context.Context, entryID, newID string) error {
	entry, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Bucket != model.News {
		return fmt.Errorf("%w: entry %s is in %s, only News entries can be favorited",
			ErrInvalidBucket, entryID, entry.Bucket)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE entry SET id = ?, feed_id = ?, bucket = ? WHERE id = ?`,
		newID, model.FavFeedID, string(model.Fav), entryID,
	)
	if err != nil {
		return fmt.Errorf("move to fav: %w", err)
	}
	return checkAffected(res, "move to fav "+entryID)
}

// ToggleBucket flips an entry between Public and Private, keeping the
// sentinel feed_id in step. Entries in any other bucket are rejected.
func (s *SQLite) ToggleBucket(ctx context.Context, id string) (*model.Entry, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	var bucket model.Bucket
	var feedID string
	switch entry.Bucket {
	case model.Public:
		bucket, feedID = model.Private, model.PrivateFeedID
	case model.Private:
		bucket, feedID = model.Public, model.PublicFeedID
	default:
		return nil, fmt.Errorf("%w: cannot toggle entry in %s", ErrInvalidBucket, entry.Bucket)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE entry SET bucket = ?, feed_id = ? WHERE id = ?`,
		string(bucket), feedID, entry.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle bucket: %w", err)
	}
	if err := checkAffected(res, "toggle bucket "+id); err != nil {
		return nil, err
	}
	entry.Bucket = bucket
	entry.FeedID = feedID
	return entry, nil
}

// FirstEntry returns the newest entry within the given buckets.
func (s *SQLite) FirstEntry(ctx context.Context, buckets []model.Bucket) (*model.Entry, error) {
	where, args := bucketFilter(buckets, "WHERE")
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entry `+where+
			` ORDER BY published DESC LIMIT 1`, args...,
	)
	return scanEntry(row)
}

// NextEntry returns the newest entry strictly older than the cursor within
// the given buckets.
func (s *SQLite) NextEntry(ctx context.Context, buckets []model.Bucket, cursor string) (*model.Entry, error) {
	where, args := bucketFilter(buckets, "AND")
	args = append([]any{cursor}, args...)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entry WHERE published < ? `+where+
			` ORDER BY published DESC LIMIT 1`, args...,
	)
	return scanEntry(row)
}

// GotoDate returns the oldest entry published at or after the date prefix.
func (s *SQLite) GotoDate(ctx context.Context, buckets []model.Bucket, datePrefix string) (*model.Entry, error) {
	where, args := bucketFilter(buckets, "AND")
	args = append([]any{datePrefix}, args...)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entry WHERE published > ? `+where+
			` ORDER BY published ASC LIMIT 1`, args...,
	)
	return scanEntry(row)
}

// EntriesByDate returns up to limit entries of one bucket whose published
// value starts with the date prefix, newest first.
func (s *SQLite) EntriesByDate(ctx context.Context, bucket model.Bucket, datePrefix string, limit int) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entry
		 WHERE bucket = ? AND published LIKE ?
		 ORDER BY published DESC LIMIT ?`,
		string(bucket), datePrefix+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries by date: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// CountByDate counts entries whose published value starts with the prefix.
func (s *SQLite) CountByDate(ctx context.Context, buckets []model.Bucket, datePrefix string) (int, error) {
	where, args := bucketFilter(buckets, "AND")
	args = append([]any{datePrefix + "%"}, args...)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entry WHERE published LIKE ? `+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by date: %w", err)
	}
	return count, nil
}

// EntriesByFeed returns a feed's newest entries.
func (s *SQLite) EntriesByFeed(ctx context.Context, feedID string, limit int) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entry WHERE feed_id = ?
		 ORDER BY published DESC LIMIT ?`, feedID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries by feed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// CountByFeed counts the entries a feed currently owns.
func (s *SQLite) CountByFeed(ctx context.Context, feedID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entry WHERE feed_id = ?`, feedID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by feed: %w", err)
	}
	return count, nil
}

// RecentEntries returns a bucket's newest entries.
func (s *SQLite) RecentEntries(ctx context.Context, bucket model.Bucket, limit int) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entry WHERE bucket = ?
		 ORDER BY published DESC LIMIT ?`, string(bucket), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// SearchContent returns entries whose content contains keyword, newest first.
func (s *SQLite) SearchContent(ctx context.Context, keyword string, buckets []model.Bucket, limit int) ([]model.Entry, error) {
	where, args := bucketFilter(buckets, "AND")
	args = append([]any{"%" + keyword + "%"}, args...)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entry WHERE content LIKE ? `+where+
			` ORDER BY published DESC LIMIT ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search content: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// AllTags returns every distinct tag name.
func (s *SQLite) AllTags(ctx context.Context) ([]string, error) {
	return s.queryTags(ctx, `SELECT DISTINCT name FROM tag ORDER BY name`)
}

// TagsByName returns the distinct tag names containing keyword.
func (s *SQLite) TagsByName(ctx context.Context, keyword string) ([]string, error) {
	return s.queryTags(ctx,
		`SELECT DISTINCT name FROM tag WHERE name LIKE ? ORDER BY name`, "%"+keyword+"%")
}

func (s *SQLite) queryTags(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// EntriesByTag returns entries labeled with the given tag, newest first.
func (s *SQLite) EntriesByTag(ctx context.Context, tag string, buckets []model.Bucket, limit int) ([]model.Entry, error) {
	where, args := bucketFilter(buckets, "AND")
	args = append([]any{tag}, args...)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.content, e.link, e.published, e.feed_id, e.feed_name, e.bucket
		 FROM entry e JOIN tag t ON t.entry_id = e.id
		 WHERE t.name = ? `+bucketPrefixed(where)+
			` ORDER BY e.published DESC LIMIT ?`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries by tag: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// CountPublic counts the entries in the Public bucket.
func (s *SQLite) CountPublic(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entry WHERE bucket = ?`, string(model.Public),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count public: %w", err)
	}
	return count, nil
}

// PublicEntriesAfter returns up to limit Public entries strictly newer than
// the cursor, oldest first. This is the forward scan page rendering uses.
func (s *SQLite) PublicEntriesAfter(ctx context.Context, cursor string, limit int) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entry
		 WHERE bucket = ? AND published > ?
		 ORDER BY published ASC LIMIT ?`,
		string(model.Public), cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query public entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// RecentPublic returns the newest Public entries.
func (s *SQLite) RecentPublic(ctx context.Context, limit int) ([]model.Entry, error) {
	return s.RecentEntries(ctx, model.Public, limit)
}

func (s *SQLite) execOne(ctx context.Context, query, op string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return checkAffected(res, op)
}

// checkAffected turns a zero-row mutation into ErrNoRows. The caller
// believed the target row existed, so silence would hide a logic bug.
func checkAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNoRows)
	}
	return nil
}

// bucketFilter builds a WHERE/AND fragment for an optional bucket filter.
// No buckets means no filter ("All").
func bucketFilter(buckets []model.Bucket, prefix string) (string, []any) {
	if len(buckets) == 0 {
		return "", nil
	}
	var args []any
	clause := prefix + " ("
	for i, b := range buckets {
		if i > 0 {
			clause += " OR "
		}
		clause += "bucket = ?"
		args = append(args, string(b))
	}
	clause += ")"
	return clause, args
}

// bucketPrefixed qualifies a bucketFilter fragment for the tag join query.
func bucketPrefixed(where string) string {
	if where == "" {
		return ""
	}
	return strings.ReplaceAll(where, "bucket = ?", "e.bucket = ?")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.Entry, error) {
	var e model.Entry
	var bucket string
	err := row.Scan(&e.ID, &e.Content, &e.Link, &e.Published, &e.FeedID, &e.FeedName, &bucket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.Bucket = model.Bucket(bucket)
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]model.Entry, error) {
	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanFeed(row scannable) (*model.Feed, error) {
	var f model.Feed
	err := row.Scan(&f.ID, &f.Link, &f.Website, &f.Title, &f.AuthorName, &f.Updated, &f.Parser)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	return &f, nil
}

func scanFeeds(rows *sql.Rows) ([]model.Feed, error) {
	var feeds []model.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}
