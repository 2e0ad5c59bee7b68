// Package shortid generates the short identifiers used for entries and feeds.
//
// All identifiers are base-36, uppercase, and compared case-insensitively.
package shortid

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// ID is the self-post sequence identifier: a base-36 year followed by a
// base-36 counter. The counter resets to zero when the year advances.
type ID struct {
	Year int
	N    int
}

// First returns the initial sequence ID for the current year.
func First(now time.Time) ID {
	return ID{Year: now.Year()}
}

// Parse decodes an ID produced by String. The year part occupies the first
// three characters, which holds until roughly the year 46655.
func Parse(s string) (ID, error) {
	if len(s) < 4 {
		return ID{}, fmt.Errorf("invalid sequence id %q", s)
	}
	year, err := strconv.ParseInt(strings.ToLower(s[:3]), 36, 64)
	if err != nil {
		return ID{}, fmt.Errorf("invalid sequence id %q: %w", s, err)
	}
	n, err := strconv.ParseInt(strings.ToLower(s[3:]), 36, 64)
	if err != nil {
		return ID{}, fmt.Errorf("invalid sequence id %q: %w", s, err)
	}
	return ID{Year: int(year), N: int(n)}, nil
}

func (id ID) String() string {
	return strings.ToUpper(strconv.FormatInt(int64(id.Year), 36) +
		strconv.FormatInt(int64(id.N), 36))
}

// Next returns the following sequence ID. Within a year the counter
// increments; on a year change the counter restarts at zero.
func (id ID) Next(now time.Time) ID {
	if year := now.Year(); year > id.Year {
		return ID{Year: year}
	}
	return ID{Year: id.Year, N: id.N + 1}
}

// FeedID derives a feed identifier from the current second-resolution
// timestamp. While used reports the candidate as taken, the timestamp is
// advanced by one second and re-encoded.
func FeedID(now time.Time, used func(string) bool) string {
	ts := now.Unix()
	for {
		id := strings.ToUpper(strconv.FormatInt(ts, 36))
		if !used(id) {
			return id
		}
		ts++
	}
}

// RandomID returns an entry identifier embedding the creation time, with a
// two-character random suffix. IDs sort approximately chronologically and
// are long enough that a four-character prefix usually disambiguates.
func RandomID(now time.Time) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	head := strconv.FormatInt(now.Unix(), 36)
	tail := []byte{
		digits[rand.Intn(36)],
		digits[rand.Intn(36)],
	}
	return strings.ToUpper(head + string(tail))
}
