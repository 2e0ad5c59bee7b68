package ingest

import (
	"fmt"
	"time"

	"islet/internal/model"
)

// pubDateLayouts are the accepted published-date formats: the RFC-3339/ISO
// family plus the RFC-822 variants commonly found in RSS documents.
var pubDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 MST",
}

// ParsePubDate converts a raw published date to the storage layout in local
// time. A date no known layout can parse, or one that decodes to the epoch
// zero, is an error: defaulting to "now" would corrupt the timeline order.
func ParsePubDate(raw string) (string, error) {
	for _, layout := range pubDateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if t.Unix() == 0 || t.IsZero() {
			continue
		}
		return t.Local().Format(model.RFC3339), nil
	}
	return "", fmt.Errorf("unrecognized published date %q", raw)
}
