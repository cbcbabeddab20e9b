package extractor

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// NormalizeDate converts raw into RFC 3339, reading zone-less values as UTC.
// Unparseable input is returned trimmed but otherwise unchanged.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return raw
	}
	return t.Format(time.RFC3339)
}

// ParseDate parses a PublishDate value produced by NormalizeDate.
func ParseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return dateparse.ParseIn(value, time.UTC)
}
