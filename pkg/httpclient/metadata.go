package httpclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderResultsMatching = "Results-Matching"
	HeaderResultsSkipped  = "Results-Skipped"
	HeaderLink            = "Link"
	HeaderDate            = "Date"
)

// Metadata carries optional pagination and sync hints taken from response
// headers. A nil field means the header was absent or unusable.
type Metadata struct {
	Total     *int64
	Skipped   *int64
	NextLink  *string
	ClockSkew *time.Duration
}

// Empty reports whether no metadata field is set.
func (m Metadata) Empty() bool {
	return m.Total == nil && m.Skipped == nil && m.NextLink == nil && m.ClockSkew == nil
}

// parseMetadata reads the metadata headers. The returned skew is only
// meaningful when skewOK is true.
func parseMetadata(h http.Header, now time.Time) (meta Metadata, skew time.Duration, skewOK bool) {
	if h == nil {
		return Metadata{}, 0, false
	}

	meta.Total = parseCount(h.Get(HeaderResultsMatching))
	meta.Skipped = parseCount(h.Get(HeaderResultsSkipped))

	if link := h.Get(HeaderLink); link != "" {
		meta.NextLink = &link
	}

	if raw := strings.TrimSpace(h.Get(HeaderDate)); raw != "" {
		if serverTime, err := http.ParseTime(raw); err == nil {
			skew = now.Sub(serverTime).Truncate(time.Millisecond)
			meta.ClockSkew = &skew
			skewOK = true
		}
	}

	return meta, skew, skewOK
}

// parseCount returns nil for missing, malformed or negative values.
func parseCount(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
