package queue

import (
	"strconv"
	"time"
)

// timestampBytes encodes t as UTC nanoseconds since epoch, the "UTC
// ticks" format spec.md §3.1 calls for.
func timestampBytes(t time.Time) []byte {
	return []byte(strconv.FormatInt(t.UTC().UnixNano(), 10))
}

// parseTimestamp decodes bytes produced by timestampBytes.
func parseTimestamp(b []byte) (time.Time, bool) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}
