package lfs

import "time"

// ISODateString formats t as an RFC 3339 UTC timestamp with second precision
// and a literal Z suffix, e.g. 2021-01-01T00:00:00Z.
func ISODateString(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// ExpiryString returns the expires_at value for a URL presigned at now
func ExpiryString(now time.Time) string {
	return ISODateString(now.Add(URLExpiry))
}
