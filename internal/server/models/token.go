package models

import "time"

// Token is a short-lived bearer credential keyed by its random id.
// Expires is a Unix timestamp in milliseconds.
type Token struct {
	ID      string `json:"id"`
	Phone   string `json:"phone"`
	Expires int64  `json:"expires"`
}

func (t Token) ExpiresAt() time.Time {
	return time.UnixMilli(t.Expires)
}

// Expired reports whether the token is no longer valid at now. A token
// expiring exactly at now is expired.
func (t Token) Expired(now time.Time) bool {
	return t.Expires <= now.UnixMilli()
}
