package domain

import "time"

// ShortCodeRecord is a single short code stored in a subject's code list.
type ShortCodeRecord struct {
	Code       string         `json:"code"`
	Expiration int64          `json:"expiration"`
	Meta       map[string]any `json:"meta"`
}

// ExpiresAt converts the stored epoch milliseconds into a time value.
func (r ShortCodeRecord) ExpiresAt() time.Time {
	return time.UnixMilli(r.Expiration).UTC()
}

// ValidAt reports whether the record is still usable at the given instant.
func (r ShortCodeRecord) ValidAt(now time.Time) bool {
	return r.Expiration > now.UnixMilli()
}

// CodeMatch is the outcome of a short code verification.
type CodeMatch struct {
	Matched bool
	// Meta is non-nil whenever Matched is true, even when no metadata was attached.
	Meta map[string]any
}

// NoMatch is returned when no stored code corresponds to the submission.
var NoMatch = CodeMatch{}

// Matched wraps the metadata of a successfully verified code.
func Matched(meta map[string]any) CodeMatch {
	if meta == nil {
		meta = map[string]any{}
	}
	return CodeMatch{Matched: true, Meta: meta}
}
