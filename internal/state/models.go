package state

import "time"

// MediaType enumerates the kinds of media the engine will ever persist, per
// spec.md §3.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaGif   MediaType = "gif"
)

// MediaStatus enumerates the terminal states a MediaRecord can be inserted
// with. Records are never updated after insertion (spec.md §3).
type MediaStatus string

const (
	StatusUploaded       MediaStatus = "uploaded"
	StatusSkippedOversize MediaStatus = "skipped_oversize"
)

// AccountCursor is the durable per-handle progress state described in
// spec.md §3. The zero value is the cursor returned for an account that has
// never been persisted.
type AccountCursor struct {
	Handle            string
	LatestSeenPostID  string
	BackfillCursor    string
	BackfillDone      bool
	RateLimitedUntil  time.Time // zero value means "not in cooldown"
	UpdatedAt         time.Time
}

// InCooldown reports whether the cursor is presently in a rate-limit
// cooldown relative to now.
func (c AccountCursor) InCooldown(now time.Time) bool {
	return !c.RateLimitedUntil.IsZero() && c.RateLimitedUntil.After(now)
}

// MediaRecord is the dedupe/delivery record described in spec.md §3. Once
// inserted it is never mutated; presence of MediaKey is the sole dedupe
// signal (invariant 1).
type MediaRecord struct {
	MediaKey       string
	PostID         string
	AccountHandle  string
	MediaURL       string
	MediaType      MediaType
	UploadedAt     time.Time
	SinkMessageIDs []string
	Status         MediaStatus
}
