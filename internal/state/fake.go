package state

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-memory State Store used by Sync Engine tests (spec.md §9:
// "allow a fake implementation for tests"), grounded on sink.Fake's shape.
type Fake struct {
	mu        sync.Mutex
	accounts  map[string]AccountCursor
	media     map[string]MediaRecord
	lockUntil map[string]time.Time
	lockOwner map[string]string
}

// NewFake constructs an empty Fake store.
func NewFake() *Fake {
	return &Fake{
		accounts:  make(map[string]AccountCursor),
		media:     make(map[string]MediaRecord),
		lockUntil: make(map[string]time.Time),
		lockOwner: make(map[string]string),
	}
}

func (f *Fake) Init(ctx context.Context) error { return nil }

func (f *Fake) Close() error { return nil }

func (f *Fake) GetAccount(ctx context.Context, handle string) (AccountCursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.accounts[handle]; ok {
		return c, nil
	}
	return AccountCursor{Handle: handle}, nil
}

func (f *Fake) PutAccount(ctx context.Context, cursor AccountCursor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cursor.UpdatedAt.IsZero() {
		cursor.UpdatedAt = time.Now().UTC()
	}
	f.accounts[cursor.Handle] = cursor
	return nil
}

func (f *Fake) IsMediaUploaded(ctx context.Context, mediaKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.media[mediaKey]
	return ok, nil
}

func (f *Fake) MarkMedia(ctx context.Context, rec MediaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}
	f.media[rec.MediaKey] = rec
	return nil
}

func (f *Fake) AcquireLock(ctx context.Context, jobName, holderID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	if until, ok := f.lockUntil[jobName]; ok && until.After(now) {
		return false, nil
	}
	f.lockUntil[jobName] = now.Add(ttl)
	f.lockOwner[jobName] = holderID
	return true, nil
}

func (f *Fake) ReleaseLock(ctx context.Context, jobName, holderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockOwner[jobName] != holderID {
		return nil
	}
	delete(f.lockUntil, jobName)
	delete(f.lockOwner, jobName)
	return nil
}

// MediaRecords exposes the fake's inserted records for test assertions.
func (f *Fake) MediaRecords() map[string]MediaRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]MediaRecord, len(f.media))
	for k, v := range f.media {
		out[k] = v
	}
	return out
}

// SeedLock directly installs a held lock, for the "lock held" test scenario
// (spec.md §8 scenario 1).
func (f *Fake) SeedLock(jobName, holderID string, until time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockUntil[jobName] = until
	f.lockOwner[jobName] = holderID
}
