package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"archivesyncd/internal/state"
)

// FakeResponse scripts the outcome of one Download call.
type FakeResponse struct {
	SizeBytes int64
	Err       error
}

// Fake is an in-memory Downloader used by Sync Engine tests. It still
// writes a real (empty-or-sized) file at the deterministic path so the
// oversize-video and cleanup-on-error code paths can be exercised against a
// real filesystem, grounded on sink.Fake's in-memory-plus-bookkeeping shape.
type Fake struct {
	mu        sync.Mutex
	responses map[string][]FakeResponse
	Calls     []Params
}

// NewFake constructs an empty Fake downloader.
func NewFake() *Fake {
	return &Fake{responses: make(map[string][]FakeResponse)}
}

// QueueResponse appends a scripted response for mediaKey, consumed in FIFO
// order by successive Download calls.
func (f *Fake) QueueResponse(mediaKey string, resp FakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[mediaKey] = append(f.responses[mediaKey], resp)
}

func (f *Fake) Download(ctx context.Context, p Params) (LocalFile, error) {
	f.mu.Lock()
	queue := f.responses[p.MediaKey]
	var resp FakeResponse
	if len(queue) > 0 {
		resp = queue[0]
		f.responses[p.MediaKey] = queue[1:]
	}
	f.Calls = append(f.Calls, p)
	f.mu.Unlock()

	if resp.Err != nil {
		return LocalFile{}, resp.Err
	}

	ext := ".mp4"
	if p.MediaType == state.MediaPhoto {
		ext = ".jpg"
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return LocalFile{}, fmt.Errorf("ensure download dir %s: %w", p.Dir, err)
	}
	path := filepath.Join(p.Dir, p.MediaKey+ext)
	size := resp.SizeBytes
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		return LocalFile{}, fmt.Errorf("write fake file %s: %w", path, err)
	}

	return LocalFile{
		MediaKey:  p.MediaKey,
		MediaURL:  p.MediaURL,
		MediaType: p.MediaType,
		Path:      path,
		SizeBytes: size,
	}, nil
}
