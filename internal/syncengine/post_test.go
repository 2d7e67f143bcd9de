package syncengine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivesyncd/internal/download"
	"archivesyncd/internal/sink"
	"archivesyncd/internal/source"
	"archivesyncd/internal/state"
)

func newTestEngine(t *testing.T, src PostSource, snk Sink, store AccountStore, dl MediaDownloader, cfg Config) *Engine {
	t.Helper()
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = t.TempDir()
	}
	return NewEngine(src, snk, store, dl, cfg, zerolog.Nop())
}

func TestProcessPostUploadsNewMediaAndMarksRecords(t *testing.T) {
	store := state.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()
	e := newTestEngine(t, nil, snk, store, dl, Config{MaxUploadVideoBytes: 1 << 30})

	post := source.Post{ID: "1", PostedAt: time.Now(), Media: []source.Media{{URL: "https://x/a.jpg", Type: state.MediaPhoto}}}
	mediaKey := state.ComputeMediaKey(post.ID, post.Media[0].URL)
	dl.QueueResponse(mediaKey, download.FakeResponse{SizeBytes: 100})

	outcome := e.processPost(context.Background(), "acct", post)

	require.False(t, outcome.failed)
	assert.Equal(t, 1, outcome.uploaded)
	assert.Equal(t, 0, outcome.skipped)
	require.Len(t, snk.SentGroups, 1)

	records := store.MediaRecords()
	rec, ok := records[mediaKey]
	require.True(t, ok)
	assert.Equal(t, state.StatusUploaded, rec.Status)
}

func TestProcessPostSkipsAlreadyUploadedMedia(t *testing.T) {
	store := state.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()
	e := newTestEngine(t, nil, snk, store, dl, Config{MaxUploadVideoBytes: 1 << 30})

	post := source.Post{ID: "1", Media: []source.Media{{URL: "https://x/a.jpg", Type: state.MediaPhoto}}}
	mediaKey := state.ComputeMediaKey(post.ID, post.Media[0].URL)
	require.NoError(t, store.MarkMedia(context.Background(), state.MediaRecord{MediaKey: mediaKey, Status: state.StatusUploaded}))

	outcome := e.processPost(context.Background(), "acct", post)

	assert.False(t, outcome.failed)
	assert.Equal(t, 0, outcome.uploaded)
	assert.Equal(t, 1, outcome.skipped)
	assert.Empty(t, dl.Calls)
	assert.Empty(t, snk.SentGroups)
}

func TestProcessPostSkipsOversizeVideoAndCleansUpFile(t *testing.T) {
	store := state.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()
	e := newTestEngine(t, nil, snk, store, dl, Config{MaxUploadVideoBytes: 100})

	post := source.Post{ID: "1", Media: []source.Media{{URL: "https://x/a.mp4", Type: state.MediaVideo}}}
	mediaKey := state.ComputeMediaKey(post.ID, post.Media[0].URL)
	dl.QueueResponse(mediaKey, download.FakeResponse{SizeBytes: 1000})

	outcome := e.processPost(context.Background(), "acct", post)

	require.False(t, outcome.failed)
	assert.Equal(t, 0, outcome.uploaded)
	assert.Equal(t, 1, outcome.skipped)
	assert.Empty(t, snk.SentGroups)

	records := store.MediaRecords()
	rec, ok := records[mediaKey]
	require.True(t, ok)
	assert.Equal(t, state.StatusSkippedOversize, rec.Status)

	path := filepath.Join(dl.Calls[0].Dir, mediaKey+".mp4")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "expected oversize video file to be removed, got err=%v", statErr)
}

func TestProcessPostCleansUpDownloadedFilesRegardlessOfOutcome(t *testing.T) {
	store := state.NewFake()
	snk := sink.NewFake()
	snk.SendErr = context.DeadlineExceeded
	dl := download.NewFake()
	e := newTestEngine(t, nil, snk, store, dl, Config{MaxUploadVideoBytes: 1 << 30})

	post := source.Post{ID: "1", Media: []source.Media{{URL: "https://x/a.jpg", Type: state.MediaPhoto}}}
	mediaKey := state.ComputeMediaKey(post.ID, post.Media[0].URL)
	dl.QueueResponse(mediaKey, download.FakeResponse{SizeBytes: 100})

	outcome := e.processPost(context.Background(), "acct", post)

	require.True(t, outcome.failed)
	require.Len(t, dl.Calls, 1)
	path := filepath.Join(dl.Calls[0].Dir, mediaKey+".jpg")
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expected downloaded file to be removed after failure, got err=%v", err)
}

func TestProcessPostFailsWhenDownloadExhaustsRetries(t *testing.T) {
	store := state.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()
	e := newTestEngine(t, nil, snk, store, dl, Config{MaxUploadVideoBytes: 1 << 30})

	post := source.Post{ID: "1", Media: []source.Media{{URL: "https://x/a.jpg", Type: state.MediaPhoto}}}
	mediaKey := state.ComputeMediaKey(post.ID, post.Media[0].URL)
	dl.QueueResponse(mediaKey, download.FakeResponse{Err: context.DeadlineExceeded})
	dl.QueueResponse(mediaKey, download.FakeResponse{Err: context.DeadlineExceeded})
	dl.QueueResponse(mediaKey, download.FakeResponse{Err: context.DeadlineExceeded})

	outcome := e.processPost(context.Background(), "acct", post)

	assert.True(t, outcome.failed)
	assert.Len(t, dl.Calls, downloadMaxRetries+1)
}
