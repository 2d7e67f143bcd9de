package syncengine

import (
	"context"
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

func baseConfig(t *testing.T, accounts ...string) Config {
	return Config{
		Accounts:            accounts,
		ScratchDir:          t.TempDir(),
		MaxMediaPerRun:      10,
		BackfillPagesPerRun: 1,
		MaxUploadVideoBytes: 1 << 30,
		JobLockTTL:          time.Minute,
		RateLimitCooldown:   time.Hour,
	}
}

func TestRunSkipsWhenJobLockIsHeldByAnotherHolder(t *testing.T) {
	store := state.NewFake()
	store.SeedLock(lockJobName, "some-other-holder", time.Now().Add(time.Hour))
	src := source.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()

	e := NewEngine(src, snk, store, dl, baseConfig(t, "acct1"), zerolog.Nop())

	summary, err := e.Run(context.Background())

	require.NoError(t, err)
	assert.True(t, summary.SkippedByLock)
	assert.Empty(t, summary.Accounts)
	assert.Empty(t, src.Calls)
}

func TestRunFirstTimeIncrementalFetchUploadsAndPersistsCursor(t *testing.T) {
	store := state.NewFake()
	src := source.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()

	post := source.Post{ID: "100", Media: []source.Media{{URL: "https://x/a.jpg", Type: state.MediaPhoto}}}
	mediaKey := state.ComputeMediaKey(post.ID, post.Media[0].URL)
	dl.QueueResponse(mediaKey, download.FakeResponse{SizeBytes: 10})

	src.QueueResponse("acct1", source.FakeResponse{Result: source.ListPostsResult{Posts: []source.Post{post}}})
	src.QueueResponse("acct1", source.FakeResponse{Result: source.ListPostsResult{NextCursor: ""}})

	e := NewEngine(src, snk, store, dl, baseConfig(t, "acct1"), zerolog.Nop())

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Accounts, 1)

	acct := summary.Accounts[0]
	assert.Equal(t, 1, acct.Uploaded)
	assert.Equal(t, 0, acct.Failed)
	assert.True(t, acct.BackfillDone)

	cursor, err := store.GetAccount(context.Background(), "acct1")
	require.NoError(t, err)
	assert.Equal(t, "100", cursor.LatestSeenPostID)
	assert.True(t, cursor.BackfillDone)
}

func TestRunSkipsAccountInCooldown(t *testing.T) {
	store := state.NewFake()
	require.NoError(t, store.PutAccount(context.Background(), state.AccountCursor{
		Handle:           "acct1",
		RateLimitedUntil: time.Now().Add(time.Hour),
	}))
	src := source.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()

	e := NewEngine(src, snk, store, dl, baseConfig(t, "acct1"), zerolog.Nop())

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Accounts, 1)
	assert.True(t, summary.Accounts[0].CooldownActive)
	assert.Empty(t, src.Calls)
}

func TestRunEntersCooldownOnRateLimitError(t *testing.T) {
	store := state.NewFake()
	src := source.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()

	src.QueueResponse("acct1", source.FakeResponse{Err: &source.RateLimitError{Hosts: []string{"host-a", "host-b"}}})

	e := NewEngine(src, snk, store, dl, baseConfig(t, "acct1"), zerolog.Nop())

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Accounts, 1)
	assert.True(t, summary.Accounts[0].CooldownActive)

	cursor, err := store.GetAccount(context.Background(), "acct1")
	require.NoError(t, err)
	assert.False(t, cursor.RateLimitedUntil.IsZero())
}

func TestRunSendsAggregateReportEvenWithNoAccounts(t *testing.T) {
	store := state.NewFake()
	src := source.NewFake()
	snk := sink.NewFake()
	dl := download.NewFake()

	e := NewEngine(src, snk, store, dl, baseConfig(t), zerolog.Nop())

	_, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, snk.SentTexts, 1)
}
