// Package syncengine implements the Sync Engine (spec.md §4.5): the
// deterministic, resumable, rate-aware pipeline that drives one run across
// every configured account.
//
// Grounded on the teacher's internal/ingester/service.go: a Service struct
// holding a client and a repository, with a Config and a run loop that
// processes work unit by unit and records progress. Retargeted here from an
// indefinite forward-polling loop over blockchain heights to one bounded
// pass over configured accounts, each independently cursor-tracked.
package syncengine

import (
	"context"
	"time"

	"archivesyncd/internal/download"
	"archivesyncd/internal/sink"
	"archivesyncd/internal/source"
	"archivesyncd/internal/state"
)

// PostSource is the subset of the Source Adapter the engine depends on
// (spec.md §9: "Source, Sink, and State are interface abstractions; the
// engine holds one implementation of each"). source.Adapter and
// source.Fake both satisfy it.
type PostSource interface {
	ListPostsWithMedia(ctx context.Context, p source.ListPostsParams) (source.ListPostsResult, error)
}

// MediaDownloader is the subset of the Media Downloader the engine depends
// on. download.Downloader and download.Fake both satisfy it.
type MediaDownloader interface {
	Download(ctx context.Context, p download.Params) (download.LocalFile, error)
}

// AccountStore is the subset of the State Store the engine depends on.
// state.Store and state.Fake both satisfy it.
type AccountStore interface {
	Init(ctx context.Context) error
	GetAccount(ctx context.Context, handle string) (state.AccountCursor, error)
	PutAccount(ctx context.Context, cursor state.AccountCursor) error
	IsMediaUploaded(ctx context.Context, mediaKey string) (bool, error)
	MarkMedia(ctx context.Context, rec state.MediaRecord) error
	AcquireLock(ctx context.Context, jobName, holderID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, jobName, holderID string) error
}

// Sink is the Sink Adapter contract (spec.md §4.4); sink.Adapter is reused
// directly since it is already the minimal interface the package exports.
type Sink = sink.Adapter
