// Package sink defines the Sink Adapter contract (spec.md §4.4). Internals
// of the concrete messaging-platform wire format are out of scope per
// spec.md §1; this package only fixes the interface, a grouping/caption
// helper shared by every implementation, an in-memory fake for tests, and a
// thin HTTP-based stub adapter.
//
// Grounded on the teacher's internal/webhooks/svix_client.go: a typed
// interface wrapping a delivery SDK, with a compile-time
// `var _ Interface = (*Impl)(nil)` assertion and constructor-time validation.
package sink

import (
	"context"
	"fmt"
	"time"

	"archivesyncd/internal/download"
)

const maxGroupSize = 10

// MediaGroupParams is the input to SendMediaGroup (spec.md §4.4).
type MediaGroupParams struct {
	PostURL  string
	Handle   string
	PostedAt time.Time
	Files    []download.LocalFile
}

// MediaGroupResult carries every message id returned by the sink, in send
// order, across however many groups the files were split into.
type MediaGroupResult struct {
	MessageIDs []string
}

// Adapter is the Sink Adapter contract (spec.md §4.4).
type Adapter interface {
	SendMediaGroup(ctx context.Context, p MediaGroupParams) (MediaGroupResult, error)
	SendText(ctx context.Context, message string) error
	HealthCheck(ctx context.Context) error
	Disconnect() error
}

// groupFiles partitions files into groups of at most maxGroupSize, per
// spec.md §4.4.
func groupFiles(files []download.LocalFile) [][]download.LocalFile {
	var groups [][]download.LocalFile
	for start := 0; start < len(files); start += maxGroupSize {
		end := start + maxGroupSize
		if end > len(files) {
			end = len(files)
		}
		groups = append(groups, files[start:end])
	}
	return groups
}

// caption renders the per-group caption: "@<handle>\n<iso_posted_at>\n<post_url>",
// with a trailing "[part N]" line on every group after the first
// (spec.md §4.4).
func caption(p MediaGroupParams, groupIndex int) string {
	base := fmt.Sprintf("@%s\n%s\n%s", p.Handle, p.PostedAt.UTC().Format(time.RFC3339), p.PostURL)
	if groupIndex == 0 {
		return base
	}
	return fmt.Sprintf("%s\n[part %d]", base, groupIndex+1)
}
