package syncengine

import (
	"context"
	"fmt"
	"os"
	"time"

	"archivesyncd/internal/download"
	"archivesyncd/internal/retry"
	"archivesyncd/internal/sink"
	"archivesyncd/internal/source"
	"archivesyncd/internal/state"
)

const (
	downloadMaxRetries     = 2
	downloadInitialBackoff = 1 * time.Second
	downloadBackoffFactor  = 2.0

	sendMaxRetries     = 2
	sendInitialBackoff = 1500 * time.Millisecond
	sendBackoffFactor  = 2.0
)

// postOutcome carries the counter deltas from processPost (spec.md §4.5.1).
type postOutcome struct {
	uploaded int
	skipped  int
	failed   bool
}

// processPost implements spec.md §4.5.1: download every media item in
// order, drop already-uploaded ones, skip oversize videos, and hand the
// remainder to the sink as one media group. Every file downloaded during
// this post is removed before returning, regardless of outcome.
func (e *Engine) processPost(ctx context.Context, handle string, post source.Post) postOutcome {
	var downloaded []download.LocalFile
	defer func() {
		for _, f := range downloaded {
			if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
				e.logger.Warn().Err(err).Str("path", f.Path).Msg("failed to clean up downloaded media file")
			}
		}
	}()

	var outcome postOutcome
	var sendList []download.LocalFile

	for _, media := range post.Media {
		mediaKey := state.ComputeMediaKey(post.ID, media.URL)

		uploaded, err := e.store.IsMediaUploaded(ctx, mediaKey)
		if err != nil {
			e.logger.Error().Err(err).Str("post_id", post.ID).Str("handle", handle).Msg("dedupe lookup failed")
			outcome.failed = true
			return outcome
		}
		if uploaded {
			outcome.skipped++
			continue
		}

		var lf download.LocalFile
		err = retry.Do(ctx, downloadMaxRetries, downloadInitialBackoff, downloadBackoffFactor, func() error {
			var dlErr error
			lf, dlErr = e.downloader.Download(ctx, download.Params{
				MediaKey:  mediaKey,
				MediaURL:  media.URL,
				MediaType: media.Type,
				Dir:       e.scratchDirFor(handle),
			})
			return dlErr
		})
		if err != nil {
			e.logger.Error().Err(err).Str("post_id", post.ID).Str("handle", handle).Msg("media download exhausted retries")
			outcome.failed = true
			return outcome
		}
		downloaded = append(downloaded, lf)

		if media.Type != state.MediaPhoto && lf.SizeBytes > e.cfg.MaxUploadVideoBytes {
			if err := e.store.MarkMedia(ctx, state.MediaRecord{
				MediaKey:      mediaKey,
				PostID:        post.ID,
				AccountHandle: handle,
				MediaURL:      media.URL,
				MediaType:     media.Type,
				Status:        state.StatusSkippedOversize,
			}); err != nil {
				e.logger.Error().Err(err).Str("media_key", mediaKey).Msg("failed to record oversize media")
				outcome.failed = true
				return outcome
			}
			if err := os.Remove(lf.Path); err != nil && !os.IsNotExist(err) {
				e.logger.Warn().Err(err).Str("path", lf.Path).Msg("failed to remove oversize media file")
			}
			downloaded = downloaded[:len(downloaded)-1] // already removed above
			outcome.skipped++
			continue
		}

		sendList = append(sendList, lf)
	}

	if len(sendList) == 0 {
		return outcome
	}

	var result sink.MediaGroupResult
	err := retry.Do(ctx, sendMaxRetries, sendInitialBackoff, sendBackoffFactor, func() error {
		var sendErr error
		result, sendErr = e.sink.SendMediaGroup(ctx, sink.MediaGroupParams{
			PostURL:  postURL(handle, post.ID),
			Handle:   handle,
			PostedAt: post.PostedAt,
			Files:    sendList,
		})
		return sendErr
	})
	if err != nil {
		e.logger.Error().Err(err).Str("post_id", post.ID).Str("handle", handle).Msg("sink upload exhausted retries")
		outcome.failed = true
		return outcome
	}

	for i, f := range sendList {
		ids := []string{}
		if i < len(result.MessageIDs) {
			ids = []string{result.MessageIDs[i]}
		}
		if err := e.store.MarkMedia(ctx, state.MediaRecord{
			MediaKey:       f.MediaKey,
			PostID:         post.ID,
			AccountHandle:  handle,
			MediaURL:       f.MediaURL,
			MediaType:      f.MediaType,
			Status:         state.StatusUploaded,
			SinkMessageIDs: ids,
		}); err != nil {
			e.logger.Error().Err(err).Str("media_key", f.MediaKey).Msg("failed to record uploaded media")
			outcome.failed = true
			return outcome
		}
		outcome.uploaded++
	}
	return outcome
}

func postURL(handle, postID string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", handle, postID)
}
