package syncengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"archivesyncd/internal/source"
	"archivesyncd/internal/state"
)

const lockJobName = "daily-sync"

// Engine is the Sync Engine (spec.md §4.5). It holds exactly one
// implementation of each collaborator interface; NewEngine is the only
// place those are wired together.
type Engine struct {
	source     PostSource
	sink       Sink
	store      AccountStore
	downloader MediaDownloader
	logger     zerolog.Logger
	cfg        Config
}

// NewEngine constructs an Engine from its collaborators and config.
func NewEngine(src PostSource, snk Sink, store AccountStore, downloader MediaDownloader, cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		source:     src,
		sink:       snk,
		store:      store,
		downloader: downloader,
		cfg:        cfg,
		logger:     logger.With().Str("component", "syncengine").Logger(),
	}
}

func (e *Engine) scratchDirFor(handle string) string {
	return filepath.Join(e.cfg.ScratchDir, handle)
}

// Run executes exactly one pass over every configured account (spec.md
// §4.5). The job lock is always released before Run returns.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	startedAt := time.Now().UTC()
	holderID := fmt.Sprintf("sync-%d-%d", os.Getpid(), time.Now().UnixMilli())

	if err := e.store.Init(ctx); err != nil {
		return RunSummary{}, fmt.Errorf("init state store: %w", err)
	}
	if err := os.MkdirAll(e.cfg.ScratchDir, 0o755); err != nil {
		return RunSummary{}, fmt.Errorf("ensure scratch dir %s: %w", e.cfg.ScratchDir, err)
	}

	acquired, err := e.store.AcquireLock(ctx, lockJobName, holderID, e.cfg.JobLockTTL)
	if err != nil {
		return RunSummary{}, fmt.Errorf("acquire job lock: %w", err)
	}
	if !acquired {
		e.logger.Info().Msg("another holder owns the job lock, skipping this run")
		return RunSummary{StartedAt: startedAt, FinishedAt: time.Now().UTC(), SkippedByLock: true}, nil
	}
	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if err := e.store.ReleaseLock(releaseCtx, lockJobName, holderID); err != nil {
			e.logger.Error().Err(err).Msg("failed to release job lock")
		}
	}()

	summary := RunSummary{StartedAt: startedAt}
	for _, handle := range e.cfg.Accounts {
		summary.Accounts = append(summary.Accounts, e.processAccount(ctx, handle))
	}

	e.sendRunReport(ctx, summary)
	summary.FinishedAt = time.Now().UTC()
	return summary, nil
}

// processAccount implements spec.md §4.5 steps a-i for a single account.
func (e *Engine) processAccount(ctx context.Context, handle string) AccountSummary {
	logger := e.logger.With().Str("handle", handle).Logger()
	summary := AccountSummary{Handle: handle}

	cursor, err := e.store.GetAccount(ctx, handle)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load account cursor")
		summary.Failed = 1
		return summary
	}

	now := time.Now().UTC()
	if cursor.InCooldown(now) {
		summary.CooldownActive = true
		summary.CooldownUntil = cursor.RateLimitedUntil
		summary.BackfillDone = cursor.BackfillDone
		logger.Info().Time("cooldown_until", cursor.RateLimitedUntil).Msg("account in cooldown, skipping")
		return summary
	}

	incrementalResult, err := e.source.ListPostsWithMedia(ctx, source.ListPostsParams{
		Handle:    handle,
		Direction: source.DirectionNewer,
		PageLimit: e.cfg.BackfillPagesPerRun,
	})
	if err != nil {
		e.handleAccountError(ctx, &summary, cursor, err, logger)
		return summary
	}

	newestSeenID := cursor.LatestSeenPostID
	var incrementalPosts []source.Post
	if len(incrementalResult.Posts) > 0 {
		newestSeenID = incrementalResult.Posts[0].ID
	}
	for _, p := range incrementalResult.Posts {
		if p.ID == cursor.LatestSeenPostID {
			break
		}
		incrementalPosts = append(incrementalPosts, p)
	}

	var backfillPosts []source.Post
	backfillDone := cursor.BackfillDone
	nextBackfillCursor := cursor.BackfillCursor
	if !cursor.BackfillDone {
		backfillResult, err := e.source.ListPostsWithMedia(ctx, source.ListPostsParams{
			Handle:    handle,
			Direction: source.DirectionOlder,
			Cursor:    cursor.BackfillCursor,
			PageLimit: e.cfg.BackfillPagesPerRun,
		})
		if err != nil {
			e.handleAccountError(ctx, &summary, cursor, err, logger)
			return summary
		}
		backfillPosts = backfillResult.Posts
		nextBackfillCursor = backfillResult.NextCursor
		backfillDone = nextBackfillCursor == ""
	}
	summary.BackfillDone = backfillDone

	incCandidates, backCandidates := mergeCandidates(incrementalPosts, backfillPosts)
	summary.IncrementalCandidates = len(incCandidates)
	summary.BackfillCandidates = len(backCandidates)

	selected, incrementalSelected, backfillSelected := selectWithinBudget(e.cfg.MaxMediaPerRun, incCandidates, backCandidates)
	summary.IncrementalSelected = incrementalSelected
	summary.BackfillSelected = backfillSelected

	for _, post := range selected {
		outcome := e.processPost(ctx, handle, post)
		summary.Uploaded += outcome.uploaded
		summary.Skipped += outcome.skipped
		if outcome.failed {
			summary.Failed++
		}
	}

	cursor.LatestSeenPostID = newestSeenID
	cursor.BackfillCursor = nextBackfillCursor
	cursor.BackfillDone = backfillDone
	cursor.RateLimitedUntil = time.Time{}
	cursor.Handle = handle
	if err := e.store.PutAccount(ctx, cursor); err != nil {
		logger.Error().Err(err).Msg("failed to persist account cursor")
		summary.Failed++
	}
	return summary
}

// handleAccountError implements spec.md §4.5.h/i: a rate-limit error moves
// the account into cooldown without touching any other cursor field; any
// other error leaves the cursor untouched and reports a failure via the
// sink.
func (e *Engine) handleAccountError(ctx context.Context, summary *AccountSummary, cursor state.AccountCursor, err error, logger zerolog.Logger) {
	summary.Failed = 1

	var rateLimitErr *source.RateLimitError
	if errors.As(err, &rateLimitErr) {
		cursor.RateLimitedUntil = time.Now().UTC().Add(e.cfg.RateLimitCooldown)
		cursor.Handle = summary.Handle
		if putErr := e.store.PutAccount(ctx, cursor); putErr != nil {
			logger.Error().Err(putErr).Msg("failed to persist cooldown cursor")
		}
		summary.CooldownActive = true
		summary.CooldownUntil = cursor.RateLimitedUntil
		logger.Warn().Strs("hosts", rateLimitErr.Hosts).Msg("rate-limited, entering cooldown")
		return
	}

	logger.Error().Err(err).Msg("account processing failed")
	cursor.Handle = summary.Handle
	if putErr := e.store.PutAccount(ctx, cursor); putErr != nil {
		logger.Error().Err(putErr).Msg("failed to re-persist unchanged cursor")
	}
	if sendErr := e.sink.SendText(ctx, fmt.Sprintf("sync failed for @%s: %v", summary.Handle, err)); sendErr != nil {
		logger.Error().Err(sendErr).Msg("failed to send failure report")
	}
}

// sendRunReport sends the aggregated end-of-run text report (spec.md §4.5
// step 5), always, even for an empty account list.
func (e *Engine) sendRunReport(ctx context.Context, summary RunSummary) {
	var uploaded, skipped, failed int
	for _, a := range summary.Accounts {
		uploaded += a.Uploaded
		skipped += a.Skipped
		failed += a.Failed
	}
	msg := fmt.Sprintf("sync run complete: %d accounts, %d uploaded, %d skipped, %d failed",
		len(summary.Accounts), uploaded, skipped, failed)
	if err := e.sink.SendText(ctx, msg); err != nil {
		e.logger.Error().Err(err).Msg("failed to send run report")
	}
}
