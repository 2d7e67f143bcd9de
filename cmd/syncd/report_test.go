package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"archivesyncd/internal/syncengine"
)

func TestFormatRunSummaryReportsLockSkip(t *testing.T) {
	out := formatRunSummary(syncengine.RunSummary{SkippedByLock: true})
	assert.Equal(t, "run skipped: job lock held by another process", out)
}

func TestFormatRunSummaryRendersPerAccountLines(t *testing.T) {
	start := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	summary := syncengine.RunSummary{
		StartedAt:  start,
		FinishedAt: start.Add(5 * time.Minute),
		Accounts: []syncengine.AccountSummary{
			{Handle: "someone", Uploaded: 3, Skipped: 1, BackfillDone: true},
		},
	}
	out := formatRunSummary(summary)
	assert.Contains(t, out, "@someone: uploaded=3 skipped=1 failed=0")
	assert.Contains(t, out, "backfill_done=true")
}
