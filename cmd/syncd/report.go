package main

import (
	"fmt"
	"strings"

	"archivesyncd/internal/syncengine"
)

// formatRunSummary renders a RunSummary as a human-readable multi-line
// report for sync:run's stdout output.
func formatRunSummary(s syncengine.RunSummary) string {
	if s.SkippedByLock {
		return "run skipped: job lock held by another process"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "run %s -> %s\n", s.StartedAt.Format("15:04:05"), s.FinishedAt.Format("15:04:05"))
	for _, a := range s.Accounts {
		fmt.Fprintf(&b, "  @%s: uploaded=%d skipped=%d failed=%d cooldown=%v backfill_done=%v\n",
			a.Handle, a.Uploaded, a.Skipped, a.Failed, a.CooldownActive, a.BackfillDone)
	}
	return b.String()
}
