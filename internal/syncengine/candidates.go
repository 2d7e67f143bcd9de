package syncengine

import (
	"sort"

	"archivesyncd/internal/source"
)

// candidate pairs a post with whether it was observed in the incremental
// fetch, so selection order and per-origin counters (spec.md §4.5.d/e) can
// be derived without a second pass over the source results.
type candidate struct {
	post            source.Post
	fromIncremental bool
}

// mergeCandidates unions incremental and backfill posts, deduplicated by
// id, and partitions them into incremental-candidates and
// backfill-candidates, each sorted ascending by numeric id (spec.md
// §4.5.d). A post seen in both sets counts as incremental, since
// incremental-candidates is defined as "ids present in the incremental
// set".
func mergeCandidates(incremental, backfill []source.Post) (incCandidates, backCandidates []source.Post) {
	incrementalIDs := make(map[string]bool, len(incremental))
	byID := make(map[string]source.Post, len(incremental)+len(backfill))

	for _, p := range incremental {
		incrementalIDs[p.ID] = true
		byID[p.ID] = p
	}
	for _, p := range backfill {
		if _, ok := byID[p.ID]; !ok {
			byID[p.ID] = p
		}
	}

	for id, p := range byID {
		if incrementalIDs[id] {
			incCandidates = append(incCandidates, p)
		} else {
			backCandidates = append(backCandidates, p)
		}
	}

	sortByIDAscending(incCandidates)
	sortByIDAscending(backCandidates)
	return incCandidates, backCandidates
}

func sortByIDAscending(posts []source.Post) {
	sort.Slice(posts, func(i, j int) bool {
		return source.IDLess(posts[i].ID, posts[j].ID)
	})
}

// selectWithinBudget implements spec.md §4.5.e: traverse
// incremental-candidates first, then backfill-candidates; for each post, if
// budget is exhausted stop; if the post alone would exceed budget and at
// least one post has already been selected, skip it; otherwise select it
// and subtract its media count from budget. A single oversized post may
// still be taken first when nothing has been selected yet.
func selectWithinBudget(budget int, incCandidates, backCandidates []source.Post) (selected []source.Post, incrementalSelected, backfillSelected int) {
	ordered := make([]candidate, 0, len(incCandidates)+len(backCandidates))
	for _, p := range incCandidates {
		ordered = append(ordered, candidate{post: p, fromIncremental: true})
	}
	for _, p := range backCandidates {
		ordered = append(ordered, candidate{post: p, fromIncremental: false})
	}

	for _, c := range ordered {
		if budget <= 0 {
			break
		}
		if c.post.MediaCount() > budget && len(selected) > 0 {
			continue
		}
		selected = append(selected, c.post)
		budget -= c.post.MediaCount()
		if c.fromIncremental {
			incrementalSelected++
		} else {
			backfillSelected++
		}
	}
	return selected, incrementalSelected, backfillSelected
}
