package store

import (
	"sort"
	"time"
)

// SelectForDeletion returns summaries finished before now-olderThan, plus the oldest
// entries beyond keepLast. Zero disables either rule. Each run appears at most once.
func SelectForDeletion(summaries []*Summary, keepLast int, olderThan time.Duration, now time.Time) []*Summary {
	picked := make(map[string]bool)
	var toDelete []*Summary

	add := func(s *Summary) {
		if !picked[s.RunID] {
			picked[s.RunID] = true
			toDelete = append(toDelete, s)
		}
	}

	if olderThan > 0 {
		cutoff := now.Add(-olderThan)
		for _, s := range summaries {
			if s.Finished.Before(cutoff) {
				add(s)
			}
		}
	}

	if keepLast > 0 && len(summaries) > keepLast {
		sorted := make([]*Summary, len(summaries))
		copy(sorted, summaries)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Finished.Before(sorted[j].Finished)
		})
		for _, s := range sorted[:len(sorted)-keepLast] {
			add(s)
		}
	}

	return toDelete
}
