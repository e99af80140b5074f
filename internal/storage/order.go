package storage

import (
	"sort"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

// SortBestScores orders entries by rating descending, most recently achieved first on ties
func SortBestScores(scores []model.BestScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Rating != scores[j].Rating {
			return scores[i].Rating > scores[j].Rating
		}
		return scores[i].AchievedAt.After(scores[j].AchievedAt)
	})
}

// Truncate returns at most limit leading elements; limit <= 0 means no limit
func Truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// PushRing prepends item and drops entries beyond capacity
func PushRing[T any](ring []T, item T, capacity int) []T {
	out := make([]T, 0, len(ring)+1)
	out = append(out, item)
	out = append(out, ring...)
	return Truncate(out, capacity)
}

// OverlayBestScores replaces committed entries with staged ones for the same
// chart, then sorts and truncates the result
func OverlayBestScores(committed []model.BestScore, staged map[model.ChartKey]*model.BestScore, limit int) []model.BestScore {
	out := make([]model.BestScore, 0, len(committed)+len(staged))
	for _, b := range committed {
		if _, ok := staged[b.Chart]; !ok {
			out = append(out, b)
		}
	}
	for _, b := range staged {
		out = append(out, *b)
	}
	SortBestScores(out)
	return Truncate(out, limit)
}
