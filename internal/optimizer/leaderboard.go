package optimizer

import (
	"sort"

	"bollinger-optimizer-go/internal/models"
)

// Leaderboard keeps the best results sorted by descending score. Results with
// equal scores stay in insertion order.
type Leaderboard struct {
	cap   int
	items []models.OptimizationResult
}

// NewLeaderboard creates a leaderboard holding at most capacity results.
func NewLeaderboard(capacity int) *Leaderboard {
	if capacity <= 0 {
		capacity = DefaultResultCap
	}
	return &Leaderboard{cap: capacity, items: make([]models.OptimizationResult, 0, min(capacity, 64))}
}

// Insert adds r in score order and truncates to capacity. It reports whether r was kept.
func (l *Leaderboard) Insert(r models.OptimizationResult) bool {
	idx := sort.Search(len(l.items), func(i int) bool { return l.items[i].Score < r.Score })
	if idx >= l.cap {
		return false
	}
	l.items = append(l.items, models.OptimizationResult{})
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = r
	if len(l.items) > l.cap {
		l.items = l.items[:l.cap]
	}
	return true
}

func (l *Leaderboard) Len() int { return len(l.items) }

// Best returns a copy of the top result, or nil when empty.
func (l *Leaderboard) Best() *models.OptimizationResult {
	if len(l.items) == 0 {
		return nil
	}
	best := l.items[0]
	return &best
}

// Results returns a copy of the ranked results.
func (l *Leaderboard) Results() []models.OptimizationResult {
	out := make([]models.OptimizationResult, len(l.items))
	copy(out, l.items)
	return out
}
