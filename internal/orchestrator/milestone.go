package orchestrator

// milestoneTracker decides when a chunk completion warrants writing
// chunks_completed to JobStore, bounding write amplification to O(1) per
// job regardless of chunk count (spec §4.7). Callers serialize access
// themselves (transcribePhase holds a mutex across recordCompletion and
// shouldCheckpoint).
type milestoneTracker struct {
	total     int
	completed int
}

func newMilestoneTracker(total int) *milestoneTracker {
	return &milestoneTracker{total: total}
}

// recordCompletion registers one more chunk as finished (successfully or
// not - both count toward progress) and returns the new completed count.
func (t *milestoneTracker) recordCompletion() int {
	t.completed++
	return t.completed
}

// shouldCheckpoint reports whether, having just reached completed
// completions, JobStore should be written: the first chunk, the last
// chunk, or (when total >= 4) a crossing of the 50% or 75% cumulative
// progress mark.
func (t *milestoneTracker) shouldCheckpoint(completed int) bool {
	if completed == 1 || completed == t.total {
		return true
	}
	if t.total < 4 {
		return false
	}
	prevFrac := float64(completed-1) / float64(t.total)
	currFrac := float64(completed) / float64(t.total)
	return crosses(prevFrac, currFrac, 0.5) || crosses(prevFrac, currFrac, 0.75)
}

func crosses(prev, curr, mark float64) bool {
	return prev < mark && curr >= mark
}
