package job

import "time"

// Tracker derives percent-complete and a naive remaining-time estimate
// from the number of finished segments. The estimate assumes segments
// take roughly equal time, which holds for fixed-size audio chunks.
type Tracker struct {
	total     int
	completed int
	started   time.Time

	now func() time.Time
}

// NewTracker starts tracking a job of total segments.
func NewTracker(total int) *Tracker {
	return &Tracker{total: total, started: time.Now(), now: time.Now}
}

// Done records one more finished segment.
func (t *Tracker) Done() {
	t.completed++
}

// Completed returns the number of finished segments.
func (t *Tracker) Completed() int {
	return t.completed
}

// Percent returns completion as 0-100. A job with no segments is
// complete by definition.
func (t *Tracker) Percent() float64 {
	if t.total == 0 {
		return 100
	}
	return float64(t.completed) / float64(t.total) * 100
}

// Elapsed returns time spent since tracking started.
func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.started)
}

// Remaining extrapolates the time left from the average pace so far.
// Before the first segment finishes there is no pace to extrapolate
// from, so it returns zero.
func (t *Tracker) Remaining() time.Duration {
	if t.completed == 0 {
		return 0
	}
	elapsed := t.Elapsed()
	estimated := time.Duration(float64(elapsed) / float64(t.completed) * float64(t.total))
	if remaining := estimated - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}
