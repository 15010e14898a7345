// Package timer implements per-question countdowns for interview sessions.
// Each question has its own budget; switching questions pauses the one being
// left and resumes the one being entered, and an expired countdown fires a
// callback exactly once.
package timer

import (
	"fmt"
	"time"
)

// DefaultLimit applies to questions without a time limit.
const DefaultLimit = 180 * time.Second

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateExpired State = "expired"
	StateStopped State = "stopped"
)

// ParseState converts a stored state name.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StateIdle, StateRunning, StatePaused, StateExpired, StateStopped:
		return st, nil
	}
	return "", fmt.Errorf("unknown timer state %q", s)
}

// countdown is the budget of one question. It is guarded by the owning Manager.
type countdown struct {
	questionID string
	limit      time.Duration
	remaining  time.Duration // as of startedAt while running
	startedAt  time.Time
	state      State
	timer      Stopper
	// gen invalidates AfterFunc callbacks armed before the last pause.
	gen   uint64
	fired bool
}

func newCountdown(questionID string, limit time.Duration) *countdown {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &countdown{questionID: questionID, limit: limit, remaining: limit, state: StateIdle}
}

// left returns the remaining time at now, never negative.
func (c *countdown) left(now time.Time) time.Duration {
	if c.state != StateRunning {
		return c.remaining
	}
	return max(c.remaining-now.Sub(c.startedAt), 0)
}

// halt freezes the countdown at now and disarms its timer.
func (c *countdown) halt(now time.Time, next State) {
	c.remaining = c.left(now)
	c.state = next
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Snapshot is the persisted form of one countdown.
type Snapshot struct {
	QuestionID string
	Limit      time.Duration
	Remaining  time.Duration
	State      State
	Current    bool
}
