package timer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrExpired is returned when resuming or switching to an expired countdown.
	ErrExpired = errors.New("time limit reached")
	// ErrNoCurrent is returned by Pause and Resume before any question started.
	ErrNoCurrent = errors.New("no question is active")
)

// ExpireFunc is called once per countdown that runs out.
type ExpireFunc func(sessionID, questionID string)

// Manager owns the countdowns of one session. At most one countdown runs at
// a time: the current question's.
type Manager struct {
	sessionID string
	clock     Clock
	onExpire  ExpireFunc

	mu         sync.Mutex
	countdowns map[string]*countdown
	current    string
}

func NewManager(sessionID string, clock Clock, onExpire ExpireFunc) *Manager {
	if clock == nil {
		clock = RealClock{}
	}
	return &Manager{
		sessionID:  sessionID,
		clock:      clock,
		onExpire:   onExpire,
		countdowns: make(map[string]*countdown),
	}
}

func (m *Manager) SessionID() string { return m.sessionID }

// Start makes questionID current and runs its countdown, creating it with
// limit if it does not exist. The previously current countdown is paused.
func (m *Manager) Start(questionID string, limit time.Duration) error {
	return m.Switch(questionID, limit)
}

// Switch pauses the current countdown, keeping its remaining time, and
// resumes or starts the countdown of to. limit is used only when to has no
// countdown yet. Switching to an expired or stopped question makes it
// current without running it; ErrExpired is returned for expired ones.
func (m *Manager) Switch(to string, limit time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if cur, ok := m.countdowns[m.current]; ok && m.current != to && cur.state == StateRunning {
		cur.halt(now, StatePaused)
	}

	c, ok := m.countdowns[to]
	if !ok {
		c = newCountdown(to, limit)
		m.countdowns[to] = c
	}
	m.current = to

	switch c.state {
	case StateExpired:
		return ErrExpired
	case StateStopped, StateRunning:
		return nil
	}
	m.run(c, now)
	return nil
}

// Pause freezes the current countdown. Pausing a countdown that is not
// running is a no-op.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.countdowns[m.current]
	if !ok {
		return ErrNoCurrent
	}
	if c.state == StateRunning {
		c.halt(m.clock.Now(), StatePaused)
	}
	return nil
}

// Resume continues the current countdown.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.countdowns[m.current]
	if !ok {
		return ErrNoCurrent
	}
	switch c.state {
	case StateExpired:
		return ErrExpired
	case StateStopped:
		return fmt.Errorf("question %s is already answered", c.questionID)
	case StateRunning:
		return nil
	}
	m.run(c, m.clock.Now())
	return nil
}

// Stop ends the countdown of an answered question. Unknown questions and
// countdowns that are already finished are left alone.
func (m *Manager) Stop(questionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.countdowns[questionID]
	if !ok {
		c = newCountdown(questionID, 0)
		m.countdowns[questionID] = c
	}
	if c.state == StateExpired || c.state == StateStopped {
		return
	}
	c.halt(m.clock.Now(), StateStopped)
}

// StopAll stops every countdown, e.g. when the session ends.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for _, c := range m.countdowns {
		if c.state != StateExpired && c.state != StateStopped {
			c.halt(now, StateStopped)
		}
	}
}

// Remaining returns the time left for questionID and its state.
func (m *Manager) Remaining(questionID string) (time.Duration, State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.countdowns[questionID]
	if !ok {
		return 0, "", false
	}
	return c.left(m.clock.Now()), c.state, true
}

// Current returns the active question ID, or "" before the first Start.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Snapshot returns every countdown ordered by question ID.
func (m *Manager) Snapshot() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	out := make([]Snapshot, 0, len(m.countdowns))
	for id, c := range m.countdowns {
		out = append(out, Snapshot{
			QuestionID: id,
			Limit:      c.limit,
			Remaining:  c.left(now),
			State:      c.state,
			Current:    id == m.current,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

// Restore loads snapshots taken at savedAt. Running countdowns lose the time
// elapsed since then and keep running; one that ran out meanwhile expires
// right away.
func (m *Manager) Restore(snaps []Snapshot, savedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for _, s := range snaps {
		c := newCountdown(s.QuestionID, s.Limit)
		c.remaining = max(s.Remaining, 0)
		c.state = s.State
		if s.State == StateExpired {
			c.fired = true
			c.remaining = 0
		}
		m.countdowns[s.QuestionID] = c
		if s.Current {
			m.current = s.QuestionID
		}
		if s.State == StateRunning {
			if elapsed := now.Sub(savedAt); elapsed > 0 {
				c.remaining = max(c.remaining-elapsed, 0)
			}
			c.state = StatePaused
			m.run(c, now)
		}
	}
}

// disarm cancels pending expiries without changing any state.
func (m *Manager) disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.countdowns {
		c.gen++
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
	}
}

// run starts c at now. The caller holds m.mu.
func (m *Manager) run(c *countdown, now time.Time) {
	c.state = StateRunning
	c.startedAt = now
	c.gen++
	gen := c.gen
	c.timer = m.clock.AfterFunc(c.remaining, func() { m.expire(c, gen) })
}

func (m *Manager) expire(c *countdown, gen uint64) {
	m.mu.Lock()
	if c.gen != gen || c.state != StateRunning || c.fired {
		m.mu.Unlock()
		return
	}
	c.state = StateExpired
	c.remaining = 0
	c.timer = nil
	c.fired = true
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(m.sessionID, c.questionID)
	}
}
