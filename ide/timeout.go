package ide

import "time"

// Timeout bounds every wait on the status register. A wait gives up after
// MaxPolls status reads or once MaxWait has elapsed, whichever is first.
// A zero field is not a limit.
type Timeout struct {
	MaxPolls int
	MaxWait  time.Duration
}

// DefaultTimeout is used when a Driver is given a zero Timeout.
var DefaultTimeout = Timeout{MaxPolls: 100000}

func (t Timeout) isZero() bool {
	return t.MaxPolls <= 0 && t.MaxWait <= 0
}

// poller counts the status reads of a single wait.
type poller struct {
	limit    int
	deadline time.Time
	now      func() time.Time
	polls    int
}

func (t Timeout) start(now func() time.Time) *poller {
	p := &poller{limit: t.MaxPolls, now: now}
	if t.MaxWait > 0 {
		p.deadline = now().Add(t.MaxWait)
	}
	return p
}

// next reports whether another status read is allowed.
func (p *poller) next() bool {
	if p.limit > 0 && p.polls >= p.limit {
		return false
	}
	if !p.deadline.IsZero() && p.now().After(p.deadline) {
		return false
	}
	p.polls++
	return true
}
