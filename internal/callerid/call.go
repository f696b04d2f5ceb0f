package callerid

import "time"

// Call gathers the events of one ring. Fields arrive in any order and any of
// them may be missing.
type Call struct {
	Date      string
	Time      string
	Number    string
	Name      string
	FirstSeen time.Time
	LastSeen  time.Time
}

func (c *Call) has(k Kind) bool {
	switch k {
	case KindNumber:
		return c.Number != ""
	case KindName:
		return c.Name != ""
	case KindDate:
		return c.Date != ""
	case KindTime:
		return c.Time != ""
	}
	return false
}

func (c *Call) set(ev Event) {
	switch ev.Kind {
	case KindNumber:
		c.Number = ev.Payload
	case KindName:
		c.Name = ev.Payload
	case KindDate:
		c.Date = ev.Payload
	case KindTime:
		c.Time = ev.Payload
	}
}

// Accumulator assigns events to calls. A new call starts when the window has
// passed since the previous event or the open call already holds that field.
type Accumulator struct {
	window  time.Duration
	current *Call
}

func NewAccumulator(window time.Duration) *Accumulator {
	return &Accumulator{window: window}
}

// Add merges ev into the open call and returns it. started is true when ev
// opened a new call. Unrecognized events are ignored and return nil.
func (a *Accumulator) Add(ev Event, now time.Time) (call *Call, started bool) {
	if ev.Kind == KindUnrecognized {
		return nil, false
	}

	if a.current == nil || a.current.has(ev.Kind) ||
		(a.window > 0 && now.Sub(a.current.LastSeen) > a.window) {
		a.current = &Call{FirstSeen: now}
		started = true
	}
	a.current.set(ev)
	a.current.LastSeen = now
	return a.current, started
}

// Current returns the open call, if any.
func (a *Accumulator) Current() *Call {
	return a.current
}
