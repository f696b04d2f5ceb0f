package modem

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransport covers open, write, read and close faults on the port.
	ErrTransport = errors.New("transport failure")
	// ErrTimeout means no expected or error line arrived before the deadline.
	ErrTimeout = errors.New("protocol timeout")
	// ErrRejected means the modem answered with an error token.
	ErrRejected = errors.New("protocol rejected")
	// ErrPortClosed is returned when a command is issued on a closed session.
	ErrPortClosed = fmt.Errorf("%w: port not open", ErrTransport)
)

// Outcome is the single result of one command exchange.
type Outcome int

const (
	Acknowledged Outcome = iota
	Rejected
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Acknowledged:
		return "Acknowledged"
	case Rejected:
		return "Rejected"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Result records one exchange. Cause is set when the outcome was produced by
// a transport fault rather than a modem response.
type Result struct {
	Command  string        `json:"command"`
	Outcome  Outcome       `json:"-"`
	Status   string        `json:"outcome"`
	Lines    []string      `json:"lines,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	Cause    error         `json:"-"`
	CauseMsg string        `json:"cause,omitempty"`
}

func newResult(cmd string, outcome Outcome, lines []string, elapsed time.Duration, cause error) Result {
	r := Result{
		Command: cmd,
		Outcome: outcome,
		Status:  outcome.String(),
		Lines:   lines,
		Elapsed: elapsed,
		Cause:   cause,
	}
	if cause != nil {
		r.CauseMsg = cause.Error()
	}
	return r
}

// OK reports whether the modem acknowledged the command.
func (r Result) OK() bool {
	return r.Outcome == Acknowledged
}

// Err maps the outcome onto the error taxonomy. It is nil for Acknowledged.
func (r Result) Err() error {
	switch {
	case r.Outcome == Acknowledged:
		return nil
	case r.Cause != nil:
		return fmt.Errorf("%s: %w", r.Command, r.Cause)
	case r.Outcome == TimedOut:
		return fmt.Errorf("%s: %w", r.Command, ErrTimeout)
	default:
		return fmt.Errorf("%s: %w", r.Command, ErrRejected)
	}
}
