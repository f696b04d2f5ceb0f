// Package screen decides what to do with a caller-ID event and, for blocked
// callers, seizes the line and hangs up.
package screen

import (
	"context"
	"sync"
	"time"

	"github.com/pccr10001/callscreen/internal/modem"
	"github.com/pccr10001/callscreen/pkg/logger"
)

type State int

const (
	StateIdle State = iota
	StateSeizing
	StateVoiceMode
	StateAnswerMode
	StateHangingUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSeizing:
		return "Seizing"
	case StateVoiceMode:
		return "VoiceMode"
	case StateAnswerMode:
		return "AnswerMode"
	case StateHangingUp:
		return "HangingUp"
	default:
		return "Unknown"
	}
}

// Step is one command of the interception sequence.
type Step struct {
	State   State
	Command string
}

// Plan seizes the line, enters voice mode, answers and hangs up. The hang-up
// step is last and always runs.
var Plan = []Step{
	{StateSeizing, modem.ATVoiceClass},
	{StateVoiceMode, modem.ATNoSilence},
	{StateAnswerMode, modem.ATAnswerLine},
	{StateHangingUp, modem.ATHangup},
}

// Executor runs one command exchange. *modem.Engine implements it.
type Executor interface {
	ExecuteContext(ctx context.Context, req modem.Request) modem.Result
}

type StepResult struct {
	State string `json:"state"`
	modem.Result
}

// Interception is the record of one run of the plan.
type Interception struct {
	Steps    []StepResult `json:"steps"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
}

// HungUp reports whether the final hang-up was acknowledged.
func (i Interception) HungUp() bool {
	if len(i.Steps) == 0 {
		return false
	}
	last := i.Steps[len(i.Steps)-1]
	return last.Command == modem.ATHangup && last.OK()
}

// Failed returns the steps the modem did not acknowledge.
func (i Interception) Failed() []StepResult {
	var failed []StepResult
	for _, s := range i.Steps {
		if !s.OK() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Interceptor walks the plan. Each step is best-effort: a failure is logged
// and the next step runs anyway.
type Interceptor struct {
	exec    Executor
	timeout time.Duration

	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)

	mu    sync.Mutex
	state State
	last  *Interception
}

// NewInterceptor uses timeout per step; zero means the executor default.
func NewInterceptor(exec Executor, timeout time.Duration) *Interceptor {
	return &Interceptor{exec: exec, timeout: timeout}
}

func (i *Interceptor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Last returns the most recent interception, or nil.
func (i *Interceptor) Last() *Interception {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.last
}

func (i *Interceptor) transition(to State) {
	i.mu.Lock()
	from := i.state
	i.state = to
	cb := i.OnTransition
	i.mu.Unlock()
	if cb != nil {
		cb(from, to)
	}
}

// Intercept runs every step of the plan in order and returns to Idle. When
// ctx is done the remaining steps end at once without reaching the modem;
// the session hangs up on shutdown.
func (i *Interceptor) Intercept(ctx context.Context) Interception {
	logger.Log.Info("Blocked caller, answering to hang up")
	rec := Interception{Started: time.Now()}

	for _, step := range Plan {
		i.transition(step.State)
		res := i.exec.ExecuteContext(ctx, modem.Request{Command: step.Command, Timeout: i.timeout})
		if !res.OK() {
			logger.Log.Errorf("%s step failed: %v", step.State, res.Err())
		}
		rec.Steps = append(rec.Steps, StepResult{State: step.State.String(), Result: res})
	}
	i.transition(StateIdle)

	rec.Finished = time.Now()
	if rec.HungUp() {
		logger.Log.Info("Call terminated")
	} else {
		logger.Log.Error("Unable to hang up the call")
	}

	i.mu.Lock()
	i.last = &rec
	i.mu.Unlock()
	return rec
}
