package screen

import (
	"context"
	"testing"
	"time"

	"github.com/pccr10001/callscreen/internal/blacklist"
	"github.com/pccr10001/callscreen/internal/callerid"
	"github.com/pccr10001/callscreen/internal/modem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor answers from a fixed outcome table and records commands.
type fakeExecutor struct {
	outcomes map[string]modem.Outcome
	commands []string
}

func (f *fakeExecutor) ExecuteContext(ctx context.Context, req modem.Request) modem.Result {
	f.commands = append(f.commands, req.Command)
	if err := ctx.Err(); err != nil {
		return modem.Result{Command: req.Command, Outcome: modem.TimedOut, Status: modem.TimedOut.String(), Cause: err}
	}
	outcome, ok := f.outcomes[req.Command]
	if !ok {
		outcome = modem.Acknowledged
	}
	return modem.Result{Command: req.Command, Outcome: outcome, Status: outcome.String()}
}

type lists blacklist.Lists

func (l lists) Load() (blacklist.Lists, error) { return blacklist.Lists(l), nil }

var planCommands = []string{"AT+FCLASS=8", "AT+VSD=128,0", "AT+VLS=1", "ATH"}

func TestInterceptor_Sequence(t *testing.T) {
	exec := &fakeExecutor{}
	i := NewInterceptor(exec, time.Second)
	var states []State
	i.OnTransition = func(from, to State) {
		if len(states) == 0 {
			states = append(states, from)
		}
		states = append(states, to)
	}

	rec := i.Intercept(context.Background())

	assert.Equal(t, planCommands, exec.commands)
	assert.Equal(t, []State{StateIdle, StateSeizing, StateVoiceMode, StateAnswerMode, StateHangingUp, StateIdle}, states)
	assert.Equal(t, StateIdle, i.State())
	assert.True(t, rec.HungUp())
	assert.Empty(t, rec.Failed())
	require.Len(t, rec.Steps, 4)
	assert.Equal(t, "Seizing", rec.Steps[0].State)
	assert.Equal(t, "HangingUp", rec.Steps[3].State)
	require.NotNil(t, i.Last())
	assert.Equal(t, rec.Steps, i.Last().Steps)
}

func TestInterceptor_FailuresStillHangUp(t *testing.T) {
	tests := []struct {
		name     string
		outcomes map[string]modem.Outcome
		failed   int
		hungUp   bool
	}{
		{"seize rejected", map[string]modem.Outcome{"AT+FCLASS=8": modem.Rejected}, 1, true},
		{"every setup step fails", map[string]modem.Outcome{
			"AT+FCLASS=8":  modem.TimedOut,
			"AT+VSD=128,0": modem.Rejected,
			"AT+VLS=1":     modem.TimedOut,
		}, 3, true},
		{"hang-up fails", map[string]modem.Outcome{"ATH": modem.TimedOut}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{outcomes: tt.outcomes}
			i := NewInterceptor(exec, time.Second)

			rec := i.Intercept(context.Background())

			assert.Equal(t, planCommands, exec.commands)
			assert.Len(t, rec.Failed(), tt.failed)
			assert.Equal(t, tt.hungUp, rec.HungUp())
			assert.Equal(t, StateIdle, i.State())
		})
	}
}

func TestInterceptor_Repeated(t *testing.T) {
	exec := &fakeExecutor{outcomes: map[string]modem.Outcome{"AT+FCLASS=8": modem.Rejected}}
	i := NewInterceptor(exec, 0)

	i.Intercept(context.Background())
	i.Intercept(context.Background())

	assert.Len(t, exec.commands, 8)
	assert.Equal(t, StateIdle, i.State())
}

func TestInterceptor_Cancelled(t *testing.T) {
	exec := &fakeExecutor{}
	i := NewInterceptor(exec, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := i.Intercept(ctx)

	assert.Equal(t, planCommands, exec.commands)
	assert.Len(t, rec.Failed(), 4)
	assert.False(t, rec.HungUp())
	assert.Equal(t, StateIdle, i.State())
}

func newScreener(l lists, exec *fakeExecutor) *Screener {
	oracle := blacklist.NewOracle(l, blacklist.DefaultPolicy())
	return NewScreener(oracle, NewInterceptor(exec, time.Second))
}

func TestScreener(t *testing.T) {
	tests := []struct {
		name        string
		lists       lists
		line        string
		evaluated   bool
		intercepted bool
		reason      blacklist.Reason
	}{
		{"toll-free number", lists{}, "NMBR=8005551234", true, true, blacklist.ReasonNumberAreaCodeMatched},
		{"listed number", lists{Numbers: []string{"5551234"}}, "NMBR=5551234", true, true, blacklist.ReasonNumberMatched},
		{"clean number", lists{Numbers: []string{"5551234"}}, "NMBR=5550000", true, false, blacklist.ReasonNoMatch},
		{"name not listed", lists{Names: []string{"SPAM"}}, "NAME=JOHN DOE", true, false, blacklist.ReasonNoMatch},
		{"name listed", lists{Names: []string{"DOE"}}, "NAME=JOHN DOE", true, true, blacklist.ReasonNameMatched},
		{"date ignored", lists{Numbers: []string{"1019"}}, "DATE=1019", false, false, ""},
		{"ring ignored", lists{}, "RING", false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			s := newScreener(tt.lists, exec)

			v := s.Screen(context.Background(), callerid.Classify(tt.line))

			assert.Equal(t, tt.evaluated, v.Evaluated)
			assert.Equal(t, tt.reason, v.Decision.Reason)
			assert.Equal(t, tt.intercepted, v.Blocked())
			if tt.intercepted {
				require.NotNil(t, v.Interception)
				assert.Equal(t, planCommands, exec.commands)
			} else {
				assert.Nil(t, v.Interception)
				assert.Empty(t, exec.commands)
			}
		})
	}
}
