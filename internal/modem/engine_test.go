package modem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pccr10001/callscreen/internal/modem/modemtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(port Port) *Engine {
	e := NewEngine(EngineConfig{PortName: "test", ResponseTimeout: 200 * time.Millisecond})
	e.attach(port)
	return e
}

func TestEngine_Execute(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string][]string
		req       Request
		want      Outcome
	}{
		{
			name: "echo then OK",
			req:  Request{Command: "ATV1"},
			want: Acknowledged,
		},
		{
			name:      "verbose chatter before OK",
			overrides: map[string][]string{"ATI3": {"ATI3", "", "U.S. Robotics 56K Voice", "OK"}},
			req:       Request{Command: "ATI3"},
			want:      Acknowledged,
		},
		{
			name:      "noise byte around OK",
			overrides: map[string][]string{"AT+VLS=1": {"AT+VLS=1", "\x10OK\x10"}},
			req:       Request{Command: "AT+VLS=1"},
			want:      Acknowledged,
		},
		{
			name:      "error token",
			overrides: map[string][]string{"AT+FCLASS=8": {"AT+FCLASS=8", "ERROR"}},
			req:       Request{Command: "AT+FCLASS=8"},
			want:      Rejected,
		},
		{
			name:      "error substring",
			overrides: map[string][]string{"AT+VSD=128,0": {"+CME ERROR: 4"}},
			req:       Request{Command: "AT+VSD=128,0"},
			want:      Rejected,
		},
		{
			name:      "custom expected token",
			overrides: map[string][]string{"AT+VLS=1": {"AT+VLS=1", "VCON"}},
			req:       Request{Command: "AT+VLS=1", Expected: "VCON"},
			want:      Acknowledged,
		},
		{
			name:      "OK is not the custom token",
			overrides: map[string][]string{"AT+VLS=1": {"AT+VLS=1", "OK"}},
			req:       Request{Command: "AT+VLS=1", Expected: "VCON", Timeout: 30 * time.Millisecond},
			want:      TimedOut,
		},
		{
			name:      "no response",
			overrides: map[string][]string{"ATH": nil},
			req:       Request{Command: "ATH", Timeout: 30 * time.Millisecond},
			want:      TimedOut,
		},
		{
			name:      "chatter without terminator",
			overrides: map[string][]string{"ATZ3": {"ATZ3", "RING", "RING"}},
			req:       Request{Command: "ATZ3", Timeout: 30 * time.Millisecond},
			want:      TimedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := modemtest.New(modemtest.Hayes(tt.overrides))
			e := newTestEngine(port)

			res := e.Execute(tt.req)

			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, tt.want.String(), res.Status)
			assert.Equal(t, tt.req.Command, res.Command)
			assert.Equal(t, GateIdle, e.Gate())
			assert.Equal(t, []string{tt.req.Command}, port.Commands())
		})
	}
}

func TestEngine_TimeoutIsBounded(t *testing.T) {
	port := modemtest.New(modemtest.Hayes(map[string][]string{"AT": nil}))
	e := newTestEngine(port)

	start := time.Now()
	res := e.Execute(Request{Command: "AT", Timeout: 50 * time.Millisecond})

	assert.Equal(t, TimedOut, res.Outcome)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, errors.Is(res.Err(), ErrTimeout))
}

func TestEngine_TransportFaults(t *testing.T) {
	t.Run("write failure", func(t *testing.T) {
		port := modemtest.New(modemtest.Hayes(nil))
		port.SetWriteError(errors.New("device unplugged"))
		e := newTestEngine(port)

		res := e.Execute(Request{Command: "ATH"})

		assert.Equal(t, Rejected, res.Outcome)
		assert.True(t, errors.Is(res.Err(), ErrTransport))
		assert.Equal(t, GateIdle, e.Gate())
	})

	t.Run("read failure", func(t *testing.T) {
		port := modemtest.New(modemtest.Hayes(nil))
		port.SetReadError(errors.New("i/o error"))
		e := newTestEngine(port)

		res := e.Execute(Request{Command: "ATH"})

		assert.Equal(t, Rejected, res.Outcome)
		assert.True(t, errors.Is(res.Err(), ErrTransport))
		assert.Equal(t, GateIdle, e.Gate())
	})

	t.Run("closed session", func(t *testing.T) {
		e := NewEngine(EngineConfig{PortName: "test"})

		res := e.ExecuteAT("ATH")

		assert.Equal(t, Rejected, res.Outcome)
		assert.True(t, errors.Is(res.Err(), ErrPortClosed))
		assert.Equal(t, GateIdle, e.Gate())
	})
}

type blockingPort struct {
	*modemtest.Port
	release chan struct{}
}

func (b *blockingPort) Write(p []byte) (int, error) {
	<-b.release
	return len(p), nil
}

func TestEngine_WriteTimeout(t *testing.T) {
	port := &blockingPort{Port: modemtest.New(nil), release: make(chan struct{})}
	defer close(port.release)

	e := NewEngine(EngineConfig{PortName: "test", WriteTimeout: 20 * time.Millisecond})
	e.attach(port)

	res := e.ExecuteAT("AT")

	assert.Equal(t, TimedOut, res.Outcome)
	assert.True(t, errors.Is(res.Err(), ErrTransport))
	assert.True(t, errors.Is(res.Err(), ErrTimeout))
	assert.Equal(t, GateIdle, e.Gate())
	assert.Equal(t, 1, port.OutputResets())
}

func TestEngine_ResponseLinesAreConsumed(t *testing.T) {
	port := modemtest.New(modemtest.Hayes(map[string][]string{
		"AT+VCID=1": {"AT+VCID=1", "NMBR=5551234", "OK"},
	}))
	e := newTestEngine(port)

	res := e.ExecuteAT("AT+VCID=1")
	require.True(t, res.OK())
	assert.Equal(t, []string{"AT+VCID=1", "NMBR=5551234", "OK"}, res.Lines)

	line, ok, err := e.ReadUnsolicited()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, line)
}

func TestEngine_GateDuringExchange(t *testing.T) {
	var seen GateState
	port := modemtest.New(nil)
	e := newTestEngine(port)
	port.SetResponder(func(cmd string) []string {
		seen = e.Gate()
		return []string{"OK"}
	})

	res := e.ExecuteAT("AT")

	require.True(t, res.OK())
	assert.Equal(t, GateCommandInFlight, seen)
	assert.Equal(t, GateIdle, e.Gate())
}

func TestEngine_ReadUnsolicited(t *testing.T) {
	port := modemtest.New(nil)
	e := newTestEngine(port)

	port.InjectRaw("NMBR=800")
	line, ok, err := e.ReadUnsolicited()
	require.NoError(t, err)
	assert.False(t, ok, "partial line must wait for its terminator")

	port.InjectRaw("5551234\r\n")
	line, ok, err = e.ReadUnsolicited()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "NMBR=8005551234\r", line)
}

func TestEngine_Flush(t *testing.T) {
	port := modemtest.New(nil)
	e := newTestEngine(port)
	port.Inject("RING")

	require.NoError(t, e.Flush())

	_, ok, err := e.ReadUnsolicited()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, port.Flushes())
}

// noisyPort emits a DLE byte every millisecond and never a line feed.
type noisyPort struct {
	*modemtest.Port
}

func (n *noisyPort) Read(b []byte) (int, error) {
	time.Sleep(time.Millisecond)
	b[0] = 0x10
	return 1, nil
}

func TestEngine_NoiseWithoutLineFeedTimesOut(t *testing.T) {
	port := &noisyPort{Port: modemtest.New(nil)}
	e := newTestEngine(port)

	done := make(chan Result, 1)
	go func() { done <- e.Execute(Request{Command: "ATH", Timeout: 50 * time.Millisecond}) }()

	select {
	case res := <-done:
		assert.Equal(t, TimedOut, res.Outcome)
		assert.Equal(t, GateIdle, e.Gate())
	case <-time.After(2 * time.Second):
		t.Fatalf("Execute still blocked; gate=%s", e.Gate())
	}

	_, ok, err := e.ReadUnsolicited()
	require.NoError(t, err)
	assert.False(t, ok)
}

type dleReader struct{}

func (dleReader) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = 0x10
	}
	return len(b), nil
}

func TestLineReader_PartialLineIsCapped(t *testing.T) {
	r := newLineReader(dleReader{})

	for range 100 {
		_, ok, err := r.ReadLine()
		require.NoError(t, err)
		require.False(t, ok)
		assert.LessOrEqual(t, r.Buffered(), maxPartialLine)
	}
}

func TestEngine_ExecuteContext(t *testing.T) {
	t.Run("cancelled while waiting", func(t *testing.T) {
		port := modemtest.New(modemtest.Hayes(map[string][]string{"AT+VLS=1": nil}))
		e := newTestEngine(port)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		start := time.Now()
		res := e.ExecuteContext(ctx, Request{Command: "AT+VLS=1", Timeout: 10 * time.Second})

		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, TimedOut, res.Outcome)
		assert.True(t, errors.Is(res.Err(), context.Canceled))
		assert.Equal(t, GateIdle, e.Gate())
	})

	t.Run("already cancelled", func(t *testing.T) {
		port := modemtest.New(modemtest.Hayes(nil))
		e := newTestEngine(port)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := e.ExecuteContext(ctx, Request{Command: "ATH"})

		assert.Equal(t, TimedOut, res.Outcome)
		assert.Empty(t, port.Commands())
		assert.Equal(t, GateIdle, e.Gate())
	})
}
