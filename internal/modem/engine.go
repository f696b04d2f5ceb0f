package modem

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pccr10001/callscreen/pkg/logger"
)

// GateState tells the polling loop whether the line stream currently belongs
// to a command exchange.
type GateState int32

const (
	GateIdle GateState = iota
	GateCommandInFlight
)

func (g GateState) String() string {
	if g == GateCommandInFlight {
		return "CommandInFlight"
	}
	return "Idle"
}

// Request is one AT command exchange. Zero Expected means "OK", zero Timeout
// means the engine default.
type Request struct {
	Command  string
	Expected string
	Timeout  time.Duration
}

type EngineConfig struct {
	PortName        string
	WriteTimeout    time.Duration
	ResponseTimeout time.Duration
}

// Engine frames AT commands and their responses on a single port. Exchanges
// and unsolicited reads are serialised; the gate is only written here.
type Engine struct {
	cfg EngineConfig

	mu     sync.Mutex
	port   Port
	reader *lineReader

	gate atomic.Int32
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 120 * time.Second
	}
	return &Engine{cfg: cfg}
}

// Gate returns the current listener gate state.
func (e *Engine) Gate() GateState {
	return GateState(e.gate.Load())
}

func (e *Engine) attach(port Port) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.port = port
	e.reader = newLineReader(port)
}

func (e *Engine) detach() Port {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.port
	e.port = nil
	e.reader = nil
	return p
}

// ExecuteAT runs cmd expecting OK within the default response timeout.
func (e *Engine) ExecuteAT(cmd string) Result {
	return e.Execute(Request{Command: cmd})
}

// Execute writes req.Command and consumes lines until the expected token, an
// error token or the deadline. Every line read here is discarded so it never
// reaches the event classifier.
func (e *Engine) Execute(req Request) Result {
	return e.ExecuteContext(context.Background(), req)
}

// ExecuteContext is Execute that also gives up when ctx is done. A cancelled
// exchange ends TimedOut with ctx's error as the cause.
func (e *Engine) ExecuteContext(ctx context.Context, req Request) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executeLocked(ctx, req)
}

func (e *Engine) executeLocked(ctx context.Context, req Request) Result {
	if req.Expected == "" {
		req.Expected = ResponseOK
	}
	if req.Timeout <= 0 {
		req.Timeout = e.cfg.ResponseTimeout
	}
	if e.port == nil {
		return newResult(req.Command, Rejected, nil, 0, ErrPortClosed)
	}

	e.gate.Store(int32(GateCommandInFlight))
	defer e.gate.Store(int32(GateIdle))

	start := time.Now()
	if err := ctx.Err(); err != nil {
		return newResult(req.Command, TimedOut, nil, 0, err)
	}
	logger.Log.Debugf("[%s] TX: %s", e.cfg.PortName, req.Command)

	if err := e.write([]byte(req.Command + "\r")); err != nil {
		outcome := Rejected
		if isTimeout(err) {
			outcome = TimedOut
		}
		return newResult(req.Command, outcome, nil, time.Since(start), err)
	}

	var lines []string
	for {
		line, ok, err := e.reader.ReadLine()
		if err != nil {
			return newResult(req.Command, Rejected, lines, time.Since(start), err)
		}
		if ok {
			resp := strings.Trim(line, responseCutset)
			if resp != "" {
				logger.Log.Debugf("[%s] RX: %s", e.cfg.PortName, resp)
				lines = append(lines, resp)
			}
			if resp == req.Expected {
				return newResult(req.Command, Acknowledged, lines, time.Since(start), nil)
			}
			if strings.Contains(resp, ResponseError) {
				return newResult(req.Command, Rejected, lines, time.Since(start), nil)
			}
		}
		if time.Since(start) > req.Timeout {
			return newResult(req.Command, TimedOut, lines, time.Since(start), nil)
		}
		if err := ctx.Err(); err != nil {
			return newResult(req.Command, TimedOut, lines, time.Since(start), err)
		}
	}
}

func (e *Engine) write(data []byte) error {
	if e.cfg.WriteTimeout <= 0 {
		if _, err := e.port.Write(data); err != nil {
			return fmt.Errorf("%w: write: %v", ErrTransport, err)
		}
		return nil
	}

	port := e.port
	done := make(chan error, 1)
	go func() {
		_, err := port.Write(data)
		done <- err
	}()

	timer := time.NewTimer(e.cfg.WriteTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: write: %v", ErrTransport, err)
		}
		return nil
	case <-timer.C:
		// The blocked Write may still complete later; discard whatever
		// reached the output queue so it cannot trail the next command.
		if err := port.ResetOutputBuffer(); err != nil {
			logger.Log.Warnf("[%s] Output reset after write timeout failed: %v", e.cfg.PortName, err)
		}
		return fmt.Errorf("%w: write: %w", ErrTransport, ErrTimeout)
	}
}

// ReadUnsolicited reads at most one line while no command is in flight. ok is
// false when nothing complete arrived within the port read timeout.
func (e *Engine) ReadUnsolicited() (line string, ok bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.port == nil {
		return "", false, ErrPortClosed
	}
	if e.Gate() != GateIdle {
		return "", false, nil
	}
	return e.reader.ReadLine()
}

// Flush discards pending input and output on the port.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.port == nil {
		return ErrPortClosed
	}
	e.reader.Reset()
	if err := e.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%w: flush input: %v", ErrTransport, err)
	}
	if err := e.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("%w: flush output: %v", ErrTransport, err)
	}
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
