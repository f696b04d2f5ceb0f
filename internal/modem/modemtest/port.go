// Package modemtest provides an in-memory serial port that behaves like a
// Hayes voice modem for tests.
package modemtest

import (
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrClosed = errors.New("port closed")

// Responder returns the lines the modem emits after receiving cmd.
type Responder func(cmd string) []string

// Hayes echoes every command and answers OK, unless overrides has an entry
// for the command. A nil override entry means the modem stays silent.
func Hayes(overrides map[string][]string) Responder {
	return func(cmd string) []string {
		if lines, ok := overrides[cmd]; ok {
			return lines
		}
		return []string{cmd, "OK"}
	}
}

// Port implements modem.Port. Reads return (0, nil) after ReadDelay when no
// data is pending, like a serial port with a read timeout.
type Port struct {
	ReadDelay time.Duration

	mu        sync.Mutex
	responder Responder
	rx        []byte
	wbuf      []byte
	commands  []string
	readErr   error
	writeErr  error
	closeErr  error
	closed    bool
	flushes   int
	outResets int
}

func New(responder Responder) *Port {
	return &Port{
		ReadDelay: time.Millisecond,
		responder: responder,
	}
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrClosed
	}
	if p.readErr != nil {
		err := p.readErr
		p.mu.Unlock()
		return 0, err
	}
	if len(p.rx) > 0 {
		n := copy(b, p.rx)
		p.rx = p.rx[n:]
		p.mu.Unlock()
		return n, nil
	}
	delay := p.ReadDelay
	p.mu.Unlock()

	time.Sleep(delay)
	return 0, nil
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}

	p.wbuf = append(p.wbuf, b...)
	for {
		i := strings.IndexByte(string(p.wbuf), '\r')
		if i < 0 {
			break
		}
		cmd := string(p.wbuf[:i])
		p.wbuf = p.wbuf[i+1:]
		p.commands = append(p.commands, cmd)
		if p.responder != nil {
			for _, line := range p.responder(cmd) {
				p.rx = append(p.rx, line+"\r\n"...)
			}
		}
	}
	return len(b), nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

func (p *Port) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = nil
	p.flushes++
	return nil
}

func (p *Port) ResetOutputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wbuf = nil
	p.outResets++
	return nil
}

// Inject queues unsolicited lines, CRLF-terminated.
func (p *Port) Inject(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range lines {
		p.rx = append(p.rx, line+"\r\n"...)
	}
}

// InjectRaw queues bytes as-is.
func (p *Port) InjectRaw(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = append(p.rx, data...)
}

// Commands returns every command written so far, without the CR.
func (p *Port) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

func (p *Port) ClearCommands() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = nil
}

func (p *Port) SetResponder(r Responder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responder = r
}

func (p *Port) SetReadError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *Port) SetWriteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

func (p *Port) SetCloseError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeErr = err
}

func (p *Port) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Port) Flushes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushes
}

// OutputResets counts ResetOutputBuffer calls.
func (p *Port) OutputResets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outResets
}
