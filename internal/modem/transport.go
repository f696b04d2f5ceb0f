package modem

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the part of a serial port the engine needs. go.bug.st/serial's
// Port satisfies it. Read must return (0, nil) when the read timeout expires.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// PortConfig describes how the line is opened.
type PortConfig struct {
	Name         string
	BaudRate     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Opener opens a port. Tests substitute an in-memory port.
type Opener func(cfg PortConfig) (Port, error)

// OpenSerial opens cfg.Name as 8 data bits, no parity, one stop bit and no
// flow control, with the configured read timeout.
func OpenSerial(cfg PortConfig) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTransport, cfg.Name, err)
	}

	// Read timeout ensures line reads wake up
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: set read timeout on %s: %v", ErrTransport, cfg.Name, err)
	}
	return port, nil
}

// maxPartialLine caps how much of an unterminated line is kept. A longer run
// of bytes without LF is noise and is dropped.
const maxPartialLine = 4096

// lineReader splits the port byte stream into LF-terminated lines. A partial
// line survives a read timeout and is completed by later reads.
type lineReader struct {
	r     io.Reader
	buf   []byte
	chunk [256]byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: r}
}

// ReadLine returns the next complete line without its terminator. ok is false
// when the port read timed out or the bytes read so far hold no LF; at most
// one Read is issued per call so callers can check their deadlines.
func (l *lineReader) ReadLine() (line string, ok bool, err error) {
	if line, ok := l.next(); ok {
		return line, true, nil
	}

	n, err := l.r.Read(l.chunk[:])
	if n > 0 {
		l.buf = append(l.buf, l.chunk[:n]...)
		if line, ok := l.next(); ok {
			return line, true, nil
		}
		if len(l.buf) > maxPartialLine {
			l.buf = l.buf[:0]
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: read: %v", ErrTransport, err)
	}
	return "", false, nil
}

func (l *lineReader) next() (string, bool) {
	i := bytes.IndexByte(l.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := string(l.buf[:i])
	l.buf = append(l.buf[:0], l.buf[i+1:]...)
	return line, true
}

// Buffered is the size of the pending partial line.
func (l *lineReader) Buffered() int {
	return len(l.buf)
}

// Reset drops any buffered partial line.
func (l *lineReader) Reset() {
	l.buf = l.buf[:0]
}
