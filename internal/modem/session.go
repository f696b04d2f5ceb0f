package modem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pccr10001/callscreen/pkg/logger"
)

type SessionState int

const (
	SessionClosed SessionState = iota
	SessionOpen
)

func (s SessionState) String() string {
	if s == SessionOpen {
		return "Open"
	}
	return "Closed"
}

// shutdownHangupTimeout bounds the final ATH so an unresponsive modem cannot
// stall process exit.
const shutdownHangupTimeout = 5 * time.Second

type SessionConfig struct {
	Port            PortConfig
	ResponseTimeout time.Duration
	InitCommands    []string
}

// Session owns the port for the lifetime of the process: one Open, one
// Initialize, and a Shutdown that is safe to call from every exit path.
type Session struct {
	cfg    SessionConfig
	opener Opener
	engine *Engine

	mu    sync.Mutex
	state SessionState
}

// NewSession prepares a session. A nil opener means OpenSerial.
func NewSession(cfg SessionConfig, opener Opener) *Session {
	if opener == nil {
		opener = OpenSerial
	}
	if len(cfg.InitCommands) == 0 {
		cfg.InitCommands = DefaultInitCommands()
	}
	return &Session{
		cfg:    cfg,
		opener: opener,
		engine: NewEngine(EngineConfig{
			PortName:        cfg.Port.Name,
			WriteTimeout:    cfg.Port.WriteTimeout,
			ResponseTimeout: cfg.ResponseTimeout,
		}),
	}
}

func (s *Session) Engine() *Engine {
	return s.engine
}

func (s *Session) PortName() string {
	return s.cfg.Port.Name
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Open configures and opens the port, then flushes both directions. Failure
// here is the only fatal condition of the screener.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionOpen {
		return fmt.Errorf("%w: %s already open", ErrTransport, s.cfg.Port.Name)
	}

	logger.Log.Infof("Opening %s at %d baud", s.cfg.Port.Name, s.cfg.Port.BaudRate)
	port, err := s.opener(s.cfg.Port)
	if err != nil {
		return err
	}
	s.engine.attach(port)
	s.state = SessionOpen
	logger.Log.Infof("[%s] Port open", s.cfg.Port.Name)

	if err := s.engine.Flush(); err != nil {
		logger.Log.Warnf("[%s] Flush failed: %v", s.cfg.Port.Name, err)
	}
	return nil
}

// Initialize issues the setup sequence in order. Failed steps are logged and
// the sequence continues; every outcome is returned. Once ctx is done no
// further steps are issued.
func (s *Session) Initialize(ctx context.Context) []Result {
	results := make([]Result, 0, len(s.cfg.InitCommands))
	for _, cmd := range s.cfg.InitCommands {
		if ctx.Err() != nil {
			logger.Log.Warnf("[%s] Initialization interrupted before %s", s.cfg.Port.Name, cmd)
			return results
		}
		res := s.engine.ExecuteContext(ctx, Request{Command: cmd})
		if !res.OK() {
			logger.Log.Errorf("[%s] Init step failed: %v", s.cfg.Port.Name, res.Err())
		}
		results = append(results, res)
	}

	if err := s.engine.Flush(); err != nil {
		logger.Log.Warnf("[%s] Flush after init failed: %v", s.cfg.Port.Name, err)
	}
	logger.Log.Infof("[%s] Modem initialized", s.cfg.Port.Name)
	return results
}

// Shutdown hangs up and closes the port if it is open. Calling it again is a
// no-op.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SessionOpen {
		return nil
	}

	timeout := shutdownHangupTimeout
	if s.cfg.ResponseTimeout > 0 && s.cfg.ResponseTimeout < timeout {
		timeout = s.cfg.ResponseTimeout
	}
	if res := s.engine.Execute(Request{Command: ATHangup, Timeout: timeout}); !res.OK() {
		logger.Log.Errorf("[%s] Hang-up on shutdown failed: %v", s.cfg.Port.Name, res.Err())
	}

	port := s.engine.detach()
	s.state = SessionClosed
	if port == nil {
		return nil
	}
	if err := port.Close(); err != nil {
		logger.Log.Errorf("[%s] Unable to close the serial port: %v", s.cfg.Port.Name, err)
		return fmt.Errorf("%w: close %s: %v", ErrTransport, s.cfg.Port.Name, err)
	}
	logger.Log.Infof("[%s] Serial port closed", s.cfg.Port.Name)
	return nil
}
