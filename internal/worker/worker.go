package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/pccr10001/callscreen/internal/callerid"
	"github.com/pccr10001/callscreen/internal/logic"
	"github.com/pccr10001/callscreen/internal/model"
	"github.com/pccr10001/callscreen/internal/modem"
	"github.com/pccr10001/callscreen/internal/repository"
	"github.com/pccr10001/callscreen/internal/screen"
	"github.com/pccr10001/callscreen/pkg/logger"
)

// ErrPanic is returned by Run when the loop recovered from a panic.
var ErrPanic = errors.New("poll loop panicked")

const (
	busyBackoff   = 20 * time.Millisecond
	errorBackoff  = 500 * time.Millisecond
	maxReadErrors = 5
)

// Deps are optional collaborators. Nil members are skipped.
type Deps struct {
	Calls    *repository.CallRepository
	Webhooks *logic.WebhookService
	Bus      *logic.EventBus
}

// Status is a point-in-time view of the worker for the admin API.
type Status struct {
	PortName         string               `json:"port_name"`
	Session          string               `json:"session"`
	Gate             string               `json:"gate"`
	Running          bool                 `json:"running"`
	Events           uint64               `json:"events"`
	Intercepted      uint64               `json:"intercepted"`
	LastEvent        time.Time            `json:"last_event,omitempty"`
	LastCall         *model.Call          `json:"last_call,omitempty"`
	LastInterception *screen.Interception `json:"last_interception,omitempty"`
}

// Worker owns the polling loop: read one unsolicited line, classify it,
// screen it and record the call.
type Worker struct {
	session  *modem.Session
	screener *screen.Screener
	acc      *callerid.Accumulator
	deps     Deps
	now      func() time.Time

	mu          sync.Mutex
	running     bool
	events      uint64
	intercepted uint64
	lastEvent   time.Time
	current     *model.Call
	notified    bool
}

func NewWorker(session *modem.Session, screener *screen.Screener, ringWindow time.Duration, deps Deps) *Worker {
	return &Worker{
		session:  session,
		screener: screener,
		acc:      callerid.NewAccumulator(ringWindow),
		deps:     deps,
		now:      time.Now,
	}
}

// Run polls until ctx is done or the port fails. It returns nil on
// cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.setRunning(true)
	defer w.setRunning(false)

	logger.Log.Infof("[%s] Listening for caller ID", w.session.PortName())

	readErrors := 0
	for {
		select {
		case <-ctx.Done():
			logger.Log.Infof("[%s] Poll loop stopped", w.session.PortName())
			return nil
		default:
		}

		err := w.poll(ctx)
		switch {
		case err == nil:
			readErrors = 0
		case errors.Is(err, ErrPanic), errors.Is(err, modem.ErrPortClosed):
			return err
		default:
			readErrors++
			logger.Log.Errorf("[%s] Read failed (%d/%d): %v", w.session.PortName(), readErrors, maxReadErrors, err)
			if readErrors >= maxReadErrors {
				return fmt.Errorf("%w: %d consecutive read failures: %w", modem.ErrTransport, readErrors, err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorBackoff):
			}
		}
	}
}

func (w *Worker) poll(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("[%s] Panic in poll loop: %v\n%s", w.session.PortName(), r, debug.Stack())
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	engine := w.session.Engine()
	if engine.Gate() == modem.GateCommandInFlight {
		time.Sleep(busyBackoff)
		return nil
	}

	line, ok, err := engine.ReadUnsolicited()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	w.HandleLine(ctx, line)
	return nil
}

// HandleLine processes one unsolicited line. ctx bounds any interception it
// starts.
func (w *Worker) HandleLine(ctx context.Context, line string) {
	ev := callerid.Classify(line)
	if ev.Kind == callerid.KindUnrecognized {
		if s := strings.TrimSpace(line); s != "" {
			logger.Log.Debugf("[%s] Ignored: %q", w.session.PortName(), s)
		}
		return
	}

	logger.Log.Infof("[%s] %s: %s", w.session.PortName(), ev.Kind, ev.Payload)
	now := w.now()
	call, started := w.acc.Add(ev, now)

	w.mu.Lock()
	w.events++
	w.lastEvent = now
	if started || w.current == nil {
		w.current = &model.Call{PortName: w.session.PortName(), FirstSeen: call.FirstSeen}
		w.notified = false
	}
	rec := w.current
	rec.Date, rec.Time, rec.Number, rec.Name = call.Date, call.Time, call.Number, call.Name
	rec.LastSeen = call.LastSeen
	seen := snapshot(rec)
	w.mu.Unlock()

	w.publish(logic.Event{Type: logic.EventCallerID, Event: &ev, Call: seen})

	verdict := w.screener.Screen(ctx, ev)

	w.mu.Lock()
	if verdict.Evaluated && !rec.Blocked {
		rec.Blocked = verdict.Decision.Blocked
		rec.Reason = string(verdict.Decision.Reason)
		rec.Matched = verdict.Decision.Matched
	}
	if verdict.Interception != nil {
		rec.Intercepted = true
		rec.HungUp = verdict.Interception.HungUp()
		if steps, err := json.Marshal(verdict.Interception.Steps); err == nil {
			rec.Steps = string(steps)
		}
		w.intercepted++
	}
	w.persist(rec, started)
	done := snapshot(rec)
	firstAllowed := false
	if verdict.Interception == nil && ev.Kind == callerid.KindNumber && !rec.Blocked && !w.notified {
		w.notified = true
		firstAllowed = true
	}
	w.mu.Unlock()

	switch {
	case verdict.Interception != nil:
		w.publish(logic.Event{Type: logic.EventInterception, Call: done, Interception: verdict.Interception})
		w.notify(done)
	case firstAllowed:
		w.notify(done)
	}
}

// persist is called with w.mu held.
func (w *Worker) persist(rec *model.Call, started bool) {
	if w.deps.Calls == nil {
		return
	}
	var err error
	if started || rec.ID == 0 {
		err = w.deps.Calls.Create(rec)
	} else {
		err = w.deps.Calls.Save(rec)
	}
	if err != nil {
		logger.Log.Errorf("[%s] Failed to save call: %v", w.session.PortName(), err)
	}
}

func (w *Worker) publish(ev logic.Event) {
	if w.deps.Bus != nil {
		w.deps.Bus.Publish(ev)
	}
}

func (w *Worker) notify(rec *model.Call) {
	if w.deps.Webhooks != nil {
		w.deps.Webhooks.Dispatch(rec)
	}
}

func snapshot(rec *model.Call) *model.Call {
	c := *rec
	return &c
}

func (w *Worker) setRunning(v bool) {
	w.mu.Lock()
	w.running = v
	w.mu.Unlock()
}

func (w *Worker) Status() Status {
	w.mu.Lock()
	st := Status{
		PortName:    w.session.PortName(),
		Running:     w.running,
		Events:      w.events,
		Intercepted: w.intercepted,
		LastEvent:   w.lastEvent,
	}
	if w.current != nil {
		st.LastCall = snapshot(w.current)
	}
	w.mu.Unlock()

	st.Session = w.session.State().String()
	st.Gate = w.session.Engine().Gate().String()
	st.LastInterception = w.screener.Interceptor().Last()
	return st
}
