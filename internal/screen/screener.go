package screen

import (
	"context"

	"github.com/pccr10001/callscreen/internal/blacklist"
	"github.com/pccr10001/callscreen/internal/callerid"
	"github.com/pccr10001/callscreen/pkg/logger"
)

// Verdict is what happened to one event. Evaluated is false for event kinds
// the blacklist has no opinion on (date, time, unrecognised).
type Verdict struct {
	Event        callerid.Event     `json:"event"`
	Evaluated    bool               `json:"evaluated"`
	Decision     blacklist.Decision `json:"decision"`
	Interception *Interception      `json:"interception,omitempty"`
}

func (v Verdict) Blocked() bool {
	return v.Evaluated && v.Decision.Blocked
}

// Screener consults the oracle for number and name events and runs the
// interceptor on a blocking decision. Decisions are never cached.
type Screener struct {
	oracle      *blacklist.Oracle
	interceptor *Interceptor
}

func NewScreener(oracle *blacklist.Oracle, interceptor *Interceptor) *Screener {
	return &Screener{oracle: oracle, interceptor: interceptor}
}

func (s *Screener) Interceptor() *Interceptor {
	return s.interceptor
}

func (s *Screener) Screen(ctx context.Context, ev callerid.Event) Verdict {
	v := Verdict{Event: ev}

	switch ev.Kind {
	case callerid.KindNumber:
		d, err := s.oracle.CheckNumber(ev.Payload)
		if err != nil {
			logger.Log.Errorf("Blacklist load failed: %v", err)
		}
		v.Evaluated, v.Decision = true, d
	case callerid.KindName:
		v.Evaluated, v.Decision = true, s.oracle.IsNameBlocked(ev.Payload)
	default:
		return v
	}

	if !v.Decision.Blocked {
		return v
	}

	logger.Log.Infof("%s %q blocked (%s, matched %q)", ev.Kind, ev.Payload, v.Decision.Reason, v.Decision.Matched)
	rec := s.interceptor.Intercept(ctx)
	v.Interception = &rec
	return v
}
