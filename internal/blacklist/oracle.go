package blacklist

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pccr10001/callscreen/pkg/logger"
)

type Reason string

const (
	ReasonNoMatch               Reason = "NoMatch"
	ReasonNumberMatched         Reason = "NumberMatched"
	ReasonNumberAreaCodeMatched Reason = "NumberAreaCodeMatched"
	ReasonNameMatched           Reason = "NameMatched"
	ReasonNameTooShort          Reason = "NameTooShort"
)

// Decision is the verdict for one caller field. Matched holds the list entry
// or prefix that caused the block.
type Decision struct {
	Blocked bool   `json:"blocked"`
	Reason  Reason `json:"reason"`
	Matched string `json:"matched,omitempty"`
}

func allow() Decision {
	return Decision{Reason: ReasonNoMatch}
}

// ShortNamePolicy controls whether a very short caller name alone blocks.
type ShortNamePolicy string

const (
	ShortNameOff ShortNamePolicy = "off"
	// ShortNameAlways blocks short names regardless of the list.
	ShortNameAlways ShortNamePolicy = "always"
	// ShortNameWithList blocks short names only when the name list has at
	// least one usable entry.
	ShortNameWithList ShortNamePolicy = "with_list"
)

func ParseShortNamePolicy(s string) (ShortNamePolicy, error) {
	switch p := ShortNamePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", ShortNameOff:
		return ShortNameOff, nil
	case ShortNameAlways, ShortNameWithList:
		return p, nil
	default:
		return ShortNameOff, fmt.Errorf("unknown short name policy %q", s)
	}
}

type Policy struct {
	TollFreePrefixes   []string
	ShortName          ShortNamePolicy
	ShortNameMinLength int
}

// DefaultPolicy blocks numbers starting with 800 and leaves short names alone.
func DefaultPolicy() Policy {
	return Policy{
		TollFreePrefixes:   []string{"800"},
		ShortName:          ShortNameOff,
		ShortNameMinLength: 3,
	}
}

// Oracle evaluates callers against a Source, loading it on every check so
// list edits apply to the next call.
type Oracle struct {
	src    Source
	policy Policy
}

func NewOracle(src Source, policy Policy) *Oracle {
	if policy.ShortNameMinLength <= 0 {
		policy.ShortNameMinLength = 3
	}
	return &Oracle{src: src, policy: policy}
}

func (o *Oracle) Policy() Policy {
	return o.policy
}

// CheckNumber blocks an exact list match or a number starting with one of
// the toll-free prefixes. Prefix rules still apply when the list fails to
// load; the load error is returned alongside.
func (o *Oracle) CheckNumber(number string) (Decision, error) {
	lists, err := o.src.Load()

	for _, blocked := range lists.Numbers {
		if number == blocked {
			return Decision{Blocked: true, Reason: ReasonNumberMatched, Matched: blocked}, err
		}
	}
	for _, prefix := range o.policy.TollFreePrefixes {
		if prefix != "" && strings.HasPrefix(number, prefix) {
			return Decision{Blocked: true, Reason: ReasonNumberAreaCodeMatched, Matched: prefix}, err
		}
	}
	return allow(), err
}

// IsNumberBlocked is CheckNumber reduced to its verdict.
func (o *Oracle) IsNumberBlocked(number string) bool {
	d, err := o.CheckNumber(number)
	if err != nil {
		logger.Log.Errorf("Blacklist load failed: %v", err)
	}
	return d.Blocked
}

// CheckName blocks when an entry longer than one character, upper-cased, is
// a substring of the upper-cased name. The short-name rule follows the
// policy.
func (o *Oracle) CheckName(name string) (Decision, error) {
	lists, err := o.src.Load()
	name = strings.ToUpper(name)

	usable := 0
	for _, entry := range lists.Names {
		if utf8.RuneCountInString(entry) <= 1 {
			continue
		}
		usable++
		if strings.Contains(name, strings.ToUpper(entry)) {
			return Decision{Blocked: true, Reason: ReasonNameMatched, Matched: entry}, err
		}
	}

	short := utf8.RuneCountInString(name) < o.policy.ShortNameMinLength
	switch {
	case short && o.policy.ShortName == ShortNameAlways,
		short && o.policy.ShortName == ShortNameWithList && usable > 0:
		return Decision{Blocked: true, Reason: ReasonNameTooShort, Matched: name}, err
	}
	return allow(), err
}

// IsNameBlocked is CheckName with load errors logged.
func (o *Oracle) IsNameBlocked(name string) Decision {
	d, err := o.CheckName(name)
	if err != nil {
		logger.Log.Errorf("Blacklist load failed: %v", err)
	}
	return d
}

// Lists returns the current snapshot from the source.
func (o *Oracle) Lists() (Lists, error) {
	return o.src.Load()
}
