// Package callerid turns unsolicited modem lines into caller-ID events.
package callerid

import "strings"

type Kind int

const (
	KindUnrecognized Kind = iota
	KindNumber
	KindName
	KindDate
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "Number"
	case KindName:
		return "Name"
	case KindDate:
		return "Date"
	case KindTime:
		return "Time"
	default:
		return "Unrecognized"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Field tags of the formatted caller-ID report (AT+VCID=1).
const (
	TagNumber = "NMBR"
	TagName   = "NAME"
	TagDate   = "DATE"
	TagTime   = "TIME"
)

// tagPrefixLen is the width of "NMBR=" and friends.
const tagPrefixLen = 5

// Event is one classified line.
type Event struct {
	Kind    Kind   `json:"kind"`
	Payload string `json:"payload"`
	Raw     string `json:"raw"`
}

var tags = []struct {
	tag  string
	kind Kind
}{
	{TagNumber, KindNumber},
	{TagName, KindName},
	{TagDate, KindDate},
	{TagTime, KindTime},
}

// Classify recognises a caller-ID line by its tag. A line starting with
// "TAG=" takes that tag; otherwise the first tag found anywhere in the line
// wins. The payload is what follows the 5-character tag prefix, trimmed;
// names are upper-cased. Anything else is KindUnrecognized.
func Classify(raw string) Event {
	line := strings.TrimLeft(raw, " \t\r\n")
	kind := KindUnrecognized
	for _, t := range tags {
		if strings.HasPrefix(line, t.tag+"=") {
			kind = t.kind
			break
		}
	}
	if kind == KindUnrecognized {
		for _, t := range tags {
			if strings.Contains(line, t.tag) {
				kind = t.kind
				break
			}
		}
	}
	if kind == KindUnrecognized {
		return Event{Kind: KindUnrecognized, Raw: raw}
	}

	var payload string
	if len(line) > tagPrefixLen {
		payload = strings.TrimSpace(line[tagPrefixLen:])
	}
	if kind == KindName {
		payload = strings.ToUpper(payload)
	}
	return Event{Kind: kind, Payload: payload, Raw: raw}
}
