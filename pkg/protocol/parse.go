package protocol

import (
	"math"
	"strconv"
	"strings"
)

// Message is a parsed frame.  A message is a set ("$PWM=10,10*"), a query
// ("$PWM?*") or bare ("$END*"), never both a set and a query.
type Message struct {
	Command string
	IsSet   bool
	IsQuery bool
	// Args is everything after '=' up to the end marker; only set messages
	// carry it.
	Args string
}

const minCommandLen = 3

// Parse tokenizes a frame including its markers.  Grammar:
//
//	frame   = "$" command [ "=" args | "?" | "=?" ] anything "*"
//	command = 3*( "A"-"Z" )
//
// "=?" is read as a query.  Text following a query or bare command is
// ignored.  Frames that do not start with a command are rejected.
func Parse(frame string) (Message, bool) {
	if len(frame) < 2 || frame[0] != StartMarker || frame[len(frame)-1] != EndMarker {
		return Message{}, false
	}
	payload := frame[1 : len(frame)-1]

	n := 0
	for n < len(payload) && payload[n] >= 'A' && payload[n] <= 'Z' {
		n++
	}
	if n < minCommandLen {
		return Message{}, false
	}
	msg := Message{Command: payload[:n]}
	rest := payload[n:]

	switch {
	case strings.HasPrefix(rest, "=?"), strings.HasPrefix(rest, "?"):
		msg.IsQuery = true
	case strings.HasPrefix(rest, "="):
		msg.IsSet = true
		msg.Args = rest[1:]
	}
	return msg, true
}

// ParseDutyPair reads "<int>,<int>" from the start of args; anything after
// the second number is ignored.  Numbers too large for an int saturate, so
// they clamp like any other out-of-range duty.
func ParseDutyPair(args string) (left, right int, ok bool) {
	left, rest, ok := leadingInt(args)
	if !ok || !strings.HasPrefix(rest, ",") {
		return 0, 0, false
	}
	right, _, ok = leadingInt(rest[1:])
	if !ok {
		return 0, 0, false
	}
	return left, right, true
}

// leadingInt consumes an optional '-' and at least one digit.
func leadingInt(s string) (v int, rest string, ok bool) {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, s, false
	}
	n, err := strconv.ParseInt(s[:i], 10, 0)
	if err != nil {
		// Only a range error is possible here.
		if s[0] == '-' {
			n = math.MinInt
		} else {
			n = math.MaxInt
		}
	}
	return int(n), s[i:], true
}
