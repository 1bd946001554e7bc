package itinerary

import (
	"regexp"
	"strings"
	"time"
)

// Connection window: an arriving and a departing flight form a legal
// connection when the departure follows the arrival by 30 minutes to 48
// hours, boundaries inclusive.
const (
	MinConnectionMinutes = 30
	MaxConnectionMinutes = 48 * 60
)

// ConnectionReason names which boundary an illegal connection crossed.
type ConnectionReason string

const (
	ConnectionOK       ConnectionReason = ""
	ConnectionTooEarly ConnectionReason = "too-early"
	ConnectionTooShort ConnectionReason = "too-short"
	ConnectionTooLong  ConnectionReason = "too-long"
)

// Connection is the outcome of a connection-time check between two flights.
type Connection struct {
	Valid      bool
	MinutesGap int
	Reason     ConnectionReason
}

var parenCode = regexp.MustCompile(`\([^)]*\)`)

// normalizeCity case-folds a city-ish string, strips parenthesized airport
// codes, and collapses whitespace so "Berlin (BER)" and "berlin" compare
// equal.
func normalizeCity(s string) string {
	s = parenCode.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// SameCity reports whether two locations describe the same place: equal
// normalized city strings, or equal airport codes.
func SameCity(a, b Location) bool {
	if a.Value != "" && a.Value == b.Value {
		return true
	}
	na, nb := normalizeCity(a.cityKey()), normalizeCity(b.cityKey())
	return na != "" && na == nb
}

// CheckConnection computes the gap between prev's arrival and next's
// departure and classifies it against the connection window.
//
// Each clock time is anchored to its flight's own date where one is set,
// falling back to searchDate (YYYY-MM-DD), all in a single UTC frame built
// from explicit numeric components so the result is independent of the host
// timezone. When both flights land on the same calendar day a negative raw
// gap rolls the departure forward 24h once to model an overnight connection;
// a gap that is still negative means the next flight leaves before the
// previous one arrives.
func CheckConnection(prev, next Flight, searchDate string) Connection {
	aY, aMo, aD, ok := splitDate(prev.Date)
	if !ok {
		aY, aMo, aD, ok = splitDate(searchDate)
	}
	if !ok {
		// No usable date at all: anchor to an arbitrary fixed day.
		aY, aMo, aD = 2000, 1, 1
	}
	dY, dMo, dD, ok := splitDate(next.Date)
	if !ok {
		dY, dMo, dD = aY, aMo, aD
	}

	arrH, arrM, ok := splitClock(prev.ArrivalTime)
	if !ok {
		return Connection{Reason: ConnectionTooEarly}
	}
	depH, depM, ok := splitClock(next.DepartureTime)
	if !ok {
		return Connection{Reason: ConnectionTooEarly}
	}

	arrival := time.Date(aY, time.Month(aMo), aD, arrH, arrM, 0, 0, time.UTC)
	departure := time.Date(dY, time.Month(dMo), dD, depH, depM, 0, 0, time.UTC)

	sameDay := aY == dY && aMo == dMo && aD == dD
	gap := int(departure.Sub(arrival).Minutes())
	if gap < 0 && sameDay {
		gap += 24 * 60
	}

	switch {
	case gap < 0:
		return Connection{MinutesGap: gap, Reason: ConnectionTooEarly}
	case gap < MinConnectionMinutes:
		return Connection{MinutesGap: gap, Reason: ConnectionTooShort}
	case gap > MaxConnectionMinutes:
		return Connection{MinutesGap: gap, Reason: ConnectionTooLong}
	}
	return Connection{Valid: true, MinutesGap: gap}
}

// splitDate parses YYYY-MM-DD into numeric components without going through
// timezone-aware parsing.
func splitDate(s string) (year, month, day int, ok bool) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	year, okY := atoi(parts[0])
	month, okM := atoi(parts[1])
	day, okD := atoi(parts[2])
	if !okY || !okM || !okD || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, false
	}
	return year, month, day, true
}

// splitClock parses "HH:MM" or "HHMM" into hour and minute.
func splitClock(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hour, ok = atoi(s[:i])
		if !ok {
			return 0, 0, false
		}
		minute, ok = atoi(s[i+1:])
	} else if len(s) == 4 {
		hour, ok = atoi(s[:2])
		if !ok {
			return 0, 0, false
		}
		minute, ok = atoi(s[2:])
	} else {
		return 0, 0, false
	}
	if !ok || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
