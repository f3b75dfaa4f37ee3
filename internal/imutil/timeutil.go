package imutil

import (
	"fmt"
	"strings"
	"time"
)

// ParsedTime is the result of StrToTime: an absolute instant, whether a
// timezone offset was explicit in the source string, and any residual
// tail text following the recognized timestamp (matching
// purple_str_to_time's out-params for tm, utc-flag, and rest).
type ParsedTime struct {
	When       time.Time
	HasTZ      bool
	Rest       string
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"20060102T15:04:05", // XMPP legacy delayed-delivery timestamp
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// StrToTime parses a leading timestamp out of s, accepting ISO-8601,
// MM/DD/YYYY, and XMPP's legacy delayed-delivery format, matching
// purple_str_to_time. Returns ok=false if no recognized timestamp is
// found at the start of s.
func StrToTime(s string) (ParsedTime, bool) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		n := len(layout)
		if n > len(trimmed) {
			continue
		}
		candidate := trimmed[:n]
		t, err := time.Parse(layout, candidate)
		if err != nil {
			continue
		}
		return ParsedTime{
			When:  t,
			HasTZ: strings.Contains(layout, "Z") || strings.Contains(layout, "07:00"),
			Rest:  strings.TrimSpace(trimmed[n:]),
		}, true
	}
	return ParsedTime{}, false
}

// DateFormatShort renders t the way purple_date_format_short does: a
// locale-agnostic numeric date.
func DateFormatShort(t time.Time) string { return t.Format("01/02/2006") }

// DateFormatLong adds a time-of-day component, matching
// purple_date_format_long.
func DateFormatLong(t time.Time) string { return t.Format("01/02/2006 15:04:05") }

// DateFormatFull adds weekday and month name, matching
// purple_date_format_full.
func DateFormatFull(t time.Time) string { return t.Format("Monday, January 2, 2006 15:04:05") }

// TimeBuild constructs a time.Time from broken-down fields, matching
// purple_time_build (the core's replacement for manually filling a
// struct tm).
func TimeBuild(year, month, day, hour, minute, second int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
}

// StrSecondsToString renders a duration given in seconds as "Hh Mm Ss",
// omitting zero-valued leading units, matching
// purple_str_seconds_to_string.
func StrSecondsToString(totalSeconds int64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	s := totalSeconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// StrWipe overwrites s's backing bytes with zero before the caller
// drops its last reference, matching purple_str_wipe's "zero then free"
// handling of secrets like passwords. Go's garbage collector makes the
// underlying free implicit; the explicit zeroing is the part that
// matters for keeping a secret out of a later heap dump.
func StrWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
