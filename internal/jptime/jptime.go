// Package jptime normalizes the publish timestamps the source emits.
// Raw forms observed on listing and article pages:
//
//	11/11(火) 10:00配信
//	24/11/11 10:00
//	11/11 10:00
//	2024/11/11 10:00
//	2024/11/11 10:00:28
//
// Year-less forms get the current year, rolled back one year when that would
// land more than 31 days in the future.
package jptime

import (
	"regexp"
	"strings"
	"time"
)

// JST is the zone every timestamp in the store is expressed in.
var JST = time.FixedZone("JST", 9*60*60)

// Layout is the canonical storage form.
const Layout = "2006/01/02 15:04:05"

var weekdayExpr = regexp.MustCompile(`\([月火水木金土日]\)`)

// layouts to try after cleaning, most specific first. Year-less layouts are
// flagged so the caller-supplied year heuristic applies.
var layouts = []struct {
	format   string
	yearless bool
}{
	{"2006/01/02 15:04:05", false},
	{"06/1/2 15:04", false},
	{"1/2 15:04", true},
	{"2006/1/2 15:04", false},
}

// Clean strips the weekday parenthetical and the delivery marker without
// attempting a parse. Used when a raw date fails to parse but must still be
// stored in readable form.
func Clean(raw string) string {
	s := weekdayExpr.ReplaceAllString(strings.TrimSpace(raw), "")
	s = strings.ReplaceAll(s, "配信", "")
	return strings.TrimSpace(s)
}

// Parse interprets a raw timestamp relative to now. The second return is
// false when no known form matches.
func Parse(raw string, now time.Time) (time.Time, bool) {
	s := Clean(raw)
	if s == "" {
		return time.Time{}, false
	}

	now = now.In(JST)
	for _, l := range layouts {
		t, err := time.ParseInLocation(l.format, s, JST)
		if err != nil {
			continue
		}
		if l.yearless {
			t = t.AddDate(now.Year(), 0, 0)
		}
		if t.After(now.Add(31 * 24 * time.Hour)) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// Format renders a timestamp into the canonical storage form.
func Format(t time.Time) string {
	return t.In(JST).Format(Layout)
}

// Normalize parses raw and reformats it canonically. When raw does not
// parse, the cleaned raw text is returned with ok=false so callers can still
// store something human-readable.
func Normalize(raw string, now time.Time) (string, bool) {
	if t, ok := Parse(raw, now); ok {
		return Format(t), true
	}
	return Clean(raw), false
}
