// Package emaildate normalizes the free-form Date header values found in
// real-world mail into a canonical UTC instant string, and renders such
// instants in Central European civil time.
//
// Mail servers emit a surprising variety of malformed date strings. The
// parser here tries an ordered chain of recognizers, from the standard
// RFC 5322 shape down to bare Unix timestamps, and falls back to returning
// the input untouched so callers always have something to display.
package emaildate

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CanonicalLayout is the normalized instant representation: UTC with
// millisecond precision.
const CanonicalLayout = "2006-01-02T15:04:05.000Z"

// recognizer attempts to interpret a trimmed date string. A false return
// means "this shape does not match", never an error.
type recognizer func(string) (time.Time, bool)

// Tried in order; the more structurally distinctive shapes come before the
// looser ones so a loose pattern cannot shadow a stricter input.
var recognizers = []recognizer{
	parseGeneric,
	parseWeekdayNoComma,
	parseDayMonthYear,
	parseISOLike,
	parseUnixTimestamp,
	parseMonthDayYear,
}

// Parse converts a raw Date header value into a canonical instant string.
//
// Empty or whitespace-only input yields "". If no recognizer matches, the
// input is returned unchanged so downstream consumers can distinguish
// "present but unparsed" from "absent". Parse never panics and never
// returns an error.
func Parse(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if t, ok := parseTime(trimmed); ok {
		return t.UTC().Format(CanonicalLayout)
	}
	return raw
}

// ParseTime runs the same recognizer chain as Parse and returns the typed
// instant. The second return is false when the input is absent or matched
// no recognizer.
func ParseTime(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	return parseTime(trimmed)
}

func parseTime(trimmed string) (time.Time, bool) {
	for _, try := range recognizers {
		if t, ok := try(trimmed); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// Layout permutations of RFC 5322 section 3.3, tried after net/mail gives
// up. Covers two-digit years and missing-seconds variants that show up in
// older MUAs.
var genericLayouts = [...]string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"_2 Jan 2006 15:04:05 -0700",
	"_2 Jan 2006 15:04:05 MST",
	"_2 Jan 2006 15:04 -0700",
	"_2 Jan 2006 15:04 MST",
	"_2 Jan 06 15:04:05 -0700",
	"_2 Jan 06 15:04:05 MST",
	"Mon, _2 Jan 2006 15:04:05 -0700",
	"Mon, _2 Jan 2006 15:04:05 MST",
	"Mon, _2 Jan 2006 15:04 -0700",
	"Mon, _2 Jan 2006 15:04 MST",
	"Mon, _2 Jan 06 15:04:05 -0700",
	"Mon, _2 Jan 06 15:04:05 MST",
}

// Trailing CFWS comment such as " (CET)".
var trailingCommentRe = regexp.MustCompile(`[ \t]+\(.*\)$`)

// parseGeneric is the cheap common path: Go's RFC 5322 date parser handles
// the standards-compliant majority, and the layout table mops up frequent
// near-misses.
func parseGeneric(s string) (time.Time, bool) {
	if t, err := mail.ParseDate(s); err == nil {
		return t, true
	}

	stripped := trailingCommentRe.ReplaceAllString(s, "")
	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, stripped); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Shape: "Wed Dec 03  7:56:11 2025" (asctime-like, no comma, no offset,
// possibly irregular spacing and single-digit day or hour).
var weekdayNoCommaRe = regexp.MustCompile(
	`^(Mon|Tue|Wed|Thu|Fri|Sat|Sun)\s+([A-Za-z]{3})\s+(\d{1,2})\s+(\d{1,2}):(\d{2}):(\d{2})\s+(\d{4})$`)

func parseWeekdayNoComma(s string) (time.Time, bool) {
	m := weekdayNoCommaRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	// Zero-pad the day and the hour independently before reassembly; the
	// strict layout below requires two digits for both.
	reassembled := fmt.Sprintf("%s, %s %s %s %s:%s:%s +0000",
		m[1], pad2(m[3]), m[2], m[7], pad2(m[4]), m[5], m[6])

	t, err := time.Parse("Mon, 02 Jan 2006 15:04:05 -0700", reassembled)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Shape: "3 Dec 2025 07:56:11" with an optional trailing numeric offset and
// no weekday. Offset defaults to +0000.
var dayMonthYearRe = regexp.MustCompile(
	`^(\d{1,2})\s+([A-Za-z]{3})\s+(\d{4})\s+(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s+([+-]\d{4}))?$`)

func parseDayMonthYear(s string) (time.Time, bool) {
	m := dayMonthYearRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	return assembleNumeric(m[1], m[2], m[3], m[4], m[5], m[6], m[7])
}

// Shape: "Dec 03 2025 07:56:11", optional offset, no weekday.
var monthDayYearRe = regexp.MustCompile(
	`^([A-Za-z]{3})\s+(\d{1,2})\s+(\d{4})\s+(\d{1,2}):(\d{2})(?::(\d{2}))?(?:\s+([+-]\d{4}))?$`)

func parseMonthDayYear(s string) (time.Time, bool) {
	m := monthDayYearRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	return assembleNumeric(m[2], m[1], m[3], m[4], m[5], m[6], m[7])
}

// assembleNumeric builds a "02 Jan 2006 15:04:05 -0700" string from the
// captured fields and validates it with the standard parser, which rejects
// arithmetic nonsense like hour 33 or Feb 30.
func assembleNumeric(day, month, year, hour, minute, second, offset string) (time.Time, bool) {
	if second == "" {
		second = "00"
	}
	if offset == "" {
		offset = "+0000"
	}

	reassembled := fmt.Sprintf("%s %s %s %s:%s:%s %s",
		pad2(day), normalizeMonth(month), year, pad2(hour), minute, second, offset)

	t, err := time.Parse("02 Jan 2006 15:04:05 -0700", reassembled)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func normalizeMonth(month string) string {
	if len(month) < 3 {
		return month
	}
	return strings.ToUpper(month[:1]) + strings.ToLower(month[1:3])
}

// ISO-ish shape: "-" or "/" date separators, "T" or space between date and
// time, optional fractional seconds, optional "Z" / "+HH:MM" / "+HHMM"
// offset. Defaults to UTC when no offset is present.
var isoLikeRe = regexp.MustCompile(
	`^(\d{4})([-/])(\d{1,2})[-/](\d{1,2})[T ](\d{1,2}):(\d{2})(?::(\d{2})(?:\.(\d{1,9}))?)?\s*(Z|z|[+-]\d{2}:?\d{2})?$`)

func parseISOLike(s string) (time.Time, bool) {
	m := isoLikeRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	hour, _ := strconv.Atoi(m[5])
	minute, _ := strconv.Atoi(m[6])

	second := 0
	if m[7] != "" {
		second, _ = strconv.Atoi(m[7])
	}

	nanos := 0
	if m[8] != "" {
		frac := m[8]
		for len(frac) < 9 {
			frac += "0"
		}
		nanos, _ = strconv.Atoi(frac)
	}

	loc, ok := offsetLocation(m[9])
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, nanos, loc)

	// time.Date normalizes out-of-range fields (month 13 rolls into the
	// next year), so an exact round-trip check is the validity test.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, false
	}
	return t, true
}

func offsetLocation(spec string) (*time.Location, bool) {
	switch spec {
	case "", "Z", "z":
		return time.UTC, true
	}

	sign := 1
	if spec[0] == '-' {
		sign = -1
	}
	digits := strings.Replace(spec[1:], ":", "", 1)
	if len(digits) != 4 {
		return nil, false
	}

	hours, err := strconv.Atoi(digits[:2])
	if err != nil {
		return nil, false
	}
	minutes, err := strconv.Atoi(digits[2:])
	if err != nil {
		return nil, false
	}
	if hours > 14 || minutes > 59 {
		return nil, false
	}

	return time.FixedZone("", sign*(hours*3600+minutes*60)), true
}

// Unix timestamp bounds: positive through roughly the year 2100.
const (
	maxUnixSeconds = 4102444800
	msThreshold    = 10_000_000_000
)

var digitsRe = regexp.MustCompile(`^\d{1,13}$`)

// parseUnixTimestamp interprets a bare digit string as a Unix timestamp:
// values under ten billion are seconds, larger values are milliseconds.
// Values outside (0, ~2100] are rejected so unrelated numeric strings are
// not mistaken for dates.
func parseUnixTimestamp(s string) (time.Time, bool) {
	if !digitsRe.MatchString(s) {
		return time.Time{}, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return time.Time{}, false
	}

	if v < msThreshold {
		if v > maxUnixSeconds {
			return time.Time{}, false
		}
		return time.Unix(v, 0).UTC(), true
	}

	if v > maxUnixSeconds*1000 {
		return time.Time{}, false
	}
	return time.UnixMilli(v).UTC(), true
}
