package emaildate

import (
	"testing"
	"time"
)

func TestParse_RFC5322(t *testing.T) {
	got := Parse("Wed, 03 Dec 2025 07:56:11 +0000")
	want := "2025-12-03T07:56:11.000Z"
	if got != want {
		t.Errorf("Parse() = %q, want %q", got, want)
	}
}

func TestParse_OffsetConvertsToUTC(t *testing.T) {
	got := Parse("3 Dec 2025 07:56:11 +0100")
	want := "2025-12-03T06:56:11.000Z"
	if got != want {
		t.Errorf("Parse() = %q, want %q", got, want)
	}
}

func TestParse_WeekdayNoCommaSingleDigitHour(t *testing.T) {
	// Irregular internal spacing and a single-digit hour, asctime style.
	got := Parse("Wed Dec 03  7:56:11 2025")
	want := "2025-12-03T07:56:11.000Z"
	if got != want {
		t.Errorf("Parse() = %q, want %q", got, want)
	}
}

func TestParse_SingleDigitDay(t *testing.T) {
	got := Parse("Wed Dec 3 07:56:11 2025")
	want := "2025-12-03T07:56:11.000Z"
	if got != want {
		t.Errorf("Parse() = %q, want %q", got, want)
	}
}

func TestParse_DayMonthYearNoOffset(t *testing.T) {
	got := Parse("3 Dec 2025 07:56:11")
	want := "2025-12-03T07:56:11.000Z"
	if got != want {
		t.Errorf("Parse() = %q, want %q", got, want)
	}
}

func TestParse_MonthDayYear(t *testing.T) {
	got := Parse("Dec 03 2025 07:56:11")
	want := "2025-12-03T07:56:11.000Z"
	if got != want {
		t.Errorf("Parse() = %q, want %q", got, want)
	}
}

func TestParse_ISOVariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"dashes with T and Z", "2025-12-03T07:56:11Z", "2025-12-03T07:56:11.000Z"},
		{"space separator no offset", "2025-12-03 07:56:11", "2025-12-03T07:56:11.000Z"},
		{"slash separators", "2025/12/03 07:56:11", "2025-12-03T07:56:11.000Z"},
		{"colon offset", "2025-12-03T07:56:11+01:00", "2025-12-03T06:56:11.000Z"},
		{"compact offset", "2025-12-03T07:56:11+0100", "2025-12-03T06:56:11.000Z"},
		{"fractional seconds", "2025-12-03T07:56:11.250Z", "2025-12-03T07:56:11.250Z"},
		{"no seconds", "2025-12-03T07:56", "2025-12-03T07:56:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.input); got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_UnixTimestamps(t *testing.T) {
	seconds := Parse("1701592571")
	millis := Parse("1701592571000")

	if seconds == "" || seconds == "1701592571" {
		t.Fatalf("seconds timestamp not normalized: %q", seconds)
	}
	if seconds != millis {
		t.Errorf("seconds %q and milliseconds %q disagree", seconds, millis)
	}

	want := time.Unix(1701592571, 0).UTC().Format(CanonicalLayout)
	if seconds != want {
		t.Errorf("Parse() = %q, want %q", seconds, want)
	}
}

func TestParse_UnixTimestampBounds(t *testing.T) {
	tests := []string{
		"0",
		"99999999999999",  // past the millisecond cap
		"5000000000",      // seconds beyond ~2100
	}
	for _, input := range tests {
		if got := Parse(input); got != input {
			t.Errorf("Parse(%q) = %q, want identity fallback", input, got)
		}
	}
}

func TestParse_IdentityFallback(t *testing.T) {
	inputs := []string{
		"not a date at all",
		"33:99:99",
		"Wed, 99 Dec 2025 07:56:11 +0000",
		"2025-13-03T07:56:11Z",
		"2025-02-30 10:00:00",
	}
	for _, input := range inputs {
		if got := Parse(input); got != input {
			t.Errorf("Parse(%q) = %q, want the input unchanged", input, got)
		}
	}
}

func TestParse_AbsencePropagation(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		if got := Parse(input); got != "" {
			t.Errorf("Parse(%q) = %q, want empty", input, got)
		}
	}
}

func TestParse_IdempotentOnCanonical(t *testing.T) {
	inputs := []string{
		"Wed, 03 Dec 2025 07:56:11 +0000",
		"1701592571",
		"2025-07-06T22:30:00Z",
	}
	for _, input := range inputs {
		once := Parse(input)
		twice := Parse(once)
		if once != twice {
			t.Errorf("Parse not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestParse_TrailingZoneComment(t *testing.T) {
	got := Parse("Wed, 03 Dec 2025 14:42:50 +0100 (CET)")
	want := "2025-12-03T13:42:50.000Z"
	if got != want {
		t.Errorf("Parse() = %q, want %q", got, want)
	}
}

func TestParseTime(t *testing.T) {
	got, ok := ParseTime("3 Dec 2025 07:56:11 +0100")
	if !ok {
		t.Fatal("ParseTime() reported no match")
	}
	want := time.Date(2025, time.December, 3, 6, 56, 11, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ParseTime() = %v, want %v", got, want)
	}

	if _, ok := ParseTime("nonsense"); ok {
		t.Error("ParseTime() matched nonsense input")
	}
	if _, ok := ParseTime("  "); ok {
		t.Error("ParseTime() matched whitespace input")
	}
}
