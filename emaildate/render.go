package emaildate

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

// Layouts accepted by RenderCET for the incoming instant. The canonical
// layout produced by Parse comes first.
var instantLayouts = [...]string{
	CanonicalLayout,
	time.RFC3339Nano,
	time.RFC3339,
}

const regionName = "Europe/Berlin"

var (
	regionOnce sync.Once
	regionLoc  *time.Location
)

func regionLocation() *time.Location {
	regionOnce.Do(func() {
		loc, err := time.LoadLocation(regionName)
		if err != nil {
			loc = time.FixedZone("CET", 3600)
		}
		regionLoc = loc
	})
	return regionLoc
}

// RenderCET renders a canonical instant in Central European civil time,
// e.g. "Wed, 03 Dec 2025 14:42:50 +0100 (CET)". The zone abbreviation
// follows the seasonal offset: +0200 renders as CEST, the standard +0100
// as CET. Absent or unparseable input yields "".
func RenderCET(instant string) string {
	trimmed := strings.TrimSpace(instant)
	if trimmed == "" {
		return ""
	}

	var (
		t   time.Time
		err error
	)
	for _, layout := range instantLayouts {
		if t, err = time.Parse(layout, trimmed); err == nil {
			break
		}
	}
	if err != nil {
		return ""
	}

	local := t.In(regionLocation())
	utc := t.UTC()

	offset := civilOffsetMinutes(local, utc)
	zone := "CET"
	if offset == 120 {
		zone = "CEST"
	}

	return fmt.Sprintf("%s, %02d %s %d %02d:%02d:%02d %s (%s)",
		local.Weekday().String()[:3],
		local.Day(),
		local.Month().String()[:3],
		local.Year(),
		local.Hour(), local.Minute(), local.Second(),
		formatOffset(offset),
		zone)
}

// civilOffsetMinutes derives the UTC offset by comparing the two wall-clock
// renderings of the same instant. Near midnight the local calendar day can
// differ from the UTC one, so the raw minutes-of-day delta is corrected by
// a full day before being normalized into [-720, 720].
func civilOffsetMinutes(local, utc time.Time) int {
	localMinutes := local.Hour()*60 + local.Minute()
	utcMinutes := utc.Hour()*60 + utc.Minute()
	offset := localMinutes - utcMinutes

	localDay := local.Year()*1000 + local.YearDay()
	utcDay := utc.Year()*1000 + utc.YearDay()
	if localDay > utcDay {
		offset += 24 * 60
	} else if localDay < utcDay {
		offset -= 24 * 60
	}

	for offset > 720 {
		offset -= 24 * 60
	}
	for offset < -720 {
		offset += 24 * 60
	}
	return offset
}

func formatOffset(minutes int) string {
	sign := "+"
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%s%02d%02d", sign, minutes/60, minutes%60)
}
