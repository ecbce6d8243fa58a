package domain

import (
	"errors"
	"fmt"
	"time"
)

// RangePresetDays are the enumerated preset day counts accepted by the API.
var RangePresetDays = []int{7, 30, 60, 365}

const (
	// MaxRangeDays bounds the inclusive span of any date range.
	MaxRangeDays = 365
	// DefaultRangeDays is used when a request specifies no range at all.
	DefaultRangeDays = MaxRangeDays

	ymdLayout = "2006-01-02"
)

// ErrUntilBeforeSince is returned when an explicit range is reversed.
var ErrUntilBeforeSince = errors.New("`until` must be on/after `since`")

// DateRange is a validated inclusive UTC day range. Since is the UTC
// midnight instant of the first day; Until is one millisecond before the
// UTC midnight of the day after the last day.
type DateRange struct {
	Since         time.Time
	Until         time.Time
	DaysInclusive int
}

// SinceIso returns the range start as an ISO-8601 instant with millisecond
// precision, matching the upstream API's expectations.
func (r DateRange) SinceIso() string {
	return r.Since.UTC().Format("2006-01-02T15:04:05.000Z")
}

// UntilIso returns the range end as an ISO-8601 instant.
func (r DateRange) UntilIso() string {
	return r.Until.UTC().Format("2006-01-02T15:04:05.000Z")
}

// IsPresetDays reports whether days is one of the enumerated presets.
func IsPresetDays(days int) bool {
	for _, preset := range RangePresetDays {
		if days == preset {
			return true
		}
	}
	return false
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RangeFromPreset builds a range ending at the end of now's UTC day and
// spanning days inclusive days backward. The caller is responsible for
// checking days against the preset set.
func RangeFromPreset(days int, now time.Time) DateRange {
	today := startOfUTCDay(now)
	return DateRange{
		Since:         today.AddDate(0, 0, -(days - 1)),
		Until:         today.AddDate(0, 0, 1).Add(-time.Millisecond),
		DaysInclusive: days,
	}
}

func parseYmd(name, value string) (time.Time, error) {
	t, err := time.ParseInLocation(ymdLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid `%s` (expected YYYY-MM-DD)", name)
	}
	return t, nil
}

// RangeFromYmd builds a range from an explicit inclusive since/until pair
// in YYYY-MM-DD form. Malformed dates, a reversed pair, or a span beyond
// maxDaysInclusive fail with a descriptive error.
func RangeFromYmd(sinceYmd, untilYmd string, maxDaysInclusive int) (DateRange, error) {
	since, err := parseYmd("since", sinceYmd)
	if err != nil {
		return DateRange{}, err
	}
	until, err := parseYmd("until", untilYmd)
	if err != nil {
		return DateRange{}, err
	}

	daysInclusive := int(until.Sub(since)/(24*time.Hour)) + 1
	if daysInclusive < 1 {
		return DateRange{}, ErrUntilBeforeSince
	}
	if daysInclusive > maxDaysInclusive {
		return DateRange{}, fmt.Errorf("date range must be %d days or less", maxDaysInclusive)
	}

	return DateRange{
		Since:         since,
		Until:         until.AddDate(0, 0, 1).Add(-time.Millisecond),
		DaysInclusive: daysInclusive,
	}, nil
}
