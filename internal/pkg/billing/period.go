package billing

import "time"

// PeriodEnd computes the subscription period end for a billing cycle. Yearly
// cycles advance the calendar year, everything else advances the calendar
// month. time.AddDate would normalize Feb 29 + 1 year into Mar 1, so the day
// is clamped to the last day of the target month instead.
func PeriodEnd(start time.Time, billingCycle string) time.Time {
	if billingCycle == "yearly" {
		return addCalendarPeriod(start, 1, 0)
	}
	return addCalendarPeriod(start, 0, 1)
}

func addCalendarPeriod(t time.Time, years, months int) time.Time {
	year, month, day := t.Date()

	// Anchor on the first of the target month so month overflow (Dec + 1)
	// normalizes without dragging the day along.
	anchor := time.Date(year+years, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(anchor.Year(), anchor.Month()); day > last {
		day = last
	}

	hour, min, sec := t.Clock()
	return time.Date(anchor.Year(), anchor.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
