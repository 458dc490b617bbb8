package fx

import "time"

// RateDates lists every calendar date a fetched rate must be persisted under,
// with the primary date used for logging and status reporting.
type RateDates struct {
	Dates   []time.Time
	Primary time.Time
}

// ShouldUpdateToday decides whether the refresh job runs at all for today.
// The only suppressed case is a weekend under BusinessDaysOnly without the
// Monday carry-forward: there the update is pointless because no date would
// receive the rate.
func ShouldUpdateToday(today time.Time, policy Policy) bool {
	if policy.BusinessDaysOnly && isWeekend(today) && !policy.WeekendUsesMondayRate {
		return false
	}
	return true
}

// ResolveRateDates decides which date keys a rate observed today is stored
// under. On a weekend with WeekendUsesMondayRate the single observation is
// written under both today and the upcoming Monday, so weekend postings and
// Monday postings resolve the same value; the Monday is the primary date.
// This intentionally conflates "observed on" with "applicable on" to match
// how the source publishes.
func ResolveRateDates(today time.Time, policy Policy) RateDates {
	if isWeekend(today) && policy.WeekendUsesMondayRate {
		monday := upcomingMonday(today)
		return RateDates{Dates: []time.Time{today, monday}, Primary: monday}
	}
	return RateDates{Dates: []time.Time{today}, Primary: today}
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// upcomingMonday returns d itself when d already is a Monday.
func upcomingMonday(d time.Time) time.Time {
	offset := (8 - int(d.Weekday())) % 7
	return d.AddDate(0, 0, offset)
}
