// Package recur implements the recurrence arithmetic for scheduled
// transactions: stepping a rule forward from a reference date, generating
// bounded occurrence lists for calendar ranges, and deciding when a series
// has run out. All functions are pure; callers own the running occurrence
// count and pass it in explicitly.
package recur

import (
	"errors"
	"fmt"
	"time"
)

type Frequency string

const (
	Daily     Frequency = "DAILY"
	Weekly    Frequency = "WEEKLY"
	Biweekly  Frequency = "BIWEEKLY"
	Monthly   Frequency = "MONTHLY"
	Quarterly Frequency = "QUARTERLY"
	Yearly    Frequency = "YEARLY"
)

// LastDayOfMonth is the DayOfMonth sentinel meaning "the last day of the
// target month", whatever its length.
const LastDayOfMonth = -1

// DefaultRangeLimit caps InRange output when the caller passes limit <= 0.
const DefaultRangeLimit = 100

// Rule describes how a series of dates repeats. It is an immutable value;
// the number of occurrences already produced lives on the owning
// scheduled transaction, not here.
type Rule struct {
	Frequency  Frequency  `json:"frequency"`
	Interval   int        `json:"interval"`
	DayOfWeek  *int       `json:"day_of_week,omitempty"`  // 0=Sunday..6=Saturday, WEEKLY only
	DayOfMonth *int       `json:"day_of_month,omitempty"` // 1-31, or LastDayOfMonth
	EndDate    *time.Time `json:"end_date,omitempty"`     // inclusive cutoff
	EndCount   *int       `json:"end_count,omitempty"`    // max occurrences
}

var (
	ErrInvalidInterval   = errors.New("recurrence interval must be at least 1")
	ErrInvalidDayOfWeek  = errors.New("day of week must be between 0 and 6")
	ErrInvalidDayOfMonth = errors.New("day of month must be -1 or between 1 and 31")
	ErrUnknownFrequency  = errors.New("unknown recurrence frequency")
)

// Validate reports the first constraint violated by the rule. The stepping
// functions themselves never fail on bad input; this is the single checkpoint
// callers run before a rule enters the system.
func (r Rule) Validate() error {
	switch r.Frequency {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, r.Interval)
	}
	if r.DayOfWeek != nil && (*r.DayOfWeek < 0 || *r.DayOfWeek > 6) {
		return fmt.Errorf("%w: got %d", ErrInvalidDayOfWeek, *r.DayOfWeek)
	}
	if r.DayOfMonth != nil && *r.DayOfMonth != LastDayOfMonth && (*r.DayOfMonth < 1 || *r.DayOfMonth > 31) {
		return fmt.Errorf("%w: got %d", ErrInvalidDayOfMonth, *r.DayOfMonth)
	}
	if r.EndCount != nil && *r.EndCount < 1 {
		return fmt.Errorf("end count must be at least 1, got %d", *r.EndCount)
	}
	return nil
}

// Next returns the occurrence that follows from, or nil when the series has
// terminated: either occurrenceCount has exhausted EndCount, or the stepped
// date would land past EndDate. The count check runs first so a spent rule
// never computes a date at all.
func Next(rule Rule, occurrenceCount int, from time.Time) *time.Time {
	if rule.EndCount != nil && occurrenceCount >= *rule.EndCount {
		return nil
	}

	var next time.Time
	switch rule.Frequency {
	case Daily:
		next = from.AddDate(0, 0, rule.Interval)
	case Weekly:
		next = from.AddDate(0, 0, 7*rule.Interval)
		if rule.DayOfWeek != nil {
			// Signed shift onto the target weekday. This can land earlier
			// than the naive +7*interval point when the target day precedes
			// the landed day; that behavior is intentional.
			next = next.AddDate(0, 0, *rule.DayOfWeek-int(next.Weekday()))
		}
	case Biweekly:
		next = from.AddDate(0, 0, 14*rule.Interval)
	case Monthly:
		next = stepByMonths(from, rule.Interval, rule.DayOfMonth)
	case Quarterly:
		next = stepByMonths(from, 3*rule.Interval, rule.DayOfMonth)
	case Yearly:
		next = stepByMonths(from, 12*rule.Interval, rule.DayOfMonth)
	default:
		return nil
	}

	if rule.EndDate != nil && next.After(*rule.EndDate) {
		return nil
	}
	return &next
}

// InRange generates the ascending occurrence dates of the series anchored at
// seriesStart that fall within [rangeStart, rangeEnd], at most limit of them
// (DefaultRangeLimit when limit <= 0).
//
// The generator runs in two phases. The advance phase steps from seriesStart
// until the candidate reaches rangeStart; every candidate passed over charges
// EndCount budget even though nothing is emitted, so occurrences that already
// happened before the window still count as produced. The emit phase then
// collects dates until the window, the limit, or the rule itself is exhausted.
// The candidate itself consumes budget before the step to its successor,
// matching how a consumer charges an occurrence and then asks for the next
// date: an EndCount=N series yields at most N dates in total, never N+1.
func InRange(rule Rule, occurrenceCount int, seriesStart, rangeStart, rangeEnd time.Time, limit int) []time.Time {
	if limit <= 0 {
		limit = DefaultRangeLimit
	}

	count := occurrenceCount
	cur := seriesStart

	// Advance phase: reach the window without emitting.
	for cur.Before(rangeStart) {
		count++
		next := Next(rule, count, cur)
		if next == nil {
			return nil
		}
		if !next.After(cur) {
			// A rule that fails to advance would spin forever; stop instead.
			return nil
		}
		cur = *next
	}

	// Emit phase.
	var out []time.Time
	for !cur.After(rangeEnd) && len(out) < limit {
		if !cur.Before(rangeStart) && (len(out) == 0 || cur.After(out[len(out)-1])) {
			out = append(out, cur)
		}
		count++
		next := Next(rule, count, cur)
		if next == nil || !next.After(cur) {
			break
		}
		cur = *next
	}
	return out
}

// Completed reports whether the series has nothing left to produce: the
// occurrence budget is spent, or now has passed the inclusive end date.
func Completed(rule Rule, occurrenceCount int, now time.Time) bool {
	if rule.EndCount != nil && occurrenceCount >= *rule.EndCount {
		return true
	}
	if rule.EndDate != nil && now.After(*rule.EndDate) {
		return true
	}
	return false
}

// stepByMonths advances from by the given number of months. Without a target
// day this is plain clamped month addition. With a target day the step uses
// due-day semantics: when that day still lies ahead inside from's own month
// it is the next occurrence (a rule due on the last day of the month, stepped
// from Feb 1, is due Feb 29, not a month later); otherwise the months are
// added and the result snapped onto the target day.
func stepByMonths(from time.Time, months int, dayOfMonth *int) time.Time {
	if dayOfMonth == nil {
		return addMonths(from, months)
	}
	if cand := snapDayOfMonth(from, dayOfMonth); cand.After(from) {
		return cand
	}
	return snapDayOfMonth(addMonths(from, months), dayOfMonth)
}

// addMonths adds months calendar months to t, clamping to the end of the
// target month when t's day does not exist there (Jan 31 + 1 month is
// Feb 28/29, never Mar 2/3). Clock time and location are preserved.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	// Anchor on day 1 so AddDate cannot overflow into the following month.
	first := time.Date(y, m, 1, hh, mm, ss, t.Nanosecond(), t.Location()).AddDate(0, months, 0)
	if last := daysInMonth(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// snapDayOfMonth moves t onto the requested day of its month. The sentinel
// and any day beyond the month's length both resolve to the last day. A nil
// day leaves t untouched.
func snapDayOfMonth(t time.Time, dayOfMonth *int) time.Time {
	if dayOfMonth == nil {
		return t
	}
	last := daysInMonth(t.Year(), t.Month())
	day := *dayOfMonth
	if day == LastDayOfMonth || day > last {
		day = last
	}
	if day < 1 {
		day = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(t.Year(), t.Month(), day, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
