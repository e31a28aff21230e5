package recur

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// rruleWeekdays maps our Sunday=0 day-of-week scheme onto rrule weekdays.
var rruleWeekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RRuleString renders the rule as an RFC 5545 RRULE property value so it can
// travel to calendar clients. BIWEEKLY has no RFC 5545 frequency of its own
// and is exported as WEEKLY with a doubled interval; parsing the result back
// therefore yields a WEEKLY rule.
func (r Rule) RRuleString(dtstart time.Time) (string, error) {
	opt := rrule.ROption{
		Dtstart:  dtstart,
		Interval: r.Interval,
	}

	switch r.Frequency {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		if r.DayOfWeek != nil && *r.DayOfWeek >= 0 && *r.DayOfWeek <= 6 {
			opt.Byweekday = []rrule.Weekday{rruleWeekdays[*r.DayOfWeek]}
		}
	case Biweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2 * r.Interval
	case Monthly:
		opt.Freq = rrule.MONTHLY
	case Quarterly:
		opt.Freq = rrule.MONTHLY
		opt.Interval = 3 * r.Interval
	case Yearly:
		opt.Freq = rrule.YEARLY
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, r.Frequency)
	}

	switch r.Frequency {
	case Monthly, Quarterly, Yearly:
		if r.DayOfMonth != nil {
			// RFC 5545 uses -1 for the last day of the month as well.
			opt.Bymonthday = []int{*r.DayOfMonth}
		}
	}

	if r.EndCount != nil {
		opt.Count = *r.EndCount
	}
	if r.EndDate != nil {
		opt.Until = *r.EndDate
	}

	rr, err := rrule.NewRRule(opt)
	if err != nil {
		return "", fmt.Errorf("failed to build RRULE: %w", err)
	}
	return rr.String(), nil
}

// ParseRRuleString converts an RFC 5545 RRULE string (with or without the
// "RRULE:" prefix) into a Rule. Only the subset the engine understands is
// carried over: frequency, interval, a single BYDAY weekday, a single
// BYMONTHDAY, COUNT and UNTIL.
func ParseRRuleString(s string) (Rule, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")

	opt, err := rrule.StrToROption(s)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to parse RRULE: %w", err)
	}

	var rule Rule
	switch opt.Freq {
	case rrule.DAILY:
		rule.Frequency = Daily
	case rrule.WEEKLY:
		rule.Frequency = Weekly
	case rrule.MONTHLY:
		rule.Frequency = Monthly
	case rrule.YEARLY:
		rule.Frequency = Yearly
	default:
		return Rule{}, fmt.Errorf("%w: unsupported RRULE frequency", ErrUnknownFrequency)
	}

	rule.Interval = opt.Interval
	if rule.Interval < 1 {
		rule.Interval = 1
	}

	if len(opt.Byweekday) > 0 && rule.Frequency == Weekly {
		// rrule counts weekdays from Monday=0; shift to Sunday=0.
		dow := (opt.Byweekday[0].Day() + 1) % 7
		rule.DayOfWeek = &dow
	}
	if len(opt.Bymonthday) > 0 {
		dom := opt.Bymonthday[0]
		rule.DayOfMonth = &dom
	}
	if opt.Count > 0 {
		count := opt.Count
		rule.EndCount = &count
	}
	if !opt.Until.IsZero() {
		until := opt.Until
		rule.EndDate = &until
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}
