package recur

import (
	"fmt"
	"time"
)

// Describe renders a human-readable label for the rule, e.g.
// "Every 2 weeks on Monday", "Monthly on day 31", "Quarterly".
func Describe(rule Rule) string {
	label := frequencyLabel(rule)

	if rule.Frequency == Weekly && rule.DayOfWeek != nil && *rule.DayOfWeek >= 0 && *rule.DayOfWeek <= 6 {
		label += " on " + time.Weekday(*rule.DayOfWeek).String()
	}

	switch rule.Frequency {
	case Monthly, Quarterly, Yearly:
		if rule.DayOfMonth != nil {
			if *rule.DayOfMonth == LastDayOfMonth {
				label += " on the last day of the month"
			} else {
				label += fmt.Sprintf(" on day %d", *rule.DayOfMonth)
			}
		}
	}

	if rule.EndCount != nil {
		label += fmt.Sprintf(", %d times", *rule.EndCount)
	}
	if rule.EndDate != nil {
		label += ", until " + rule.EndDate.Format("2006-01-02")
	}
	return label
}

func frequencyLabel(rule Rule) string {
	n := rule.Interval
	if n < 1 {
		n = 1
	}
	switch rule.Frequency {
	case Daily:
		if n == 1 {
			return "Daily"
		}
		return fmt.Sprintf("Every %d days", n)
	case Weekly:
		if n == 1 {
			return "Weekly"
		}
		return fmt.Sprintf("Every %d weeks", n)
	case Biweekly:
		// A biweekly interval multiplies a two-week base period.
		return fmt.Sprintf("Every %d weeks", 2*n)
	case Monthly:
		if n == 1 {
			return "Monthly"
		}
		return fmt.Sprintf("Every %d months", n)
	case Quarterly:
		if n == 1 {
			return "Quarterly"
		}
		return fmt.Sprintf("Every %d quarters", n)
	case Yearly:
		if n == 1 {
			return "Yearly"
		}
		return fmt.Sprintf("Every %d years", n)
	default:
		return string(rule.Frequency)
	}
}
