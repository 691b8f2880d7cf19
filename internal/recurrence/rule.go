// Package recurrence parses free-text recurrence phrases into rules and
// computes the next occurrence of a rule after a given anchor.
package recurrence

import "time"

type RuleType string

const (
	Daily   RuleType = "daily"
	Weekly  RuleType = "weekly"
	Monthly RuleType = "monthly"
)

// Rule describes a repeating schedule. An empty Weekdays/MonthDays set means
// "the day of the triggering event", resolved from the anchor at evaluation
// time rather than at parse time.
type Rule struct {
	Type      RuleType       `json:"type"`
	Interval  int            `json:"interval"`
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	MonthDays []int          `json:"month_days,omitempty"`
	Hour      int            `json:"hour"`
	Minute    int            `json:"minute"`
}

func (r Rule) Valid() bool {
	if r.Interval < 1 {
		return false
	}
	switch r.Type {
	case Daily, Weekly, Monthly:
	default:
		return false
	}
	if r.Hour < 0 || r.Hour > 23 || r.Minute < 0 || r.Minute > 59 {
		return false
	}
	for _, d := range r.MonthDays {
		if d < 1 || d > 31 {
			return false
		}
	}
	return true
}
