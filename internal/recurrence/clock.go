package recurrence

import (
	"sort"
	"time"
)

// weeklyScanBound caps the day-by-day scan so a malformed rule cannot loop
// forever.
const weeklyScanBound = 365

// Next computes the first occurrence of rule strictly after now, using anchor
// as the previous occurrence (or the rule's creation instant). Comparisons
// are against now, not the anchor, so a rule evaluated late after scheduler
// downtime still lands on a genuinely future instant. Returns ok=false when
// the rule produces nothing inside its search bounds.
func Next(rule Rule, anchor, now time.Time) (time.Time, bool) {
	loc := anchor.Location()

	switch rule.Type {
	case Daily:
		cand := at(anchor.AddDate(0, 0, rule.Interval), rule, loc)
		for !cand.After(now) {
			cand = cand.AddDate(0, 0, rule.Interval)
		}
		return cand, true

	case Weekly:
		days := rule.Weekdays
		if len(days) == 0 {
			days = []time.Weekday{anchor.Weekday()}
		}
		// A stale anchor would leave the whole scan window in the past;
		// start from yesterday instead so the result stays future-bound.
		base := anchor
		if base.Before(now.AddDate(0, 0, -1)) {
			base = now.AddDate(0, 0, -1)
		}
		for i := 1; i <= weeklyScanBound; i++ {
			cand := at(base.AddDate(0, 0, i), rule, loc)
			if weekdayIn(days, cand.Weekday()) && cand.After(now) {
				return cand, true
			}
		}
		return time.Time{}, false

	case Monthly:
		days := rule.MonthDays
		if len(days) == 0 {
			days = []int{anchor.Day()}
		}
		days = append([]int(nil), days...)
		sort.Ints(days)

		month := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, loc).AddDate(0, rule.Interval, 0)
		if nowMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc); month.Before(nowMonth) {
			month = nowMonth
		}
		// One extra month covers a day set that is impossible or already
		// consumed in the target month.
		for attempt := 0; attempt < 2; attempt++ {
			for _, d := range days {
				if d > daysInMonth(month.Year(), month.Month()) {
					continue
				}
				cand := time.Date(month.Year(), month.Month(), d, rule.Hour, rule.Minute, 0, 0, loc)
				if cand.After(now) {
					return cand, true
				}
			}
			month = month.AddDate(0, 1, 0)
		}
		return time.Time{}, false
	}

	return time.Time{}, false
}

func at(day time.Time, rule Rule, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), rule.Hour, rule.Minute, 0, 0, loc)
}

func weekdayIn(days []time.Weekday, d time.Weekday) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
