package recurrence

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"taskbot/internal/timeparse"
)

const defaultHour = 9

var (
	everyNRe   = regexp.MustCompile(`(?i)\bmỗi\s+(\d{1,2})\s+(ngày|tuần|tháng)`)
	monthDayRe = regexp.MustCompile(`(?i)\bngày\s+(\d{1,2})\b`)
)

var baseKeywords = []struct {
	keyword string
	typ     RuleType
}{
	{"hằng ngày", Daily},
	{"hàng ngày", Daily},
	{"mỗi ngày", Daily},
	{"hằng tuần", Weekly},
	{"hàng tuần", Weekly},
	{"mỗi tuần", Weekly},
	{"hằng tháng", Monthly},
	{"hàng tháng", Monthly},
	{"mỗi tháng", Monthly},
}

var unitTypes = map[string]RuleType{
	"ngày":  Daily,
	"tuần":  Weekly,
	"tháng": Monthly,
}

var weekdayKeywords = []struct {
	keyword string
	day     time.Weekday
}{
	{"chủ nhật", time.Sunday},
	{"thứ hai", time.Monday},
	{"thứ ba", time.Tuesday},
	{"thứ tư", time.Wednesday},
	{"thứ năm", time.Thursday},
	{"thứ sáu", time.Friday},
	{"thứ bảy", time.Saturday},
	{"thứ 2", time.Monday},
	{"thứ 3", time.Tuesday},
	{"thứ 4", time.Wednesday},
	{"thứ 5", time.Thursday},
	{"thứ 6", time.Friday},
	{"thứ 7", time.Saturday},
}

// ParseRule extracts a recurrence rule from free text. Returns (nil, text)
// when no recurrence phrase is recognized; that is a normal negative result.
func ParseRule(text string) (*Rule, string) {
	rule := Rule{Interval: 1, Hour: defaultHour}
	remaining := text
	found := false

	lower := strings.ToLower(remaining)
	for _, base := range baseKeywords {
		if idx := strings.Index(lower, base.keyword); idx >= 0 {
			rule.Type = base.typ
			remaining = remaining[:idx] + remaining[idx+len(base.keyword):]
			found = true
			break
		}
	}

	if !found {
		if m := everyNRe.FindStringSubmatchIndex(remaining); m != nil {
			n, _ := strconv.Atoi(remaining[m[2]:m[3]])
			if n >= 1 {
				rule.Type = unitTypes[strings.ToLower(remaining[m[4]:m[5]])]
				rule.Interval = n
				remaining = remaining[:m[0]] + remaining[m[1]:]
				found = true
			}
		}
	}

	if !found {
		return nil, normalize(text)
	}

	// Day sets only make sense for their own rule type.
	switch rule.Type {
	case Weekly:
		remaining = cutWeekdays(remaining, &rule)
	case Monthly:
		remaining = cutMonthDays(remaining, &rule)
	}

	if h, m, rest, ok := timeparse.ExtractTimeOfDay(remaining); ok {
		rule.Hour, rule.Minute = h, m
		remaining = rest
	}

	return &rule, normalize(remaining)
}

func cutWeekdays(text string, rule *Rule) string {
	for {
		lower := strings.ToLower(text)
		matched := false
		for _, wk := range weekdayKeywords {
			idx := strings.Index(lower, wk.keyword)
			if idx < 0 {
				continue
			}
			if !containsWeekday(rule.Weekdays, wk.day) {
				rule.Weekdays = append(rule.Weekdays, wk.day)
			}
			text = text[:idx] + text[idx+len(wk.keyword):]
			matched = true
			break
		}
		if !matched {
			return text
		}
	}
}

func cutMonthDays(text string, rule *Rule) string {
	for {
		m := monthDayRe.FindStringSubmatchIndex(text)
		if m == nil {
			return text
		}
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		if day >= 1 && day <= 31 && !containsInt(rule.MonthDays, day) {
			rule.MonthDays = append(rule.MonthDays, day)
		}
		text = text[:m[0]] + text[m[1]:]
	}
}

func containsWeekday(days []time.Weekday, d time.Weekday) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

func containsInt(days []int, d int) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
