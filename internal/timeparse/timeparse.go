// Package timeparse turns free-form Vietnamese deadline phrases into absolute
// instants in a fixed regional timezone. A failed parse is a normal negative
// result, not an error.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultHour = 9

// Parser resolves phrases against a fixed regional timezone.
type Parser struct {
	loc *time.Location
}

func New(loc *time.Location) *Parser {
	return &Parser{loc: loc}
}

type relativeDay struct {
	keyword string
	offset  int
}

// Longest keywords first so "ngày mai" wins over a bare "mai".
var relativeDays = []relativeDay{
	{"ngày mốt", 2},
	{"ngày kia", 2},
	{"ngày mai", 1},
	{"hôm nay", 0},
	{"hôm qua", -1},
	{"mai", 1},
}

type weekdayKeyword struct {
	keyword string
	day     time.Weekday
}

var weekdayKeywords = []weekdayKeyword{
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

var shortWeekdayRe = regexp.MustCompile(`\b(t[2-7]|cn)\b`)

var nextWeekKeywords = []string{"tuần sau", "tuần tới"}

// Part-of-day keywords and whether they shift a parsed hour < 12 to PM.
var partOfDay = []struct {
	keyword string
	pm      bool
}{
	{"sáng", false},
	{"trưa", true},
	{"chiều", true},
	{"tối", true},
	{"đêm", true},
}

var (
	dateRe      = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	timeGioRe   = regexp.MustCompile(`\b(\d{1,2})\s*giờ(?:\s*(\d{1,2}))?`)
	timeHRe     = regexp.MustCompile(`\b(\d{1,2})h(\d{1,2})?\b`)
	timeColonRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
)

// Parse extracts a deadline instant from text, resolved against ref. The
// second return value is the text with every matched substring removed and
// whitespace collapsed, so callers can use it as the task description.
// Returns (nil, text) when no temporal phrase is found.
func (p *Parser) Parse(text string, ref time.Time) (*time.Time, string) {
	ref = ref.In(p.loc)
	remaining := text

	var (
		date    time.Time
		hasDate bool
	)

	// Category 1: relative-day keywords.
	if offset, rest, ok := cutRelativeDay(remaining); ok {
		date = p.midnight(ref).AddDate(0, 0, offset)
		hasDate = true
		remaining = rest
	}

	// Category 2: special keywords.
	if !hasDate {
		if d, rest, ok := p.cutSpecial(remaining, ref); ok {
			date = d
			hasDate = true
			remaining = rest
		}
	}

	// Category 3: weekday keywords, always strictly in the future.
	if !hasDate {
		if d, rest, ok := p.cutWeekday(remaining, ref); ok {
			date = d
			hasDate = true
			remaining = rest
		}
	}

	// Category 4: explicit D/M[/Y] date.
	if !hasDate {
		if d, rest, ok := p.cutDate(remaining, ref); ok {
			date = d
			hasDate = true
			remaining = rest
		}
	}

	hour, minute, rest, hasTime := ExtractTimeOfDay(remaining)
	if hasTime {
		remaining = rest
	}

	if !hasDate && !hasTime {
		return nil, normalize(text)
	}

	if !hasTime {
		hour, minute = defaultHour, 0
	}
	if !hasDate {
		date = p.midnight(ref)
	}

	result := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, p.loc)

	// A bare time that has already passed today means tomorrow.
	if !hasDate && !result.After(ref) {
		result = result.AddDate(0, 0, 1)
	}

	return &result, normalize(remaining)
}

func (p *Parser) midnight(t time.Time) time.Time {
	t = t.In(p.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
}

func cutRelativeDay(text string) (int, string, bool) {
	lower := strings.ToLower(text)
	for _, rd := range relativeDays {
		idx := strings.Index(lower, rd.keyword)
		if idx < 0 {
			continue
		}
		if rd.keyword == "mai" && !standalone(lower, idx, len(rd.keyword)) {
			continue
		}
		return rd.offset, text[:idx] + text[idx+len(rd.keyword):], true
	}
	return 0, text, false
}

func (p *Parser) cutSpecial(text string, ref time.Time) (time.Time, string, bool) {
	lower := strings.ToLower(text)

	if idx := strings.Index(lower, "cuối tuần"); idx >= 0 {
		daysAhead := (int(time.Saturday) - int(ref.Weekday()) + 7) % 7
		d := p.midnight(ref).AddDate(0, 0, daysAhead)
		// Past Saturday noon the weekend means next week's.
		if daysAhead == 0 && ref.Hour() >= 12 {
			d = d.AddDate(0, 0, 7)
		}
		return d, text[:idx] + text[idx+len("cuối tuần"):], true
	}

	if idx := strings.Index(lower, "cuối tháng"); idx >= 0 {
		d := time.Date(ref.Year(), ref.Month()+1, 0, 0, 0, 0, 0, p.loc)
		return d, text[:idx] + text[idx+len("cuối tháng"):], true
	}

	return time.Time{}, text, false
}

func (p *Parser) cutWeekday(text string, ref time.Time) (time.Time, string, bool) {
	lower := strings.ToLower(text)

	target, idx, length := time.Sunday, -1, 0
	for _, wk := range weekdayKeywords {
		if i := strings.Index(lower, wk.keyword); i >= 0 {
			target, idx, length = wk.day, i, len(wk.keyword)
			break
		}
	}
	if idx < 0 {
		if m := shortWeekdayRe.FindStringIndex(lower); m != nil {
			tok := lower[m[0]:m[1]]
			if tok == "cn" {
				target = time.Sunday
			} else {
				n, _ := strconv.Atoi(tok[1:])
				target = time.Weekday(n - 1) // t2 is Monday
			}
			idx, length = m[0], m[1]-m[0]
		}
	}
	if idx < 0 {
		return time.Time{}, text, false
	}

	remaining := text[:idx] + text[idx+length:]

	// Never the same day, even when today already is that weekday.
	daysAhead := (int(target) - int(ref.Weekday()) + 7) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}

	lower = strings.ToLower(remaining)
	for _, kw := range nextWeekKeywords {
		if i := strings.Index(lower, kw); i >= 0 {
			daysAhead += 7
			remaining = remaining[:i] + remaining[i+len(kw):]
			break
		}
	}

	return p.midnight(ref).AddDate(0, 0, daysAhead), remaining, true
}

func (p *Parser) cutDate(text string, ref time.Time) (time.Time, string, bool) {
	m := dateRe.FindStringSubmatchIndex(text)
	if m == nil {
		return time.Time{}, text, false
	}

	day, _ := strconv.Atoi(text[m[2]:m[3]])
	month, _ := strconv.Atoi(text[m[4]:m[5]])
	if month < 1 || month > 12 || day < 1 || day > daysInMonth(ref.Year(), time.Month(month)) {
		return time.Time{}, text, false
	}

	year := ref.Year()
	explicitYear := m[6] >= 0
	if explicitYear {
		year, _ = strconv.Atoi(text[m[6]:m[7]])
		if year < 100 {
			year += 2000
		}
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, p.loc)
	// Without a year a date already behind us rolls to next year.
	if !explicitYear && d.Before(p.midnight(ref)) {
		d = d.AddDate(1, 0, 0)
	}

	return d, text[:m[0]] + text[m[1]:], true
}

// ExtractTimeOfDay pulls a time-of-day out of text: "15 giờ 30", "15h30",
// "15:30" or a bare "15h", followed by an optional part-of-day keyword
// (sáng/trưa/chiều/tối/đêm) that shifts an ambiguous hour to PM. The
// recurrence rule parser shares this grammar.
func ExtractTimeOfDay(text string) (int, int, string, bool) {
	lower := strings.ToLower(text)

	var m []int
	for _, re := range []*regexp.Regexp{timeGioRe, timeHRe, timeColonRe} {
		if m = re.FindStringSubmatchIndex(lower); m != nil {
			break
		}
	}
	if m == nil {
		return 0, 0, text, false
	}

	hour, _ := strconv.Atoi(lower[m[2]:m[3]])
	minute := 0
	if m[4] >= 0 {
		minute, _ = strconv.Atoi(lower[m[4]:m[5]])
	}
	if hour > 23 || minute > 59 {
		return 0, 0, text, false
	}

	remaining := text[:m[0]] + text[m[1]:]

	lower = strings.ToLower(remaining)
	for _, pod := range partOfDay {
		idx := strings.Index(lower, pod.keyword)
		if idx < 0 {
			continue
		}
		if pod.pm && hour < 12 {
			hour += 12
		}
		remaining = remaining[:idx] + remaining[idx+len(pod.keyword):]
		break
	}

	return hour, minute, remaining, true
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func standalone(lower string, idx, length int) bool {
	if idx > 0 {
		prev := lower[idx-1]
		if prev != ' ' && prev != '\t' {
			return false
		}
	}
	if end := idx + length; end < len(lower) {
		next := lower[end]
		if next != ' ' && next != '\t' && next != ',' && next != '.' {
			return false
		}
	}
	return true
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
