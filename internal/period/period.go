package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Named tokens accepted by Resolve. last_N_months and last_N_days are parsed dynamically.
const (
	Today       = "today"
	ThisMonth   = "this_month"
	LastMonth   = "last_month"
	ThisYear    = "this_year"
	LastYear    = "last_year"
	YearToDate  = "year_to_date"
	DefaultName = ThisMonth
)

// Period is an inclusive date range, both ends at midnight in the caller's location.
type Period struct {
	// Name is the token the period was resolved from.
	Name string
	// Start is the first day in the range.
	Start time.Time
	// End is the last day in the range.
	End time.Time
}

// Contains reports whether t falls on a day within the period.
func (p Period) Contains(t time.Time) bool {
	day := Day(t.In(p.Start.Location()))
	return !day.Before(p.Start) && !day.After(p.End)
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return int(Day(p.End).Sub(Day(p.Start)).Hours()/24+0.5) + 1
}

// Between builds a custom period.
func Between(start, end time.Time) Period {
	return Period{Name: "custom", Start: Day(start), End: Day(end)}
}

// Resolve turns a period token into concrete dates relative to now.
// Months are calendar months; last_N_months starts on the first day of the month
// N months back and runs through today.
func Resolve(token string, now time.Time) (Period, error) {
	name := strings.ToLower(strings.TrimSpace(token))
	if name == "" {
		name = DefaultName
	}
	today := Day(now)
	switch name {
	case Today:
		return Period{Name: name, Start: today, End: today}, nil
	case ThisMonth:
		return Period{Name: name, Start: monthStart(today), End: today}, nil
	case LastMonth:
		start := monthStart(today).AddDate(0, -1, 0)
		return Period{Name: name, Start: start, End: monthStart(today).AddDate(0, 0, -1)}, nil
	case ThisYear, YearToDate:
		return Period{Name: name, Start: time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location()), End: today}, nil
	case LastYear:
		start := time.Date(today.Year()-1, time.January, 1, 0, 0, 0, 0, today.Location())
		end := time.Date(today.Year()-1, time.December, 31, 0, 0, 0, 0, today.Location())
		return Period{Name: name, Start: start, End: end}, nil
	}

	if n, unit, ok := parseLastN(name); ok {
		switch unit {
		case "months":
			return Period{Name: name, Start: monthStart(today).AddDate(0, -n, 0), End: today}, nil
		case "days":
			return Period{Name: name, Start: today.AddDate(0, 0, -(n - 1)), End: today}, nil
		}
	}
	return Period{}, fmt.Errorf("unknown period %q", token)
}

// Names lists the tokens advertised to the model.
func Names() []string {
	return []string{Today, ThisMonth, LastMonth, "last_3_months", "last_6_months", "last_12_months", "last_30_days", ThisYear, LastYear, YearToDate}
}

// Month returns the calendar month containing t.
func Month(t time.Time) Period {
	start := monthStart(Day(t))
	return Period{Name: start.Format("2006-01"), Start: start, End: start.AddDate(0, 1, -1)}
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func parseLastN(name string) (int, string, bool) {
	rest, ok := strings.CutPrefix(name, "last_")
	if !ok {
		return 0, "", false
	}
	num, unit, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, "", false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, "", false
	}
	switch unit {
	case "months", "month":
		return n, "months", true
	case "days", "day":
		return n, "days", true
	}
	return 0, "", false
}
