// Package kpi computes read-only dashboard figures from job and inventory
// snapshots. Nothing here writes; every function is a reducer over its input.
package kpi

import (
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/estimate"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// Period is an inclusive time range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// ContainsDate reports whether a YYYY-MM-DD job date falls inside the period.
func (p Period) ContainsDate(date string) bool {
	d, ok := parseDate(date, p.Start.Location())
	return ok && p.Contains(d)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// MonthRange covers a whole calendar month.
func MonthRange(year int, month time.Month, loc *time.Location) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := start.AddDate(0, 1, -1)
	return Period{Start: start, End: endOfDay(last)}
}

// WeekRange covers week 1..5 of a month: weeks 1-4 are days 1-7, 8-14, 15-21
// and 22-28; week 5 is day 29 to the end of the month. Week 5 of February in a
// non-leap year is empty and returns ok=false.
func WeekRange(year int, month time.Month, week int, loc *time.Location) (Period, bool) {
	if week < 1 || week > 5 {
		return Period{}, false
	}
	lastDay := MonthRange(year, month, loc).End.Day()
	startDay, endDay := (week-1)*7+1, week*7
	if week == 5 {
		startDay, endDay = 29, lastDay
	}
	if endDay > lastDay {
		endDay = lastDay
	}
	if startDay > endDay {
		return Period{}, false
	}
	return Period{
		Start: time.Date(year, month, startDay, 0, 0, 0, 0, loc),
		End:   endOfDay(time.Date(year, month, endDay, 0, 0, 0, 0, loc)),
	}, true
}

// WorkingDays counts days in p that are neither Sunday nor a listed holiday
// (YYYY-MM-DD). It never returns less than 1.
func WorkingDays(p Period, holidays []string) int {
	off := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		off[h] = true
	}
	count := 0
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Sunday && !off[models.FormatDate(d)] {
			count++
		}
	}
	if count < 1 {
		return 1
	}
	return count
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(models.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return estimate.Round(float64(part) / float64(whole) * 100)
}
