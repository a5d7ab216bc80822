// Package calendar classifies China A-share trading days: a trading day is a
// weekday that is not a gazetted market holiday. Holiday dates are published
// yearly by the exchanges ahead of time, so the table here is a fixed,
// versioned snapshot rather than a computed rule (lunar-calendar holidays
// like Spring Festival cannot be derived from a formula).
package calendar

import "time"

// holidays2023to2026 lists China A-share market holidays (exchange closure
// days) from 2023 through 2026. A few weekend days inside holiday periods are
// listed too; IsTradingDay rejects weekends before consulting the table, so
// they have no effect. Extend this table as new exchange holiday schedules
// are gazetted.
var holidays2023to2026 = buildHolidaySet([]string{
	// 2023
	"2023-01-02", "2023-01-23", "2023-01-24", "2023-01-25", "2023-01-26", "2023-01-27",
	"2023-04-05", "2023-04-29", "2023-05-01", "2023-05-02", "2023-05-03",
	"2023-06-22", "2023-06-23",
	"2023-09-29", "2023-10-02", "2023-10-03", "2023-10-04", "2023-10-05", "2023-10-06",
	// 2024
	"2024-01-01",
	"2024-02-09", "2024-02-12", "2024-02-13", "2024-02-14", "2024-02-15", "2024-02-16",
	"2024-04-04", "2024-04-05",
	"2024-05-01", "2024-05-02", "2024-05-03",
	"2024-06-10",
	"2024-09-16", "2024-09-17",
	"2024-10-01", "2024-10-02", "2024-10-03", "2024-10-04", "2024-10-07",
	// 2025
	"2025-01-01", "2025-01-28", "2025-01-29", "2025-01-30", "2025-01-31",
	"2025-02-03", "2025-02-04",
	"2025-04-04",
	"2025-05-01", "2025-05-02", "2025-05-05",
	"2025-05-31", "2025-06-02",
	"2025-10-01", "2025-10-02", "2025-10-03", "2025-10-06", "2025-10-07", "2025-10-08",
	// 2026
	"2026-01-01", "2026-02-16", "2026-02-17", "2026-02-18", "2026-02-19", "2026-02-20",
	"2026-04-06",
	"2026-05-01",
	"2026-06-19",
	"2026-09-25",
	"2026-10-01", "2026-10-02", "2026-10-05", "2026-10-06", "2026-10-07", "2026-10-08",
})

func buildHolidaySet(dates []string) map[string]struct{} {
	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return set
}

// IsTradingDay reports whether t is a trading day: Monday-Friday and not a
// gazetted holiday. Callers outside the 2023-2026 table get weekday-only
// classification, since no holiday data exists for those years.
func IsTradingDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	_, isHoliday := holidays2023to2026[t.Format("2006-01-02")]
	return !isHoliday
}

// BusinessDays enumerates every trading day in [start, end] (inclusive),
// matching pandas' bdate_range-then-holiday-filter behavior the reference
// implementation used.
func BusinessDays(start, end time.Time) []time.Time {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}
