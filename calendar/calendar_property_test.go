package calendar

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// TestBusinessDays_Invariants checks, over randomly generated date ranges,
// that BusinessDays never returns a non-trading day, never returns a day
// outside [start, end], and always returns dates in ascending order.
func TestBusinessDays_Invariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		startOffset := rapid.IntRange(0, 1000).Draw(rt, "startOffset")
		span := rapid.IntRange(0, 120).Draw(rt, "span")

		base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		start := base.AddDate(0, 0, startOffset)
		end := start.AddDate(0, 0, span)

		days := BusinessDays(start, end)

		var prev time.Time
		for i, d := range days {
			if d.Before(start) || d.After(end) {
				rt.Fatalf("day %v outside requested range [%v, %v]", d, start, end)
			}
			if !IsTradingDay(d) {
				rt.Fatalf("BusinessDays returned non-trading day %v", d)
			}
			if i > 0 && !d.After(prev) {
				rt.Fatalf("BusinessDays not strictly ascending at index %d: %v then %v", i, prev, d)
			}
			prev = d
		}
	})
}
