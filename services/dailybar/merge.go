package dailybar

import (
	"sort"
	"time"

	"github.com/tradinglab/stockfetch/types"
)

// dateRange is an inclusive [Start, End] span of calendar days to fetch.
type dateRange struct {
	Start time.Time
	End   time.Time
}

// mergeConsecutiveDates collapses a sorted-ascending list of missing trading
// days into fetch ranges, so the fan out issues one request per run of
// missing days instead of one per day. Days at most 3 calendar days apart
// join the same range, so a range can span a weekend and also any cached
// trading day lying between two missing ones; such a day is fetched again
// and de-duplicated by mergeBars.
func mergeConsecutiveDates(days []time.Time) []dateRange {
	if len(days) == 0 {
		return nil
	}

	ranges := make([]dateRange, 0, len(days))
	spanStart := days[0]
	spanEnd := days[0]

	for _, d := range days[1:] {
		if d.Sub(spanEnd) <= 3*24*time.Hour && d.After(spanEnd) {
			// Allow up to a weekend-sized jump (Fri -> Mon is 3 days) to stay
			// in the same range, whether the skipped days are non-trading or
			// already cached.
			spanEnd = d
			continue
		}
		ranges = append(ranges, dateRange{Start: spanStart, End: spanEnd})
		spanStart, spanEnd = d, d
	}
	ranges = append(ranges, dateRange{Start: spanStart, End: spanEnd})
	return ranges
}

// mergeBars concatenates cached and newly-fetched bars, de-duplicating on
// (symbol, trade date) with newly-fetched data winning ties, then sorts
// ascending by trade date.
func mergeBars(cached []types.OHLCVBar, fresh ...[]types.OHLCVBar) []types.OHLCVBar {
	byDate := make(map[string]types.OHLCVBar, len(cached))
	for _, b := range cached {
		byDate[dateKey(b)] = b
	}
	for _, batch := range fresh {
		for _, b := range batch {
			byDate[dateKey(b)] = b
		}
	}

	merged := make([]types.OHLCVBar, 0, len(byDate))
	for _, b := range byDate {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].TradeDate.Before(merged[j].TradeDate)
	})
	return merged
}

func dateKey(b types.OHLCVBar) string {
	return b.Symbol + "|" + b.TradeDate.Format("2006-01-02")
}

// filterRange returns the subset of bars whose trade date falls within
// [start, end] inclusive.
func filterRange(bars []types.OHLCVBar, start, end time.Time) []types.OHLCVBar {
	out := make([]types.OHLCVBar, 0, len(bars))
	for _, b := range bars {
		if !b.TradeDate.Before(start) && !b.TradeDate.After(end) {
			out = append(out, b)
		}
	}
	return out
}
