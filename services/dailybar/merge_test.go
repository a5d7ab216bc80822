package dailybar

import (
	"testing"
	"time"

	"github.com/tradinglab/stockfetch/types"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func bar(symbol, date string) types.OHLCVBar {
	return types.OHLCVBar{Symbol: symbol, TradeDate: d(date)}
}

func TestMergeConsecutiveDates_Empty(t *testing.T) {
	if got := mergeConsecutiveDates(nil); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestMergeConsecutiveDates_SingleRun(t *testing.T) {
	days := []time.Time{d("2024-01-02"), d("2024-01-03"), d("2024-01-04")}
	got := mergeConsecutiveDates(days)
	if len(got) != 1 {
		t.Fatalf("got %d ranges, want 1: %v", len(got), got)
	}
	if !got[0].Start.Equal(d("2024-01-02")) || !got[0].End.Equal(d("2024-01-04")) {
		t.Errorf("got range %+v, want [2024-01-02, 2024-01-04]", got[0])
	}
}

func TestMergeConsecutiveDates_WeekendGapStaysOneRange(t *testing.T) {
	// Friday -> Monday is a 3-day calendar gap but still one trading-day run.
	days := []time.Time{d("2024-01-05"), d("2024-01-08")}
	got := mergeConsecutiveDates(days)
	if len(got) != 1 {
		t.Fatalf("got %d ranges, want 1: %v", len(got), got)
	}
}

func TestMergeConsecutiveDates_SplitsOnLargeGap(t *testing.T) {
	days := []time.Time{d("2024-01-02"), d("2024-01-20")}
	got := mergeConsecutiveDates(days)
	if len(got) != 2 {
		t.Fatalf("got %d ranges, want 2: %v", len(got), got)
	}
}

func TestMergeBars_DedupesNewerWins(t *testing.T) {
	cached := []types.OHLCVBar{bar("600000", "2024-01-02")}
	cached[0].Close = 10

	fresh := []types.OHLCVBar{bar("600000", "2024-01-02")}
	fresh[0].Close = 20

	merged := mergeBars(cached, fresh)
	if len(merged) != 1 {
		t.Fatalf("got %d bars, want 1", len(merged))
	}
	if merged[0].Close != 20 {
		t.Errorf("Close = %v, want fresh value 20", merged[0].Close)
	}
}

func TestMergeBars_SortsAscending(t *testing.T) {
	cached := []types.OHLCVBar{bar("600000", "2024-01-05")}
	fresh := []types.OHLCVBar{bar("600000", "2024-01-02"), bar("600000", "2024-01-03")}

	merged := mergeBars(cached, fresh)
	if len(merged) != 3 {
		t.Fatalf("got %d bars, want 3", len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].TradeDate.Before(merged[i-1].TradeDate) {
			t.Fatalf("merged bars not ascending: %v", merged)
		}
	}
}

func TestFilterRange(t *testing.T) {
	bars := []types.OHLCVBar{
		bar("600000", "2024-01-01"),
		bar("600000", "2024-01-05"),
		bar("600000", "2024-01-10"),
	}
	got := filterRange(bars, d("2024-01-02"), d("2024-01-09"))
	if len(got) != 1 || !got[0].TradeDate.Equal(d("2024-01-05")) {
		t.Errorf("got %v, want only the 2024-01-05 bar", got)
	}
}

func TestFilterRange_InclusiveBounds(t *testing.T) {
	bars := []types.OHLCVBar{bar("600000", "2024-01-01"), bar("600000", "2024-01-10")}
	got := filterRange(bars, d("2024-01-01"), d("2024-01-10"))
	if len(got) != 2 {
		t.Errorf("got %d bars, want 2 (both boundary dates included)", len(got))
	}
}
