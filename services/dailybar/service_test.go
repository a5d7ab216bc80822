package dailybar

import (
	"testing"
	"time"

	"github.com/tradinglab/stockfetch/types"
)

func TestMissingDays(t *testing.T) {
	tradingDays := []time.Time{d("2024-01-02"), d("2024-01-03"), d("2024-01-04")}
	cached := []types.OHLCVBar{bar("600000", "2024-01-03")}

	missing := missingDays(tradingDays, cached)
	if len(missing) != 2 {
		t.Fatalf("got %d missing days, want 2: %v", len(missing), missing)
	}
	if !missing[0].Equal(d("2024-01-02")) || !missing[1].Equal(d("2024-01-04")) {
		t.Errorf("got %v, want [2024-01-02, 2024-01-04]", missing)
	}
}

func TestMissingDays_NothingMissing(t *testing.T) {
	tradingDays := []time.Time{d("2024-01-02")}
	cached := []types.OHLCVBar{bar("600000", "2024-01-02")}

	if got := missingDays(tradingDays, cached); len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestDailyBarCacheKey_IncludesAllDimensions(t *testing.T) {
	k1 := dailyBarCacheKey("600000", "2024-01-01", "2024-01-31")
	k2 := dailyBarCacheKey("600001", "2024-01-01", "2024-01-31")
	k3 := dailyBarCacheKey("600000", "2024-02-01", "2024-02-28")

	if k1 == k2 || k1 == k3 || k2 == k3 {
		t.Errorf("cache keys must differ by symbol and date range: %q %q %q", k1, k2, k3)
	}
}
