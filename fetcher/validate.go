package fetcher

import (
	"fmt"

	"github.com/tradinglab/stockfetch/types"
)

// ValidateOHLCVBars checks every bar against the §3 OHLCV price invariants
// (high is the max of the four prices, low is the min of the four prices)
// before an adapter hands its normalized output back to the registry. A
// violating bar means the upstream payload was malformed or the adapter's
// own field mapping is wrong; either way the caller must not see it.
func ValidateOHLCVBars(source Name, bars []types.OHLCVBar) error {
	for _, b := range bars {
		if err := validateOHLCVBar(b); err != nil {
			return types.NewSchemaViolationError(
				fmt.Sprintf("%s: %s", b.TradeDate.Format("2006-01-02"), err)).
				WithSource(string(source))
		}
	}
	return nil
}

func validateOHLCVBar(b types.OHLCVBar) error {
	maxOCL := max3(b.Open, b.Close, b.Low)
	if b.High < maxOCL {
		return fmt.Errorf("high %v is below max(open,close,low) %v", b.High, maxOCL)
	}
	minOCH := min3(b.Open, b.Close, b.High)
	if b.Low > minOCH {
		return fmt.Errorf("low %v is above min(open,close,high) %v", b.Low, minOCH)
	}
	return nil
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
