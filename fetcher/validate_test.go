package fetcher

import (
	"errors"
	"testing"
	"time"

	"github.com/tradinglab/stockfetch/types"
)

func TestValidateOHLCVBars_Valid(t *testing.T) {
	bars := []types.OHLCVBar{
		{Symbol: "600000", TradeDate: time.Now(), Open: 10, Close: 11, High: 12, Low: 9},
	}
	if err := ValidateOHLCVBars(NameSina, bars); err != nil {
		t.Fatalf("ValidateOHLCVBars() error = %v, want nil", err)
	}
}

func TestValidateOHLCVBars_HighBelowMax(t *testing.T) {
	bars := []types.OHLCVBar{
		{Symbol: "600000", TradeDate: time.Now(), Open: 10, Close: 11, High: 10.5, Low: 9},
	}
	err := ValidateOHLCVBars(NameSina, bars)
	if err == nil {
		t.Fatal("expected a schema violation error when high < close")
	}
	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected *types.Error, got %T", err)
	}
	if domainErr.Code != types.ErrSchemaViolation {
		t.Errorf("Code = %v, want %v", domainErr.Code, types.ErrSchemaViolation)
	}
	if domainErr.Source != string(NameSina) {
		t.Errorf("Source = %q, want %q", domainErr.Source, NameSina)
	}
}

func TestValidateOHLCVBars_LowAboveMin(t *testing.T) {
	bars := []types.OHLCVBar{
		{Symbol: "600000", TradeDate: time.Now(), Open: 10, Close: 11, High: 12, Low: 10.5},
	}
	if err := ValidateOHLCVBars(NameSina, bars); err == nil {
		t.Fatal("expected a schema violation error when low > min(open,close,high)")
	}
}

func TestValidateOHLCVBars_EmptyIsValid(t *testing.T) {
	if err := ValidateOHLCVBars(NameSina, nil); err != nil {
		t.Errorf("ValidateOHLCVBars(nil) error = %v, want nil", err)
	}
}
